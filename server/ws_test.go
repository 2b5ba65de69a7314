package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marchfell/caravan/engine"
	"github.com/marchfell/caravan/game"
)

func TestDecisionFeed(t *testing.T) {
	decider := &stubDecider{decision: engine.Decision{
		Action: game.TraderAction{Kind: game.ActionRest},
		Stats:  engine.Stats{SimulationsEvaluated: 10, Visits: 10},
	}}
	srv := httptest.NewServer(New(decider, nil).Router())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	body, err := json.Marshal(game.TraderState{
		TraderID: "trader-1",
		Location: "oakvale",
		World:    &game.World{ID: "w1"},
	})
	require.NoError(t, err)
	httpResp, err := http.Post(srv.URL+"/decide", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	httpResp.Body.Close()
	require.Equal(t, http.StatusOK, httpResp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var fed DecideResponse
	require.NoError(t, conn.ReadJSON(&fed))
	assert.Equal(t, "trader-1", fed.TraderID)
	assert.Equal(t, "rest", fed.ActionKey)
}

func TestBroadcastDropsSlowSubscriber(t *testing.T) {
	hub := NewHub()

	// Register a subscriber whose queue nothing drains.
	registered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.mu.Lock()
		hub.clients[conn] = make(chan any, 1)
		hub.mu.Unlock()
		close(registered)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()
	<-registered

	hub.Broadcast("fits")
	hub.mu.Lock()
	assert.Len(t, hub.clients, 1)
	hub.mu.Unlock()

	// Second message overruns the queue; the hub must evict rather than
	// block the decide path.
	hub.Broadcast("overflow")
	hub.mu.Lock()
	assert.Empty(t, hub.clients)
	hub.mu.Unlock()
}
