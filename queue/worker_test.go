package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marchfell/caravan/engine"
	"github.com/marchfell/caravan/game"
)

type stubDecider struct {
	decision engine.Decision
	err      error
}

func (s *stubDecider) ParallelSearch(ctx context.Context, root engine.State) (engine.Decision, error) {
	return s.decision, s.err
}

func newTestWorker(t *testing.T, decider Decider) (*Worker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWorker(client, decider, "caravan:decisions", WithReplyTTL(time.Minute)), mr
}

func pushRequest(t *testing.T, mr *miniredis.Miniredis, queue string, req Request) {
	t.Helper()
	buf, err := json.Marshal(req)
	require.NoError(t, err)
	_, err = mr.Lpush(queue, string(buf))
	require.NoError(t, err)
}

func popReply(t *testing.T, mr *miniredis.Miniredis, key string) Response {
	t.Helper()
	raw, err := mr.Lpop(key)
	require.NoError(t, err)
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))
	return resp
}

func TestWorkerProcessesRequest(t *testing.T) {
	decider := &stubDecider{decision: engine.Decision{
		Action: game.TraderAction{Kind: game.ActionMove, DestinationID: "stonegate"},
		Stats:  engine.Stats{SimulationsEvaluated: 100, Visits: 100},
	}}
	w, mr := newTestWorker(t, decider)

	pushRequest(t, mr, "caravan:decisions", Request{
		RequestID: "req-1",
		State: &game.TraderState{
			TraderID: "trader-1",
			Location: "oakvale",
			World:    &game.World{ID: "w1"},
		},
	})

	require.NoError(t, w.runOne(context.Background()))

	key := w.ReplyKey("req-1")
	resp := popReply(t, mr, key)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, "trader-1", resp.TraderID)
	assert.Equal(t, "move:stonegate", resp.ActionKey)
	assert.False(t, resp.NoDecision)
	assert.Empty(t, resp.Error)
	assert.Equal(t, 100, resp.Stats.SimulationsEvaluated)

	// Uncollected replies expire.
	assert.Greater(t, mr.TTL(key), time.Duration(0))
}

func TestWorkerReportsSearchFailure(t *testing.T) {
	decider := &stubDecider{err: &engine.CapabilityError{Op: "apply", Err: assert.AnError}}
	w, mr := newTestWorker(t, decider)

	pushRequest(t, mr, "caravan:decisions", Request{RequestID: "req-2"})
	require.NoError(t, w.runOne(context.Background()))

	resp := popReply(t, mr, w.ReplyKey("req-2"))
	assert.Equal(t, "req-2", resp.RequestID)
	assert.Contains(t, resp.Error, "apply")
	assert.Nil(t, resp.Action)
}

func TestWorkerNoDecision(t *testing.T) {
	decider := &stubDecider{decision: engine.Decision{Stats: engine.Stats{SimulationsEvaluated: 50}}}
	w, mr := newTestWorker(t, decider)

	pushRequest(t, mr, "caravan:decisions", Request{RequestID: "req-3"})
	require.NoError(t, w.runOne(context.Background()))

	resp := popReply(t, mr, w.ReplyKey("req-3"))
	assert.True(t, resp.NoDecision)
	assert.Empty(t, resp.ActionKey)
}

func TestWorkerDiscardsMalformedRequest(t *testing.T) {
	w, mr := newTestWorker(t, &stubDecider{})

	_, err := mr.Lpush("caravan:decisions", "{not json")
	require.NoError(t, err)
	require.NoError(t, w.runOne(context.Background()))

	// Nothing pushed anywhere, queue drained.
	assert.False(t, mr.Exists("caravan:decisions"))
}

func TestWorkerRunStopsOnCancel(t *testing.T) {
	w, _ := newTestWorker(t, &stubDecider{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
