// Package queue consumes decision requests from a Redis list, runs the
// coordinator, and pushes each result to the request's reply key. It is
// the headless counterpart of the HTTP decide endpoint, for simulations
// that schedule trader updates through a broker.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/marchfell/caravan/engine"
	"github.com/marchfell/caravan/game"
)

// Request is one queued decision job.
type Request struct {
	RequestID string            `json:"request_id"`
	State     *game.TraderState `json:"state"`
}

// Response is pushed to the request's reply key.
type Response struct {
	RequestID  string             `json:"request_id"`
	TraderID   string             `json:"trader_id,omitempty"`
	Action     *game.TraderAction `json:"action,omitempty"`
	ActionKey  string             `json:"action_key,omitempty"`
	NoDecision bool               `json:"no_decision"`
	Stats      engine.Stats       `json:"stats"`
	Error      string             `json:"error,omitempty"`
}

// Decider matches *engine.Engine.
type Decider interface {
	ParallelSearch(ctx context.Context, root engine.State) (engine.Decision, error)
}

type Worker struct {
	client  *backend.Client
	decider Decider
	queue   string
	// replyTTL bounds how long an uncollected reply lingers.
	replyTTL time.Duration
}

type Option func(*Worker)

// WithReplyTTL overrides the reply key expiration.
func WithReplyTTL(ttl time.Duration) Option {
	return func(w *Worker) {
		if ttl > 0 {
			w.replyTTL = ttl
		}
	}
}

// NewWorker wraps an existing Redis client.
func NewWorker(client *backend.Client, decider Decider, queue string, opts ...Option) *Worker {
	w := &Worker{
		client:   client,
		decider:  decider,
		queue:    queue,
		replyTTL: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ReplyKey returns the list a request's response is pushed to.
func (w *Worker) ReplyKey(requestID string) string {
	return w.queue + ":reply:" + requestID
}

// Run blocks on the queue until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	log.Info().Str("queue", w.queue).Msg("queue worker started")
	for {
		if err := w.runOne(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			log.Error().Err(err).Msg("queue worker iteration failed")
			// Back off briefly so a broken broker does not spin.
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// runOne pops and processes a single request.
func (w *Worker) runOne(ctx context.Context) error {
	popped, err := w.client.BLPop(ctx, 5*time.Second, w.queue).Result()
	if errors.Is(err, backend.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("blpop %s: %w", w.queue, err)
	}
	if len(popped) < 2 {
		return nil
	}

	var req Request
	if err := json.Unmarshal([]byte(popped[1]), &req); err != nil {
		log.Warn().Err(err).Msg("discarding malformed decision request")
		return nil
	}

	resp := w.process(ctx, req)
	buf, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}

	key := w.ReplyKey(req.RequestID)
	pipe := w.client.TxPipeline()
	pipe.RPush(ctx, key, buf)
	pipe.Expire(ctx, key, w.replyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push reply %s: %w", key, err)
	}
	return nil
}

func (w *Worker) process(ctx context.Context, req Request) Response {
	resp := Response{RequestID: req.RequestID}
	if req.State != nil {
		resp.TraderID = req.State.TraderID
	}

	dec, err := w.decider.ParallelSearch(ctx, req.State)
	if err != nil {
		resp.Error = err.Error()
		log.Warn().Err(err).Str("request", req.RequestID).Msg("decision failed")
		return resp
	}

	resp.Stats = dec.Stats
	resp.NoDecision = dec.NoAction()
	if !dec.NoAction() {
		act := dec.Action.(game.TraderAction)
		resp.Action = &act
		resp.ActionKey = act.Key()
	}
	return resp
}
