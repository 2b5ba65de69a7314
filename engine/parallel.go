package engine

import (
	"context"

	"github.com/rs/zerolog/log"
)

// workerResult carries one worker's independent search outcome back to the
// coordinator. Workers share nothing else.
type workerResult struct {
	decision Decision
	err      error
}

// aggregate accumulates the contributions of every worker whose best
// action resolved to the same key. One record per distinct key per
// invocation, created lazily.
type aggregate struct {
	action Action
	visits int
	value  float64
	order  int
}

// ParallelSearch fans cfg.Workers independent searches out from the same
// root, each with its own tree, rand stream and cfg.SimulationsPerWorker
// budget, and merges their statistics into one decision.
//
// The root is encoded once and decoded per worker when the domain
// implements StateCodec; otherwise workers share the root read-only, which
// the immutability contract makes safe. Results are collected in dispatch
// order. Any worker failure aborts the whole invocation (fail-fast); a
// worker returning no-decision is skipped, and the coordinator returns
// no-decision only when every worker does.
//
// Visit accumulation is coarse: a worker's entire simulation
// budget is credited to the single action it judged best, and values are
// summed, not averaged, across workers. See DESIGN.md before changing
// either.
func (e *Engine) ParallelSearch(ctx context.Context, root State) (Decision, error) {
	if err := e.validateRoot(root); err != nil {
		return Decision{}, err
	}

	workers := e.cfg.Workers
	sims := e.cfg.SimulationsPerWorker

	var snapshot []byte
	codec, hasCodec := e.domain.(StateCodec)
	if hasCodec {
		buf, err := codec.EncodeState(root)
		if err != nil {
			return Decision{}, capErr("encode_state", err)
		}
		snapshot = buf
	}

	results := make([]chan workerResult, workers)
	for i := 0; i < workers; i++ {
		results[i] = make(chan workerResult, 1)

		go func(id int, out chan<- workerResult) {
			workerRoot := root
			if hasCodec {
				decoded, err := codec.DecodeState(snapshot)
				if err != nil {
					out <- workerResult{err: capErr("decode_state", err)}
					return
				}
				workerRoot = decoded
			}

			dec, err := e.search(ctx, workerRoot, sims, e.newRand(int64(id)))
			out <- workerResult{decision: dec, err: err}
		}(i, results[i])
	}

	table := make(map[string]*aggregate)
	merged := Stats{EstimatorUsed: e.estimator != nil}

	// Collect in dispatch order, not completion order.
	for i := 0; i < workers; i++ {
		res := <-results[i]
		if res.err != nil {
			return Decision{}, res.err
		}

		dec := res.decision
		merged.SimulationsEvaluated += dec.Stats.SimulationsEvaluated
		mergeActionStats(&merged, dec.Stats)

		if dec.NoAction() {
			log.Debug().Int("worker", i).Msg("worker returned no decision")
			continue
		}

		key := dec.Action.Key()
		rec, ok := table[key]
		if !ok {
			rec = &aggregate{action: dec.Action, order: len(table)}
			table[key] = rec
		}
		rec.visits += dec.Stats.SimulationsEvaluated
		rec.value += dec.Stats.Value

		log.Debug().
			Int("worker", i).
			Str("action", key).
			Int("visits", dec.Stats.Visits).
			Float64("value", dec.Stats.Value).
			Msg("worker result folded")
	}

	if len(table) == 0 {
		return Decision{Stats: merged}, nil
	}

	// Greatest accumulated visit total wins, ties broken by key
	// encounter order.
	var winner *aggregate
	for _, rec := range table {
		if winner == nil ||
			rec.visits > winner.visits ||
			(rec.visits == winner.visits && rec.order < winner.order) {
			winner = rec
		}
	}

	merged.Visits = winner.visits
	merged.Value = winner.value
	return Decision{Action: winner.action, Stats: merged}, nil
}

func mergeActionStats(dst *Stats, src Stats) {
	if len(src.ActionStats) == 0 {
		return
	}
	if dst.ActionStats == nil {
		dst.ActionStats = make(map[string]ActionStat, len(src.ActionStats))
	}
	for key, st := range src.ActionStats {
		cur := dst.ActionStats[key]
		cur.Visits += st.Visits
		cur.Value += st.Value
		if cur.Visits > 0 {
			cur.AverageValue = cur.Value / float64(cur.Visits)
		}
		dst.ActionStats[key] = cur
	}
	dst.ActionsEvaluated = len(dst.ActionStats)
}
