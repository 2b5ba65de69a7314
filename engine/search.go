package engine

import (
	"context"
	"math/rand"
)

// ActionStat summarizes one root action after a search.
type ActionStat struct {
	Visits       int     `json:"visits"`
	Value        float64 `json:"value"`
	AverageValue float64 `json:"average_value"`
}

// Stats is the statistics record a search or coordinator invocation
// produces for logging and telemetry.
type Stats struct {
	// SimulationsEvaluated is the total simulation budget spent.
	SimulationsEvaluated int `json:"simulations_evaluated"`
	// Visits and Value describe the chosen branch.
	Visits int     `json:"visits"`
	Value  float64 `json:"value"`
	// ActionsEvaluated counts distinct root actions that were explored.
	ActionsEvaluated int                   `json:"actions_evaluated"`
	ActionStats      map[string]ActionStat `json:"action_stats,omitempty"`
	EstimatorUsed    bool                  `json:"estimator_used"`
}

// Decision is the outcome of a search. A nil Action is an explicit
// no-decision: the root had no legal actions. It is never an error.
type Decision struct {
	Action Action
	Stats  Stats
}

// NoAction reports whether the search produced no decision.
func (d Decision) NoAction() bool { return d.Action == nil }

// Search runs simulations Select, Expand, Simulate, Backpropagate from a
// freshly initialized root and returns the root child with the highest
// visit count. Context cancellation is checked between simulations.
func (e *Engine) Search(ctx context.Context, root State, simulations int) (Decision, error) {
	if err := e.validateRoot(root); err != nil {
		return Decision{}, err
	}
	return e.search(ctx, root, simulations, e.newRand(0))
}

func (e *Engine) search(ctx context.Context, rootState State, simulations int, rng *rand.Rand) (Decision, error) {
	untried, err := e.domain.LegalActions(rootState)
	if err != nil {
		return Decision{}, capErr("legal_actions", err)
	}

	stats := Stats{EstimatorUsed: e.estimator != nil}
	if len(untried) == 0 {
		return Decision{Stats: stats}, nil
	}

	root := &node{state: rootState, untried: untried}
	w := e.cfg.ExplorationWeight

	for i := 0; i < simulations; i++ {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return Decision{}, ctx.Err()
			default:
			}
		}

		cur := root

		// Selection
		for cur.fullyExpanded() && len(cur.children) > 0 && !e.domain.IsTerminal(cur.state) {
			cur = cur.selectChild(w)
		}

		// Expansion
		if !e.domain.IsTerminal(cur.state) && !cur.fullyExpanded() {
			a := cur.untried[len(cur.untried)-1]
			cur.untried = cur.untried[:len(cur.untried)-1]

			next, err := e.domain.Apply(cur.state, a)
			if err != nil {
				return Decision{}, capErr("apply", err)
			}
			childUntried, err := e.domain.LegalActions(next)
			if err != nil {
				return Decision{}, capErr("legal_actions", err)
			}
			cur = cur.expand(a, next, childUntried)
		}

		// Simulation
		outcome, err := e.simulate(cur.state, rng)
		if err != nil {
			return Decision{}, err
		}

		// Backpropagation
		cur.backpropagate(outcome)
		stats.SimulationsEvaluated++
	}

	stats.ActionsEvaluated = len(root.children)
	stats.ActionStats = make(map[string]ActionStat, len(root.children))
	for _, child := range root.children {
		avg := 0.0
		if child.visits > 0 {
			avg = child.value / float64(child.visits)
		}
		stats.ActionStats[child.action.Key()] = ActionStat{
			Visits:       child.visits,
			Value:        child.value,
			AverageValue: avg,
		}
	}

	best := root.bestChild()
	if best == nil {
		return Decision{Stats: stats}, nil
	}
	stats.Visits = best.visits
	stats.Value = best.value
	return Decision{Action: best.action, Stats: stats}, nil
}

// simulate evaluates a leaf: through the estimator when one is supplied,
// otherwise by a uniform-random rollout to a terminal state or the
// configured depth cutoff.
func (e *Engine) simulate(s State, rng *rand.Rand) (float64, error) {
	if e.estimator != nil {
		v, err := e.estimator.Estimate(s)
		if err != nil {
			return 0, capErr("estimate", err)
		}
		return clamp(v, -1, 1), nil
	}
	return e.rollout(s, rng)
}

func (e *Engine) rollout(s State, rng *rand.Rand) (float64, error) {
	cur := s
	for depth := 0; depth < e.cfg.RolloutDepth && !e.domain.IsTerminal(cur); depth++ {
		actions, err := e.domain.LegalActions(cur)
		if err != nil {
			return 0, capErr("legal_actions", err)
		}
		if len(actions) == 0 {
			break
		}
		next, err := e.domain.Apply(cur, actions[rng.Intn(len(actions))])
		if err != nil {
			return 0, capErr("apply", err)
		}
		cur = next
	}

	reward, err := e.domain.Reward(cur)
	if err != nil {
		return 0, capErr("reward", err)
	}
	return reward, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
