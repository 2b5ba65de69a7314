// Package engine implements Monte-Carlo Tree Search over a caller-supplied
// domain, plus a coordinator that fans independent searches out across
// isolated workers and merges their statistics into a single decision.
//
// The engine never assumes a concrete domain: states are opaque values and
// the four transition capabilities are supplied through the Domain
// interface. The trader binding lives in the rules package.
package engine

import (
	"math/rand"
	"time"
)

// State is an opaque world snapshot owned by the caller.
// States must be immutable: Domain.Apply returns a new state and never
// mutates its input.
type State any

// Action is a discrete candidate move.
// Key identifies one class of move per decision cycle; the coordinator
// aggregates worker results by it, so two structurally different actions
// must not collide on the same key.
type Action interface {
	Key() string
}

// Domain supplies the capability set binding the search to the caller's
// rules. All methods must be safe for concurrent use: each search worker
// calls them from its own goroutine.
type Domain interface {
	// LegalActions enumerates the finite set of moves available in s.
	// An empty result is not an error; at the root it yields no-decision.
	LegalActions(s State) ([]Action, error)
	// Apply is pure: it returns the successor state and leaves s intact.
	Apply(s State, a Action) (State, error)
	IsTerminal(s State) bool
	// Reward scores a state reached by simulation.
	Reward(s State) (float64, error)
}

// StateValidator is optionally implemented by domains that can reject
// structurally broken states. The check runs once before any simulation
// starts and failures surface as ErrInvalidState.
type StateValidator interface {
	ValidateState(s State) error
}

// StateCodec is optionally implemented by domains whose states can cross a
// worker boundary. When present, the coordinator encodes the root once and
// hands each worker its own decoded copy; otherwise workers share the root
// read-only.
type StateCodec interface {
	EncodeState(s State) ([]byte, error)
	DecodeState(buf []byte) (State, error)
}

// Estimator scores a state in [-1, 1]. It replaces the random rollout as
// the leaf evaluation when supplied; the engine degrades to a uniform
// random rollout policy without one.
type Estimator interface {
	Estimate(s State) (float64, error)
}

// Config parameterizes a search. It is passed explicitly into every entry
// point; the engine reads no ambient configuration.
type Config struct {
	// ExplorationWeight scales the UCB exploration bonus. Must be > 0;
	// zero selects DefaultExplorationWeight.
	ExplorationWeight float64
	// RolloutDepth caps random rollouts that never reach a terminal
	// state. Zero selects DefaultRolloutDepth.
	RolloutDepth int
	// Workers is the size of the coordinator's worker pool.
	Workers int
	// SimulationsPerWorker is each worker's independent budget.
	SimulationsPerWorker int
	// Seed fixes the entropy source. Zero seeds from the clock; any
	// other value makes single-worker searches reproducible. Worker i
	// derives its stream from Seed+i so parallel runs stay decorrelated.
	Seed int64
}

const (
	DefaultExplorationWeight = 1.0
	DefaultRolloutDepth      = 10
)

// Engine runs searches for one domain with one configuration.
// It holds no state between calls: every Search builds a fresh tree.
type Engine struct {
	domain    Domain
	estimator Estimator
	cfg       Config
}

// New creates an engine. The estimator may be nil; the engine then falls
// back to random rollouts.
func New(domain Domain, estimator Estimator, cfg Config) (*Engine, error) {
	if domain == nil {
		return nil, &CapabilityError{Op: "domain", Err: errNilDomain}
	}
	if cfg.ExplorationWeight < 0 {
		return nil, errNegativeWeight
	}
	if cfg.ExplorationWeight == 0 {
		cfg.ExplorationWeight = DefaultExplorationWeight
	}
	if cfg.RolloutDepth <= 0 {
		cfg.RolloutDepth = DefaultRolloutDepth
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.SimulationsPerWorker <= 0 {
		cfg.SimulationsPerWorker = 1
	}
	return &Engine{domain: domain, estimator: estimator, cfg: cfg}, nil
}

// Config returns the effective configuration after defaulting.
func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) newRand(offset int64) *rand.Rand {
	seed := e.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed + offset))
}

// validateRoot runs the structural checks that must fail fast before any
// simulation starts.
func (e *Engine) validateRoot(root State) error {
	if root == nil {
		return ErrInvalidState
	}
	if v, ok := e.domain.(StateValidator); ok {
		if err := v.ValidateState(root); err != nil {
			return joinInvalidState(err)
		}
	}
	return nil
}
