package inference

import (
	"fmt"
	"sync/atomic"

	"github.com/marchfell/caravan/engine"
)

// Pool fans Estimate calls out across multiple OnnxEstimator instances.
// Each estimator has its own ORT session, so concurrent search workers do
// not serialize on a single session lock.
//
// Note: ORT environment initialization is process-global; OnnxEstimator
// handles that internally.
type Pool struct {
	estimators []*OnnxEstimator
	rr         atomic.Uint64
}

var _ engine.Estimator = (*Pool)(nil)

// NewPool creates sessions estimators over the same model.
func NewPool(modelPath string, sessions int) (*Pool, error) {
	if sessions <= 0 {
		sessions = 1
	}

	estimators := make([]*OnnxEstimator, 0, sessions)
	for i := 0; i < sessions; i++ {
		e, err := NewOnnxEstimator(modelPath)
		if err != nil {
			for _, created := range estimators {
				_ = created.Close()
			}
			return nil, fmt.Errorf("create estimator %d/%d: %w", i+1, sessions, err)
		}
		estimators = append(estimators, e)
	}

	return &Pool{estimators: estimators}, nil
}

func (p *Pool) Close() error {
	var firstErr error
	for _, e := range p.estimators {
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *Pool) Estimate(s engine.State) (float64, error) {
	if len(p.estimators) == 0 {
		return 0, fmt.Errorf("estimator pool has no sessions")
	}
	idx := int(p.rr.Add(1)-1) % len(p.estimators)
	return p.estimators[idx].Estimate(s)
}
