package inference

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/marchfell/caravan/engine"
	"github.com/marchfell/caravan/game"
)

// OnnxEstimator implements engine.Estimator with an ONNX Runtime session.
// The model takes a (1, InputSize) float32 tensor named "features" and
// produces a (1, 1) float32 tensor named "value".
type OnnxEstimator struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
}

var _ engine.Estimator = (*OnnxEstimator)(nil)

var ortInitOnce sync.Once
var ortInitErr error

// NewOnnxEstimator loads the model at modelPath.
// ORT environment initialization is process-global; callers may create any
// number of estimators afterwards.
func NewOnnxEstimator(modelPath string) (*OnnxEstimator, error) {
	if runtime.GOOS == "linux" {
		if p := os.Getenv("ORT_SHARED_LIBRARY_PATH"); p != "" {
			ort.SetSharedLibraryPath(p)
		} else {
			cwd, _ := os.Getwd()
			candidates := []string{
				"libonnxruntime.so",
				"libonnxruntime.so.1",
			}
			for _, name := range candidates {
				abs := filepath.Join(cwd, name)
				if _, err := os.Stat(abs); err == nil {
					ort.SetSharedLibraryPath(abs)
					break
				}
			}
		}
	}

	ortInitOnce.Do(func() {
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("failed to init ort: %w", ortInitErr)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	// Estimates are issued one at a time from many search goroutines;
	// keep ORT's own threading out of the way.
	options.SetIntraOpNumThreads(1)
	options.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(
		modelPath, []string{"features"}, []string{"value"}, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &OnnxEstimator{session: session}, nil
}

func (e *OnnxEstimator) Close() error {
	return e.session.Destroy()
}

// Estimate encodes the state and runs the model, clamping the result to
// [-1, 1].
func (e *OnnxEstimator) Estimate(s engine.State) (float64, error) {
	ts, ok := s.(*game.TraderState)
	if !ok || ts == nil {
		return 0, fmt.Errorf("estimate: expected *game.TraderState, got %T", s)
	}

	featuresPtr := Encode(ts)
	defer PutFeatureBuffer(featuresPtr)

	inputTensor, err := ort.NewTensor(ort.NewShape(1, InputSize), *featuresPtr)
	if err != nil {
		return 0, fmt.Errorf("estimate: input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		return 0, fmt.Errorf("estimate: output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	// DynamicAdvancedSession.Run is not safe for concurrent use.
	e.mu.Lock()
	err = e.session.Run([]ort.Value{inputTensor}, []ort.Value{outputTensor})
	e.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("estimate: run: %w", err)
	}

	out := outputTensor.GetData()
	if len(out) == 0 {
		return 0, fmt.Errorf("estimate: model returned no value")
	}

	v := float64(out[0])
	if v < -1 {
		v = -1
	} else if v > 1 {
		v = 1
	}
	return v, nil
}
