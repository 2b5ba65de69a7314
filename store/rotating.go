package store

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// RotatingWriter wraps BatchWriter, publishing a finished batch file and
// opening a fresh one every flushEvery rows. Long-running servers get
// readable archive files without waiting for shutdown.
type RotatingWriter struct {
	mu         sync.Mutex
	outDir     string
	flushEvery int
	current    *BatchWriter
}

func NewRotatingWriter(outDir string, flushEvery int) (*RotatingWriter, error) {
	if flushEvery <= 0 {
		flushEvery = 256
	}
	bw, err := NewBatchWriter(outDir)
	if err != nil {
		return nil, err
	}
	return &RotatingWriter{outDir: outDir, flushEvery: flushEvery, current: bw}, nil
}

func (r *RotatingWriter) WriteRows(rows []DecisionRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		bw, err := NewBatchWriter(r.outDir)
		if err != nil {
			return err
		}
		r.current = bw
	}
	if err := r.current.WriteRows(rows); err != nil {
		return err
	}

	if r.current.BufferedRows() >= r.flushEvery {
		path, n, err := r.current.Finalize()
		r.current = nil
		if err != nil {
			return err
		}
		log.Info().Str("path", path).Int("rows", n).Msg("archive batch rotated")
	}
	return nil
}

// Close finalizes the in-flight batch, if any.
func (r *RotatingWriter) Close() (outPath string, rows int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return "", 0, nil
	}
	path, n, err := r.current.Finalize()
	r.current = nil
	return path, n, err
}
