package store

import (
	"fmt"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// BatchWriter streams decision rows into a parquet file in outDir.
// Rows go to a *.parquet.tmp file that archive globs never match; Finalize
// renames it into place, so readers only ever see complete files.
type BatchWriter struct {
	file   *os.File
	writer *parquet.GenericWriter[DecisionRow]

	outPath string
	rows    int
}

func NewBatchWriter(outDir string) (*BatchWriter, error) {
	if outDir == "" {
		return nil, fmt.Errorf("outDir is required")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}

	f, err := os.CreateTemp(outDir, "decisions_*.parquet.tmp")
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}

	return &BatchWriter{
		file:    f,
		writer:  parquet.NewGenericWriter[DecisionRow](f, decisionWriterOptions()...),
		outPath: strings.TrimSuffix(f.Name(), ".tmp"),
	}, nil
}

func (b *BatchWriter) OutPath() string   { return b.outPath }
func (b *BatchWriter) BufferedRows() int { return b.rows }

func (b *BatchWriter) WriteRows(rows []DecisionRow) error {
	if b.writer == nil {
		return fmt.Errorf("batch writer is closed")
	}
	if len(rows) == 0 {
		return nil
	}
	if _, err := b.writer.Write(rows); err != nil {
		return err
	}
	b.rows += len(rows)
	return nil
}

// Finalize closes the writer and publishes the file under its final name.
// An empty batch is deleted instead and outPath comes back empty. Calling
// Finalize on a closed writer is a no-op.
func (b *BatchWriter) Finalize() (outPath string, rows int, err error) {
	if b.writer == nil {
		return "", 0, nil
	}

	writer, file := b.writer, b.file
	b.writer, b.file = nil, nil

	if err := writer.Close(); err != nil {
		_ = file.Close()
		return "", 0, fmt.Errorf("close parquet writer: %w", err)
	}
	_ = file.Sync()
	if err := file.Close(); err != nil {
		return "", 0, fmt.Errorf("close batch file: %w", err)
	}

	if b.rows == 0 {
		_ = os.Remove(file.Name())
		return "", 0, nil
	}
	if err := os.Rename(file.Name(), b.outPath); err != nil {
		return "", 0, fmt.Errorf("publish batch: %w", err)
	}
	return b.outPath, b.rows, nil
}
