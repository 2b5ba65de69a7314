// Package store archives completed decisions to parquet for offline
// analysis and estimator training pipelines.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/marchfell/caravan/engine"
)

// DecisionRow is a single coordinator invocation.
//
// It is model-agnostic and optimized for compression: the root snapshot
// and the per-action aggregate table are stored as zstd'd JSON blobs so
// trainers can featurize them however they like.
type DecisionRow struct {
	DecisionID string `parquet:"decision_id"`
	TraderID   string `parquet:"trader_id,dict"`
	WorldID    string `parquet:"world_id,dict"`
	UnixMillis int64  `parquet:"unix_millis"`

	// ActionKey is the chosen action's aggregation key, empty for
	// no-decision outcomes.
	ActionKey  string `parquet:"action_key,dict"`
	ActionJSON []byte `parquet:"action_json,optional,zstd"`

	Workers              int32   `parquet:"workers"`
	SimulationsEvaluated int32   `parquet:"simulations_evaluated"`
	Visits               int32   `parquet:"visits"`
	Value                float64 `parquet:"value"`
	ActionsEvaluated     int32   `parquet:"actions_evaluated"`
	EstimatorUsed        bool    `parquet:"estimator_used"`

	// ActionStatsJSON is the merged per-action aggregate table:
	// {key: {visits, value, average_value}}.
	ActionStatsJSON []byte `parquet:"action_stats_json,optional,zstd"`

	StateFormat string `parquet:"state_format,dict"`
	State       []byte `parquet:"state,optional,zstd"`

	DurationMicros int64 `parquet:"duration_micros"`
}

// NewDecisionRow flattens a decision and its context into an archive row.
func NewDecisionRow(decisionID, traderID, worldID string, workers int, dec engine.Decision, snapshot []byte, elapsed time.Duration) DecisionRow {
	row := DecisionRow{
		DecisionID:           decisionID,
		TraderID:             traderID,
		WorldID:              worldID,
		UnixMillis:           time.Now().UnixMilli(),
		Workers:              int32(workers),
		SimulationsEvaluated: int32(dec.Stats.SimulationsEvaluated),
		Visits:               int32(dec.Stats.Visits),
		Value:                dec.Stats.Value,
		ActionsEvaluated:     int32(dec.Stats.ActionsEvaluated),
		EstimatorUsed:        dec.Stats.EstimatorUsed,
		StateFormat:          "trader_state_json_v1",
		State:                snapshot,
		DurationMicros:       elapsed.Microseconds(),
	}

	if !dec.NoAction() {
		row.ActionKey = dec.Action.Key()
		if buf, err := json.Marshal(dec.Action); err == nil {
			row.ActionJSON = buf
		}
	}
	if len(dec.Stats.ActionStats) > 0 {
		if buf, err := json.Marshal(dec.Stats.ActionStats); err == nil {
			row.ActionStatsJSON = buf
		}
	}

	return row
}

// decisionWriterOptions is the one schema/compression configuration every
// archive writer in this package uses.
func decisionWriterOptions() []parquet.WriterOption {
	return []parquet.WriterOption{
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", "decision_row_v1"),
	}
}

// WriteDecisionsParquet writes rows to outPath in one shot.
// The write goes to a temp file and renames atomically so readers globbing
// the archive directory never see a partial file.
func WriteDecisionsParquet(outPath string, rows []DecisionRow) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows, decisionWriterOptions()...); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

// ReadDecisionsParquet loads every row of one archive file.
func ReadDecisionsParquet(path string) ([]DecisionRow, error) {
	rows, err := parquet.ReadFile[DecisionRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	return rows, nil
}
