package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeActionStatsOrderIndependent(t *testing.T) {
	parts := []Stats{
		{ActionStats: map[string]ActionStat{
			"a": {Visits: 10, Value: 5},
			"b": {Visits: 15, Value: -3},
		}},
		{ActionStats: map[string]ActionStat{
			"b": {Visits: 5, Value: 2},
			"c": {Visits: 25, Value: 25},
		}},
		{ActionStats: map[string]ActionStat{
			"a": {Visits: 20, Value: 10},
		}},
		{},
	}

	forward := Stats{}
	for i := 0; i < len(parts); i++ {
		mergeActionStats(&forward, parts[i])
	}
	backward := Stats{}
	for i := len(parts) - 1; i >= 0; i-- {
		mergeActionStats(&backward, parts[i])
	}

	require.Equal(t, forward.ActionStats, backward.ActionStats)
	require.Equal(t, forward.ActionsEvaluated, backward.ActionsEvaluated)

	require.Equal(t, ActionStat{Visits: 30, Value: 15, AverageValue: 0.5}, forward.ActionStats["a"])
	require.Equal(t, ActionStat{Visits: 20, Value: -1, AverageValue: -0.05}, forward.ActionStats["b"])
	require.Equal(t, ActionStat{Visits: 25, Value: 25, AverageValue: 1}, forward.ActionStats["c"])
	require.Equal(t, 3, forward.ActionsEvaluated)
}
