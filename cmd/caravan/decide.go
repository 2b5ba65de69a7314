package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marchfell/caravan/game"
)

func newDecideCmd() *cobra.Command {
	var snapshotPath string

	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Run one decision from a trader snapshot file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			buf, err := os.ReadFile(snapshotPath)
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}
			state, err := game.DecodeState(buf)
			if err != nil {
				return err
			}

			eng, closer, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}

			dec, err := eng.ParallelSearch(cmd.Context(), state)
			if err != nil {
				return err
			}

			out := map[string]any{
				"no_decision": dec.NoAction(),
				"stats":       dec.Stats,
			}
			if !dec.NoAction() {
				act := dec.Action.(game.TraderAction)
				out["action"] = act
				out["action_key"] = act.Key()
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "path to a trader state JSON snapshot")
	_ = cmd.MarkFlagRequired("snapshot")
	return cmd
}
