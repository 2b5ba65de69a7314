package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/spf13/cobra"
)

func newArchiveCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Summarize the parquet decision archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				dir = cfg.Archive.Dir
			}
			if dir == "" {
				return fmt.Errorf("no archive directory configured")
			}

			db, err := sql.Open("duckdb", "")
			if err != nil {
				return fmt.Errorf("open duckdb: %w", err)
			}
			defer db.Close()

			glob := filepath.Join(dir, "*.parquet")
			rows, err := db.QueryContext(cmd.Context(), `
				SELECT coalesce(nullif(action_key, ''), '(no decision)') AS action,
				       count(*) AS decisions,
				       sum(simulations_evaluated) AS simulations,
				       sum(visits) AS visits,
				       sum(value) AS value
				FROM read_parquet(?)
				GROUP BY action
				ORDER BY visits DESC`, glob)
			if err != nil {
				return fmt.Errorf("query archive: %w", err)
			}
			defer rows.Close()

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ACTION\tDECISIONS\tSIMULATIONS\tVISITS\tVALUE")
			for rows.Next() {
				var action string
				var decisions, simulations, visits int64
				var value float64
				if err := rows.Scan(&action, &decisions, &simulations, &visits, &value); err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.1f\n", action, decisions, simulations, visits, value)
			}
			if err := rows.Err(); err != nil {
				return err
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "archive directory (defaults to config archive.dir)")
	return cmd
}
