// Command caravan runs the trader decision engine: an HTTP decision
// service, a Redis queue worker, one-shot decisions from snapshot files,
// and a summary tool over the parquet decision archive.
package main

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/marchfell/caravan/config"
	"github.com/marchfell/caravan/engine"
	"github.com/marchfell/caravan/inference"
	"github.com/marchfell/caravan/rules"
)

var (
	cfgPath string
	verbose bool
)

func main() {
	root := &cobra.Command{
		Use:           "caravan",
		Short:         "MCTS decision engine for trader agents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
				Level(level).
				With().Timestamp().Logger()
		},
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config (defaults used when empty)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newServeCmd(), newWorkerCmd(), newDecideCmd(), newArchiveCmd())

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("caravan failed")
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	return config.Load(cfgPath)
}

// buildEngine assembles the engine and, when a model path is configured,
// its ONNX estimator pool. The returned closer is nil when no estimator
// was created.
func buildEngine(cfg config.Config) (*engine.Engine, io.Closer, error) {
	var est engine.Estimator
	var closer io.Closer
	if cfg.Model.Path != "" {
		pool, err := inference.NewPool(cfg.Model.Path, cfg.Model.Sessions)
		if err != nil {
			return nil, nil, err
		}
		est = pool
		closer = pool
		log.Info().Str("model", cfg.Model.Path).Int("sessions", cfg.Model.Sessions).
			Msg("value estimator loaded")
	} else {
		log.Info().Msg("no value model configured, using random rollouts")
	}

	eng, err := engine.New(rules.TraderDomain{}, est, cfg.EngineConfig())
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, nil, err
	}
	return eng, closer, nil
}
