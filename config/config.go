// Package config loads the explicit configuration struct every entry
// point receives. Nothing reads process-wide mutable state.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/marchfell/caravan/engine"
)

type Search struct {
	ExplorationWeight    float64 `yaml:"exploration_weight"`
	Workers              int     `yaml:"workers"`
	SimulationsPerWorker int     `yaml:"simulations_per_worker"`
	RolloutDepth         int     `yaml:"rollout_depth"`
}

type Model struct {
	// Path to the ONNX value model. Empty disables the estimator and
	// searches fall back to random rollouts.
	Path     string `yaml:"path"`
	Sessions int    `yaml:"sessions"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Queue is the list the worker blocks on for decision requests.
	Queue string `yaml:"queue"`
}

type Archive struct {
	// Dir is the parquet decision archive directory. Empty disables
	// archiving.
	Dir string `yaml:"dir"`
	// FlushEvery finalizes the current batch after this many rows.
	FlushEvery int `yaml:"flush_every"`
}

type Config struct {
	Search  Search  `yaml:"search"`
	Model   Model   `yaml:"model"`
	Server  Server  `yaml:"server"`
	Redis   Redis   `yaml:"redis"`
	Archive Archive `yaml:"archive"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Search: Search{
			ExplorationWeight:    engine.DefaultExplorationWeight,
			Workers:              4,
			SimulationsPerWorker: 100,
			RolloutDepth:         engine.DefaultRolloutDepth,
		},
		Model:  Model{Sessions: 1},
		Server: Server{Addr: ":8081"},
		Redis: Redis{
			Addr:  "localhost:6379",
			Queue: "caravan:decisions",
		},
		Archive: Archive{FlushEvery: 256},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	buf, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Search.ExplorationWeight <= 0 {
		return fmt.Errorf("search.exploration_weight must be > 0, got %v", c.Search.ExplorationWeight)
	}
	if c.Search.Workers < 1 {
		return fmt.Errorf("search.workers must be >= 1, got %d", c.Search.Workers)
	}
	if c.Search.SimulationsPerWorker < 1 {
		return fmt.Errorf("search.simulations_per_worker must be >= 1, got %d", c.Search.SimulationsPerWorker)
	}
	return nil
}

// EngineConfig maps the search section onto the engine's config struct.
func (c Config) EngineConfig() engine.Config {
	return engine.Config{
		ExplorationWeight:    c.Search.ExplorationWeight,
		Workers:              c.Search.Workers,
		SimulationsPerWorker: c.Search.SimulationsPerWorker,
		RolloutDepth:         c.Search.RolloutDepth,
	}
}
