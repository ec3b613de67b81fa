package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// HyperParams are the client-side fallbacks for hyperparameters the
// orchestrator may omit from a round config.
type HyperParams struct {
	LearningRate float64 `yaml:"lr"`
	Momentum     float64 `yaml:"momentum"`
	LocalEpochs  int     `yaml:"local_epochs"`
}

// Config captures one client run.
type Config struct {
	ServerAddress string `yaml:"server_address"`
	StatusAddress string `yaml:"status_address"`
	ClientID      string `yaml:"client_id"`
	NumClients    int    `yaml:"num_clients"`
	BatchSize     int    `yaml:"batch_size"`
	// NonIID switches partitioning from round-robin to seed-derived
	// weighted shares.
	NonIID         bool        `yaml:"non_iid"`
	TrainArchive   string      `yaml:"train_archive"`
	ValArchive     string      `yaml:"val_archive"`
	Seed           int64       `yaml:"seed"`
	CheckpointPath string      `yaml:"checkpoint_path"`
	LogLevel       string      `yaml:"log_level"`
	LogDir         string      `yaml:"log_dir"`
	Defaults       HyperParams `yaml:"defaults"`
}

// Overrides captures CLI-supplied values; zero values leave the file value
// in place.
type Overrides struct {
	ServerAddress string
	StatusAddress string
	ClientID      string
	NumClients    int
	BatchSize     int
	Seed          int64
}

// Load reads and validates a Config from YAML.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

// fillDefaults treats zero values as unset: an explicit `lr: 0` or
// `seed: 0` in the YAML becomes the default. Neither is a runnable value
// (lr 0 never learns, seed 0 is reserved for "pick the default"), so the
// ambiguity is harmless here.
func (c *Config) fillDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = 64
	}
	if c.Seed == 0 {
		c.Seed = 1
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Defaults.LearningRate == 0 {
		c.Defaults.LearningRate = 0.01
	}
	if c.Defaults.Momentum == 0 {
		c.Defaults.Momentum = 0.9
	}
	if c.Defaults.LocalEpochs == 0 {
		c.Defaults.LocalEpochs = 1
	}
}

// ApplyOverrides updates the config from non-zero overrides.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.ServerAddress != "" {
		c.ServerAddress = o.ServerAddress
	}
	if o.StatusAddress != "" {
		c.StatusAddress = o.StatusAddress
	}
	if o.ClientID != "" {
		c.ClientID = o.ClientID
	}
	if o.NumClients > 0 {
		c.NumClients = o.NumClients
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.ServerAddress == "" {
		return errors.New("server_address must be set")
	}
	if c.ClientID == "" {
		return errors.New("client_id must be set")
	}
	if c.NumClients <= 0 {
		return fmt.Errorf("num_clients must be > 0 (got %d)", c.NumClients)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.TrainArchive == "" || c.ValArchive == "" {
		return errors.New("train_archive and val_archive must be set")
	}
	return nil
}
