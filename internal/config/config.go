package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Scene    SceneConfig    `toml:"scene"`
	Views    ViewsConfig    `toml:"views"`
	Assets   AssetsConfig   `toml:"assets"`
	Feed     FeedConfig     `toml:"feed"`
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
}

type SceneConfig struct {
	Name           string        `toml:"name"`
	TickRate       time.Duration `toml:"tick_rate"`
	Interpolation  string        `toml:"interpolation"` // "snap" or "lerp"
	LerpFactor     float32       `toml:"lerp_factor"`
	Fixture        string        `toml:"fixture"`         // YAML entity fixture loaded at boot
	ScriptsDir     string        `toml:"scripts_dir"`     // Lua prelude for formula tags
	FormulaTimeout time.Duration `toml:"formula_timeout"` // per formula evaluation
}

type ViewsConfig struct {
	MenuContext        string `toml:"menu_context"`
	InventoryContext   string `toml:"inventory_context"`
	InventorySlots     int    `toml:"inventory_slots"`
	SimulationsContext string `toml:"simulations_context"`
}

type AssetsConfig struct {
	Manifest           string `toml:"manifest"`
	MaxConcurrentLoads int64  `toml:"max_concurrent_loads"`
}

type FeedConfig struct {
	Enabled           bool          `toml:"enabled"`
	BindAddress       string        `toml:"bind_address"`
	InQueueSize       int           `toml:"in_queue_size"`
	MaxBatchesPerTick int           `toml:"max_batches_per_tick"`
	BatchesPerSecond  int           `toml:"batches_per_second"`
	ReadTimeout       time.Duration `toml:"read_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"` // empty disables persistence
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	SaveInterval    time.Duration `toml:"save_interval"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// validate rejects values that would panic or wedge the frame loop.
func (c *Config) validate() error {
	var errs []error
	if c.Scene.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("scene.tick_rate must be positive, got %s", c.Scene.TickRate))
	}
	if c.Scene.FormulaTimeout <= 0 {
		errs = append(errs, fmt.Errorf("scene.formula_timeout must be positive, got %s", c.Scene.FormulaTimeout))
	}
	if c.Views.InventorySlots <= 0 {
		errs = append(errs, fmt.Errorf("views.inventory_slots must be positive, got %d", c.Views.InventorySlots))
	}
	if c.Assets.MaxConcurrentLoads <= 0 {
		errs = append(errs, fmt.Errorf("assets.max_concurrent_loads must be positive, got %d", c.Assets.MaxConcurrentLoads))
	}
	if c.Feed.Enabled && c.Feed.MaxBatchesPerTick <= 0 {
		errs = append(errs, fmt.Errorf("feed.max_batches_per_tick must be positive, got %d", c.Feed.MaxBatchesPerTick))
	}
	if c.Feed.Enabled && c.Feed.InQueueSize < 0 {
		errs = append(errs, fmt.Errorf("feed.in_queue_size must not be negative, got %d", c.Feed.InQueueSize))
	}
	return errors.Join(errs...)
}

func defaults() *Config {
	return &Config{
		Scene: SceneConfig{
			Name:           "auxscene",
			TickRate:       16 * time.Millisecond,
			Interpolation:  "lerp",
			LerpFactor:     0.2,
			FormulaTimeout: 5 * time.Millisecond,
		},
		Views: ViewsConfig{
			MenuContext:        "menu",
			InventoryContext:   "inventory",
			InventorySlots:     9,
			SimulationsContext: "simulations",
		},
		Assets: AssetsConfig{
			MaxConcurrentLoads: 4,
		},
		Feed: FeedConfig{
			Enabled:           true,
			BindAddress:       "127.0.0.1:7070",
			InQueueSize:       128,
			MaxBatchesPerTick: 16,
			BatchesPerSecond:  120,
			ReadTimeout:       5 * time.Minute,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			SaveInterval:    30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
