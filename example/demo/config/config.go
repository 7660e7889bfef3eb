// Package config loads the YAML configuration of the load generator.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	EngineMemory   = "memory"
	EnginePostgres = "postgres"
)

var (
	// ErrInvalidConfig is returned when a loaded configuration breaks a constraint.
	ErrInvalidConfig = errors.New("invalid load generator config")

	errMissingDSN = errors.New("postgres.dsn is required for the postgres engine")
)

type Server struct {
	ListenAddress string        `yaml:"listen_address"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
}

type Postgres struct {
	DSN          string `yaml:"dsn"`
	ReplicaDSN   string `yaml:"replica_dsn"`
	CreateSchema bool   `yaml:"create_schema"`
	MaxConns     int32  `yaml:"max_conns" validate:"gte=0"`
}

// Weights are the relative shares of the operations, they need not sum to 100.
type Weights struct {
	Create int `yaml:"create" validate:"gte=0"`
	Update int `yaml:"update" validate:"gte=0"`
	Delete int `yaml:"delete" validate:"gte=0"`
	Get    int `yaml:"get" validate:"gte=0"`
	List   int `yaml:"list" validate:"gte=0"`
	Total  int `yaml:"total" validate:"gte=0"`
}

// Sum returns the total of all weights.
func (w Weights) Sum() int {
	return w.Create + w.Update + w.Delete + w.Get + w.List + w.Total
}

type Load struct {
	Rate             int           `yaml:"rate" validate:"gt=0"`
	MaxInFlight      int           `yaml:"max_in_flight" validate:"gt=0"`
	Duration         time.Duration `yaml:"duration" validate:"gte=0"`
	OperationTimeout time.Duration `yaml:"operation_timeout" validate:"gt=0"`
	PageSize         int           `yaml:"page_size" validate:"gte=0"`
	Locations        []string      `yaml:"locations" validate:"min=1,dive,required"`
	Weights          Weights       `yaml:"weights"`
	StatsInterval    time.Duration `yaml:"stats_interval" validate:"gt=0"`
}

type Retry struct {
	MaxAttempts  int           `yaml:"max_attempts" validate:"gt=0"`
	BaseDelay    time.Duration `yaml:"base_delay" validate:"gte=0"`
	JitterFactor float64       `yaml:"jitter_factor" validate:"gte=0,lte=1"`
}

type Observability struct {
	Prometheus bool   `yaml:"prometheus"`
	OTel       bool   `yaml:"otel"`
	LogLevel   string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

type Config struct {
	Engine        string        `yaml:"engine" validate:"oneof=memory postgres"`
	Postgres      Postgres      `yaml:"postgres"`
	Server        Server        `yaml:"server"`
	Load          Load          `yaml:"load"`
	Retry         Retry         `yaml:"retry"`
	Observability Observability `yaml:"observability"`
}

// Load reads the YAML file at path, fills in defaults and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return Parse(b)
}

// Parse decodes a YAML document, fills in defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var c Config
	c.applyDefaults()

	return &c
}

func (c *Config) applyDefaults() {
	if c.Engine == "" {
		c.Engine = EngineMemory
	}

	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = ":9108"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 5 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}

	if c.Load.Rate == 0 {
		c.Load.Rate = 30
	}
	if c.Load.MaxInFlight == 0 {
		c.Load.MaxInFlight = 64
	}
	if c.Load.OperationTimeout == 0 {
		c.Load.OperationTimeout = 5 * time.Second
	}
	if c.Load.PageSize == 0 {
		c.Load.PageSize = 20
	}
	if len(c.Load.Locations) == 0 {
		c.Load.Locations = []string{"Chicago,IL", "Boston,MA", "Seattle,WA", "Austin,TX"}
	}
	if c.Load.Weights.Sum() == 0 {
		c.Load.Weights = Weights{Create: 30, Update: 20, Delete: 10, Get: 15, List: 20, Total: 5}
	}
	if c.Load.StatsInterval == 0 {
		c.Load.StatsInterval = 10 * time.Second
	}

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 6
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = 10 * time.Millisecond
	}

	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
}

// Validate checks the constraints declared on the struct fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}

	if c.Engine == EnginePostgres && c.Postgres.DSN == "" {
		return errors.Join(ErrInvalidConfig, errMissingDSN)
	}

	return nil
}
