package backroom

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/backroom-io/backroom/internal/cache"
	"github.com/backroom-io/backroom/internal/events"
	"github.com/backroom-io/backroom/internal/mirror"
)

// Config is the root configuration for a backroom client.
type Config struct {
	// DataDir is the directory holding one JSON file per collection.
	DataDir string `yaml:"data_dir"`

	// Pagination bounds listing requests made through the repositories.
	Pagination PaginationConfig `yaml:"pagination"`

	// Reports configures the report service.
	Reports ReportsConfig `yaml:"reports"`

	// Cache configures the optional report-payload cache.
	Cache CacheConfig `yaml:"cache"`

	// Events configures the optional change-event feed.
	Events EventsConfig `yaml:"events"`

	// Mirror configures the optional MySQL write-behind mirror.
	Mirror MirrorConfig `yaml:"mirror"`
}

// PaginationConfig sets the listing defaults and cap.
type PaginationConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// ReportsConfig tunes the report service.
type ReportsConfig struct {
	// CacheTTL bounds the staleness of cached report payloads.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// CacheConfig wraps the backend settings with an enable switch.
type CacheConfig struct {
	Enabled bool         `yaml:"enabled"`
	Backend cache.Config `yaml:"backend"`
}

// EventsConfig selects and tunes the change-feed transport.
type EventsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Transport is "memory" or "kafka".
	Transport string `yaml:"transport"`

	// BufferSize is the in-memory transport's channel capacity.
	BufferSize int `yaml:"buffer_size"`

	Kafka events.KafkaConfig `yaml:"kafka"`
}

// MirrorConfig wires the MySQL mirror and its drainer.
type MirrorConfig struct {
	Enabled bool `yaml:"enabled"`

	// BufferSize is the capacity of the queue feeding the drainer.
	BufferSize int `yaml:"buffer_size"`

	MySQL   mirror.MySQLConfig   `yaml:"mysql"`
	Drainer mirror.DrainerConfig `yaml:"drainer"`
}

// DefaultConfig returns a configuration with sensible defaults: a local data
// directory, no cache, no feed, no mirror.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "data",
		Pagination: PaginationConfig{
			DefaultLimit: 10,
			MaxLimit:     100,
		},
		Reports: ReportsConfig{
			CacheTTL: 5 * time.Minute,
		},
		Cache: CacheConfig{
			Enabled: false,
			Backend: cache.Config{
				Type:         "redis",
				Endpoints:    []string{"localhost:6379"},
				PoolSize:     10,
				MinIdleConns: 5,
				DialTimeout:  int64(5 * time.Second),
				ReadTimeout:  int64(3 * time.Second),
				WriteTimeout: int64(3 * time.Second),
			},
		},
		Events: EventsConfig{
			Enabled:    false,
			Transport:  "memory",
			BufferSize: 10000,
			Kafka: events.KafkaConfig{
				Brokers:      []string{"localhost:9092"},
				Topic:        "backroom-changes",
				GroupID:      "backroom-changefeed",
				BatchSize:    100,
				BatchTimeout: 10 * time.Millisecond,
				WriteTimeout: 10 * time.Second,
				RequiredAcks: -1,
				MinBytes:     1,
				MaxBytes:     10 * 1024 * 1024,
				MaxWait:      100 * time.Millisecond,
			},
		},
		Mirror: MirrorConfig{
			Enabled:    false,
			BufferSize: 10000,
			MySQL: mirror.MySQLConfig{
				Host:            "localhost",
				Port:            3306,
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
				ConnMaxIdleTime: 10 * time.Minute,
				ConnectTimeout:  10 * time.Second,
			},
			Drainer: mirror.DefaultDrainerConfig(),
		},
	}
}

// LoadConfig reads a YAML file over the defaults, so a partial file only
// overrides what it names.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return config, nil
}
