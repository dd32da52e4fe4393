// Package cache provides the report-payload cache backends. A cache only
// ever holds rendered report payloads; the collection files stay the sole
// system of record.
package cache

import (
	"fmt"
	"sync"

	"github.com/backroom-io/backroom/internal/core"
)

// Factory creates cache implementations for one backend type. Each backend
// registers itself from init().
type Factory interface {
	// Create builds a cache instance from the configuration.
	Create(config Config) (core.Cache, error)

	// Type returns the backend identifier ("redis", "dynamodb").
	Type() string

	// Validate checks the backend-specific fields of the configuration.
	Validate(config Config) error
}

// Config carries the settings for every supported backend; each factory
// reads only its own fields.
type Config struct {
	Type string `yaml:"type"`

	// Redis fields.
	Endpoints    []string `yaml:"endpoints"`
	Password     string   `yaml:"password"`
	DB           int      `yaml:"db"`
	PoolSize     int      `yaml:"pool_size"`
	MinIdleConns int      `yaml:"min_idle_conns"`
	DialTimeout  int64    `yaml:"dial_timeout"`  // nanoseconds
	ReadTimeout  int64    `yaml:"read_timeout"`  // nanoseconds
	WriteTimeout int64    `yaml:"write_timeout"` // nanoseconds

	// DynamoDB fields.
	Region          string `yaml:"region"`
	TableName       string `yaml:"table_name"`
	Endpoint        string `yaml:"endpoint"` // optional, for LocalStack
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

var (
	factoryRegistry = make(map[string]Factory)
	registryMutex   sync.RWMutex
)

// RegisterFactory registers a cache factory. Called from each backend's
// init().
func RegisterFactory(factory Factory) {
	if factory == nil {
		panic("factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("factory type cannot be empty")
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()

	if _, exists := factoryRegistry[factory.Type()]; exists {
		panic(fmt.Sprintf("factory for type %q is already registered", factory.Type()))
	}
	factoryRegistry[factory.Type()] = factory
}

// Create builds a cache using the factory registered for config.Type.
func Create(config Config) (core.Cache, error) {
	if config.Type == "" {
		return nil, fmt.Errorf("cache type is required")
	}

	registryMutex.RLock()
	factory, exists := factoryRegistry[config.Type]
	registryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
	if err := factory.Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", config.Type, err)
	}
	return factory.Create(config)
}

// RegisteredTypes returns the registered backend identifiers.
func RegisteredTypes() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]string, 0, len(factoryRegistry))
	for t := range factoryRegistry {
		types = append(types, t)
	}
	return types
}
