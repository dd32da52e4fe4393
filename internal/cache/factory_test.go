package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRejectsUnknownType(t *testing.T) {
	_, err := Create(Config{Type: "memcached"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported cache type")

	_, err = Create(Config{})
	require.Error(t, err)
}

func TestRegisteredTypes(t *testing.T) {
	types := RegisteredTypes()
	assert.Contains(t, types, "redis")
	assert.Contains(t, types, "dynamodb")
}

func TestRedisValidate(t *testing.T) {
	f := &RedisFactory{}

	valid := Config{
		Type:         "redis",
		Endpoints:    []string{"localhost:6379"},
		PoolSize:     10,
		DialTimeout:  int64(1e9),
		ReadTimeout:  int64(1e9),
		WriteTimeout: int64(1e9),
	}
	require.NoError(t, f.Validate(valid))

	noEndpoints := valid
	noEndpoints.Endpoints = nil
	assert.Error(t, f.Validate(noEndpoints))

	badDB := valid
	badDB.DB = 42
	assert.Error(t, f.Validate(badDB))

	zeroPool := valid
	zeroPool.PoolSize = 0
	assert.Error(t, f.Validate(zeroPool))
}

func TestDynamoDBValidate(t *testing.T) {
	f := &DynamoDBFactory{}

	require.NoError(t, f.Validate(Config{Type: "dynamodb", Region: "us-east-1", TableName: "reports"}))
	assert.Error(t, f.Validate(Config{Type: "dynamodb", TableName: "reports"}))
	assert.Error(t, f.Validate(Config{Type: "dynamodb", Region: "us-east-1"}))
}
