package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/backroom-io/backroom/internal/core"
)

// DynamoDBCache implements core.Cache using one DynamoDB table with a "key"
// partition key. Expiry relies on a numeric "ttl" attribute checked on read;
// enabling DynamoDB TTL on the table reclaims expired items.
type DynamoDBCache struct {
	client    *dynamodb.Client
	tableName string
	closed    bool
}

// NewDynamoDBCache connects to DynamoDB and verifies the table exists.
func NewDynamoDBCache(region, tableName, endpoint, accessKeyID, secretAccessKey string) (*DynamoDBCache, error) {
	if region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if tableName == "" {
		return nil, fmt.Errorf("table name is required")
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if accessKeyID != "" && secretAccessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")
	}

	clientOptions := []func(*dynamodb.Options){}
	if endpoint != "" {
		// Custom endpoint (e.g., for LocalStack)
		clientOptions = append(clientOptions, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	client := dynamodb.NewFromConfig(cfg, clientOptions...)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	}); err != nil {
		return nil, fmt.Errorf("failed to connect to DynamoDB table %s: %w", tableName, err)
	}

	return &DynamoDBCache{client: client, tableName: tableName}, nil
}

// Get retrieves a payload by key. Missing and expired keys are
// core.ErrCacheMiss.
func (d *DynamoDBCache) Get(ctx context.Context, key string) ([]byte, error) {
	if d.closed {
		return nil, fmt.Errorf("cache is closed")
	}

	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"key": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("key %s: %w", key, core.ErrCacheMiss)
	}
	if expired(result.Item) {
		return nil, fmt.Errorf("key %s: %w", key, core.ErrCacheMiss)
	}

	valueAttr, ok := result.Item["value"]
	if !ok {
		return nil, fmt.Errorf("key %s: %w", key, core.ErrCacheMiss)
	}
	valueMember, ok := valueAttr.(*types.AttributeValueMemberB)
	if !ok {
		return nil, fmt.Errorf("invalid value format for key %s", key)
	}
	return valueMember.Value, nil
}

// expired reports whether the item's ttl attribute is in the past.
func expired(item map[string]types.AttributeValue) bool {
	ttlAttr, ok := item["ttl"]
	if !ok {
		return false
	}
	ttlMember, ok := ttlAttr.(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	var ttl int64
	if _, err := fmt.Sscanf(ttlMember.Value, "%d", &ttl); err != nil {
		return false
	}
	return time.Now().Unix() > ttl
}

// Set stores a payload under key with an optional TTL.
func (d *DynamoDBCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if d.closed {
		return fmt.Errorf("cache is closed")
	}

	item := map[string]types.AttributeValue{
		"key":        &types.AttributeValueMemberS{Value: key},
		"value":      &types.AttributeValueMemberB{Value: payload},
		"created_at": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
	}
	if ttl > 0 {
		item["ttl"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", time.Now().Add(ttl).Unix())}
	}

	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (d *DynamoDBCache) Delete(ctx context.Context, key string) error {
	if d.closed {
		return fmt.Errorf("cache is closed")
	}
	if _, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"key": &types.AttributeValueMemberS{Value: key},
		},
	}); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Close marks the cache closed. The DynamoDB client holds no connection that
// needs explicit closing.
func (d *DynamoDBCache) Close() error {
	d.closed = true
	return nil
}

// DynamoDBFactory creates DynamoDB caches.
type DynamoDBFactory struct{}

// Type returns the backend identifier.
func (f *DynamoDBFactory) Type() string {
	return "dynamodb"
}

// Validate checks the DynamoDB-specific configuration.
func (f *DynamoDBFactory) Validate(config Config) error {
	if config.Type != "dynamodb" {
		return fmt.Errorf("invalid type for DynamoDB factory: %s", config.Type)
	}
	if config.Region == "" {
		return fmt.Errorf("region is required for DynamoDB")
	}
	if config.TableName == "" {
		return fmt.Errorf("table_name is required for DynamoDB")
	}
	return nil
}

// Create builds a DynamoDB cache from the configuration.
func (f *DynamoDBFactory) Create(config Config) (core.Cache, error) {
	c, err := NewDynamoDBCache(
		config.Region,
		config.TableName,
		config.Endpoint,
		config.AccessKeyID,
		config.SecretAccessKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB cache: %w", err)
	}
	return c, nil
}

func init() {
	RegisterFactory(&DynamoDBFactory{})
}
