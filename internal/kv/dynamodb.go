package kv

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// dynamoAPI is the subset of the DynamoDB client used by DynamoDBStore.
type dynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

type dynamoKey struct {
	Key string `dynamodbav:"key"`
}

type dynamoItem struct {
	Key   string `dynamodbav:"key"`
	Value string `dynamodbav:"value"`
}

// DynamoDBStore implements Store on a DynamoDB table whose partition key is the
// string attribute "key". Used to keep one device profile's state in the cloud.
type DynamoDBStore struct {
	client dynamoAPI
	table  string
}

// NewDynamoDBStore loads the default AWS config (env, shared config, IMDS) and
// returns a store for table. region overrides the configured region when set.
func NewDynamoDBStore(ctx context.Context, table, region string) (*DynamoDBStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newDynamoDBStore(dynamodb.NewFromConfig(cfg), table), nil
}

func newDynamoDBStore(client dynamoAPI, table string) *DynamoDBStore {
	return &DynamoDBStore{client: client, table: table}
}

// Get implements Store.Get with a strongly consistent read.
func (s *DynamoDBStore) Get(ctx context.Context, key string) (string, bool, error) {
	k, err := attributevalue.MarshalMap(dynamoKey{Key: key})
	if err != nil {
		return "", false, fmt.Errorf("marshal key: %w", err)
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            k,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: dynamodb get %s: %w", ErrUnavailable, key, err)
	}
	if len(out.Item) == 0 {
		return "", false, nil
	}
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return "", false, fmt.Errorf("unmarshal item %s: %w", key, err)
	}
	return item.Value, true, nil
}

// Set implements Store.Set.
func (s *DynamoDBStore) Set(ctx context.Context, key, value string) error {
	av, err := attributevalue.MarshalMap(dynamoItem{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("%w: dynamodb put %s: %w", ErrUnavailable, key, err)
	}
	return nil
}

// Remove implements Store.Remove.
func (s *DynamoDBStore) Remove(ctx context.Context, key string) error {
	k, err := attributevalue.MarshalMap(dynamoKey{Key: key})
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}
	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       k,
	})
	if err != nil {
		return fmt.Errorf("%w: dynamodb delete %s: %w", ErrUnavailable, key, err)
	}
	return nil
}
