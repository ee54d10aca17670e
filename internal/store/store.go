// Package store writes telemetry records to DynamoDB.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/devicetelemetry/ingest/internal/telemetry"
)

// DBPutter is an abstraction (helpful for testing)
type DBPutter interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Store is a record saver
type Store struct {
	ddb   DBPutter
	table string
	ttl   time.Duration
	now   func() time.Time
}

// NewStore returns a new store writing to table. A positive ttl sets expiresAt.
func NewStore(d DBPutter, table string, ttl time.Duration) *Store {
	return &Store{ddb: d, table: table, ttl: ttl, now: time.Now}
}

// NewDynamoClient builds a DynamoDB client, pointed at endpoint when set
func NewDynamoClient(cfg aws.Config, endpoint string) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

// Put creates a new db record
func (s *Store) Put(ctx context.Context, r telemetry.Record) error {

	if s.ttl > 0 && r.ExpiresAt == 0 {
		r.ExpiresAt = s.now().Add(s.ttl).Unix()
	}

	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return fmt.Errorf("failed to marshal db record: %w", err)
	}

	input := &dynamodb.PutItemInput{
		Item:      item,
		TableName: aws.String(s.table),
	}

	_, err = s.ddb.PutItem(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to put %v record to db: %w", r.Category, err)
	}
	return nil
}
