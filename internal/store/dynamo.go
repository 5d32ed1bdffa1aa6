package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// DynamoDB key constants for the single-table design.
const (
	pkPrefix = "RUN#"
	skMeta   = "META"
)

// dynamoAPI is the subset of *dynamodb.Client used by DynamoStore.
type dynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoStore implements RunStore using AWS DynamoDB.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	now       func() time.Time
}

// Compile-time interface check.
var _ RunStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client *dynamodb.Client, tableName string) *DynamoStore {
	return newDynamoStore(client, tableName)
}

func newDynamoStore(client dynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName, now: time.Now}
}

// --- Internal helpers ---

// runPK returns the partition key for a run.
func runPK(sessionID string) string {
	return pkPrefix + sessionID
}

func metaKey(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: runPK(sessionID)},
		"SK": &types.AttributeValueMemberS{Value: skMeta},
	}
}

// expiresAt returns the Unix epoch timestamp for record expiration (now + RunTTL).
func (s *DynamoStore) expiresAt() int64 {
	return s.now().Add(RunTTL).Unix()
}

// putItem marshals a domain object and writes it to DynamoDB with PK, SK, and TTL.
// The domain object should use dynamodbav:"-" for fields derived from PK/SK.
func (s *DynamoStore) putItem(ctx context.Context, pk, sk string, data interface{}) error {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	// Key and TTL attributes overwrite any conflicting keys from the data.
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(s.expiresAt(), 10)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

// getItem reads a single item from DynamoDB and unmarshals it into out.
// Returns false if the item does not exist (out is not modified).
func (s *DynamoStore) getItem(ctx context.Context, key map[string]types.AttributeValue, out interface{}) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       key,
	})
	if err != nil {
		return false, fmt.Errorf("GetItem: %w", err)
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal: %w", err)
	}
	return true, nil
}

// --- Run operations ---

func (s *DynamoStore) PutRun(ctx context.Context, run *Run) error {
	now := s.now().Unix()
	if run.CreatedAt == 0 {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	if err := s.putItem(ctx, runPK(run.ID), skMeta, run); err != nil {
		return fmt.Errorf("put run %s: %w", run.ID, err)
	}

	log.Debug().Str("sessionId", run.ID).Str("status", run.Status).Msg("Run persisted to DynamoDB")
	return nil
}

func (s *DynamoStore) GetRun(ctx context.Context, sessionID string) (*Run, error) {
	var run Run
	found, err := s.getItem(ctx, metaKey(sessionID), &run)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", sessionID, err)
	}
	if !found {
		return nil, nil
	}

	run.ID = sessionID
	return &run, nil
}

func (s *DynamoStore) UpdateRunStage(ctx context.Context, sessionID, status, stage string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              metaKey(sessionID),
		UpdateExpression: aws.String("SET #s = :s, #st = :st, updatedAt = :u"),
		ExpressionAttributeNames: map[string]string{
			"#s":  "status", // "status" is a DynamoDB reserved word
			"#st": "stage",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s":  &types.AttributeValueMemberS{Value: status},
			":st": &types.AttributeValueMemberS{Value: stage},
			":u":  &types.AttributeValueMemberN{Value: strconv.FormatInt(s.now().Unix(), 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("update run %s -> %s/%s: %w", sessionID, status, stage, err)
	}

	log.Debug().Str("sessionId", sessionID).Str("status", status).Str("stage", stage).Msg("Run stage updated")
	return nil
}
