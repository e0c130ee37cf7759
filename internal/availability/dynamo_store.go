package availability

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/wolfman30/booking-engine/internal/schedule"
	"github.com/wolfman30/booking-engine/pkg/logging"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// item is the DynamoDB shape of a record. The partition key groups every date
// of one entity so a date range is a single Query.
type item struct {
	PK         string          `dynamodbav:"pk"`
	SK         string          `dynamodbav:"sk"`
	OrgID      string          `dynamodbav:"orgId"`
	EntityType string          `dynamodbav:"entityType"`
	EntityID   string          `dynamodbav:"entityId"`
	Date       string          `dynamodbav:"date"`
	TimeSlots  []schedule.Slot `dynamodbav:"timeSlots"`
	IsActive   bool            `dynamodbav:"isActive"`
	Override   bool            `dynamodbav:"override"`
	Version    int64           `dynamodbav:"version"`
	CreatedAt  string          `dynamodbav:"createdAt"`
	UpdatedAt  string          `dynamodbav:"updatedAt"`
}

func partitionKey(orgID string, entityType EntityType, entityID string) string {
	return fmt.Sprintf("ORG#%s#%s#%s", orgID, entityType, entityID)
}

func toItem(a *Availability) item {
	return item{
		PK:         partitionKey(a.OrgID, a.EntityType, a.EntityID),
		SK:         a.Date,
		OrgID:      a.OrgID,
		EntityType: string(a.EntityType),
		EntityID:   a.EntityID,
		Date:       a.Date,
		TimeSlots:  a.TimeSlots,
		IsActive:   a.IsActive,
		Override:   a.Override,
		Version:    a.Version,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func (it item) toAvailability() *Availability {
	return &Availability{
		OrgID:      it.OrgID,
		EntityType: EntityType(it.EntityType),
		EntityID:   it.EntityID,
		Date:       it.Date,
		TimeSlots:  it.TimeSlots,
		IsActive:   it.IsActive,
		Override:   it.Override,
		Version:    it.Version,
		CreatedAt:  it.CreatedAt,
		UpdatedAt:  it.UpdatedAt,
	}
}

// DynamoStore persists availability records in a DynamoDB table keyed by
// (pk, sk).
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore builds a store backed by the provided DynamoDB client.
func NewDynamoStore(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("availability: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("availability: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStore{client: client, tableName: tableName, logger: logger}
}

// Get fetches one record.
func (s *DynamoStore) Get(ctx context.Context, key Key) (*Availability, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		ConsistentRead: aws.Bool(true),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: partitionKey(key.OrgID, key.EntityType, key.EntityID)},
			"sk": &types.AttributeValueMemberS{Value: key.Date},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("availability: failed to fetch %s: %w", key, err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("availability: failed to decode %s: %w", key, err)
	}
	return it.toAvailability(), nil
}

// GetRange returns the entity's records for dates in [startDate, endDate],
// ordered by date.
func (s *DynamoStore) GetRange(ctx context.Context, orgID string, entityType EntityType, entityID, startDate, endDate string) ([]*Availability, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("pk = :pk AND sk BETWEEN :from AND :to"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":   &types.AttributeValueMemberS{Value: partitionKey(orgID, entityType, entityID)},
			":from": &types.AttributeValueMemberS{Value: startDate},
			":to":   &types.AttributeValueMemberS{Value: endDate},
		},
		ConsistentRead: aws.Bool(true),
	}

	var results []*Availability
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("availability: failed to query range: %w", err)
		}
		var page []item
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("availability: failed to decode range: %w", err)
		}
		for _, it := range page {
			results = append(results, it.toAvailability())
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return results, nil
}

// Create inserts a new record at version 1.
func (s *DynamoStore) Create(ctx context.Context, a *Availability) error {
	if a == nil {
		return errors.New("availability: record cannot be nil")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	a.Version = 1
	if a.CreatedAt == "" {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	av, err := attributevalue.MarshalMap(toItem(a))
	if err != nil {
		return fmt.Errorf("availability: failed to marshal record: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("availability: failed to create %s: %w", a.Key(), err)
	}
	return nil
}

// CompareAndSwap replaces the record if its stored version still equals
// expected.
func (s *DynamoStore) CompareAndSwap(ctx context.Context, a *Availability, expected int64) error {
	if a == nil {
		return errors.New("availability: record cannot be nil")
	}
	a.Version = expected + 1
	a.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)

	av, err := attributevalue.MarshalMap(toItem(a))
	if err != nil {
		return fmt.Errorf("availability: failed to marshal record: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("#version = :expected"),
		ExpressionAttributeNames: map[string]string{
			"#version": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)},
		},
	})
	if err != nil {
		a.Version = expected
		if isConditionFailed(err) {
			s.logger.Debug("availability version conflict", "key", a.Key().String(), "expected_version", expected)
			return ErrVersionConflict
		}
		return fmt.Errorf("availability: failed to write %s: %w", a.Key(), err)
	}
	return nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
