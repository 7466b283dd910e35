package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// dynamodbAPI is the subset of *dynamodb.Client used by DynamoStore
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore keeps conversations in a DynamoDB table keyed by PK. The
// table's TTL should be enabled on the "ttl" attribute; DynamoDB deletes
// lazily, so Get also checks expiry itself.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

func NewDynamoStore(api dynamodbAPI, tableName string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("intake: dynamodb api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("intake: dynamodb table name must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName, now: time.Now}, nil
}

func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

func (s *DynamoStore) key(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
	}
}

func (s *DynamoStore) Get(ctx context.Context, sessionID string) (*Conversation, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(sessionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("intake: dynamodb get %q: %w", sessionID, err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, ErrSessionNotFound
	}

	conv, err := itemToConversation(out.Item)
	if err != nil {
		return nil, fmt.Errorf("intake: decode session %q: %w", sessionID, err)
	}
	if !conv.ExpiresAt.IsZero() && !s.now().Before(conv.ExpiresAt) {
		return nil, ErrSessionNotFound
	}
	return conv, nil
}

const createCondition = "attribute_not_exists(PK) OR #ttl <= :now OR #stage = :complete"

func (s *DynamoStore) Create(ctx context.Context, conv *Conversation) error {
	conv.Version = 1
	item, err := conversationItem(conv)
	if err != nil {
		return err
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
		// Completed items, and expired ones TTL has not reaped yet, may be
		// replaced.
		ConditionExpression: aws.String(createCondition),
		ExpressionAttributeNames: map[string]string{
			"#ttl":   "ttl",
			"#stage": "stage",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now":      &types.AttributeValueMemberN{Value: strconv.FormatInt(s.now().Unix(), 10)},
			":complete": &types.AttributeValueMemberS{Value: string(StageComplete)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrSessionExists
		}
		return fmt.Errorf("intake: dynamodb create %q: %w", conv.SessionID, err)
	}
	return nil
}

func (s *DynamoStore) Save(ctx context.Context, conv *Conversation) error {
	expected := conv.Version
	next := cloneConversation(conv)
	next.Version = expected + 1

	item, err := conversationItem(next)
	if err != nil {
		return err
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_exists(PK) AND version = :expected"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrVersionConflict
		}
		return fmt.Errorf("intake: dynamodb save %q: %w", conv.SessionID, err)
	}
	conv.Version = next.Version
	return nil
}

func (s *DynamoStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.key(sessionID),
	})
	if err != nil {
		return fmt.Errorf("intake: dynamodb delete %q: %w", sessionID, err)
	}
	return nil
}

func conversationItem(conv *Conversation) (map[string]types.AttributeValue, error) {
	state, err := json.Marshal(conv)
	if err != nil {
		return nil, fmt.Errorf("intake: encode session %q: %w", conv.SessionID, err)
	}
	item := map[string]types.AttributeValue{
		"PK":      &types.AttributeValueMemberS{Value: sessionPK(conv.SessionID)},
		"stage":   &types.AttributeValueMemberS{Value: string(conv.Stage)},
		"state":   &types.AttributeValueMemberS{Value: string(state)},
		"version": &types.AttributeValueMemberN{Value: strconv.FormatInt(conv.Version, 10)},
	}
	if !conv.ExpiresAt.IsZero() {
		item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(conv.ExpiresAt.Unix(), 10)}
	}
	return item, nil
}

func itemToConversation(item map[string]types.AttributeValue) (*Conversation, error) {
	raw, ok := item["state"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New(`missing string attribute "state"`)
	}
	var conv Conversation
	if err := json.Unmarshal([]byte(raw.Value), &conv); err != nil {
		return nil, err
	}
	if v, ok := item["version"].(*types.AttributeValueMemberN); ok {
		n, err := strconv.ParseInt(v.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse version: %w", err)
		}
		conv.Version = n
	}
	return &conv, nil
}
