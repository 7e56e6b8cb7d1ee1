package dynamo

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
	"github.com/go-marketplace-api/internal/domain"
)

// otpItem is the stored shape of an OTP entry. expires_at is in unix seconds
// so the table's TTL sweeper can reclaim it; expires_at_ms keeps full precision.
type otpItem struct {
	Identifier  string `dynamodbav:"identifier"`
	Channel     string `dynamodbav:"channel"`
	Code        string `dynamodbav:"code"`
	Attempts    int    `dynamodbav:"attempts"`
	ExpiresAt   int64  `dynamodbav:"expires_at"`
	ExpiresAtMS int64  `dynamodbav:"expires_at_ms"`
}

func toOTPItem(e *domain.OTPEntry) otpItem {
	return otpItem{
		Identifier:  e.Identifier,
		Channel:     string(e.Channel),
		Code:        e.Code,
		Attempts:    e.Attempts,
		ExpiresAt:   e.ExpiresAt.Unix(),
		ExpiresAtMS: e.ExpiresAt.UnixMilli(),
	}
}

func (it otpItem) entry() *domain.OTPEntry {
	return &domain.OTPEntry{
		Identifier: it.Identifier,
		Channel:    domain.Channel(it.Channel),
		Code:       it.Code,
		Attempts:   it.Attempts,
		ExpiresAt:  time.UnixMilli(it.ExpiresAtMS),
	}
}

// OTPStore keeps one OTP entry per identifier in a DynamoDB table keyed by
// identifier. Conditional writes make Consume and RecordFailure atomic.
type OTPStore struct {
	client    API
	tableName string
}

func NewOTPStore(client API, tableName string) *OTPStore {
	return &OTPStore{client: client, tableName: tableName}
}

func (s *OTPStore) Get(ctx context.Context, identifier string) (*domain.OTPEntry, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            strKey(fieldIdentifier, identifier),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
	}
	var it otpItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal otp: %w", err)
	}
	return it.entry(), nil
}

func (s *OTPStore) Set(ctx context.Context, e *domain.OTPEntry) error {
	item, err := attributevalue.MarshalMap(toOTPItem(e))
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	return err
}

func (s *OTPStore) Delete(ctx context.Context, identifier string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       strKey(fieldIdentifier, identifier),
	})
	return err
}

func (s *OTPStore) Consume(ctx context.Context, identifier, code string) (bool, error) {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(s.tableName),
		Key:                      strKey(fieldIdentifier, identifier),
		ConditionExpression:      aws.String("#c = :c"),
		ExpressionAttributeNames: map[string]string{"#c": fieldCode},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberS{Value: code},
		},
	})
	if isConditionFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *OTPStore) RecordFailure(ctx context.Context, identifier string) (int, error) {
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 strKey(fieldIdentifier, identifier),
		UpdateExpression:    aws.String("ADD #a :one"),
		ConditionExpression: aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#a":  fieldAttempts,
			"#id": fieldIdentifier,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if isConditionFailed(err) {
		return 0, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	n, ok := out.Attributes[fieldAttempts].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("update otp: attempts missing from response")
	}
	attempts, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("parse attempts: %w", err)
	}
	return attempts, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
