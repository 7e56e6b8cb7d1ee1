package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-marketplace-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const otpTable = "otp_codes"

func TestOTPStore_SetThenGetRoundTrip(t *testing.T) {
	api := new(mockAPI)
	s := NewOTPStore(api, otpTable)
	exp := time.UnixMilli(1_700_000_123_456)
	e := &domain.OTPEntry{Identifier: "a@example.com", Channel: domain.ChannelEmail, Code: "4321", Attempts: 1, ExpiresAt: exp}

	var stored map[string]types.AttributeValue
	api.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return *in.TableName == otpTable
	})).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*dynamodb.PutItemInput).Item
	}).Return(&dynamodb.PutItemOutput{}, nil)
	require.NoError(t, s.Set(context.Background(), e))

	// TTL attribute must be whole seconds for the sweeper.
	ttl, ok := stored[fieldExpiresAt].(*types.AttributeValueMemberN)
	require.True(t, ok)
	assert.Equal(t, "1700000123", ttl.Value)

	api.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return in.ConsistentRead != nil && *in.ConsistentRead
	})).Return(&dynamodb.GetItemOutput{Item: stored}, nil)
	got, err := s.Get(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, e.Code, got.Code)
	assert.Equal(t, e.Channel, got.Channel)
	assert.Equal(t, 1, got.Attempts)
	assert.True(t, exp.Equal(got.ExpiresAt))
}

func TestOTPStore_GetMissing(t *testing.T) {
	api := new(mockAPI)
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := NewOTPStore(api, otpTable).Get(context.Background(), "a@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOTPStore_ConsumeMatch(t *testing.T) {
	api := new(mockAPI)
	api.On("DeleteItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.DeleteItemInput) bool {
		c, ok := in.ExpressionAttributeValues[":c"].(*types.AttributeValueMemberS)
		return ok && c.Value == "1234" && *in.ConditionExpression == "#c = :c"
	})).Return(&dynamodb.DeleteItemOutput{}, nil)

	ok, err := NewOTPStore(api, otpTable).Consume(context.Background(), "a@example.com", "1234")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOTPStore_ConsumeConditionFailed(t *testing.T) {
	api := new(mockAPI)
	api.On("DeleteItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: strPtr("no")})

	ok, err := NewOTPStore(api, otpTable).Consume(context.Background(), "a@example.com", "0000")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOTPStore_ConsumeProviderError(t *testing.T) {
	api := new(mockAPI)
	api.On("DeleteItem", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	_, err := NewOTPStore(api, otpTable).Consume(context.Background(), "a@example.com", "0000")
	assert.ErrorContains(t, err, "throttled")
}

func TestOTPStore_RecordFailure(t *testing.T) {
	api := new(mockAPI)
	attrs, err := attributevalue.MarshalMap(map[string]int{fieldAttempts: 2})
	require.NoError(t, err)
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return *in.UpdateExpression == "ADD #a :one" && in.ReturnValues == types.ReturnValueUpdatedNew
	})).Return(&dynamodb.UpdateItemOutput{Attributes: attrs}, nil)

	n, err := NewOTPStore(api, otpTable).RecordFailure(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestOTPStore_RecordFailureMissingEntry(t *testing.T) {
	api := new(mockAPI)
	api.On("UpdateItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: strPtr("gone")})

	_, err := NewOTPStore(api, otpTable).RecordFailure(context.Background(), "a@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func strPtr(s string) *string { return &s }
