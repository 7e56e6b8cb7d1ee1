package dynamo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-marketplace-api/internal/domain"
)

// batchWriteLimit is the maximum number of requests BatchWriteItem accepts.
const batchWriteLimit = 25

const maxUnprocessedRetries = 5

// retryBase is the first backoff before resubmitting unprocessed items;
// it doubles on each further attempt.
const retryBase = 50 * time.Millisecond

// UploadRepo provides typed DynamoDB operations for the uploads table,
// keyed by bucket (PK) and storage_key (SK).
type UploadRepo struct {
	client    API
	tableName string
	retryBase time.Duration
}

func NewUploadRepo(client API, tableName string) *UploadRepo {
	return &UploadRepo{client: client, tableName: tableName, retryBase: retryBase}
}

func (r *UploadRepo) Put(ctx context.Context, rec *domain.UploadRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal upload: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *UploadRepo) Get(ctx context.Context, bucket, storageKey string) (*domain.UploadRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey(fieldBucket, bucket, fieldStorageKey, storageKey),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("upload not found: %w", domain.ErrNotFound)
	}
	var rec domain.UploadRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *UploadRepo) MarkConfirmed(ctx context.Context, bucket, storageKey string, at time.Time) error {
	attrs := newExprAttrs()
	update, err := attrs.set(map[string]interface{}{
		fieldStatus:      domain.UploadConfirmed,
		fieldConfirmedAt: at,
	})
	if err != nil {
		return err
	}
	cond := "attribute_exists(" + attrs.name(fieldStorageKey) + ")"
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       compositeKey(fieldBucket, bucket, fieldStorageKey, storageKey),
		UpdateExpression:          aws.String(update),
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  attrs.names,
		ExpressionAttributeValues: attrs.values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("upload not found: %w", domain.ErrNotFound)
	}
	return err
}

// DeleteByOwner removes every record in bucket whose storage key starts with
// the owner's prefix and returns how many were deleted.
func (r *UploadRepo) Delete(ctx context.Context, bucket, storageKey string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey(fieldBucket, bucket, fieldStorageKey, storageKey),
	})
	return err
}

func (r *UploadRepo) DeleteByOwner(ctx context.Context, bucket, ownerID string) (int, error) {
	var keys []map[string]types.AttributeValue
	var start map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			KeyConditionExpression: aws.String("#b = :b AND begins_with(#k, :p)"),
			ExpressionAttributeNames: map[string]string{
				"#b": fieldBucket,
				"#k": fieldStorageKey,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":b": &types.AttributeValueMemberS{Value: bucket},
				":p": &types.AttributeValueMemberS{Value: ownerID + "/"},
			},
			ProjectionExpression: aws.String("#b, #k"),
			ExclusiveStartKey:    start,
		})
		if err != nil {
			return 0, err
		}
		for _, item := range out.Items {
			keys = append(keys, map[string]types.AttributeValue{
				fieldBucket:     item[fieldBucket],
				fieldStorageKey: item[fieldStorageKey],
			})
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}

	deleted := 0
	for i := 0; i < len(keys); i += batchWriteLimit {
		end := min(i+batchWriteLimit, len(keys))
		if err := r.deleteBatch(ctx, keys[i:end]); err != nil {
			return deleted, err
		}
		deleted += end - i
	}
	return deleted, nil
}

func (r *UploadRepo) deleteBatch(ctx context.Context, keys []map[string]types.AttributeValue) error {
	reqs := make([]types.WriteRequest, 0, len(keys))
	for _, k := range keys {
		reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k}})
	}
	pending := map[string][]types.WriteRequest{r.tableName: reqs}
	for attempt := 0; len(pending[r.tableName]) > 0; attempt++ {
		if attempt == maxUnprocessedRetries {
			return fmt.Errorf("batch delete uploads: %d items left unprocessed", len(pending[r.tableName]))
		}
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("batch delete uploads: %w", ctx.Err())
			case <-time.After(r.retryBase << (attempt - 1)):
			}
		}
		out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return err
		}
		pending = out.UnprocessedItems
		if n := len(pending[r.tableName]); n > 0 {
			slog.Warn("retrying unprocessed upload deletes", "table", r.tableName, "count", n)
		}
	}
	return nil
}
