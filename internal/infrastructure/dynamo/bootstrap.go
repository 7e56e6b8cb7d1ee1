package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-marketplace-api/internal/config"
)

const tableActiveWait = 2 * time.Minute

// SchemaAPI is the table administration surface Bootstrap needs.
type SchemaAPI interface {
	TableDescriber
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTimeToLive(ctx context.Context, in *dynamodb.DescribeTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error)
	UpdateTimeToLive(ctx context.Context, in *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
}

type tableDef struct {
	name    string
	hash    string
	rangeBy string
	ttlAttr string
}

func tableDefs(tables config.DynamoTables) []tableDef {
	return []tableDef{
		{name: tables.OTPCodes, hash: fieldIdentifier, ttlAttr: fieldExpiresAt},
		{name: tables.Uploads, hash: fieldBucket, rangeBy: fieldStorageKey},
	}
}

// Bootstrap creates the OTP and upload tables when missing, waits for them
// to become ACTIVE and turns on TTL where the table expires its items.
// Existing tables are left as they are.
func Bootstrap(ctx context.Context, client SchemaAPI, tables config.DynamoTables) error {
	for _, def := range tableDefs(tables) {
		created, err := createTable(ctx, client, def)
		if err != nil {
			return err
		}
		if created {
			w := dynamodb.NewTableExistsWaiter(client)
			if err := w.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(def.name)}, tableActiveWait); err != nil {
				return fmt.Errorf("wait for table %s: %w", def.name, err)
			}
		}
		if def.ttlAttr != "" {
			if err := enableTTL(ctx, client, def.name, def.ttlAttr); err != nil {
				return err
			}
		}
	}
	return nil
}

func createTable(ctx context.Context, client SchemaAPI, def tableDef) (bool, error) {
	attrs := []types.AttributeDefinition{
		{AttributeName: aws.String(def.hash), AttributeType: types.ScalarAttributeTypeS},
	}
	keys := []types.KeySchemaElement{
		{AttributeName: aws.String(def.hash), KeyType: types.KeyTypeHash},
	}
	if def.rangeBy != "" {
		attrs = append(attrs, types.AttributeDefinition{AttributeName: aws.String(def.rangeBy), AttributeType: types.ScalarAttributeTypeS})
		keys = append(keys, types.KeySchemaElement{AttributeName: aws.String(def.rangeBy), KeyType: types.KeyTypeRange})
	}

	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:            aws.String(def.name),
		BillingMode:          types.BillingModePayPerRequest,
		AttributeDefinitions: attrs,
		KeySchema:            keys,
	})
	var inUse *types.ResourceInUseException
	switch {
	case errors.As(err, &inUse):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("create table %s: %w", def.name, err)
	}
	slog.Info("created table", "table", def.name)
	return true, nil
}

func enableTTL(ctx context.Context, client SchemaAPI, table, attr string) error {
	desc, err := client.DescribeTimeToLive(ctx, &dynamodb.DescribeTimeToLiveInput{TableName: aws.String(table)})
	if err != nil {
		return fmt.Errorf("describe ttl %s: %w", table, err)
	}
	if d := desc.TimeToLiveDescription; d != nil && aws.ToString(d.AttributeName) == attr &&
		(d.TimeToLiveStatus == types.TimeToLiveStatusEnabled || d.TimeToLiveStatus == types.TimeToLiveStatusEnabling) {
		return nil
	}
	_, err = client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(table),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			Enabled:       aws.Bool(true),
			AttributeName: aws.String(attr),
		},
	})
	if err != nil {
		return fmt.Errorf("enable ttl %s: %w", table, err)
	}
	slog.Info("enabled ttl", "table", table, "attribute", attr)
	return nil
}
