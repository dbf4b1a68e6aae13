package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rentnest/rentnest/internal/models"
	appErr "github.com/rentnest/rentnest/internal/pkg/errors"
	"github.com/sirupsen/logrus"
)

type PropertyRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *logrus.Logger
}

func NewPropertyRepository(client *dynamodb.Client, tableName string, logger *logrus.Logger) *PropertyRepository {
	return &PropertyRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func (r *PropertyRepository) Create(ctx context.Context, property *models.Property) error {
	return r.put(ctx, property, "attribute_not_exists(PK)", appErr.ErrConflict)
}

func (r *PropertyRepository) Update(ctx context.Context, property *models.Property) error {
	return r.put(ctx, property, "attribute_exists(PK)", appErr.ErrNotFound)
}

func (r *PropertyRepository) put(ctx context.Context, property *models.Property, condition string, condErr error) error {
	item, err := attributevalue.MarshalMap(property)
	if err != nil {
		return fmt.Errorf("failed to marshal property: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: property.GetPK()}
	item["SK"] = &types.AttributeValueMemberS{Value: property.GetSK()}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String(condition),
	})
	if err != nil {
		var failed *types.ConditionalCheckFailedException
		if errors.As(err, &failed) {
			return condErr
		}
		r.logger.WithError(err).WithField("property_id", property.ID).Error("Failed to write property to DynamoDB")
		return fmt.Errorf("failed to write property: %w", err)
	}
	return nil
}

func (r *PropertyRepository) Get(ctx context.Context, id string) (*models.Property, error) {
	p := &models.Property{ID: id}
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       itemKey(p.GetPK(), p.GetSK()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	if result.Item == nil {
		return nil, appErr.ErrNotFound
	}

	var property models.Property
	if err := attributevalue.UnmarshalMap(result.Item, &property); err != nil {
		return nil, fmt.Errorf("failed to unmarshal property: %w", err)
	}
	return &property, nil
}

func (r *PropertyRepository) Delete(ctx context.Context, id string) error {
	p := &models.Property{ID: id}
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 itemKey(p.GetPK(), p.GetSK()),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		var failed *types.ConditionalCheckFailedException
		if errors.As(err, &failed) {
			return appErr.ErrNotFound
		}
		return fmt.Errorf("failed to delete property: %w", err)
	}
	return nil
}

// List scans property items, applies filter and returns the requested page,
// newest first, together with the total number of matches.
func (r *PropertyRepository) List(ctx context.Context, filter models.PropertyFilter) ([]*models.Property, int, error) {
	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("begins_with(PK, :pk_prefix) AND SK = :sk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk_prefix": &types.AttributeValueMemberS{Value: "PROPERTY#"},
			":sk":        &types.AttributeValueMemberS{Value: "METADATA"},
		},
	})

	var matched []*models.Property
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan properties: %w", err)
		}
		var batch []*models.Property
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal properties: %w", err)
		}
		for _, p := range batch {
			if filter.Match(p) {
				matched = append(matched, p)
			}
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return Page(matched, filter.Offset, filter.Limit), len(matched), nil
}

// Page returns items[offset:offset+limit] clamped to the slice bounds.
func Page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
