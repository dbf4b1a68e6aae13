package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rentnest/rentnest/internal/models"
	appErr "github.com/rentnest/rentnest/internal/pkg/errors"
	"github.com/sirupsen/logrus"
)

const lookupSK = "LOOKUP"

type UserRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *logrus.Logger
}

func NewUserRepository(client *dynamodb.Client, tableName string, logger *logrus.Logger) *UserRepository {
	return &UserRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// SaveOptions controls Save. Counter-only updates set SkipValidation so that
// unrelated profile fields are not re-validated.
type SaveOptions struct {
	SkipValidation bool
}

func phoneLookupPK(phone string) string { return "PHONE#" + phone }
func emailLookupPK(email string) string { return "EMAIL#" + strings.ToLower(email) }
func googleLookupPK(sub string) string  { return "GOOGLE#" + sub }

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{ID: id}
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            itemKey(user.GetPK(), user.GetSK()),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to get user from DynamoDB")
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if result.Item == nil {
		return nil, appErr.ErrNotFound
	}

	var dbUser models.User
	if err := attributevalue.UnmarshalMap(result.Item, &dbUser); err != nil {
		r.logger.WithError(err).Error("Failed to unmarshal user from DynamoDB")
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &dbUser, nil
}

func (r *UserRepository) GetByPhoneNumber(ctx context.Context, phone string) (*models.User, error) {
	return r.getByLookup(ctx, phoneLookupPK(phone))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getByLookup(ctx, emailLookupPK(email))
}

func (r *UserRepository) GetByGoogleID(ctx context.Context, sub string) (*models.User, error) {
	return r.getByLookup(ctx, googleLookupPK(sub))
}

func (r *UserRepository) getByLookup(ctx context.Context, pk string) (*models.User, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       itemKey(pk, lookupSK),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user lookup: %w", err)
	}
	if result.Item == nil {
		return nil, appErr.ErrNotFound
	}

	idAttr, ok := result.Item["user_id"].(*types.AttributeValueMemberS)
	if !ok || idAttr.Value == "" {
		return nil, fmt.Errorf("user lookup %s has no user_id", pk)
	}
	return r.GetByID(ctx, idAttr.Value)
}

// Create writes the user together with its phone, email and google lookup
// items. It fails with ErrConflict when any of them already exists.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrInvalid, err)
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	item, err := r.marshalUser(user)
	if err != nil {
		return err
	}

	writes := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName:           aws.String(r.tableName),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(PK)"),
		},
	}}
	for _, pk := range lookupKeys(user) {
		writes = append(writes, r.lookupPut(pk, user.ID))
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			return fmt.Errorf("%w: user already exists", appErr.ErrConflict)
		}
		r.logger.WithError(err).Error("Failed to create user in DynamoDB")
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Save overwrites an existing user item.
func (r *UserRepository) Save(ctx context.Context, user *models.User, opts SaveOptions) error {
	if !opts.SkipValidation {
		if err := user.Validate(); err != nil {
			return fmt.Errorf("%w: %v", appErr.ErrInvalid, err)
		}
	}
	user.UpdatedAt = time.Now()

	item, err := r.marshalUser(user)
	if err != nil {
		return err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return appErr.ErrNotFound
		}
		r.logger.WithError(err).WithField("user_id", user.ID).Error("Failed to save user in DynamoDB")
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// LinkGoogle attaches a google account to an existing user. Only the google
// id, an empty name and updated_at are written; quota counters are left alone.
func (r *UserRepository) LinkGoogle(ctx context.Context, userID, googleID, name string) error {
	if googleID == "" {
		return fmt.Errorf("%w: google id is required", appErr.ErrInvalid)
	}
	key := models.User{ID: userID}
	updatedAt, err := attributevalue.Marshal(time.Now())
	if err != nil {
		return fmt.Errorf("failed to marshal updated_at: %w", err)
	}

	update := "SET google_id = :google_id, updated_at = :updated_at"
	values := map[string]types.AttributeValue{
		":google_id":  &types.AttributeValueMemberS{Value: googleID},
		":updated_at": updatedAt,
	}
	var names map[string]string
	if name != "" {
		update += ", #name = if_not_exists(#name, :name)"
		values[":name"] = &types.AttributeValueMemberS{Value: name}
		names = map[string]string{"#name": "name"}
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName: aws.String(r.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: key.GetPK()},
						"SK": &types.AttributeValueMemberS{Value: key.GetSK()},
					},
					UpdateExpression:          aws.String(update),
					ConditionExpression:       aws.String("attribute_exists(PK) AND attribute_not_exists(google_id)"),
					ExpressionAttributeNames:  names,
					ExpressionAttributeValues: values,
				},
			},
			r.lookupPut(googleLookupPK(googleID), userID),
		},
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			return fmt.Errorf("%w: google account already linked", appErr.ErrConflict)
		}
		r.logger.WithError(err).WithField("user_id", userID).Error("Failed to link google account")
		return fmt.Errorf("failed to link google account: %w", err)
	}
	return nil
}

func (r *UserRepository) marshalUser(user *models.User) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(user)
	if err != nil {
		r.logger.WithError(err).Error("Failed to marshal user for DynamoDB")
		return nil, fmt.Errorf("failed to marshal user: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: user.GetPK()}
	item["SK"] = &types.AttributeValueMemberS{Value: user.GetSK()}
	return item, nil
}

func (r *UserRepository) lookupPut(pk, userID string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(r.tableName),
			Item: map[string]types.AttributeValue{
				"PK":      &types.AttributeValueMemberS{Value: pk},
				"SK":      &types.AttributeValueMemberS{Value: lookupSK},
				"user_id": &types.AttributeValueMemberS{Value: userID},
			},
			ConditionExpression: aws.String("attribute_not_exists(PK)"),
		},
	}
}

func lookupKeys(user *models.User) []string {
	var keys []string
	if user.PhoneNumber != "" {
		keys = append(keys, phoneLookupPK(user.PhoneNumber))
	}
	if user.Email != "" {
		keys = append(keys, emailLookupPK(user.Email))
	}
	if user.GoogleID != "" {
		keys = append(keys, googleLookupPK(user.GoogleID))
	}
	return keys
}

func itemKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}
