package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rentnest/rentnest/internal/models"
	appErr "github.com/rentnest/rentnest/internal/pkg/errors"
	"github.com/sirupsen/logrus"
)

type PaymentRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *logrus.Logger
}

func NewPaymentRepository(client *dynamodb.Client, tableName string, logger *logrus.Logger) *PaymentRepository {
	return &PaymentRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	item, err := attributevalue.MarshalMap(payment)
	if err != nil {
		return fmt.Errorf("failed to marshal payment: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: payment.GetPK()}
	item["SK"] = &types.AttributeValueMemberS{Value: payment.GetSK()}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var failed *types.ConditionalCheckFailedException
		if errors.As(err, &failed) {
			return appErr.ErrConflict
		}
		r.logger.WithError(err).Error("Failed to store payment in DynamoDB")
		return fmt.Errorf("failed to store payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) Get(ctx context.Context, orderID string) (*models.Payment, error) {
	p := &models.Payment{OrderID: orderID}
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            itemKey(p.GetPK(), p.GetSK()),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if result.Item == nil {
		return nil, appErr.ErrNotFound
	}

	var payment models.Payment
	if err := attributevalue.UnmarshalMap(result.Item, &payment); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment: %w", err)
	}
	return &payment, nil
}

// MarkPaid moves a created payment to paid. It returns ErrConflict when the
// payment is no longer in the created state.
func (r *PaymentRepository) MarkPaid(ctx context.Context, orderID, paymentID string, paidAt time.Time) error {
	p := &models.Payment{OrderID: orderID}
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 itemKey(p.GetPK(), p.GetSK()),
		UpdateExpression:    aws.String("SET #status = :paid, payment_id = :payment_id, paid_at = :paid_at"),
		ConditionExpression: aws.String("#status = :created"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":paid":       &types.AttributeValueMemberS{Value: string(models.PaymentPaid)},
			":created":    &types.AttributeValueMemberS{Value: string(models.PaymentCreated)},
			":payment_id": &types.AttributeValueMemberS{Value: paymentID},
			":paid_at":    &types.AttributeValueMemberS{Value: paidAt.Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		var failed *types.ConditionalCheckFailedException
		if errors.As(err, &failed) {
			return appErr.ErrConflict
		}
		return fmt.Errorf("failed to mark payment paid: %w", err)
	}
	return nil
}
