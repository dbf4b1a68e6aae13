package models

import "time"

type PaymentStatus string

const (
	PaymentCreated PaymentStatus = "created"
	PaymentPaid    PaymentStatus = "paid"
)

const PurposePremiumUpgrade = "premium_upgrade"

type Payment struct {
	OrderID   string        `json:"order_id" dynamodbav:"order_id"`
	UserID    string        `json:"user_id" dynamodbav:"user_id"`
	PaymentID string        `json:"payment_id,omitempty" dynamodbav:"payment_id,omitempty"`
	Amount    int64         `json:"amount" dynamodbav:"amount"`
	Currency  string        `json:"currency" dynamodbav:"currency"`
	Purpose   string        `json:"purpose" dynamodbav:"purpose"`
	Status    PaymentStatus `json:"status" dynamodbav:"status"`
	CreatedAt time.Time     `json:"created_at" dynamodbav:"created_at"`
	PaidAt    *time.Time    `json:"paid_at,omitempty" dynamodbav:"paid_at,omitempty"`
}

func (p *Payment) GetPK() string {
	return "PAYMENT#" + p.OrderID
}

func (p *Payment) GetSK() string {
	return "METADATA"
}
