package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment represents money handed directly from one user to another to clear debt.
type Payment struct {
	// ID is the unique identifier for the payment (UUID format).
	ID string

	// FromUserID is the user who paid (debtor settling up).
	FromUserID string

	// ToUserID is the user who received payment (creditor being paid).
	ToUserID string

	// Amount is the payment amount.
	Amount decimal.Decimal

	// Note is an optional description for the payment.
	Note string

	// CreatedAt is the Unix timestamp when the payment was recorded.
	CreatedAt int64
}

// PaymentRequest is the inbound request to record a payment.
type PaymentRequest struct {
	FromUserID string          `json:"from_user_id" validate:"required"`
	ToUserID   string          `json:"to_user_id" validate:"required,nefield=FromUserID"`
	Amount     decimal.Decimal `json:"amount" validate:"gt=0"`
	Note       string          `json:"note,omitempty" validate:"max=255"`
}

// NewPayment validates req and returns a Payment with a fresh ID.
func NewPayment(req PaymentRequest) (*Payment, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than 0", ErrInvalidInput)
	}
	return &Payment{
		ID:         uuid.New().String(),
		FromUserID: req.FromUserID,
		ToUserID:   req.ToUserID,
		Amount:     req.Amount,
		Note:       strings.TrimSpace(req.Note),
		CreatedAt:  time.Now().Unix(),
	}, nil
}
