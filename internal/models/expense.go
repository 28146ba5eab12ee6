package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tolerance is the absolute difference allowed when comparing split sums.
var Tolerance = decimal.RequireFromString("0.01")

var hundred = decimal.NewFromInt(100)

// SplitPolicy selects how an expense is divided among its participants.
type SplitPolicy string

const (
	SplitEqual      SplitPolicy = "equal"
	SplitExact      SplitPolicy = "exact"
	SplitPercentage SplitPolicy = "percentage"
)

// ParseSplitPolicy converts a policy tag into a SplitPolicy.
func ParseSplitPolicy(s string) (SplitPolicy, error) {
	switch p := SplitPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case SplitEqual, SplitExact, SplitPercentage:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown split policy %q", ErrInvalidSplit, s)
	}
}

// Split is the policy-specific payload of an expense.
// The set of implementations is closed: EqualSplit, ExactSplit, PercentageSplit.
type Split interface {
	Policy() SplitPolicy
	// Data returns the per-participant payload, or nil for policies without one.
	Data() map[string]decimal.Decimal
	isSplit()
}

// EqualSplit divides the amount evenly across all participants.
type EqualSplit struct{}

// ExactSplit assigns a fixed amount to each listed participant.
type ExactSplit struct {
	Amounts map[string]decimal.Decimal
}

// PercentageSplit assigns a percentage of the amount to each listed participant.
type PercentageSplit struct {
	Percents map[string]decimal.Decimal
}

func (EqualSplit) Policy() SplitPolicy              { return SplitEqual }
func (EqualSplit) Data() map[string]decimal.Decimal { return nil }
func (EqualSplit) isSplit()                         {}

func (ExactSplit) Policy() SplitPolicy                { return SplitExact }
func (s ExactSplit) Data() map[string]decimal.Decimal { return s.Amounts }
func (ExactSplit) isSplit()                           {}

func (PercentageSplit) Policy() SplitPolicy                { return SplitPercentage }
func (s PercentageSplit) Data() map[string]decimal.Decimal { return s.Percents }
func (PercentageSplit) isSplit()                           {}

// NewSplit builds the Split variant for policy. Data is ignored for SplitEqual
// and required for the other policies.
func NewSplit(policy SplitPolicy, data map[string]decimal.Decimal) (Split, error) {
	switch policy {
	case SplitEqual:
		return EqualSplit{}, nil
	case SplitExact:
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: exact splits are required", ErrInvalidSplit)
		}
		return ExactSplit{Amounts: data}, nil
	case SplitPercentage:
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: percentage splits are required", ErrInvalidSplit)
		}
		return PercentageSplit{Percents: data}, nil
	default:
		return nil, fmt.Errorf("%w: unknown split policy %q", ErrInvalidSplit, policy)
	}
}

// Expense represents an amount paid by one user on behalf of a set of participants.
// Expenses are immutable once stored; the only later change is SettledAt.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// PayerID is the user who paid. The payer need not be a participant.
	PayerID string

	// Participants are the user IDs sharing the expense. Never empty, no duplicates.
	Participants []string

	// Amount is the total paid. Always positive.
	Amount decimal.Decimal

	// Split decides each participant's share.
	Split Split

	// Description is an optional free-text note.
	Description string

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64

	// SettledAt is the Unix timestamp when the shares were merged into the
	// ledger, or 0 if the expense has not been settled yet.
	SettledAt int64
}

// Settled reports whether the expense has already been applied to the ledger.
func (e *Expense) Settled() bool {
	return e.SettledAt != 0
}

// HasParticipant reports whether userID is one of the expense participants.
func (e *Expense) HasParticipant(userID string) bool {
	for _, p := range e.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// ExpenseRequest is the inbound request to record an expense.
type ExpenseRequest struct {
	PayerID      string                     `json:"payer_id" validate:"required"`
	Participants []string                   `json:"participants" validate:"required,min=1,unique,dive,required"`
	Amount       decimal.Decimal            `json:"amount" validate:"gt=0"`
	Policy       string                     `json:"split_method" validate:"required"`
	Splits       map[string]decimal.Decimal `json:"splits,omitempty" validate:"omitempty,dive,gte=0"`
	Description  string                     `json:"description,omitempty" validate:"max=255"`
}

// NewExpense validates req and builds an unsettled Expense with a fresh ID.
// Field errors wrap ErrInvalidInput; split errors wrap ErrInvalidSplit.
func NewExpense(req ExpenseRequest) (*Expense, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	policy, err := ParseSplitPolicy(req.Policy)
	if err != nil {
		return nil, err
	}

	var data map[string]decimal.Decimal
	if policy != SplitEqual {
		data = req.Splits
	}
	split, err := NewSplit(policy, data)
	if err != nil {
		return nil, err
	}

	exp := &Expense{
		ID:           uuid.New().String(),
		PayerID:      req.PayerID,
		Participants: append([]string(nil), req.Participants...),
		Amount:       req.Amount,
		Split:        split,
		Description:  strings.TrimSpace(req.Description),
		CreatedAt:    time.Now().Unix(),
	}
	if err := ValidateSplit(exp); err != nil {
		return nil, err
	}
	return exp, nil
}

// ValidateSplit checks the split payload against the expense: every key must be
// a participant, and exact amounts must sum to the expense amount while
// percentages must sum to 100, both within Tolerance.
func ValidateSplit(exp *Expense) error {
	if len(exp.Participants) == 0 {
		return fmt.Errorf("%w: no participants", ErrInvalidSplit)
	}
	if exp.Split == nil {
		return fmt.Errorf("%w: split is required", ErrInvalidSplit)
	}

	var want decimal.Decimal
	switch exp.Split.(type) {
	case EqualSplit:
		return nil
	case ExactSplit:
		want = exp.Amount
	case PercentageSplit:
		want = hundred
	default:
		return fmt.Errorf("%w: unsupported split %T", ErrInvalidSplit, exp.Split)
	}

	data := exp.Split.Data()
	if len(data) == 0 {
		return fmt.Errorf("%w: %s splits are required", ErrInvalidSplit, exp.Split.Policy())
	}

	total := decimal.Zero
	for _, id := range sortedKeys(data) {
		v := data[id]
		if !exp.HasParticipant(id) {
			return fmt.Errorf("%w: user %s is not a participant", ErrInvalidSplit, id)
		}
		if v.IsNegative() {
			return fmt.Errorf("%w: negative share for user %s", ErrInvalidSplit, id)
		}
		total = total.Add(v)
	}

	if total.Sub(want).Abs().GreaterThan(Tolerance) {
		return fmt.Errorf("%w: %s splits sum to %s, want %s", ErrInvalidSplit, exp.Split.Policy(), total, want)
	}
	return nil
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
