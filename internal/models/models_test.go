package models

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNewUser(t *testing.T) {
	user, err := NewUser(UserInput{Name: "  Alice ", Email: " Alice@Example.COM", Mobile: "5550001"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotZero(t, user.CreatedAt)

	tests := []struct {
		name  string
		input UserInput
		field string
	}{
		{"missing name", UserInput{Email: "a@example.com", Mobile: "1"}, "name"},
		{"bad email", UserInput{Name: "A", Email: "nope", Mobile: "1"}, "email"},
		{"non numeric mobile", UserInput{Name: "A", Email: "a@example.com", Mobile: "555-0001"}, "mobile"},
		{"signed mobile", UserInput{Name: "A", Email: "a@example.com", Mobile: "-42"}, "mobile"},
		{"decimal mobile", UserInput{Name: "A", Email: "a@example.com", Mobile: "+1.5"}, "mobile"},
		{"mobile too long", UserInput{Name: "A", Email: "a@example.com", Mobile: strings.Repeat("1", 16)}, "mobile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewUser(tt.input)
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestParseSplitPolicy(t *testing.T) {
	for in, want := range map[string]SplitPolicy{
		"equal":       SplitEqual,
		"EXACT":       SplitExact,
		" percentage": SplitPercentage,
	} {
		got, err := ParseSplitPolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseSplitPolicy("shares")
	assert.ErrorIs(t, err, ErrInvalidSplit)
}

func TestNewExpense(t *testing.T) {
	tests := []struct {
		name    string
		req     ExpenseRequest
		wantErr error
	}{
		{
			name: "equal ignores splits",
			req: ExpenseRequest{
				PayerID: "a", Participants: []string{"b", "c"}, Amount: d("100"), Policy: "equal",
				Splits: map[string]decimal.Decimal{"zzz": d("1")},
			},
		},
		{
			name: "exact within tolerance",
			req: ExpenseRequest{
				PayerID: "a", Participants: []string{"b", "c"}, Amount: d("100"), Policy: "exact",
				Splits: map[string]decimal.Decimal{"b": d("33.33"), "c": d("66.66")},
			},
		},
		{
			name: "exact subset of participants",
			req: ExpenseRequest{
				PayerID: "a", Participants: []string{"b", "c"}, Amount: d("10"), Policy: "exact",
				Splits: map[string]decimal.Decimal{"b": d("10")},
			},
		},
		{
			name: "exact missing data",
			req: ExpenseRequest{
				PayerID: "a", Participants: []string{"b"}, Amount: d("10"), Policy: "exact",
			},
			wantErr: ErrInvalidSplit,
		},
		{
			name: "exact key not a participant",
			req: ExpenseRequest{
				PayerID: "a", Participants: []string{"b"}, Amount: d("10"), Policy: "exact",
				Splits: map[string]decimal.Decimal{"b": d("5"), "x": d("5")},
			},
			wantErr: ErrInvalidSplit,
		},
		{
			name: "exact sum off by more than tolerance",
			req: ExpenseRequest{
				PayerID: "a", Participants: []string{"b", "c"}, Amount: d("100"), Policy: "exact",
				Splits: map[string]decimal.Decimal{"b": d("50"), "c": d("49.98")},
			},
			wantErr: ErrInvalidSplit,
		},
		{
			name: "percentages must reach 100",
			req: ExpenseRequest{
				PayerID: "a", Participants: []string{"b", "c"}, Amount: d("100"), Policy: "percentage",
				Splits: map[string]decimal.Decimal{"b": d("50"), "c": d("40")},
			},
			wantErr: ErrInvalidSplit,
		},
		{
			name: "negative split",
			req: ExpenseRequest{
				PayerID: "a", Participants: []string{"b", "c"}, Amount: d("100"), Policy: "percentage",
				Splits: map[string]decimal.Decimal{"b": d("110"), "c": d("-10")},
			},
			wantErr: ErrInvalidInput,
		},
		{
			name: "zero amount",
			req: ExpenseRequest{
				PayerID: "a", Participants: []string{"b"}, Amount: d("0"), Policy: "equal",
			},
			wantErr: ErrInvalidInput,
		},
		{
			name: "duplicate participants",
			req: ExpenseRequest{
				PayerID: "a", Participants: []string{"b", "b"}, Amount: d("10"), Policy: "equal",
			},
			wantErr: ErrInvalidInput,
		},
		{
			name: "unknown policy",
			req: ExpenseRequest{
				PayerID: "a", Participants: []string{"b"}, Amount: d("10"), Policy: "weighted",
			},
			wantErr: ErrInvalidSplit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp, err := NewExpense(tt.req)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, exp.ID)
			assert.False(t, exp.Settled())
		})
	}
}

func TestPairBalance(t *testing.T) {
	p := NewPair("b", "a")
	assert.Equal(t, "a", p.UserLo)
	assert.Equal(t, "b", p.UserHi)

	_, ok := p.Directed()
	assert.False(t, ok)

	p.Add("b", "a", d("30"))
	assert.True(t, d("30").Equal(p.Owes("b", "a")))
	assert.True(t, p.Owes("a", "b").IsZero())

	p.Add("a", "b", d("50"))
	assert.True(t, p.Owes("b", "a").IsZero())
	assert.True(t, d("20").Equal(p.Owes("a", "b")))

	e, ok := p.Directed()
	require.True(t, ok)
	assert.Equal(t, "a", e.DebtorID)
	assert.Equal(t, "b", e.CreditorID)

	assert.True(t, p.Owes("a", "stranger").IsZero())
}

func TestNewPayment(t *testing.T) {
	p, err := NewPayment(PaymentRequest{FromUserID: "a", ToUserID: "b", Amount: d("5"), Note: " lunch "})
	require.NoError(t, err)
	assert.Equal(t, "lunch", p.Note)

	_, err = NewPayment(PaymentRequest{FromUserID: "a", ToUserID: "a", Amount: d("5")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewPayment(PaymentRequest{FromUserID: "a", ToUserID: "b", Amount: d("-1")})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
