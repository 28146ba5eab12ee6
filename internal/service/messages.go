package service

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
)

// CreateUserRequest registers a user.
type CreateUserRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Mobile string `json:"mobile"`
}

type CreateUserResponse struct {
	User *models.User `json:"user"`
}

type GetUserRequest struct {
	UserID string `json:"user_id"`
}

type GetUserResponse struct {
	User *models.User `json:"user"`
}

type ListUsersRequest struct{}

type ListUsersResponse struct {
	Users []*models.User `json:"users"`
}

// CreateExpenseRequest records an expense and settles it immediately.
type CreateExpenseRequest struct {
	models.ExpenseRequest
}

type CreateExpenseResponse struct {
	Expense *Expense `json:"expense"`
	Shares  []Share  `json:"shares"`
}

type ListExpensesRequest struct{}

type ListExpensesResponse struct {
	Expenses []*Expense `json:"expenses"`
}

// PreviewSplitRequest computes shares without storing anything.
type PreviewSplitRequest struct {
	models.ExpenseRequest
}

type PreviewSplitResponse struct {
	Shares []Share         `json:"shares"`
	Total  decimal.Decimal `json:"total"`
}

type SettleExpenseRequest struct {
	ExpenseID string `json:"expense_id"`
}

type SettleExpenseResponse struct {
	Expense        *Expense `json:"expense"`
	Shares         []Share  `json:"shares"`
	AlreadySettled bool     `json:"already_settled"`
}

type GetBalancesRequest struct {
	UserID string `json:"user_id"`
}

type GetBalancesResponse struct {
	UserID   string               `json:"user_id"`
	Balances []models.BalanceLine `json:"balances"`
}

type GetUserExpensesRequest struct {
	UserID string `json:"user_id"`
}

type GetUserExpensesResponse struct {
	PaidExpenses         []*Expense      `json:"paid_expenses"`
	ParticipatedExpenses []*Expense      `json:"participated_expenses"`
	TotalPaid            decimal.Decimal `json:"total_paid"`
	TotalParticipated    decimal.Decimal `json:"total_participated"`
}

type GetOverviewResponse struct {
	TotalExpenses      decimal.Decimal      `json:"total_expenses"`
	ExpenseCount       int                  `json:"expense_count"`
	UserSummaries      []models.UserTotals  `json:"user_summaries"`
	RecentExpenses     []*Expense           `json:"recent_expenses"`
	Balances           []models.LedgerEntry `json:"balances"`
	SuggestedTransfers []models.LedgerEntry `json:"suggested_transfers"`
}

// RecordPaymentRequest records money paid directly between two users.
type RecordPaymentRequest struct {
	models.PaymentRequest
}

type RecordPaymentResponse struct {
	Payment *Payment `json:"payment"`
}

// Expense is the wire form of models.Expense.
type Expense struct {
	ID           string                     `json:"id"`
	PayerID      string                     `json:"payer_id"`
	Participants []string                   `json:"participants"`
	Amount       decimal.Decimal            `json:"amount"`
	SplitMethod  string                     `json:"split_method"`
	Splits       map[string]decimal.Decimal `json:"splits,omitempty"`
	Description  string                     `json:"description,omitempty"`
	CreatedAt    int64                      `json:"created_at"`
	Settled      bool                       `json:"settled"`
}

// Share is what one participant owes for an expense.
type Share struct {
	UserID string          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

// Payment is the wire form of models.Payment.
type Payment struct {
	ID         string          `json:"id"`
	FromUserID string          `json:"from_user_id"`
	ToUserID   string          `json:"to_user_id"`
	Amount     decimal.Decimal `json:"amount"`
	Note       string          `json:"note,omitempty"`
	CreatedAt  int64           `json:"created_at"`
}

func expenseToWire(exp *models.Expense) *Expense {
	return &Expense{
		ID:           exp.ID,
		PayerID:      exp.PayerID,
		Participants: exp.Participants,
		Amount:       exp.Amount,
		SplitMethod:  string(exp.Split.Policy()),
		Splits:       exp.Split.Data(),
		Description:  exp.Description,
		CreatedAt:    exp.CreatedAt,
		Settled:      exp.Settled(),
	}
}

func expensesToWire(expenses []*models.Expense) []*Expense {
	out := make([]*Expense, len(expenses))
	for i, exp := range expenses {
		out[i] = expenseToWire(exp)
	}
	return out
}

// sharesToWire lists shares in participant order, then any remaining keys by ID.
func sharesToWire(participants []string, shares map[string]decimal.Decimal) []Share {
	out := make([]Share, 0, len(shares))
	seen := make(map[string]bool, len(shares))
	for _, p := range participants {
		if amount, ok := shares[p]; ok {
			out = append(out, Share{UserID: p, Amount: amount})
			seen[p] = true
		}
	}
	var rest []string
	for id := range shares {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		out = append(out, Share{UserID: id, Amount: shares[id]})
	}
	return out
}

func paymentToWire(p *models.Payment) *Payment {
	return &Payment{
		ID:         p.ID,
		FromUserID: p.FromUserID,
		ToUserID:   p.ToUserID,
		Amount:     p.Amount,
		Note:       p.Note,
		CreatedAt:  p.CreatedAt,
	}
}
