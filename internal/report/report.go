// Package report builds read-only views over expenses and the ledger:
// the overview, per-user expense history and the CSV balance sheet.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// RecentLimit is how many expenses the overview lists.
const RecentLimit = 5

// Overview summarizes every expense and the current ledger.
type Overview struct {
	TotalExpenses  decimal.Decimal
	ExpenseCount   int
	UserSummaries  []models.UserTotals
	RecentExpenses []*models.Expense

	// Balances lists every nonzero debt, ordered by pair.
	Balances []models.LedgerEntry

	// SuggestedTransfers is a short list of payments that would clear Balances.
	SuggestedTransfers []models.LedgerEntry
}

// UserExpenses is one user's expense history.
type UserExpenses struct {
	User              *models.User
	Paid              []*models.Expense
	Participated      []*models.Expense
	TotalPaid         decimal.Decimal
	TotalParticipated decimal.Decimal
}

// Reporter reads from a storage.Store. It never writes.
type Reporter struct {
	store storage.Store
}

// New creates a Reporter.
func New(store storage.Store) *Reporter {
	return &Reporter{store: store}
}

// Overview builds the overview.
func (r *Reporter) Overview(ctx context.Context) (*Overview, error) {
	expenses, err := r.store.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	users, err := r.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	entries, err := r.entries(ctx)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, exp := range expenses {
		total = total.Add(exp.Amount)
	}

	recent := expenses
	if len(recent) > RecentLimit {
		recent = recent[:RecentLimit]
	}

	return &Overview{
		TotalExpenses:      total,
		ExpenseCount:       len(expenses),
		UserSummaries:      calculator.Summarize(expenses, users),
		RecentExpenses:     recent,
		Balances:           entries,
		SuggestedTransfers: calculator.SimplifyDebts(entries),
	}, nil
}

// UserExpenses returns the expenses userID paid for and took part in, newest first.
func (r *Reporter) UserExpenses(ctx context.Context, userID string) (*UserExpenses, error) {
	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	expenses, err := r.store.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	out := &UserExpenses{
		User:              user,
		Paid:              []*models.Expense{},
		Participated:      []*models.Expense{},
		TotalPaid:         decimal.Zero,
		TotalParticipated: decimal.Zero,
	}
	for _, exp := range expenses {
		if exp.PayerID == userID {
			out.Paid = append(out.Paid, exp)
			out.TotalPaid = out.TotalPaid.Add(exp.Amount)
		}
		if exp.HasParticipant(userID) {
			out.Participated = append(out.Participated, exp)
			out.TotalParticipated = out.TotalParticipated.Add(exp.Amount)
		}
	}
	return out, nil
}

// WriteBalanceSheet writes the CSV balance sheet to w.
//
// For each user, ordered by ID, there is one row per debt they owe (amount
// negated), one row per debt owed to them, or a single "No outstanding
// balances" row, followed by an empty line. A SUMMARY block closes the sheet.
func (r *Reporter) WriteBalanceSheet(ctx context.Context, w io.Writer) error {
	users, err := r.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	expenses, err := r.store.ListExpenses(ctx)
	if err != nil {
		return fmt.Errorf("failed to list expenses: %w", err)
	}
	entries, err := r.entries(ctx)
	if err != nil {
		return err
	}

	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	totals := make(map[string]models.UserTotals, len(users))
	for _, t := range calculator.Summarize(expenses, users) {
		totals[t.UserID] = t
	}

	cw := csv.NewWriter(w)
	write := func(record ...string) {
		if err == nil {
			err = cw.Write(record)
		}
	}

	write("User", "Owes To", "Amount", "Total Paid", "Total Participated In", "Net Balance")

	for _, user := range users {
		t := totals[user.ID]
		tail := []string{money(t.TotalPaid), money(t.TotalParticipated), money(t.Net)}

		rows := 0
		for _, e := range entries {
			if e.DebtorID == user.ID {
				write(append([]string{user.Name, names[e.CreditorID], "-" + money(e.Amount)}, tail...)...)
				rows++
			}
		}
		for _, e := range entries {
			if e.CreditorID == user.ID {
				write(append([]string{user.Name, fmt.Sprintf("(Owed by %s)", names[e.DebtorID]), money(e.Amount)}, tail...)...)
				rows++
			}
		}
		if rows == 0 {
			write(append([]string{user.Name, "No outstanding balances", "0"}, tail...)...)
		}
		write()
	}

	total := decimal.Zero
	for _, exp := range expenses {
		total = total.Add(exp.Amount)
	}
	write("SUMMARY")
	write("Total Expenses", money(total))
	write("Number of Expenses", fmt.Sprintf("%d", len(expenses)))

	if err != nil {
		return fmt.Errorf("failed to write balance sheet: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write balance sheet: %w", err)
	}
	return nil
}

// entries returns every nonzero debt in directed form, ordered by pair.
func (r *Reporter) entries(ctx context.Context) ([]models.LedgerEntry, error) {
	pairs, err := r.store.ListPairs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	entries := make([]models.LedgerEntry, 0, len(pairs))
	for _, p := range pairs {
		if e, ok := p.Directed(); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
