// Package ledger applies debts between pairs of users to the persistent ledger.
//
// The ledger keeps one signed row per unordered pair (see models.PairBalance),
// so net settlement is structural: adding a debt in one direction first absorbs
// any debt in the opposite direction and only the remainder flips the sign.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
)

// PairStore is the transactional access the merger needs to the ledger.
// Implementations must run inside the caller's atomic unit of work.
type PairStore interface {
	// GetPair returns the row for users a and b, creating a zero row if none
	// exists yet. The row stays locked against concurrent writers until the
	// surrounding transaction ends.
	GetPair(ctx context.Context, a, b string) (*models.PairBalance, error)

	// PutPair persists the row.
	PutPair(ctx context.Context, pair *models.PairBalance) error
}

// Merger is the only writer of ledger rows.
type Merger struct {
	logger *slog.Logger
}

// NewMerger creates a Merger. A nil logger falls back to slog.Default().
func NewMerger(logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{logger: logger}
}

// Settle records that debtor owes creditor amount and nets it against any
// existing debt from creditor to debtor. It returns the resulting
// debtor->creditor (forward) and creditor->debtor (reverse) entries; at most one
// of them is nonzero.
//
// Step by step this matches the two-row formulation:
//   - reverse >= amount: reverse -= amount, forward unchanged
//   - reverse <  amount: forward += amount - reverse, reverse = 0
//
// Settling a user against themselves is a no-op.
func (m *Merger) Settle(ctx context.Context, ps PairStore, debtor, creditor string, amount decimal.Decimal) (forward, reverse models.LedgerEntry, err error) {
	if debtor == creditor {
		m.logger.Debug("Skipping self settlement", "user_id", debtor)
		return models.LedgerEntry{}, models.LedgerEntry{}, nil
	}
	if debtor == "" || creditor == "" {
		return forward, reverse, fmt.Errorf("%w: debtor and creditor are required", models.ErrInvalidInput)
	}
	if amount.IsNegative() {
		return forward, reverse, fmt.Errorf("%w: negative settlement amount %s", models.ErrInvalidInput, amount)
	}

	pair, err := ps.GetPair(ctx, debtor, creditor)
	if err != nil {
		return forward, reverse, fmt.Errorf("failed to load pair %s/%s: %w", debtor, creditor, err)
	}

	before := pair.Owes(creditor, debtor)
	pair.Add(debtor, creditor, amount)
	pair.UpdatedAt = time.Now().Unix()

	if err := ps.PutPair(ctx, pair); err != nil {
		return forward, reverse, fmt.Errorf("failed to store pair %s/%s: %w", debtor, creditor, err)
	}

	forward = pair.Entry(debtor, creditor)
	reverse = pair.Entry(creditor, debtor)

	m.logger.Debug("Ledger pair updated",
		"debtor", debtor,
		"creditor", creditor,
		"amount", amount.String(),
		"absorbed", decimal.Min(before, amount).String(),
		"forward", forward.Amount.String(),
		"reverse", reverse.Amount.String(),
	)
	return forward, reverse, nil
}
