package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/mmynk/splitledger/internal/models"
)

// ListPairs returns every ledger row with a nonzero net amount, ordered by pair.
func (s *Store) ListPairs(ctx context.Context) ([]*models.PairBalance, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_lo, user_hi, net, updated_at FROM pair_balances ORDER BY user_lo, user_hi",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pairs: %w", err)
	}
	defer rows.Close()

	var pairs []*models.PairBalance
	for rows.Next() {
		p := &models.PairBalance{}
		if err := rows.Scan(&p.UserLo, &p.UserHi, &p.Net, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pair: %w", err)
		}
		if p.Net.IsZero() {
			continue
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pairs: %w", err)
	}

	return pairs, nil
}

// getOrCreatePair makes sure the row exists, then reads it. On MySQL the read
// takes a row lock held until the transaction ends; SQLite transactions are
// already serialized by the single connection.
func getOrCreatePair(ctx context.Context, q queryer, dialect Dialect, a, b string) (*models.PairBalance, error) {
	pair := models.NewPair(a, b)

	insert := "INSERT INTO pair_balances (user_lo, user_hi, net, updated_at) VALUES (?, ?, ?, ?) ON CONFLICT (user_lo, user_hi) DO NOTHING"
	selectQuery := "SELECT net, updated_at FROM pair_balances WHERE user_lo = ? AND user_hi = ?"
	if dialect == DialectMySQL {
		insert = "INSERT IGNORE INTO pair_balances (user_lo, user_hi, net, updated_at) VALUES (?, ?, ?, ?)"
		selectQuery += " FOR UPDATE"
	}

	if _, err := q.ExecContext(ctx, insert, pair.UserLo, pair.UserHi, pair.Net, time.Now().Unix()); err != nil {
		return nil, fmt.Errorf("failed to initialize pair: %w", mapErr(err))
	}

	err := q.QueryRowContext(ctx, selectQuery, pair.UserLo, pair.UserHi).Scan(&pair.Net, &pair.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get pair: %w", mapErr(err))
	}
	return pair, nil
}

func upsertPair(ctx context.Context, q queryer, dialect Dialect, pair *models.PairBalance) error {
	query := `INSERT INTO pair_balances (user_lo, user_hi, net, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_lo, user_hi) DO UPDATE SET net = excluded.net, updated_at = excluded.updated_at`
	if dialect == DialectMySQL {
		query = `INSERT INTO pair_balances (user_lo, user_hi, net, updated_at) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE net = VALUES(net), updated_at = VALUES(updated_at)`
	}

	lo, hi := models.PairKey(pair.UserLo, pair.UserHi)
	if lo != pair.UserLo {
		return fmt.Errorf("%w: pair %s/%s is not in canonical order", models.ErrInvalidInput, pair.UserLo, pair.UserHi)
	}

	if _, err := q.ExecContext(ctx, query, lo, hi, pair.Net, pair.UpdatedAt); err != nil {
		return fmt.Errorf("failed to store pair: %w", mapErr(err))
	}
	return nil
}
