package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mmynk/splitledger/internal/models"
)

// ListPayments retrieves all payments, newest first.
func (s *Store) ListPayments(ctx context.Context) ([]*models.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, from_user_id, to_user_id, amount, note, created_at
		 FROM payments ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment := &models.Payment{}
		var note sql.NullString

		if err := rows.Scan(&payment.ID, &payment.FromUserID, &payment.ToUserID,
			&payment.Amount, &note, &payment.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}

		if note.Valid {
			payment.Note = note.String
		}

		payments = append(payments, payment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}

	return payments, nil
}

func insertPayment(ctx context.Context, q queryer, payment *models.Payment) error {
	var note interface{} = nil
	if payment.Note != "" {
		note = payment.Note
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO payments (id, from_user_id, to_user_id, amount, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		payment.ID, payment.FromUserID, payment.ToUserID, payment.Amount, note, payment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", mapErr(err))
	}

	return nil
}
