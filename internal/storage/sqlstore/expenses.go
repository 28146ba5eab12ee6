package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
)

const expenseColumns = "id, payer_id, amount, split_policy, split_data, description, created_at, settled_at"

// GetExpense retrieves an expense by ID, including its participants.
func (s *Store) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	return getExpense(ctx, s.db, expenseID, false)
}

// ListExpenses returns every expense, newest first.
func (s *Store) ListExpenses(ctx context.Context) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses ORDER BY created_at DESC, id DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	byID := make(map[string]*models.Expense)
	for rows.Next() {
		exp, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, exp)
		byID[exp.ID] = exp
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	rows.Close()

	// Load all participants in one pass
	partRows, err := s.db.QueryContext(ctx,
		"SELECT expense_id, user_id FROM expense_participants ORDER BY expense_id, position",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer partRows.Close()

	for partRows.Next() {
		var expenseID, userID string
		if err := partRows.Scan(&expenseID, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		if exp, ok := byID[expenseID]; ok {
			exp.Participants = append(exp.Participants, userID)
		}
	}
	if err := partRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}

	return expenses, nil
}

func insertExpense(ctx context.Context, q queryer, exp *models.Expense) error {
	if exp.Split == nil {
		return fmt.Errorf("%w: split is required", models.ErrInvalidSplit)
	}

	var splitData sql.NullString
	if data := exp.Split.Data(); data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to encode split data: %w", err)
		}
		splitData = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := q.ExecContext(ctx,
		"INSERT INTO expenses ("+expenseColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		exp.ID, exp.PayerID, exp.Amount, string(exp.Split.Policy()), splitData,
		exp.Description, exp.CreatedAt, exp.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", mapErr(err))
	}

	for i, userID := range exp.Participants {
		_, err = q.ExecContext(ctx,
			"INSERT INTO expense_participants (expense_id, user_id, position) VALUES (?, ?, ?)",
			exp.ID, userID, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", mapErr(err))
		}
	}

	return nil
}

func getExpense(ctx context.Context, q queryer, expenseID string, forUpdate bool) (*models.Expense, error) {
	query := "SELECT " + expenseColumns + " FROM expenses WHERE id = ?"
	if forUpdate {
		query += " FOR UPDATE"
	}

	exp, err := scanExpense(q.QueryRowContext(ctx, query, expenseID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrExpenseNotFound, expenseID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		"SELECT user_id FROM expense_participants WHERE expense_id = ? ORDER BY position",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", mapErr(err))
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		exp.Participants = append(exp.Participants, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}

	return exp, nil
}

func markExpenseSettled(ctx context.Context, q queryer, expenseID string, settledAt int64) error {
	res, err := q.ExecContext(ctx,
		"UPDATE expenses SET settled_at = ? WHERE id = ?",
		settledAt, expenseID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark expense settled: %w", mapErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", models.ErrExpenseNotFound, expenseID)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*models.Expense, error) {
	exp := &models.Expense{}
	var policy string
	var splitData sql.NullString

	err := row.Scan(&exp.ID, &exp.PayerID, &exp.Amount, &policy, &splitData,
		&exp.Description, &exp.CreatedAt, &exp.SettledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan expense: %w", mapErr(err))
	}

	var data map[string]decimal.Decimal
	if splitData.Valid && splitData.String != "" {
		if err := json.Unmarshal([]byte(splitData.String), &data); err != nil {
			return nil, fmt.Errorf("failed to decode split data for expense %s: %w", exp.ID, err)
		}
	}

	exp.Split, err = models.NewSplit(models.SplitPolicy(policy), data)
	if err != nil {
		return nil, fmt.Errorf("stored expense %s: %w", exp.ID, err)
	}
	return exp, nil
}
