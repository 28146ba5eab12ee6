// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/models"
)

// Tx is one atomic unit of work. Everything written through a Tx becomes
// visible together when the surrounding WithinTx returns nil, or not at all.
type Tx interface {
	ledger.PairStore

	// GetUser resolves a user by ID. Returns models.ErrUserNotFound for unknown IDs.
	GetUser(ctx context.Context, userID string) (*models.User, error)

	// CreateExpense persists a new expense with its participants and split.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// GetExpense retrieves an expense by ID, locking it against concurrent
	// settlement. Returns models.ErrExpenseNotFound if it does not exist.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// MarkExpenseSettled records the time the expense was applied to the ledger.
	MarkExpenseSettled(ctx context.Context, expenseID string, settledAt int64) error

	// CreatePayment persists a new payment.
	CreatePayment(ctx context.Context, payment *models.Payment) error
}

// Store defines the interface for ledger storage operations.
// This abstraction allows swapping storage backends (SQLite, MySQL, Badger)
// without changing the settlement layer.
type Store interface {
	// WithinTx runs fn inside a transaction. The transaction commits when fn
	// returns nil and rolls back otherwise. Concurrent-update failures are
	// reported as models.ErrPersistenceConflict.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// CreateUser persists a new user. Returns models.ErrAlreadyExists when the
	// email or mobile is taken.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUser retrieves a user by ID. Returns models.ErrUserNotFound if missing.
	GetUser(ctx context.Context, userID string) (*models.User, error)

	// ListUsers returns all users ordered by ID.
	ListUsers(ctx context.Context) ([]*models.User, error)

	// GetExpense retrieves an expense by ID. Returns models.ErrExpenseNotFound if missing.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// ListExpenses returns all expenses, newest first.
	ListExpenses(ctx context.Context) ([]*models.Expense, error)

	// ListPayments returns all payments, newest first.
	ListPayments(ctx context.Context) ([]*models.Payment, error)

	// ListPairs returns every ledger row with a nonzero net amount.
	ListPairs(ctx context.Context) ([]*models.PairBalance, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
