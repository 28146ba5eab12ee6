// Package sqlstore provides a database/sql implementation of storage.Store.
//
// Two dialects are supported: SQLite through the pure Go modernc.org/sqlite
// driver, and MySQL/MariaDB through github.com/go-sql-driver/mysql.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Dialect names the SQL flavour spoken by the underlying database.
type Dialect string

const (
	DialectSQLite Dialect = "sqlite"
	DialectMySQL  Dialect = "mysql"
)

// queryer is the subset of *sql.DB and *sql.Tx used by the query helpers.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements storage.Store on top of database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open creates a Store for the given dialect. For SQLite dsn is a file path.
func Open(dialect Dialect, dsn string) (*Store, error) {
	switch dialect {
	case DialectSQLite:
		return NewSQLite(dsn)
	case DialectMySQL:
		return NewMySQL(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}
}

// NewSQLite creates a SQLite-backed Store with the given database path.
// It creates the parent directories and runs migrations automatically.
func NewSQLite(dbPath string) (*Store, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers, so two transactions can never
	// interleave their read-modify-write of the same ledger pair.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return finishOpen(db, DialectSQLite)
}

// NewMySQL creates a MySQL-backed Store from a go-sql-driver DSN,
// e.g. "user:pass@tcp(localhost:3306)/splitledger".
func NewMySQL(dsn string) (*Store, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mysql dsn: %w", err)
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return finishOpen(db, DialectMySQL)
}

func finishOpen(db *sql.DB, dialect Dialect) (*Store, error) {
	if err := runMigrations(db, dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Store{db: db, dialect: dialect}, nil
}

// Dialect reports the SQL dialect in use.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// WithinTx runs fn in a database transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapErr(err))
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx, dialect: s.dialect}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapErr(err))
	}
	return nil
}

// mapErr translates driver errors into the shared sentinel errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1205, 1213: // lock wait timeout, deadlock
			return fmt.Errorf("%w: %v", models.ErrPersistenceConflict, err)
		case 1062: // duplicate entry
			return fmt.Errorf("%w: %v", models.ErrAlreadyExists, err)
		}
		return err
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		switch code & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", models.ErrPersistenceConflict, err)
		case sqlite3.SQLITE_CONSTRAINT:
			if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
				return fmt.Errorf("%w: %v", models.ErrAlreadyExists, err)
			}
		}
	}
	return err
}

// sqlTx implements storage.Tx on a *sql.Tx.
type sqlTx struct {
	tx      *sql.Tx
	dialect Dialect
}

var _ storage.Tx = (*sqlTx)(nil)

func (t *sqlTx) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return getUser(ctx, t.tx, userID)
}

func (t *sqlTx) CreateExpense(ctx context.Context, expense *models.Expense) error {
	return insertExpense(ctx, t.tx, expense)
}

func (t *sqlTx) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	return getExpense(ctx, t.tx, expenseID, t.dialect == DialectMySQL)
}

func (t *sqlTx) MarkExpenseSettled(ctx context.Context, expenseID string, settledAt int64) error {
	return markExpenseSettled(ctx, t.tx, expenseID, settledAt)
}

func (t *sqlTx) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return insertPayment(ctx, t.tx, payment)
}

func (t *sqlTx) GetPair(ctx context.Context, a, b string) (*models.PairBalance, error) {
	return getOrCreatePair(ctx, t.tx, t.dialect, a, b)
}

func (t *sqlTx) PutPair(ctx context.Context, pair *models.PairBalance) error {
	return upsertPair(ctx, t.tx, t.dialect, pair)
}
