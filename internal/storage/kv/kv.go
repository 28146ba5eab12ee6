// Package kv provides a storage.Store backed by the BadgerDB embedded
// key-value database.
//
// Badger transactions are optimistic: a commit fails with badger.ErrConflict
// when another transaction committed a write to any key this one read. That
// failure surfaces as models.ErrPersistenceConflict so callers can retry the
// whole unit of work.
//
// Key layout:
//
//	user/<id>             JSON models.User
//	email/<email>         user ID
//	mobile/<mobile>       user ID
//	expense/<id>          JSON expenseRecord
//	pair/<lo>/<hi>        JSON models.PairBalance
//	payment/<id>          JSON models.Payment
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

const (
	prefixUser    = "user/"
	prefixEmail   = "email/"
	prefixMobile  = "mobile/"
	prefixExpense = "expense/"
	prefixPair    = "pair/"
	prefixPayment = "payment/"
)

// Config holds configuration for a Badger-backed Store.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logs. If nil they are discarded.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	GCDiscardRatio float64
}

// DefaultConfig returns production defaults for the database at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store implements storage.Store on BadgerDB.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	stopGC chan struct{}
	doneGC chan struct{}
}

// Open opens the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	logger := cfg.Logger
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
		logger = slog.Default()
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		if cfg.GCDiscardRatio <= 0 || cfg.GCDiscardRatio >= 1 {
			db.Close()
			return nil, errors.New("gc discard ratio must be between 0 and 1")
		}
		s.stopGC = make(chan struct{})
		s.doneGC = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// OpenInMemory opens an in-memory Store. Data is lost when closed.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.doneGC)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			// ErrNoRewrite means no GC was needed
			err := s.db.RunValueLogGC(ratio)
			if err == nil {
				s.logger.Debug("badger value log GC completed")
			} else if !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("badger value log GC error", "error", err)
			}
		}
	}
}

// Close stops garbage collection and closes the database.
func (s *Store) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.doneGC
		s.stopGC = nil
	}
	return s.db.Close()
}

// Ping reports whether the database is still open.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return nil
}

// WithinTx runs fn in a read-write transaction and commits if fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return fn(&kvTx{txn: txn})
	})
}

func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}

	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapErr(err))
	}
	return nil
}

func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	return s.db.View(fn)
}

// mapErr translates badger errors into the shared sentinel errors.
func mapErr(err error) error {
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: %v", models.ErrPersistenceConflict, err)
	}
	return err
}

// CreateUser stores user and claims its email and mobile.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		for _, key := range []string{prefixUser + user.ID, prefixEmail + user.Email, prefixMobile + user.Mobile} {
			exists, err := keyExists(txn, key)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: %s", models.ErrAlreadyExists, key)
			}
		}

		if err := putJSON(txn, prefixUser+user.ID, user); err != nil {
			return err
		}
		if err := txn.Set([]byte(prefixEmail+user.Email), []byte(user.ID)); err != nil {
			return fmt.Errorf("failed to index email: %w", err)
		}
		if err := txn.Set([]byte(prefixMobile+user.Mobile), []byte(user.ID)); err != nil {
			return fmt.Errorf("failed to index mobile: %w", err)
		}
		return nil
	})
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user *models.User
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		user, err = getUser(txn, userID)
		return err
	})
	return user, err
}

// ListUsers returns all users ordered by ID.
func (s *Store) ListUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	err := s.view(ctx, func(txn *badger.Txn) error {
		return scanPrefix(txn, prefixUser, func(val []byte) error {
			user := &models.User{}
			if err := json.Unmarshal(val, user); err != nil {
				return fmt.Errorf("failed to decode user: %w", err)
			}
			users = append(users, user)
			return nil
		})
	})
	return users, err
}

// GetExpense retrieves an expense by ID.
func (s *Store) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	var exp *models.Expense
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		exp, err = getExpense(txn, expenseID)
		return err
	})
	return exp, err
}

// ListExpenses returns every expense, newest first.
func (s *Store) ListExpenses(ctx context.Context) ([]*models.Expense, error) {
	var expenses []*models.Expense
	err := s.view(ctx, func(txn *badger.Txn) error {
		return scanPrefix(txn, prefixExpense, func(val []byte) error {
			exp, err := decodeExpense(val)
			if err != nil {
				return err
			}
			expenses = append(expenses, exp)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(expenses, func(i, j int) bool {
		if expenses[i].CreatedAt != expenses[j].CreatedAt {
			return expenses[i].CreatedAt > expenses[j].CreatedAt
		}
		return expenses[i].ID > expenses[j].ID
	})
	return expenses, nil
}

// ListPayments returns all payments, newest first.
func (s *Store) ListPayments(ctx context.Context) ([]*models.Payment, error) {
	var payments []*models.Payment
	err := s.view(ctx, func(txn *badger.Txn) error {
		return scanPrefix(txn, prefixPayment, func(val []byte) error {
			p := &models.Payment{}
			if err := json.Unmarshal(val, p); err != nil {
				return fmt.Errorf("failed to decode payment: %w", err)
			}
			payments = append(payments, p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(payments, func(i, j int) bool {
		if payments[i].CreatedAt != payments[j].CreatedAt {
			return payments[i].CreatedAt > payments[j].CreatedAt
		}
		return payments[i].ID > payments[j].ID
	})
	return payments, nil
}

// ListPairs returns every ledger row with a nonzero net amount, ordered by pair.
func (s *Store) ListPairs(ctx context.Context) ([]*models.PairBalance, error) {
	var pairs []*models.PairBalance
	err := s.view(ctx, func(txn *badger.Txn) error {
		return scanPrefix(txn, prefixPair, func(val []byte) error {
			p := &models.PairBalance{}
			if err := json.Unmarshal(val, p); err != nil {
				return fmt.Errorf("failed to decode pair: %w", err)
			}
			if !p.Net.IsZero() {
				pairs = append(pairs, p)
			}
			return nil
		})
	})
	return pairs, err
}
