package kv

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func createUser(t *testing.T, store *Store, name, email, mobile string) *models.User {
	t.Helper()
	user, err := models.NewUser(models.UserInput{Name: name, Email: email, Mobile: mobile})
	require.NoError(t, err)
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

// TestOpen_RequiresPath verifies persistent databases need a directory.
func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

// TestOpen_Persistent verifies data survives reopening the same directory.
func TestOpen_Persistent(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	user := createUser(t, store, "Alice", "alice@example.com", "5550001")
	require.NoError(t, store.Close())

	store, err = Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer store.Close()

	got, err := store.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestStore_Users(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, store, "Alice", "alice@example.com", "5550001")
	createUser(t, store, "Bob", "bob@example.com", "5550002")

	got, err := store.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	_, err = store.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	dupMobile, err := models.NewUser(models.UserInput{Name: "Eve", Email: "eve@example.com", Mobile: "5550001"})
	require.NoError(t, err)
	assert.ErrorIs(t, store.CreateUser(ctx, dupMobile), models.ErrAlreadyExists)

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Less(t, users[0].ID, users[1].ID)
}

func TestStore_Expenses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, store, "Alice", "alice@example.com", "5550001")
	bob := createUser(t, store, "Bob", "bob@example.com", "5550002")

	exp, err := models.NewExpense(models.ExpenseRequest{
		PayerID:      alice.ID,
		Participants: []string{bob.ID, alice.ID},
		Amount:       decimal.NewFromInt(200),
		Policy:       "percentage",
		Splits: map[string]decimal.Decimal{
			alice.ID: decimal.NewFromInt(25),
			bob.ID:   decimal.NewFromInt(75),
		},
	})
	require.NoError(t, err)

	require.NoError(t, store.WithinTx(ctx, func(tx storage.Tx) error {
		return tx.CreateExpense(ctx, exp)
	}))

	got, err := store.GetExpense(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, exp.Participants, got.Participants)
	assert.Equal(t, models.SplitPercentage, got.Split.Policy())
	assert.True(t, decimal.NewFromInt(75).Equal(got.Split.Data()[bob.ID]))
	assert.False(t, got.Settled())

	require.NoError(t, store.WithinTx(ctx, func(tx storage.Tx) error {
		return tx.MarkExpenseSettled(ctx, exp.ID, 42)
	}))
	got, err = store.GetExpense(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.SettledAt)

	_, err = store.GetExpense(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrExpenseNotFound)

	expenses, err := store.ListExpenses(ctx)
	require.NoError(t, err)
	assert.Len(t, expenses, 1)
}

func TestStore_Pairs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	merger := ledger.NewMerger(nil)

	settle := func(debtor, creditor, amount string) {
		t.Helper()
		require.NoError(t, store.WithinTx(ctx, func(tx storage.Tx) error {
			_, _, err := merger.Settle(ctx, tx, debtor, creditor, decimal.RequireFromString(amount))
			return err
		}))
	}

	settle("u1", "u2", "30")
	settle("u2", "u1", "50")
	settle("u3", "u1", "5")
	settle("u3", "u2", "5")
	settle("u2", "u3", "5")

	pairs, err := store.ListPairs(ctx)
	require.NoError(t, err)
	require.Len(t, pairs, 2)

	first, _ := pairs[0].Directed()
	assert.Equal(t, models.LedgerEntry{DebtorID: "u2", CreditorID: "u1", Amount: first.Amount}, first)
	assert.True(t, decimal.NewFromInt(20).Equal(first.Amount))

	second, _ := pairs[1].Directed()
	assert.Equal(t, "u3", second.DebtorID)
	assert.Equal(t, "u1", second.CreditorID)
}

func TestStore_RollbackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithinTx(ctx, func(tx storage.Tx) error {
		pair, err := tx.GetPair(ctx, "a", "b")
		require.NoError(t, err)
		pair.Add("a", "b", decimal.NewFromInt(10))
		require.NoError(t, tx.PutPair(ctx, pair))
		_, err = tx.GetUser(ctx, "ghost")
		return err
	})
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	pairs, err := store.ListPairs(ctx)
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

// TestStore_ConflictingWrites verifies that two transactions writing the same
// pair cannot both commit.
func TestStore_ConflictingWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	merger := ledger.NewMerger(nil)

	err := store.WithinTx(ctx, func(outer storage.Tx) error {
		if _, err := outer.GetPair(ctx, "a", "b"); err != nil {
			return err
		}

		// A second writer commits first.
		err := store.WithinTx(ctx, func(inner storage.Tx) error {
			_, _, err := merger.Settle(ctx, inner, "a", "b", decimal.NewFromInt(7))
			return err
		})
		require.NoError(t, err)

		_, _, err = merger.Settle(ctx, outer, "b", "a", decimal.NewFromInt(3))
		return err
	})
	require.ErrorIs(t, err, models.ErrPersistenceConflict)
	assert.True(t, models.IsRetryable(err))

	pairs, err := store.ListPairs(ctx)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	entry, _ := pairs[0].Directed()
	assert.True(t, decimal.NewFromInt(7).Equal(entry.Amount), "only the first writer is applied")
}

func TestStore_Payments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p1 := &models.Payment{ID: "p1", FromUserID: "a", ToUserID: "b", Amount: decimal.NewFromInt(1), CreatedAt: 10}
	p2 := &models.Payment{ID: "p2", FromUserID: "b", ToUserID: "a", Amount: decimal.NewFromInt(2), Note: "cash", CreatedAt: 20}

	require.NoError(t, store.WithinTx(ctx, func(tx storage.Tx) error {
		if err := tx.CreatePayment(ctx, p1); err != nil {
			return err
		}
		return tx.CreatePayment(ctx, p2)
	}))

	payments, err := store.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, "p2", payments[0].ID)
	assert.Equal(t, "cash", payments[0].Note)
}

func TestStore_ContextCancelled(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.WithinTx(ctx, func(tx storage.Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Ping(ctx), context.Canceled)
}
