package settlement

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/storage/kv"
	"github.com/mmynk/splitledger/internal/storage/sqlstore"
)

func newSQLiteStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := sqlstore.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newKVStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := kv.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// addUsers creates one user per name and returns their IDs by name.
func addUsers(t *testing.T, store storage.Store, names ...string) map[string]string {
	t.Helper()
	ids := make(map[string]string, len(names))
	for i, name := range names {
		user, err := models.NewUser(models.UserInput{
			Name:   name,
			Email:  fmt.Sprintf("%s@example.com", name),
			Mobile: fmt.Sprintf("555%04d", i),
		})
		require.NoError(t, err)
		require.NoError(t, store.CreateUser(context.Background(), user))
		ids[name] = user.ID
	}
	return ids
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// owes returns what debtor owes creditor according to svc.Balances.
func owes(t *testing.T, svc *Service, debtor, creditor string) decimal.Decimal {
	t.Helper()
	lines, err := svc.Balances(context.Background(), debtor)
	require.NoError(t, err)
	for _, l := range lines {
		if l.CounterpartyID == creditor {
			return l.Amount
		}
	}
	return decimal.Zero
}

func TestCreateExpense_EqualSplitPayerNotParticipant(t *testing.T) {
	store := newSQLiteStore(t)
	u := addUsers(t, store, "A", "B", "C")
	svc := New(store)
	ctx := context.Background()

	exp, shares, err := svc.CreateExpense(ctx, models.ExpenseRequest{
		PayerID:      u["A"],
		Participants: []string{u["B"], u["C"]},
		Amount:       dec("100"),
		Policy:       "equal",
	})
	require.NoError(t, err)
	assert.True(t, exp.Settled())
	assert.True(t, dec("50").Equal(shares[u["B"]]))
	assert.True(t, dec("50").Equal(shares[u["C"]]))

	assert.True(t, dec("50").Equal(owes(t, svc, u["B"], u["A"])))
	assert.True(t, dec("50").Equal(owes(t, svc, u["C"], u["A"])))

	lines, err := svc.Balances(ctx, u["A"])
	require.NoError(t, err)
	assert.Empty(t, lines, "the payer owes nothing")
}

func TestCreateExpense_ExactSplitTwoUsers(t *testing.T) {
	store := newSQLiteStore(t)
	u := addUsers(t, store, "user1", "user2", "user3")
	svc := New(store)

	_, _, err := svc.CreateExpense(context.Background(), models.ExpenseRequest{
		PayerID:      u["user2"],
		Participants: []string{u["user1"], u["user3"]},
		Amount:       dec("200"),
		Policy:       "exact",
		Splits: map[string]decimal.Decimal{
			u["user1"]: dec("50"),
			u["user3"]: dec("150"),
		},
	})
	require.NoError(t, err)

	lines, err := svc.Balances(context.Background(), u["user1"])
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, u["user2"], lines[0].CounterpartyID)
	assert.Equal(t, "user2", lines[0].CounterpartyName)
	assert.True(t, dec("50").Equal(lines[0].Amount))

	assert.True(t, dec("150").Equal(owes(t, svc, u["user3"], u["user2"])))
}

func TestCreateExpense_NetsAgainstExistingDebt(t *testing.T) {
	store := newKVStore(t)
	u := addUsers(t, store, "A", "B")
	svc := New(store)
	ctx := context.Background()

	// A owes B 30.
	_, _, err := svc.CreateExpense(ctx, models.ExpenseRequest{
		PayerID:      u["B"],
		Participants: []string{u["A"]},
		Amount:       dec("30"),
		Policy:       "equal",
	})
	require.NoError(t, err)

	// B owes A 50, absorbing the 30.
	_, _, err = svc.CreateExpense(ctx, models.ExpenseRequest{
		PayerID:      u["A"],
		Participants: []string{u["B"]},
		Amount:       dec("50"),
		Policy:       "exact",
		Splits:       map[string]decimal.Decimal{u["B"]: dec("50")},
	})
	require.NoError(t, err)

	assert.True(t, owes(t, svc, u["A"], u["B"]).IsZero())
	assert.True(t, dec("20").Equal(owes(t, svc, u["B"], u["A"])))
}

func TestCreateExpense_PayerShareIsNotMerged(t *testing.T) {
	store := newSQLiteStore(t)
	u := addUsers(t, store, "A", "B", "C")
	svc := New(store)

	_, shares, err := svc.CreateExpense(context.Background(), models.ExpenseRequest{
		PayerID:      u["A"],
		Participants: []string{u["A"], u["B"], u["C"]},
		Amount:       dec("300"),
		Policy:       "percentage",
		Splits: map[string]decimal.Decimal{
			u["A"]: dec("50"),
			u["B"]: dec("30"),
			u["C"]: dec("20"),
		},
	})
	require.NoError(t, err)
	assert.True(t, dec("150").Equal(shares[u["A"]]))

	assert.True(t, dec("90").Equal(owes(t, svc, u["B"], u["A"])))
	assert.True(t, dec("60").Equal(owes(t, svc, u["C"], u["A"])))
}

func TestCreateExpense_Errors(t *testing.T) {
	store := newSQLiteStore(t)
	u := addUsers(t, store, "A", "B")
	svc := New(store)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     models.ExpenseRequest
		wantErr error
	}{
		{
			name: "unknown participant",
			req: models.ExpenseRequest{
				PayerID:      u["A"],
				Participants: []string{u["B"], "ghost"},
				Amount:       dec("10"),
				Policy:       "equal",
			},
			wantErr: models.ErrUserNotFound,
		},
		{
			name: "unknown payer",
			req: models.ExpenseRequest{
				PayerID:      "ghost",
				Participants: []string{u["B"]},
				Amount:       dec("10"),
				Policy:       "equal",
			},
			wantErr: models.ErrUserNotFound,
		},
		{
			name: "exact sum mismatch",
			req: models.ExpenseRequest{
				PayerID:      u["A"],
				Participants: []string{u["B"]},
				Amount:       dec("10"),
				Policy:       "exact",
				Splits:       map[string]decimal.Decimal{u["B"]: dec("9")},
			},
			wantErr: models.ErrInvalidSplit,
		},
		{
			name: "no participants",
			req: models.ExpenseRequest{
				PayerID: u["A"],
				Amount:  dec("10"),
				Policy:  "equal",
			},
			wantErr: models.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.CreateExpense(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	expenses, err := store.ListExpenses(ctx)
	require.NoError(t, err)
	assert.Empty(t, expenses, "failed requests must not store anything")

	pairs, err := store.ListPairs(ctx)
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

// unsettledExpense stores an expense without applying it to the ledger.
func unsettledExpense(t *testing.T, store storage.Store, req models.ExpenseRequest) *models.Expense {
	t.Helper()
	exp, err := models.NewExpense(req)
	require.NoError(t, err)
	require.NoError(t, store.WithinTx(context.Background(), func(tx storage.Tx) error {
		return tx.CreateExpense(context.Background(), exp)
	}))
	return exp
}

func TestSettleExpense_RepeatIsNoOp(t *testing.T) {
	store := newSQLiteStore(t)
	u := addUsers(t, store, "A", "B")
	svc := New(store)
	ctx := context.Background()

	exp := unsettledExpense(t, store, models.ExpenseRequest{
		PayerID:      u["A"],
		Participants: []string{u["A"], u["B"]},
		Amount:       dec("40"),
		Policy:       "equal",
	})

	result, err := svc.SettleExpense(ctx, exp.ID)
	require.NoError(t, err)
	assert.False(t, result.AlreadySettled)
	assert.True(t, result.Expense.Settled())
	assert.True(t, dec("20").Equal(owes(t, svc, u["B"], u["A"])))

	result, err = svc.SettleExpense(ctx, exp.ID)
	require.NoError(t, err)
	assert.True(t, result.AlreadySettled)
	assert.True(t, dec("20").Equal(result.Shares[u["B"]]))
	assert.True(t, dec("20").Equal(owes(t, svc, u["B"], u["A"])), "second settle must not double-apply")

	_, err = svc.SettleExpense(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrExpenseNotFound)
}

// flakyStore fails the first conflicts transactions with a persistence
// conflict after fn has run, so their writes are rolled back.
type flakyStore struct {
	storage.Store

	mu        sync.Mutex
	conflicts int
	attempts  int
}

func (f *flakyStore) WithinTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	f.mu.Lock()
	f.attempts++
	fail := f.attempts <= f.conflicts
	f.mu.Unlock()

	return f.Store.WithinTx(ctx, func(tx storage.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		if fail {
			return fmt.Errorf("commit: %w", models.ErrPersistenceConflict)
		}
		return nil
	})
}

func TestCreateExpense_RetriesConflicts(t *testing.T) {
	base := newKVStore(t)
	u := addUsers(t, base, "A", "B")
	store := &flakyStore{Store: base, conflicts: 2}
	svc := New(store, WithMaxRetries(5), WithRetryDelay(time.Millisecond))

	_, _, err := svc.CreateExpense(context.Background(), models.ExpenseRequest{
		PayerID:      u["A"],
		Participants: []string{u["B"]},
		Amount:       dec("12"),
		Policy:       "equal",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, store.attempts)
	assert.True(t, dec("12").Equal(owes(t, svc, u["B"], u["A"])), "applied exactly once")
}

func TestCreateExpense_RetriesExhausted(t *testing.T) {
	base := newKVStore(t)
	u := addUsers(t, base, "A", "B")
	store := &flakyStore{Store: base, conflicts: 100}
	svc := New(store, WithMaxRetries(3), WithRetryDelay(time.Millisecond))

	_, _, err := svc.CreateExpense(context.Background(), models.ExpenseRequest{
		PayerID:      u["A"],
		Participants: []string{u["B"]},
		Amount:       dec("12"),
		Policy:       "equal",
	})
	require.ErrorIs(t, err, models.ErrPersistenceConflict)
	assert.Equal(t, 3, store.attempts)

	expenses, err := base.ListExpenses(context.Background())
	require.NoError(t, err)
	assert.Empty(t, expenses)
	assert.True(t, owes(t, svc, u["B"], u["A"]).IsZero())
}

func TestCreateExpense_ConcurrentWritersOnOnePair(t *testing.T) {
	for name, newStore := range map[string]func(*testing.T) storage.Store{
		"sqlite": newSQLiteStore,
		"badger": newKVStore,
	} {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			u := addUsers(t, store, "A", "B")
			svc := New(store, WithMaxRetries(100), WithRetryDelay(time.Millisecond))

			const workers = 10
			var wg sync.WaitGroup
			errs := make(chan error, workers)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					payer, participant := u["A"], u["B"]
					if i%2 == 1 {
						payer, participant = participant, payer
					}
					_, _, err := svc.CreateExpense(context.Background(), models.ExpenseRequest{
						PayerID:      payer,
						Participants: []string{participant},
						Amount:       decimal.NewFromInt(int64(10 * (i + 1))),
						Policy:       "equal",
					})
					errs <- err
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			// B owes 10+30+50+70+90 = 250, A owes 20+40+60+80+100 = 300.
			assert.True(t, owes(t, svc, u["B"], u["A"]).IsZero())
			assert.True(t, dec("50").Equal(owes(t, svc, u["A"], u["B"])))
		})
	}
}

func TestRecordPayment(t *testing.T) {
	store := newSQLiteStore(t)
	u := addUsers(t, store, "A", "B")
	svc := New(store)
	ctx := context.Background()

	_, _, err := svc.CreateExpense(ctx, models.ExpenseRequest{
		PayerID:      u["A"],
		Participants: []string{u["B"]},
		Amount:       dec("30"),
		Policy:       "equal",
	})
	require.NoError(t, err)

	payment, err := svc.RecordPayment(ctx, models.PaymentRequest{
		FromUserID: u["B"],
		ToUserID:   u["A"],
		Amount:     dec("40"),
		Note:       "  cash ",
	})
	require.NoError(t, err)
	assert.Equal(t, "cash", payment.Note)

	assert.True(t, owes(t, svc, u["B"], u["A"]).IsZero())
	assert.True(t, dec("10").Equal(owes(t, svc, u["A"], u["B"])), "overpayment flips the debt")

	_, err = svc.RecordPayment(ctx, models.PaymentRequest{FromUserID: u["B"], ToUserID: "ghost", Amount: dec("1")})
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	_, err = svc.RecordPayment(ctx, models.PaymentRequest{FromUserID: u["B"], ToUserID: u["B"], Amount: dec("1")})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	payments, err := store.ListPayments(ctx)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestPreviewShares_DoesNotMutate(t *testing.T) {
	store := newSQLiteStore(t)
	u := addUsers(t, store, "A", "B", "C")
	svc := New(store)
	ctx := context.Background()

	_, shares, err := svc.PreviewShares(ctx, models.ExpenseRequest{
		PayerID:      u["A"],
		Participants: []string{u["A"], u["B"], u["C"]},
		Amount:       dec("90"),
		Policy:       "equal",
	})
	require.NoError(t, err)
	assert.Len(t, shares, 3)
	assert.True(t, dec("30").Equal(shares[u["C"]]))

	expenses, err := store.ListExpenses(ctx)
	require.NoError(t, err)
	assert.Empty(t, expenses)

	_, _, err = svc.PreviewShares(ctx, models.ExpenseRequest{
		PayerID:      "ghost",
		Participants: []string{u["B"]},
		Amount:       dec("90"),
		Policy:       "equal",
	})
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestBalances(t *testing.T) {
	store := newSQLiteStore(t)
	u := addUsers(t, store, "A", "B", "C")
	svc := New(store)
	ctx := context.Background()

	lines, err := svc.Balances(ctx, u["A"])
	require.NoError(t, err)
	assert.NotNil(t, lines)
	assert.Empty(t, lines, "no settlements yet")

	_, err = svc.Balances(ctx, "ghost")
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	for _, payer := range []string{u["B"], u["C"]} {
		_, _, err := svc.CreateExpense(ctx, models.ExpenseRequest{
			PayerID:      payer,
			Participants: []string{u["A"]},
			Amount:       dec("5"),
			Policy:       "equal",
		})
		require.NoError(t, err)
	}

	lines, err = svc.Balances(ctx, u["A"])
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Less(t, lines[0].CounterpartyID, lines[1].CounterpartyID)
}
