package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// expenseRecord is the stored form of models.Expense; the split is flattened
// into its policy tag and payload.
type expenseRecord struct {
	ID           string                     `json:"id"`
	PayerID      string                     `json:"payer_id"`
	Participants []string                   `json:"participants"`
	Amount       decimal.Decimal            `json:"amount"`
	Policy       models.SplitPolicy         `json:"split_policy"`
	SplitData    map[string]decimal.Decimal `json:"split_data,omitempty"`
	Description  string                     `json:"description,omitempty"`
	CreatedAt    int64                      `json:"created_at"`
	SettledAt    int64                      `json:"settled_at,omitempty"`
}

// kvTx implements storage.Tx on a read-write badger transaction.
type kvTx struct {
	txn *badger.Txn
}

var _ storage.Tx = (*kvTx)(nil)

func (t *kvTx) GetUser(_ context.Context, userID string) (*models.User, error) {
	return getUser(t.txn, userID)
}

func (t *kvTx) CreateExpense(_ context.Context, exp *models.Expense) error {
	if exp.Split == nil {
		return fmt.Errorf("%w: split is required", models.ErrInvalidSplit)
	}
	key := prefixExpense + exp.ID
	exists, err := keyExists(t.txn, key)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: expense %s", models.ErrAlreadyExists, exp.ID)
	}
	return putJSON(t.txn, key, encodeExpense(exp))
}

func (t *kvTx) GetExpense(_ context.Context, expenseID string) (*models.Expense, error) {
	return getExpense(t.txn, expenseID)
}

func (t *kvTx) MarkExpenseSettled(_ context.Context, expenseID string, settledAt int64) error {
	exp, err := getExpense(t.txn, expenseID)
	if err != nil {
		return err
	}
	exp.SettledAt = settledAt
	return putJSON(t.txn, prefixExpense+expenseID, encodeExpense(exp))
}

func (t *kvTx) CreatePayment(_ context.Context, payment *models.Payment) error {
	return putJSON(t.txn, prefixPayment+payment.ID, payment)
}

// GetPair reads the row for a and b. Reading registers the key with the
// transaction, so a concurrent commit to the same pair makes ours conflict.
func (t *kvTx) GetPair(_ context.Context, a, b string) (*models.PairBalance, error) {
	pair := models.NewPair(a, b)
	item, err := t.txn.Get([]byte(pairKey(pair.UserLo, pair.UserHi)))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return pair, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pair: %w", err)
	}
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, pair)
	}); err != nil {
		return nil, fmt.Errorf("failed to decode pair: %w", err)
	}
	return pair, nil
}

func (t *kvTx) PutPair(_ context.Context, pair *models.PairBalance) error {
	lo, hi := models.PairKey(pair.UserLo, pair.UserHi)
	if lo != pair.UserLo {
		return fmt.Errorf("%w: pair %s/%s is not in canonical order", models.ErrInvalidInput, pair.UserLo, pair.UserHi)
	}
	return putJSON(t.txn, pairKey(lo, hi), pair)
}

func pairKey(lo, hi string) string {
	return prefixPair + lo + "/" + hi
}

func getUser(txn *badger.Txn, userID string) (*models.User, error) {
	user := &models.User{}
	found, err := getJSON(txn, prefixUser+userID, user)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", models.ErrUserNotFound, userID)
	}
	return user, nil
}

func getExpense(txn *badger.Txn, expenseID string) (*models.Expense, error) {
	var exp *models.Expense
	item, err := txn.Get([]byte(prefixExpense + expenseID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", models.ErrExpenseNotFound, expenseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	err = item.Value(func(val []byte) error {
		var err error
		exp, err = decodeExpense(val)
		return err
	})
	return exp, err
}

func encodeExpense(exp *models.Expense) expenseRecord {
	return expenseRecord{
		ID:           exp.ID,
		PayerID:      exp.PayerID,
		Participants: exp.Participants,
		Amount:       exp.Amount,
		Policy:       exp.Split.Policy(),
		SplitData:    exp.Split.Data(),
		Description:  exp.Description,
		CreatedAt:    exp.CreatedAt,
		SettledAt:    exp.SettledAt,
	}
}

func decodeExpense(val []byte) (*models.Expense, error) {
	var rec expenseRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode expense: %w", err)
	}
	split, err := models.NewSplit(rec.Policy, rec.SplitData)
	if err != nil {
		return nil, fmt.Errorf("stored expense %s: %w", rec.ID, err)
	}
	return &models.Expense{
		ID:           rec.ID,
		PayerID:      rec.PayerID,
		Participants: rec.Participants,
		Amount:       rec.Amount,
		Split:        split,
		Description:  rec.Description,
		CreatedAt:    rec.CreatedAt,
		SettledAt:    rec.SettledAt,
	}, nil
}

func keyExists(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check key %s: %w", key, err)
	}
	return true, nil
}

func getJSON(txn *badger.Txn, key string, v any) (bool, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	}); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func putJSON(txn *badger.Txn, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := txn.Set([]byte(key), raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func scanPrefix(txn *badger.Txn, prefix string, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}
