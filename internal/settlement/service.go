// Package settlement orchestrates recording and settling expenses.
//
// Every operation that changes balances runs as one transaction against the
// injected storage.Store: resolve the users, compute the shares, merge each
// share into the ledger and mark the expense settled. When the store reports
// models.ErrPersistenceConflict the whole transaction is retried with
// exponential backoff, up to a bounded number of attempts.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

const (
	DefaultMaxRetries = 5
	DefaultRetryDelay = 20 * time.Millisecond
)

var tracer = otel.Tracer("github.com/mmynk/splitledger/internal/settlement")

// Service is the expense settlement orchestrator.
type Service struct {
	store      storage.Store
	merger     *ledger.Merger
	logger     *slog.Logger
	maxRetries uint
	retryDelay time.Duration
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMaxRetries sets how many times a conflicting transaction is attempted
// in total. Values below 1 are treated as 1.
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		if n < 1 {
			n = 1
		}
		s.maxRetries = uint(n)
	}
}

// WithRetryDelay sets the initial backoff between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Service) {
		s.retryDelay = d
	}
}

// WithLogger sets the logger used by the service and its merger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates a Service on top of store.
func New(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:      store,
		logger:     slog.Default(),
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.merger = ledger.NewMerger(s.logger)
	return s
}

// SettleResult describes the outcome of settling an expense.
type SettleResult struct {
	Expense *models.Expense

	// Shares is what each participant owes for the expense, the payer included
	// when listed as a participant.
	Shares map[string]decimal.Decimal

	// AlreadySettled is true when the expense had been applied before and the
	// ledger was left untouched.
	AlreadySettled bool
}

// CreateExpense validates req, stores the expense and merges its shares into
// the ledger in a single transaction. Nothing is stored if any step fails.
func (s *Service) CreateExpense(ctx context.Context, req models.ExpenseRequest) (*models.Expense, map[string]decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "settlement.CreateExpense")
	defer span.End()
	start := time.Now()

	exp, err := models.NewExpense(req)
	if err != nil {
		s.finish(span, "create_expense", start, err, false)
		return nil, nil, err
	}
	span.SetAttributes(
		attribute.String("expense.id", exp.ID),
		attribute.String("expense.policy", string(exp.Split.Policy())),
		attribute.Int("expense.participants", len(exp.Participants)),
	)

	var (
		stored *models.Expense
		shares map[string]decimal.Decimal
	)
	err = s.retry(ctx, "create_expense", func(tx storage.Tx) error {
		if err := resolveUsers(ctx, tx, exp); err != nil {
			return err
		}

		candidate := *exp
		candidate.SettledAt = s.now().Unix()
		if err := tx.CreateExpense(ctx, &candidate); err != nil {
			return err
		}

		var err error
		shares, err = s.apply(ctx, tx, &candidate)
		if err != nil {
			return err
		}
		stored = &candidate
		return nil
	})
	s.finish(span, "create_expense", start, err, false)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("Expense settled",
		"expense_id", stored.ID,
		"payer_id", stored.PayerID,
		"amount", stored.Amount.String(),
		"policy", string(stored.Split.Policy()),
		"participants", len(stored.Participants),
	)
	return stored, shares, nil
}

// SettleExpense merges a stored expense into the ledger. Settling an expense
// that was already applied is a no-op reported through AlreadySettled.
func (s *Service) SettleExpense(ctx context.Context, expenseID string) (SettleResult, error) {
	ctx, span := tracer.Start(ctx, "settlement.SettleExpense",
		trace.WithAttributes(attribute.String("expense.id", expenseID)))
	defer span.End()
	start := time.Now()

	var result SettleResult
	err := s.retry(ctx, "settle_expense", func(tx storage.Tx) error {
		result = SettleResult{}

		exp, err := tx.GetExpense(ctx, expenseID)
		if err != nil {
			return err
		}

		if exp.Settled() {
			shares, err := calculator.ComputeShares(exp)
			if err != nil {
				return err
			}
			result = SettleResult{Expense: exp, Shares: shares, AlreadySettled: true}
			return nil
		}

		if err := resolveUsers(ctx, tx, exp); err != nil {
			return err
		}
		shares, err := s.apply(ctx, tx, exp)
		if err != nil {
			return err
		}

		exp.SettledAt = s.now().Unix()
		if err := tx.MarkExpenseSettled(ctx, exp.ID, exp.SettledAt); err != nil {
			return err
		}
		result = SettleResult{Expense: exp, Shares: shares}
		return nil
	})
	s.finish(span, "settle_expense", start, err, result.AlreadySettled)
	if err != nil {
		return SettleResult{}, err
	}

	if result.AlreadySettled {
		s.logger.Info("Expense already settled", "expense_id", expenseID)
	} else {
		s.logger.Info("Expense settled", "expense_id", expenseID, "payer_id", result.Expense.PayerID)
	}
	return result, nil
}

// PreviewShares computes the shares req would produce without storing
// anything. Referenced users must exist.
func (s *Service) PreviewShares(ctx context.Context, req models.ExpenseRequest) (*models.Expense, map[string]decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "settlement.PreviewShares")
	defer span.End()

	exp, err := models.NewExpense(req)
	if err != nil {
		recordError(span, err)
		return nil, nil, err
	}

	for _, id := range involvedUsers(exp) {
		if _, err := s.store.GetUser(ctx, id); err != nil {
			recordError(span, err)
			return nil, nil, err
		}
	}

	shares, err := calculator.ComputeShares(exp)
	if err != nil {
		recordError(span, err)
		return nil, nil, err
	}
	return exp, shares, nil
}

// RecordPayment stores a direct payment from one user to another and nets it
// against their ledger row. Paying more than is owed leaves the receiver
// owing the difference.
func (s *Service) RecordPayment(ctx context.Context, req models.PaymentRequest) (*models.Payment, error) {
	ctx, span := tracer.Start(ctx, "settlement.RecordPayment")
	defer span.End()
	start := time.Now()

	payment, err := models.NewPayment(req)
	if err != nil {
		s.finish(span, "record_payment", start, err, false)
		return nil, err
	}

	err = s.retry(ctx, "record_payment", func(tx storage.Tx) error {
		for _, id := range []string{payment.FromUserID, payment.ToUserID} {
			if _, err := tx.GetUser(ctx, id); err != nil {
				return err
			}
		}
		if err := tx.CreatePayment(ctx, payment); err != nil {
			return err
		}
		_, _, err := s.merger.Settle(ctx, tx, payment.ToUserID, payment.FromUserID, payment.Amount)
		return err
	})
	s.finish(span, "record_payment", start, err, false)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment recorded",
		"payment_id", payment.ID,
		"from", payment.FromUserID,
		"to", payment.ToUserID,
		"amount", payment.Amount.String(),
	)
	return payment, nil
}

// Balances returns what userID currently owes, one line per creditor with a
// positive amount, ordered by creditor ID. The slice is empty, not nil, when
// the user owes nothing.
func (s *Service) Balances(ctx context.Context, userID string) ([]models.BalanceLine, error) {
	ctx, span := tracer.Start(ctx, "settlement.Balances",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if _, err := s.store.GetUser(ctx, userID); err != nil {
		recordError(span, err)
		return nil, err
	}

	pairs, err := s.store.ListPairs(ctx)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	lines := []models.BalanceLine{}
	for _, pair := range pairs {
		entry, ok := pair.Directed()
		if !ok || entry.DebtorID != userID {
			continue
		}
		lines = append(lines, models.BalanceLine{
			CounterpartyID: entry.CreditorID,
			Amount:         entry.Amount,
		})
	}
	if len(lines) == 0 {
		return lines, nil
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	for i := range lines {
		lines[i].CounterpartyName = names[lines[i].CounterpartyID]
	}

	sort.Slice(lines, func(i, j int) bool { return lines[i].CounterpartyID < lines[j].CounterpartyID })
	return lines, nil
}

// apply computes exp's shares and merges every participant other than the
// payer into the ledger, in participant order.
func (s *Service) apply(ctx context.Context, tx storage.Tx, exp *models.Expense) (map[string]decimal.Decimal, error) {
	shares, err := calculator.ComputeShares(exp)
	if err != nil {
		return nil, err
	}

	for _, participant := range exp.Participants {
		share, ok := shares[participant]
		if !ok || participant == exp.PayerID || !share.IsPositive() {
			continue
		}
		if _, _, err := s.merger.Settle(ctx, tx, participant, exp.PayerID, share); err != nil {
			return nil, err
		}
	}
	return shares, nil
}

// retry runs fn in a transaction, retrying the whole transaction while the
// store reports a persistence conflict.
func (s *Service) retry(ctx context.Context, operation string, fn func(tx storage.Tx) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryDelay
	b.MaxInterval = 50 * s.retryDelay

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := s.store.WithinTx(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if models.IsRetryable(err) {
			settlementConflicts.Inc()
			s.logger.Warn("Transaction conflict",
				"operation", operation,
				"attempt", attempt,
				"error", err,
			)
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.maxRetries),
	)
	if err != nil && models.IsRetryable(err) {
		return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
	}
	return err
}

func (s *Service) finish(span trace.Span, operation string, start time.Time, err error, alreadySettled bool) {
	settlementDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	settlementsTotal.WithLabelValues(operation, resultLabel(err, alreadySettled)).Inc()
	if err != nil {
		recordError(span, err)
		level := slog.LevelWarn
		if !isClientError(err) {
			level = slog.LevelError
		}
		s.logger.Log(context.Background(), level, "Settlement failed", "operation", operation, "error", err)
	}
}

// resolveUsers checks the payer and every participant exist.
func resolveUsers(ctx context.Context, tx storage.Tx, exp *models.Expense) error {
	for _, id := range involvedUsers(exp) {
		if _, err := tx.GetUser(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func involvedUsers(exp *models.Expense) []string {
	ids := make([]string, 0, len(exp.Participants)+1)
	ids = append(ids, exp.PayerID)
	for _, p := range exp.Participants {
		if p != exp.PayerID {
			ids = append(ids, p)
		}
	}
	return ids
}

func isClientError(err error) bool {
	return errors.Is(err, models.ErrInvalidInput) ||
		errors.Is(err, models.ErrInvalidSplit) ||
		errors.Is(err, models.ErrUserNotFound) ||
		errors.Is(err, models.ErrExpenseNotFound)
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
