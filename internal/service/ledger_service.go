package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/report"
	"github.com/mmynk/splitledger/internal/settlement"
	"github.com/mmynk/splitledger/internal/storage"
)

// LedgerService implements the Connect LedgerService.
type LedgerService struct {
	store    storage.Store
	ledger   *settlement.Service
	reporter *report.Reporter
}

// NewLedgerService creates a new LedgerService over the given backend.
func NewLedgerService(store storage.Store, ledger *settlement.Service, reporter *report.Reporter) *LedgerService {
	return &LedgerService{store: store, ledger: ledger, reporter: reporter}
}

// CreateUser registers a new user.
func (s *LedgerService) CreateUser(ctx context.Context, req *connect.Request[CreateUserRequest]) (*connect.Response[CreateUserResponse], error) {
	user, err := models.NewUser(models.UserInput{
		Name:   req.Msg.Name,
		Email:  req.Msg.Email,
		Mobile: req.Msg.Mobile,
	})
	if err != nil {
		return nil, connectError(err)
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, connectError(err)
	}

	slog.Info("User created", "user_id", user.ID)
	return connect.NewResponse(&CreateUserResponse{User: user}), nil
}

// GetUser retrieves a user by ID.
func (s *LedgerService) GetUser(ctx context.Context, req *connect.Request[GetUserRequest]) (*connect.Response[GetUserResponse], error) {
	user, err := s.store.GetUser(ctx, req.Msg.UserID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&GetUserResponse{User: user}), nil
}

// ListUsers returns every user.
func (s *LedgerService) ListUsers(ctx context.Context, req *connect.Request[ListUsersRequest]) (*connect.Response[ListUsersResponse], error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, connectError(err)
	}
	if users == nil {
		users = []*models.User{}
	}
	return connect.NewResponse(&ListUsersResponse{Users: users}), nil
}

// CreateExpense records an expense and merges its shares into the ledger.
func (s *LedgerService) CreateExpense(ctx context.Context, req *connect.Request[CreateExpenseRequest]) (*connect.Response[CreateExpenseResponse], error) {
	exp, shares, err := s.ledger.CreateExpense(ctx, req.Msg.ExpenseRequest)
	if err != nil {
		return nil, connectError(err)
	}

	return connect.NewResponse(&CreateExpenseResponse{
		Expense: expenseToWire(exp),
		Shares:  sharesToWire(exp.Participants, shares),
	}), nil
}

// ListExpenses returns every expense, newest first.
func (s *LedgerService) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	expenses, err := s.store.ListExpenses(ctx)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ListExpensesResponse{Expenses: expensesToWire(expenses)}), nil
}

// PreviewSplit shows how an expense would be divided without recording it.
func (s *LedgerService) PreviewSplit(ctx context.Context, req *connect.Request[PreviewSplitRequest]) (*connect.Response[PreviewSplitResponse], error) {
	exp, shares, err := s.ledger.PreviewShares(ctx, req.Msg.ExpenseRequest)
	if err != nil {
		return nil, connectError(err)
	}

	return connect.NewResponse(&PreviewSplitResponse{
		Shares: sharesToWire(exp.Participants, shares),
		Total:  calculator.Total(shares),
	}), nil
}

// SettleExpense applies a stored expense to the ledger. Repeated calls are no-ops.
func (s *LedgerService) SettleExpense(ctx context.Context, req *connect.Request[SettleExpenseRequest]) (*connect.Response[SettleExpenseResponse], error) {
	result, err := s.ledger.SettleExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, connectError(err)
	}

	return connect.NewResponse(&SettleExpenseResponse{
		Expense:        expenseToWire(result.Expense),
		Shares:         sharesToWire(result.Expense.Participants, result.Shares),
		AlreadySettled: result.AlreadySettled,
	}), nil
}

// GetBalances lists what a user owes to each counterparty.
func (s *LedgerService) GetBalances(ctx context.Context, req *connect.Request[GetBalancesRequest]) (*connect.Response[GetBalancesResponse], error) {
	lines, err := s.ledger.Balances(ctx, req.Msg.UserID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&GetBalancesResponse{UserID: req.Msg.UserID, Balances: lines}), nil
}

// GetUserExpenses lists the expenses a user paid for and took part in.
func (s *LedgerService) GetUserExpenses(ctx context.Context, req *connect.Request[GetUserExpensesRequest]) (*connect.Response[GetUserExpensesResponse], error) {
	history, err := s.reporter.UserExpenses(ctx, req.Msg.UserID)
	if err != nil {
		return nil, connectError(err)
	}

	return connect.NewResponse(&GetUserExpensesResponse{
		PaidExpenses:         expensesToWire(history.Paid),
		ParticipatedExpenses: expensesToWire(history.Participated),
		TotalPaid:            history.TotalPaid,
		TotalParticipated:    history.TotalParticipated,
	}), nil
}

// GetOverview summarizes all expenses and balances.
func (s *LedgerService) GetOverview(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[GetOverviewResponse], error) {
	ov, err := s.reporter.Overview(ctx)
	if err != nil {
		return nil, connectError(err)
	}

	resp := &GetOverviewResponse{
		TotalExpenses:      ov.TotalExpenses,
		ExpenseCount:       ov.ExpenseCount,
		UserSummaries:      ov.UserSummaries,
		RecentExpenses:     expensesToWire(ov.RecentExpenses),
		Balances:           ov.Balances,
		SuggestedTransfers: ov.SuggestedTransfers,
	}
	if resp.SuggestedTransfers == nil {
		resp.SuggestedTransfers = []models.LedgerEntry{}
	}
	return connect.NewResponse(resp), nil
}

// RecordPayment records a direct payment and nets it against the pair's balance.
func (s *LedgerService) RecordPayment(ctx context.Context, req *connect.Request[RecordPaymentRequest]) (*connect.Response[RecordPaymentResponse], error) {
	payment, err := s.ledger.RecordPayment(ctx, req.Msg.PaymentRequest)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&RecordPaymentResponse{Payment: paymentToWire(payment)}), nil
}
