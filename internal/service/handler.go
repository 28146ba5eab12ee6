package service

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
)

// LedgerServiceName is the fully-qualified name of the LedgerService.
const LedgerServiceName = "splitledger.v1.LedgerService"

// Procedure paths for each LedgerService method.
const (
	LedgerServiceCreateUserProcedure      = "/" + LedgerServiceName + "/CreateUser"
	LedgerServiceGetUserProcedure         = "/" + LedgerServiceName + "/GetUser"
	LedgerServiceListUsersProcedure       = "/" + LedgerServiceName + "/ListUsers"
	LedgerServiceCreateExpenseProcedure   = "/" + LedgerServiceName + "/CreateExpense"
	LedgerServiceListExpensesProcedure    = "/" + LedgerServiceName + "/ListExpenses"
	LedgerServicePreviewSplitProcedure    = "/" + LedgerServiceName + "/PreviewSplit"
	LedgerServiceSettleExpenseProcedure   = "/" + LedgerServiceName + "/SettleExpense"
	LedgerServiceGetBalancesProcedure     = "/" + LedgerServiceName + "/GetBalances"
	LedgerServiceGetUserExpensesProcedure = "/" + LedgerServiceName + "/GetUserExpenses"
	LedgerServiceGetOverviewProcedure     = "/" + LedgerServiceName + "/GetOverview"
	LedgerServiceRecordPaymentProcedure   = "/" + LedgerServiceName + "/RecordPayment"
)

// NewLedgerServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewLedgerServiceHandler(svc *LedgerService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{
		connect.WithCodec(jsonCodec{name: codecNameJSON}),
		connect.WithCodec(jsonCodec{name: codecNameJSONCharset}),
	}, opts...)

	mux := http.NewServeMux()
	mux.Handle(LedgerServiceCreateUserProcedure, connect.NewUnaryHandler(LedgerServiceCreateUserProcedure, svc.CreateUser, opts...))
	mux.Handle(LedgerServiceGetUserProcedure, connect.NewUnaryHandler(LedgerServiceGetUserProcedure, svc.GetUser, opts...))
	mux.Handle(LedgerServiceListUsersProcedure, connect.NewUnaryHandler(LedgerServiceListUsersProcedure, svc.ListUsers, opts...))
	mux.Handle(LedgerServiceCreateExpenseProcedure, connect.NewUnaryHandler(LedgerServiceCreateExpenseProcedure, svc.CreateExpense, opts...))
	mux.Handle(LedgerServiceListExpensesProcedure, connect.NewUnaryHandler(LedgerServiceListExpensesProcedure, svc.ListExpenses, opts...))
	mux.Handle(LedgerServicePreviewSplitProcedure, connect.NewUnaryHandler(LedgerServicePreviewSplitProcedure, svc.PreviewSplit, opts...))
	mux.Handle(LedgerServiceSettleExpenseProcedure, connect.NewUnaryHandler(LedgerServiceSettleExpenseProcedure, svc.SettleExpense, opts...))
	mux.Handle(LedgerServiceGetBalancesProcedure, connect.NewUnaryHandler(LedgerServiceGetBalancesProcedure, svc.GetBalances, opts...))
	mux.Handle(LedgerServiceGetUserExpensesProcedure, connect.NewUnaryHandler(LedgerServiceGetUserExpensesProcedure, svc.GetUserExpenses, opts...))
	mux.Handle(LedgerServiceGetOverviewProcedure, connect.NewUnaryHandler(LedgerServiceGetOverviewProcedure, svc.GetOverview, opts...))
	mux.Handle(LedgerServiceRecordPaymentProcedure, connect.NewUnaryHandler(LedgerServiceRecordPaymentProcedure, svc.RecordPayment, opts...))

	return "/" + LedgerServiceName + "/", mux
}

// LedgerServiceClient is a client for the LedgerService.
type LedgerServiceClient struct {
	createUser      *connect.Client[CreateUserRequest, CreateUserResponse]
	getUser         *connect.Client[GetUserRequest, GetUserResponse]
	listUsers       *connect.Client[ListUsersRequest, ListUsersResponse]
	createExpense   *connect.Client[CreateExpenseRequest, CreateExpenseResponse]
	listExpenses    *connect.Client[ListExpensesRequest, ListExpensesResponse]
	previewSplit    *connect.Client[PreviewSplitRequest, PreviewSplitResponse]
	settleExpense   *connect.Client[SettleExpenseRequest, SettleExpenseResponse]
	getBalances     *connect.Client[GetBalancesRequest, GetBalancesResponse]
	getUserExpenses *connect.Client[GetUserExpensesRequest, GetUserExpensesResponse]
	getOverview     *connect.Client[emptypb.Empty, GetOverviewResponse]
	recordPayment   *connect.Client[RecordPaymentRequest, RecordPaymentResponse]
}

// NewLedgerServiceClient constructs a client for the LedgerService at baseURL,
// e.g. http://localhost:8080.
func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *LedgerServiceClient {
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{name: codecNameJSON})}, opts...)
	return &LedgerServiceClient{
		createUser:      connect.NewClient[CreateUserRequest, CreateUserResponse](httpClient, baseURL+LedgerServiceCreateUserProcedure, opts...),
		getUser:         connect.NewClient[GetUserRequest, GetUserResponse](httpClient, baseURL+LedgerServiceGetUserProcedure, opts...),
		listUsers:       connect.NewClient[ListUsersRequest, ListUsersResponse](httpClient, baseURL+LedgerServiceListUsersProcedure, opts...),
		createExpense:   connect.NewClient[CreateExpenseRequest, CreateExpenseResponse](httpClient, baseURL+LedgerServiceCreateExpenseProcedure, opts...),
		listExpenses:    connect.NewClient[ListExpensesRequest, ListExpensesResponse](httpClient, baseURL+LedgerServiceListExpensesProcedure, opts...),
		previewSplit:    connect.NewClient[PreviewSplitRequest, PreviewSplitResponse](httpClient, baseURL+LedgerServicePreviewSplitProcedure, opts...),
		settleExpense:   connect.NewClient[SettleExpenseRequest, SettleExpenseResponse](httpClient, baseURL+LedgerServiceSettleExpenseProcedure, opts...),
		getBalances:     connect.NewClient[GetBalancesRequest, GetBalancesResponse](httpClient, baseURL+LedgerServiceGetBalancesProcedure, opts...),
		getUserExpenses: connect.NewClient[GetUserExpensesRequest, GetUserExpensesResponse](httpClient, baseURL+LedgerServiceGetUserExpensesProcedure, opts...),
		getOverview:     connect.NewClient[emptypb.Empty, GetOverviewResponse](httpClient, baseURL+LedgerServiceGetOverviewProcedure, opts...),
		recordPayment:   connect.NewClient[RecordPaymentRequest, RecordPaymentResponse](httpClient, baseURL+LedgerServiceRecordPaymentProcedure, opts...),
	}
}

func (c *LedgerServiceClient) CreateUser(ctx context.Context, req *connect.Request[CreateUserRequest]) (*connect.Response[CreateUserResponse], error) {
	return c.createUser.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) GetUser(ctx context.Context, req *connect.Request[GetUserRequest]) (*connect.Response[GetUserResponse], error) {
	return c.getUser.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) ListUsers(ctx context.Context, req *connect.Request[ListUsersRequest]) (*connect.Response[ListUsersResponse], error) {
	return c.listUsers.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) CreateExpense(ctx context.Context, req *connect.Request[CreateExpenseRequest]) (*connect.Response[CreateExpenseResponse], error) {
	return c.createExpense.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) PreviewSplit(ctx context.Context, req *connect.Request[PreviewSplitRequest]) (*connect.Response[PreviewSplitResponse], error) {
	return c.previewSplit.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) SettleExpense(ctx context.Context, req *connect.Request[SettleExpenseRequest]) (*connect.Response[SettleExpenseResponse], error) {
	return c.settleExpense.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) GetBalances(ctx context.Context, req *connect.Request[GetBalancesRequest]) (*connect.Response[GetBalancesResponse], error) {
	return c.getBalances.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) GetUserExpenses(ctx context.Context, req *connect.Request[GetUserExpensesRequest]) (*connect.Response[GetUserExpensesResponse], error) {
	return c.getUserExpenses.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) GetOverview(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[GetOverviewResponse], error) {
	return c.getOverview.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) RecordPayment(ctx context.Context, req *connect.Request[RecordPaymentRequest]) (*connect.Response[RecordPaymentResponse], error) {
	return c.recordPayment.CallUnary(ctx, req)
}
