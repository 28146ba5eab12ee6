package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
)

// settleThreshold hides floating remainders left over by equal splits.
var settleThreshold = decimal.RequireFromString("0.01")

// Summarize computes paid and participated totals per user from expenses alone.
// Every user in users gets a row, even with no expenses; users referenced by an
// expense but missing from users are added with an empty name. Rows are ordered
// by user ID.
//
// Algorithm:
// - payer: TotalPaid += amount
// - each participant: TotalParticipated += amount
// - Net = TotalPaid - TotalParticipated
func Summarize(expenses []*models.Expense, users []*models.User) []models.UserTotals {
	totals := make(map[string]*models.UserTotals, len(users))

	get := func(id string) *models.UserTotals {
		t, ok := totals[id]
		if !ok {
			t = &models.UserTotals{UserID: id}
			totals[id] = t
		}
		return t
	}

	for _, u := range users {
		get(u.ID).Name = u.Name
	}

	for _, exp := range expenses {
		payer := get(exp.PayerID)
		payer.TotalPaid = payer.TotalPaid.Add(exp.Amount)

		for _, p := range exp.Participants {
			t := get(p)
			t.TotalParticipated = t.TotalParticipated.Add(exp.Amount)
		}
	}

	result := make([]models.UserTotals, 0, len(totals))
	for _, t := range totals {
		t.Net = t.TotalPaid.Sub(t.TotalParticipated)
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result
}

// SimplifyDebts turns pairwise debts into a short list of transfers that clears
// every user's net position.
//
// Algorithm:
// - net[u] = owed to u - owed by u
// - greedy: repeatedly match the largest debtor with the largest creditor
func SimplifyDebts(entries []models.LedgerEntry) []models.LedgerEntry {
	net := make(map[string]decimal.Decimal)
	for _, e := range entries {
		net[e.CreditorID] = net[e.CreditorID].Add(e.Amount)
		net[e.DebtorID] = net[e.DebtorID].Sub(e.Amount)
	}

	type position struct {
		user   string
		amount decimal.Decimal
	}
	var creditors, debtors []position
	for user, amount := range net {
		switch {
		case amount.GreaterThan(settleThreshold):
			creditors = append(creditors, position{user, amount})
		case amount.LessThan(settleThreshold.Neg()):
			debtors = append(debtors, position{user, amount.Neg()})
		}
	}

	byAmount := func(ps []position) {
		sort.Slice(ps, func(i, j int) bool {
			if c := ps[i].amount.Cmp(ps[j].amount); c != 0 {
				return c > 0
			}
			return ps[i].user < ps[j].user
		})
	}
	byAmount(creditors)
	byAmount(debtors)

	var transfers []models.LedgerEntry
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := decimal.Min(debtors[i].amount, creditors[j].amount)

		if amount.GreaterThan(settleThreshold) {
			transfers = append(transfers, models.LedgerEntry{
				DebtorID:   debtors[i].user,
				CreditorID: creditors[j].user,
				Amount:     amount,
			})
		}

		debtors[i].amount = debtors[i].amount.Sub(amount)
		creditors[j].amount = creditors[j].amount.Sub(amount)

		if debtors[i].amount.LessThan(settleThreshold) {
			i++
		}
		if creditors[j].amount.LessThan(settleThreshold) {
			j++
		}
	}

	return transfers
}
