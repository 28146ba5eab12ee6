package models

import "github.com/shopspring/decimal"

// PairBalance is the single ledger row for an unordered pair of users.
// Storing one signed amount per pair keeps the ledger in net form: at most one
// direction of debt can be nonzero.
type PairBalance struct {
	// UserLo is the lexically smaller user ID of the pair.
	UserLo string

	// UserHi is the lexically larger user ID of the pair.
	UserHi string

	// Net is positive when UserLo owes UserHi, negative when UserHi owes UserLo.
	Net decimal.Decimal

	// UpdatedAt is the Unix timestamp of the last change.
	UpdatedAt int64
}

// NewPair returns a zero PairBalance for users a and b in canonical order.
func NewPair(a, b string) *PairBalance {
	lo, hi := PairKey(a, b)
	return &PairBalance{UserLo: lo, UserHi: hi, Net: decimal.Zero}
}

// PairKey returns a and b ordered so the first is the smaller ID.
func PairKey(a, b string) (lo, hi string) {
	if a < b {
		return a, b
	}
	return b, a
}

// Owes returns how much debtor owes creditor according to this row.
// The result is never negative.
func (p *PairBalance) Owes(debtor, creditor string) decimal.Decimal {
	var signed decimal.Decimal
	switch {
	case debtor == p.UserLo && creditor == p.UserHi:
		signed = p.Net
	case debtor == p.UserHi && creditor == p.UserLo:
		signed = p.Net.Neg()
	default:
		return decimal.Zero
	}
	if signed.IsPositive() {
		return signed
	}
	return decimal.Zero
}

// Add records that debtor owes creditor a further amount, netting against any
// debt in the opposite direction.
func (p *PairBalance) Add(debtor, creditor string, amount decimal.Decimal) {
	if debtor == p.UserLo {
		p.Net = p.Net.Add(amount)
	} else {
		p.Net = p.Net.Sub(amount)
	}
}

// Entry returns the directed view debtor -> creditor of this row.
func (p *PairBalance) Entry(debtor, creditor string) LedgerEntry {
	return LedgerEntry{
		DebtorID:   debtor,
		CreditorID: creditor,
		Amount:     p.Owes(debtor, creditor),
	}
}

// Directed returns the nonzero directed entry for this row and false when the pair is even.
func (p *PairBalance) Directed() (LedgerEntry, bool) {
	switch {
	case p.Net.IsPositive():
		return LedgerEntry{DebtorID: p.UserLo, CreditorID: p.UserHi, Amount: p.Net}, true
	case p.Net.IsNegative():
		return LedgerEntry{DebtorID: p.UserHi, CreditorID: p.UserLo, Amount: p.Net.Neg()}, true
	default:
		return LedgerEntry{}, false
	}
}

// LedgerEntry is a directed debt: DebtorID owes CreditorID Amount (never negative).
type LedgerEntry struct {
	DebtorID   string          `json:"debtor_id"`
	CreditorID string          `json:"creditor_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// BalanceLine is one row of a user's outstanding debts.
type BalanceLine struct {
	CounterpartyID   string          `json:"counterparty_id"`
	CounterpartyName string          `json:"counterparty_name"`
	Amount           decimal.Decimal `json:"amount"`
}

// UserTotals aggregates a user's expenses, computed from expenses rather than the ledger.
type UserTotals struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`

	// TotalPaid is the sum of amounts on expenses the user paid for.
	TotalPaid decimal.Decimal `json:"total_paid"`

	// TotalParticipated is the sum of amounts on expenses the user took part in.
	TotalParticipated decimal.Decimal `json:"total_participated"`

	// Net is TotalPaid - TotalParticipated.
	Net decimal.Decimal `json:"net"`
}
