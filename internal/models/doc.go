// Package models defines the core domain models for splitledger.
//
// # Models
//
//   - User: a person who can pay for or take part in expenses
//   - Expense: an amount paid by one user on behalf of a set of participants,
//     together with the Split that decides each participant's share
//   - PairBalance: the single signed ledger row for an unordered pair of users
//   - LedgerEntry: the directed (debtor owes creditor) view of a PairBalance
//   - Payment: a direct repayment from one user to another
//
// # Design Principles
//
//  1. **Decimal money**: every amount is a decimal.Decimal, never a float
//  2. **Net form by construction**: a pair of users shares one signed row, so
//     "A owes B" and "B owes A" can never both be nonzero
//  3. **Typed splits**: the split payload is a closed set of variants selected
//     by policy and validated when the expense is built
//  4. **IDs, not pointers**: relationships are expressed with user ID strings
package models
