package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
)

var hundred = decimal.NewFromInt(100)

// ComputeShares returns how much each participant owes for exp.
//
// Equal:      amount / len(participants) for every participant
// Exact:      the amount given for each participant in the split data
// Percentage: amount × percent / 100 for each participant in the split data
//
// The payer is part of the result only when listed as a participant; callers
// must drop that entry before merging since nobody owes themselves.
// Sum rules are checked again here so a bad split fails with
// models.ErrInvalidSplit instead of producing wrong totals.
func ComputeShares(exp *models.Expense) (map[string]decimal.Decimal, error) {
	if exp == nil {
		return nil, fmt.Errorf("%w: expense is required", models.ErrInvalidSplit)
	}
	if len(exp.Participants) == 0 {
		return nil, fmt.Errorf("%w: must have at least one participant", models.ErrInvalidSplit)
	}
	if err := models.ValidateSplit(exp); err != nil {
		return nil, err
	}

	shares := make(map[string]decimal.Decimal, len(exp.Participants))

	switch split := exp.Split.(type) {
	case models.EqualSplit:
		perPerson := exp.Amount.Div(decimal.NewFromInt(int64(len(exp.Participants))))
		for _, p := range exp.Participants {
			shares[p] = perPerson
		}

	case models.ExactSplit:
		for participant, amount := range split.Amounts {
			shares[participant] = amount
		}

	case models.PercentageSplit:
		for participant, percent := range split.Percents {
			shares[participant] = exp.Amount.Mul(percent).Div(hundred)
		}

	default:
		return nil, fmt.Errorf("%w: unsupported split %T", models.ErrInvalidSplit, exp.Split)
	}

	return shares, nil
}

// Total returns the sum of all shares.
func Total(shares map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, s := range shares {
		total = total.Add(s)
	}
	return total
}
