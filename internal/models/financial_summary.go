package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FinancialSummary is the per-user cached aggregate of the ledger. It is
// maintained incrementally on every transaction insert.
type FinancialSummary struct {
	UserID      string          `gorm:"type:uuid;primaryKey" json:"-"`
	Income      decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"income"`
	Expenses    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"expenses"`
	Balance     decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"balance"`
	SavingsRate decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"savings_rate"`
	UpdatedAt   time.Time       `json:"last_updated"`
}

var hundred = decimal.NewFromInt(100)

// MaxAmount is the largest magnitude the NUMERIC(14,2) money columns hold.
// Savings rates are stored as NUMERIC(20,2), wide enough for the extreme
// 0.01 income against MaxAmount expenses.
var MaxAmount = decimal.RequireFromString("999999999999.99")

// AmountInRange reports whether d fits a money column.
func AmountInRange(d decimal.Decimal) bool {
	return d.Abs().LessThanOrEqual(MaxAmount)
}

// SavingsRate returns (income-expenses)/income*100 rounded to two places, or
// zero when there is no income.
func SavingsRate(income, expenses decimal.Decimal) decimal.Decimal {
	if !income.IsPositive() {
		return decimal.Zero
	}
	return income.Sub(expenses).Div(income).Mul(hundred).Round(2)
}

// Recompute derives Balance and SavingsRate from Income and Expenses.
func (s *FinancialSummary) Recompute() {
	s.Balance = s.Income.Sub(s.Expenses)
	s.SavingsRate = SavingsRate(s.Income, s.Expenses)
}
