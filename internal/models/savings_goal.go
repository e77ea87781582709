package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SavingsGoal tracks progress toward a target amount. Current always stays
// within [0, Target].
type SavingsGoal struct {
	Base
	UserID   string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Name     string          `gorm:"size:255;not null" json:"name"`
	Target   decimal.Decimal `gorm:"column:target_amount;type:numeric(14,2);not null" json:"target"`
	Current  decimal.Decimal `gorm:"column:current_amount;type:numeric(14,2);not null;default:0" json:"current"`
	Deadline time.Time       `gorm:"type:date;not null" json:"deadline"`
}

// Progress returns the completed share of the goal as a percentage.
func (g *SavingsGoal) Progress() decimal.Decimal {
	if !g.Target.IsPositive() {
		return decimal.Zero
	}
	return g.Current.Div(g.Target).Mul(decimal.NewFromInt(100)).Round(2)
}
