package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "moneyminder/internal/errors"
	"moneyminder/internal/models"
)

// summaryService maintains the cached per-user FinancialSummary.
type summaryService struct {
	db *gorm.DB
}

// NewSummaryService creates a new SummaryServicer.
func NewSummaryService(db *gorm.DB) SummaryServicer {
	return &summaryService{db: db}
}

// ensureSummary inserts a zeroed row for userID unless one exists.
func ensureSummary(tx *gorm.DB, userID string) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.FinancialSummary{UserID: userID}).Error
}

// GetSummary returns the user's summary, creating a zeroed row if absent.
func (s *summaryService) GetSummary(ctx context.Context, userID string) (*models.FinancialSummary, error) {
	db := s.db.WithContext(ctx)

	var summary models.FinancialSummary
	err := db.Where("user_id = ?", userID).First(&summary).Error
	if err == nil {
		return &summary, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := ensureSummary(db, userID); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := db.Where("user_id = ?", userID).First(&summary).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &summary, nil
}

// UpdateSummary overwrites income and/or expenses and recomputes the derived
// fields from the merged values. The row is locked for the read-merge-write.
func (s *summaryService) UpdateSummary(ctx context.Context, userID string, patch SummaryPatch) (bool, error) {
	if patch.Income == nil && patch.Expenses == nil {
		return false, nil
	}
	if (patch.Income != nil && patch.Income.IsNegative()) || (patch.Expenses != nil && patch.Expenses.IsNegative()) {
		return false, apperrors.WithMessage(apperrors.ErrInvalidInput, "income and expenses must not be negative")
	}
	if patch.Income != nil && !models.AmountInRange(*patch.Income) {
		return false, errAmountTooLarge("income")
	}
	if patch.Expenses != nil && !models.AmountInRange(*patch.Expenses) {
		return false, errAmountTooLarge("expenses")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureSummary(tx, userID); err != nil {
			return err
		}

		var summary models.FinancialSummary
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).First(&summary).Error; err != nil {
			return err
		}

		if patch.Income != nil {
			summary.Income = patch.Income.Round(2)
		}
		if patch.Expenses != nil {
			summary.Expenses = patch.Expenses.Round(2)
		}
		summary.Recompute()

		return tx.Model(&models.FinancialSummary{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
			"income":       summary.Income,
			"expenses":     summary.Expenses,
			"balance":      summary.Balance,
			"savings_rate": summary.SavingsRate,
		}).Error
	})
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return true, nil
}

// ApplyTransaction folds amount into the summary inside the caller's
// transaction. Totals are incremented in SQL so concurrent inserts for the
// same user cannot lose updates; the savings rate is then recomputed while
// the increment still holds the row lock. A fold that would push a total
// past MaxAmount is rejected as invalid input.
func (s *summaryService) ApplyTransaction(tx *gorm.DB, userID string, amount decimal.Decimal) error {
	if err := ensureSummary(tx, userID); err != nil {
		return err
	}

	income, expenses := decimal.Zero, decimal.Zero
	if amount.IsPositive() {
		income = amount
	} else {
		expenses = amount.Neg()
	}

	var before models.FinancialSummary
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).First(&before).Error; err != nil {
		return err
	}
	if !models.AmountInRange(before.Income.Add(income)) || !models.AmountInRange(before.Expenses.Add(expenses)) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "ledger totals would exceed "+models.MaxAmount.StringFixed(2))
	}

	res := tx.Model(&models.FinancialSummary{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
		"income":   gorm.Expr("income + ?", income),
		"expenses": gorm.Expr("expenses + ?", expenses),
		"balance":  gorm.Expr("balance + ?", amount),
	})
	if res.Error != nil {
		return res.Error
	}

	var summary models.FinancialSummary
	if err := tx.Where("user_id = ?", userID).First(&summary).Error; err != nil {
		return err
	}
	return tx.Model(&models.FinancialSummary{}).Where("user_id = ?", userID).
		Update("savings_rate", models.SavingsRate(summary.Income, summary.Expenses)).Error
}

// Reconcile rebuilds the summary from the full ledger.
func (s *summaryService) Reconcile(ctx context.Context, userID string) (*models.FinancialSummary, error) {
	var summary models.FinancialSummary
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureSummary(tx, userID); err != nil {
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).First(&summary).Error; err != nil {
			return err
		}

		var totals struct {
			Income   decimal.Decimal
			Expenses decimal.Decimal
		}
		err := tx.Model(&models.Transaction{}).
			Select("COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0) AS income, "+
				"COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0) AS expenses").
			Where("user_id = ?", userID).
			Scan(&totals).Error
		if err != nil {
			return err
		}

		summary.Income = totals.Income
		summary.Expenses = totals.Expenses
		summary.Recompute()

		return tx.Model(&models.FinancialSummary{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
			"income":       summary.Income,
			"expenses":     summary.Expenses,
			"balance":      summary.Balance,
			"savings_rate": summary.SavingsRate,
		}).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &summary, nil
}
