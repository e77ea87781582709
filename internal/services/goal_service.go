package services

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "moneyminder/internal/errors"
	"moneyminder/internal/models"
)

// goalService handles savings goals.
type goalService struct {
	db *gorm.DB
}

// NewGoalService creates a new GoalServicer.
func NewGoalService(db *gorm.DB) GoalServicer {
	return &goalService{db: db}
}

// AddGoal creates a goal. Current defaults to zero and is capped at target.
func (s *goalService) AddGoal(ctx context.Context, userID string, in NewGoal) (*models.SavingsGoal, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name is required")
	}
	target := in.Target.Round(2)
	if !target.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "target must be greater than zero")
	}
	if !models.AmountInRange(target) {
		return nil, errAmountTooLarge("target")
	}
	current := in.Current.Round(2)
	if current.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "current must not be negative")
	}
	if in.Deadline.IsZero() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "deadline is required")
	}

	goal := &models.SavingsGoal{
		UserID:   userID,
		Name:     name,
		Target:   target,
		Current:  decimal.Min(current, target),
		Deadline: truncateToDay(in.Deadline),
	}

	if err := s.db.WithContext(ctx).Create(goal).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return goal, nil
}

// ListGoals returns the user's goals, nearest deadline first.
func (s *goalService) ListGoals(ctx context.Context, userID string) ([]models.SavingsGoal, error) {
	goals := []models.SavingsGoal{}
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("deadline ASC").Order("created_at ASC").
		Find(&goals).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return goals, nil
}

// GetGoal returns a goal by ID if it belongs to the user.
func (s *goalService) GetGoal(ctx context.Context, userID, goalID string) (*models.SavingsGoal, error) {
	return s.getGoal(s.db.WithContext(ctx), userID, goalID)
}

func (s *goalService) getGoal(db *gorm.DB, userID, goalID string) (*models.SavingsGoal, error) {
	var goal models.SavingsGoal
	if err := db.Where("id = ? AND user_id = ?", goalID, userID).First(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGoalNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &goal, nil
}

// ContributeToGoal adds amount to the goal, capping the result at target.
// The cap is applied inside a single UPDATE so concurrent contributions
// cannot push current past target.
func (s *goalService) ContributeToGoal(ctx context.Context, userID, goalID string, amount decimal.Decimal) (*models.SavingsGoal, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "contribution must be greater than zero")
	}
	if !models.AmountInRange(amount) {
		return nil, errAmountTooLarge("amount")
	}

	db := s.db.WithContext(ctx)
	res := db.Model(&models.SavingsGoal{}).
		Where("id = ? AND user_id = ?", goalID, userID).
		Update("current_amount", gorm.Expr(
			"CASE WHEN current_amount + ? > target_amount THEN target_amount ELSE current_amount + ? END",
			amount, amount,
		))
	if res.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.ErrGoalNotFound
	}

	return s.getGoal(db, userID, goalID)
}

// UpdateGoal applies the non-nil fields of patch, keeping
// 0 <= current <= target. Shrinking target below current pulls current down
// with it. Returns false without writing when the patch is empty.
func (s *goalService) UpdateGoal(ctx context.Context, userID, goalID string, patch GoalPatch) (bool, error) {
	if patch.IsEmpty() {
		return false, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		goal, err := s.getGoal(tx.Clauses(clause.Locking{Strength: "UPDATE"}), userID, goalID)
		if err != nil {
			return err
		}

		updates := make(map[string]interface{})
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "name must not be empty")
			}
			updates["name"] = name
		}
		if patch.Deadline != nil {
			updates["deadline"] = truncateToDay(*patch.Deadline)
		}

		target, current := goal.Target, goal.Current
		if patch.Target != nil {
			target = patch.Target.Round(2)
			if !target.IsPositive() {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "target must be greater than zero")
			}
			if !models.AmountInRange(target) {
				return errAmountTooLarge("target")
			}
			updates["target_amount"] = target
		}
		if patch.Current != nil {
			current = patch.Current.Round(2)
			if current.IsNegative() {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "current must not be negative")
			}
		}
		if clamped := decimal.Min(current, target); patch.Current != nil || !clamped.Equal(goal.Current) {
			updates["current_amount"] = clamped
		}

		if err := tx.Model(goal).Updates(updates).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return false, appErr
		}
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return true, nil
}

// DeleteGoal soft-deletes a goal.
func (s *goalService) DeleteGoal(ctx context.Context, userID, goalID string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", goalID, userID).Delete(&models.SavingsGoal{})
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrGoalNotFound
	}
	return nil
}
