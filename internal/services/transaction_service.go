package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "moneyminder/internal/errors"
	"moneyminder/internal/metrics"
	"moneyminder/internal/models"
	"moneyminder/internal/pagination"
)

// transactionService records ledger entries and keeps the summary in step.
type transactionService struct {
	db             *gorm.DB
	summaryService SummaryServicer
	metrics        *metrics.Metrics
}

// NewTransactionService creates a new TransactionServicer. m may be nil.
func NewTransactionService(db *gorm.DB, summaryService SummaryServicer, m *metrics.Metrics) TransactionServicer {
	return &transactionService{
		db:             db,
		summaryService: summaryService,
		metrics:        m,
	}
}

// AddTransaction stores the entry and folds it into the summary in one
// database transaction, so readers never see one without the other.
func (s *transactionService) AddTransaction(ctx context.Context, userID string, in NewTransaction) (*models.Transaction, error) {
	amount := in.Amount.Round(2)
	if amount.IsZero() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must not be zero")
	}
	if !models.AmountInRange(amount) {
		return nil, errAmountTooLarge("amount")
	}
	description := strings.TrimSpace(in.Description)
	category := strings.TrimSpace(in.Category)
	if description == "" || category == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "description and category are required")
	}

	date := in.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	transaction := &models.Transaction{
		UserID:      userID,
		Date:        truncateToDay(date),
		Description: description,
		Amount:      amount,
		Category:    category,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(transaction).Error; err != nil {
			return err
		}
		return s.summaryService.ApplyTransaction(tx, userID, amount)
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	kind := "expense"
	if transaction.IsIncome() {
		kind = "income"
	}
	s.metrics.TransactionRecorded(kind)

	return transaction, nil
}

// ListTransactions returns a page of the user's ledger, newest date first.
func (s *transactionService) ListTransactions(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.Page[models.Transaction], error) {
	page.Defaults()

	base := s.db.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := base.Order("date DESC").Order("created_at DESC").Order("id DESC").
		Scopes(pagination.Paginate(page)).Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPage(transactions, page, totalItems)
	return &result, nil
}

func errAmountTooLarge(field string) *apperrors.AppError {
	return apperrors.WithMessage(apperrors.ErrInvalidInput, field+" must not exceed "+models.MaxAmount.StringFixed(2))
}

// truncateToDay drops the time of day, keeping the calendar date in UTC.
func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
