package testutil

import (
	"errors"
	"testing"

	apperrors "moneyminder/internal/errors"

	"github.com/shopspring/decimal"
)

// AssertAppError fails unless err carries the AppError code want.
func AssertAppError(t *testing.T, err error, want string) {
	t.Helper()

	var appErr *apperrors.AppError
	switch {
	case err == nil:
		t.Fatalf("got nil, want %s", want)
	case !errors.As(err, &appErr):
		t.Fatalf("got %T (%v), want %s", err, err, want)
	case appErr.Code != want:
		t.Errorf("got %s (%q), want %s", appErr.Code, appErr.Message, want)
	}
}

func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertDecimal compares by value, so "70" matches "70.00".
func AssertDecimal(t *testing.T, field string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(D(want)) {
		t.Errorf("%s = %s, want %s", field, got, want)
	}
}
