// Package testutil holds the shared fixtures for MoneyMinder tests: a
// throwaway SQLite ledger, seeded users, and assertion helpers.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"moneyminder/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// schema mirrors the tables created by the SQL migrations.
var schema = []interface{}{
	&models.User{},
	&models.Transaction{},
	&models.SavingsGoal{},
	&models.FinancialSummary{},
	&models.AuditLog{},
}

var dbSeq atomic.Int64

// SetupTestDB returns a fresh in-memory database with the schema applied.
// A single connection serializes writers the way row locks do in Postgres.
// The database is closed automatically when the test ends.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:ledger%d?mode=memory&cache=shared", dbSeq.Add(1))), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("test database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(schema...); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

// TeardownTestDB closes db early. It is safe to call alongside the cleanup
// SetupTestDB registers.
func TeardownTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()

	sqlDB, err := db.DB()
	if err != nil {
		t.Errorf("test database handle: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		t.Errorf("close test database: %v", err)
	}
}

// CountRows returns how many live rows of model match the optional
// condition and args.
func CountRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()

	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}
