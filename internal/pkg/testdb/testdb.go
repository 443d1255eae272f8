// Package testdb opens migrated in-memory databases for tests.
package testdb

import (
	"testing"

	"github.com/weplay-app/weplay-backend/internal/pkg/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Open(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	// every pooled connection would get its own empty in-memory database
	sqlDb, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDb.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDb.Close() })

	if err := model.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}
	return db
}
