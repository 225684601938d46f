// Package repotest provides an in-memory canonical store for tests.
package repotest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"returns-reconciliation-service/internal/repository"
)

// NewDB opens a fresh in-memory SQLite database with the canonical schema.
// The pool is pinned to one connection because every new SQLite memory connection is a new,
// empty database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database; one connection also means
	// transactions never overlap here
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, repository.AutoMigrate(db))
	return db
}

// NewStore returns a canonical store over NewDB.
func NewStore(t *testing.T) *repository.Store {
	return repository.NewStore(NewDB(t))
}
