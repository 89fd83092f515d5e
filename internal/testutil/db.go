// Package testutil opens throwaway databases and seeds fixtures for tests.
package testutil

import (
	"path/filepath"
	"testing"

	"recaudo/internal/database"
	"recaudo/internal/model"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated SQLite database in a temp dir. A single connection makes
// transactions run one after another, which stands in for postgres row locks.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateUser inserts a staff member with the given role. The password hash is a placeholder.
func CreateUser(t *testing.T, db *gorm.DB, username, role string) *model.User {
	t.Helper()

	u := &model.User{
		Username: username,
		FullName: username,
		Email:    username + "@recaudo.test",
		Phone:    "3000000000",
		Password: "x",
		Role:     role,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}
