// Package dbtest opens a migrated throwaway SQLite database for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/Louie-KC/chat/internal/db"
	"gorm.io/gorm"
)

func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "chat.db") + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	gdb, err := db.Connect("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}
