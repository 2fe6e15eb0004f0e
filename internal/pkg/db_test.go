package pkg

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/simp-lee/sitekit/internal/domain"
)

// openBuildsDB opens a file-backed SQLite database so every pooled
// connection sees the same tables.
func openBuildsDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "builds.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&domain.BuildRecord{}, &domain.BuildPage{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// seedBuilds inserts n records. Every third build failed and every other one
// was triggered by the watcher.
func seedBuilds(t *testing.T, db *gorm.DB, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		rec := domain.BuildRecord{
			BuildID:    fmt.Sprintf("build-%02d", i),
			Trigger:    domain.TriggerStartup,
			Status:     domain.BuildSucceeded,
			PageCount:  i,
			DurationMS: int64(100 * (n - i + 1)),
		}
		if i%2 == 0 {
			rec.Trigger = domain.TriggerWatch
		}
		if i%3 == 0 {
			rec.Status = domain.BuildFailed
			rec.Error = fmt.Sprintf("module %d: template parse error", i)
		}
		if err := db.Create(&rec).Error; err != nil {
			t.Fatalf("seed build %d: %v", i, err)
		}
	}
}

func countBuilds(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.BuildRecord{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
