package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Carelightt/pdftelegram/internal/domain"
)

func newAccessRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("access_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := db.AutoMigrate(&domain.Grant{}, &domain.Quota{}, &domain.Denial{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestUpsertGrant_InsertThenReplace(t *testing.T) {
	db := newAccessRepoDB(t)
	ctx := context.Background()

	first := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
	if err := UpsertGrant(ctx, db, 42, first); err != nil {
		t.Fatalf("UpsertGrant insert: %v", err)
	}
	second := first.Add(48 * time.Hour)
	if err := UpsertGrant(ctx, db, 42, second); err != nil {
		t.Fatalf("UpsertGrant replace: %v", err)
	}

	g, err := GetGrant(ctx, db, 42)
	if err != nil {
		t.Fatalf("GetGrant: %v", err)
	}
	if !g.ExpiresAt.Equal(second) {
		t.Fatalf("ExpiresAt = %v; want %v", g.ExpiresAt, second)
	}
}

func TestGetGrant_NotFound(t *testing.T) {
	db := newAccessRepoDB(t)
	if _, err := GetGrant(context.Background(), db, 1); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPruneExpiredGrants_RemovesOnlyStale(t *testing.T) {
	db := newAccessRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := UpsertGrant(ctx, db, 1, now.Add(-time.Second)); err != nil {
		t.Fatalf("UpsertGrant stale: %v", err)
	}
	if err := UpsertGrant(ctx, db, 2, now.Add(time.Hour)); err != nil {
		t.Fatalf("UpsertGrant live: %v", err)
	}

	n, err := PruneExpiredGrants(ctx, db, now)
	if err != nil {
		t.Fatalf("PruneExpiredGrants: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned %d rows; want 1", n)
	}
	if _, err := GetGrant(ctx, db, 1); err != ErrNotFound {
		t.Fatalf("stale grant should be gone, got err=%v", err)
	}
	if _, err := GetGrant(ctx, db, 2); err != nil {
		t.Fatalf("live grant should remain: %v", err)
	}
}

func TestDecrementQuota_StopsAtZero(t *testing.T) {
	db := newAccessRepoDB(t)
	ctx := context.Background()

	if err := SetQuota(ctx, db, 7, 2); err != nil {
		t.Fatalf("SetQuota: %v", err)
	}

	for i := 0; i < 2; i++ {
		ok, err := DecrementQuota(ctx, db, 7)
		if err != nil || !ok {
			t.Fatalf("decrement %d: ok=%v err=%v", i, ok, err)
		}
	}

	// Third and fourth attempts must not consume anything.
	for i := 0; i < 2; i++ {
		ok, err := DecrementQuota(ctx, db, 7)
		if err != nil {
			t.Fatalf("decrement at zero: %v", err)
		}
		if ok {
			t.Fatalf("decrement at zero reported consumption")
		}
	}

	left, err := GetQuota(ctx, db, 7)
	if err != nil {
		t.Fatalf("GetQuota: %v", err)
	}
	if left != 0 {
		t.Fatalf("remaining = %d; want 0", left)
	}
}

func TestDecrementQuota_NoRow(t *testing.T) {
	db := newAccessRepoDB(t)
	ok, err := DecrementQuota(context.Background(), db, 999)
	if err != nil {
		t.Fatalf("DecrementQuota: %v", err)
	}
	if ok {
		t.Fatalf("consumed quota from a missing row")
	}
}

func TestSetQuota_AbsoluteNotAdditive(t *testing.T) {
	db := newAccessRepoDB(t)
	ctx := context.Background()

	if err := SetQuota(ctx, db, 3, 5); err != nil {
		t.Fatalf("SetQuota: %v", err)
	}
	if err := SetQuota(ctx, db, 3, 2); err != nil {
		t.Fatalf("SetQuota overwrite: %v", err)
	}
	left, err := GetQuota(ctx, db, 3)
	if err != nil {
		t.Fatalf("GetQuota: %v", err)
	}
	if left != 2 {
		t.Fatalf("remaining = %d; want 2", left)
	}
}

func TestDenials_AddRemoveIdempotent(t *testing.T) {
	db := newAccessRepoDB(t)
	ctx := context.Background()

	if err := AddDenial(ctx, db, 5); err != nil {
		t.Fatalf("AddDenial: %v", err)
	}
	if err := AddDenial(ctx, db, 5); err != nil {
		t.Fatalf("AddDenial twice: %v", err)
	}
	denied, err := IsDenied(ctx, db, 5)
	if err != nil || !denied {
		t.Fatalf("IsDenied = %v, %v; want true", denied, err)
	}

	if err := RemoveDenial(ctx, db, 5); err != nil {
		t.Fatalf("RemoveDenial: %v", err)
	}
	if err := RemoveDenial(ctx, db, 5); err != nil {
		t.Fatalf("RemoveDenial twice: %v", err)
	}
	denied, err = IsDenied(ctx, db, 5)
	if err != nil || denied {
		t.Fatalf("IsDenied after removal = %v, %v; want false", denied, err)
	}
}
