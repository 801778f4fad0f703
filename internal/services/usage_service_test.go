package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Carelightt/pdftelegram/internal/domain"
)

func newUsageDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("usage_svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.UsageCount{}, &domain.ChatName{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func fixedClock(day time.Time) func() time.Time {
	return func() time.Time { return day }
}

func TestUsageService_RecordAndTodayForChat(t *testing.T) {
	db := newUsageDB(t)
	s := NewUsageService(db, time.UTC)
	s.Now = fixedClock(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if err := s.Record(ctx, 10, "fee", "Ops Group"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record(ctx, 10, "fee", "Ops Group"); err != nil {
		t.Fatalf("Record second: %v", err)
	}

	counts, err := s.TodayForChat(ctx, 10)
	if err != nil {
		t.Fatalf("TodayForChat: %v", err)
	}
	if counts["fee"] != 2 {
		t.Fatalf("counts = %v; want fee=2", counts)
	}
}

func TestUsageService_DayComputedInReferenceZone(t *testing.T) {
	db := newUsageDB(t)
	loc := time.FixedZone("ref", 3*3600)
	s := NewUsageService(db, loc)
	// 22:30 UTC is already the next day at UTC+3.
	s.Now = fixedClock(time.Date(2026, 8, 30, 22, 30, 0, 0, time.UTC))

	if got, want := s.Today(), "2026-08-31"; got != want {
		t.Fatalf("Today() = %q; want %q", got, want)
	}
}

func TestUsageService_SummaryAggregatesAndNames(t *testing.T) {
	db := newUsageDB(t)
	s := NewUsageService(db, time.UTC)
	s.Now = fixedClock(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if err := s.Record(ctx, 1, "fee", "Alpha"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record(ctx, 1, "receipt", "Alpha"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record(ctx, 2, "fee", ""); err != nil {
		t.Fatalf("Record: %v", err)
	}

	lines, err := s.TodaySummary(ctx)
	if err != nil {
		t.Fatalf("TodaySummary: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines; want 2", len(lines))
	}
	if lines[0].ChatID != 1 || lines[0].Total != 2 || lines[0].Name != "Alpha" {
		t.Fatalf("line 0 = %+v", lines[0])
	}
	if lines[1].ChatID != 2 || lines[1].Total != 1 || lines[1].Name != "" {
		t.Fatalf("line 1 = %+v", lines[1])
	}

	text := s.FormatSummary(lines)
	if !strings.Contains(text, "Alpha") || !strings.Contains(text, "chat 2") {
		t.Fatalf("summary text missing entries:\n%s", text)
	}
	if !strings.Contains(text, "Genel toplam: 3") {
		t.Fatalf("summary text missing grand total:\n%s", text)
	}
}

func TestUsageService_EmptySummary(t *testing.T) {
	db := newUsageDB(t)
	s := NewUsageService(db, time.UTC)

	lines, err := s.TodaySummary(context.Background())
	if err != nil {
		t.Fatalf("TodaySummary: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected no lines, got %d", len(lines))
	}
	if text := s.FormatSummary(lines); !strings.Contains(text, "üretim yok") {
		t.Fatalf("empty summary text = %q", text)
	}
}
