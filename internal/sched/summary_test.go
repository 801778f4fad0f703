package sched

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Carelightt/pdftelegram/internal/repo"
	"github.com/Carelightt/pdftelegram/internal/services"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []string
}

func (s *recordingSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, text)
	return nil
}

func istanbul(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Istanbul")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return loc
}

func TestNextFire(t *testing.T) {
	loc := istanbul(t)
	s := NewSummary(nil, nil, 1, 23, loc, zerolog.Nop())

	// Before the hour: fires the same local day.
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, loc)
	fire := s.NextFire(now)
	want := time.Date(2026, 8, 31, 23, 0, 0, 0, loc)
	if !fire.Equal(want) {
		t.Fatalf("fire = %v; want %v", fire, want)
	}

	// At or past the hour: fires the next day.
	now = time.Date(2026, 8, 31, 23, 0, 0, 0, loc)
	fire = s.NextFire(now)
	want = time.Date(2026, 9, 1, 23, 0, 0, 0, loc)
	if !fire.Equal(want) {
		t.Fatalf("fire = %v; want %v", fire, want)
	}

	// UTC input still resolves against the ledger zone (UTC+3).
	now = time.Date(2026, 8, 31, 21, 30, 0, 0, time.UTC) // 00:30 next day in Istanbul
	fire = s.NextFire(now)
	want = time.Date(2026, 9, 1, 23, 0, 0, 0, loc)
	if !fire.Equal(want) {
		t.Fatalf("fire = %v; want %v", fire, want)
	}
}

func TestRun_PushesReport(t *testing.T) {
	loc := istanbul(t)
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "sched.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	usage := services.NewUsageService(db, loc)
	if err := usage.Record(context.Background(), -100, "fee", "Ops"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	sender := &recordingSender{}
	s := NewSummary(usage, sender, 99, 23, loc, zerolog.Nop())
	// Pin the clock one millisecond before the fire time so Run triggers
	// immediately.
	base := time.Date(2026, 8, 31, 22, 59, 59, 999000000, loc)
	s.now = func() time.Time { return base }

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		sender.mu.Lock()
		n := len(sender.msgs)
		sender.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no summary pushed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if !strings.Contains(sender.msgs[0], "Günlük rapor") {
		t.Fatalf("message = %q", sender.msgs[0])
	}
}

func TestRun_DisabledWithoutChat(t *testing.T) {
	s := NewSummary(nil, nil, 0, 23, time.UTC, zerolog.Nop())
	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return for disabled scheduler")
	}
}
