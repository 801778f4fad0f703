// Package services – UsageService
//
// This file implements the UsageService, which keeps per-day, per-chat,
// per-document-type generation counters and a best-effort display-name cache
// for reporting. The "current day" is computed in a fixed reference time
// zone; a day rollover replaces the whole ledger rather than merging.
package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Carelightt/pdftelegram/internal/repo"
)

// UsageService records successful generations and renders usage reports.
type UsageService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Loc is the reference time zone the ledger day is computed in.
	Loc *time.Location
	// Now is the clock; overridable in tests.
	Now func() time.Time
}

// NewUsageService constructs a UsageService for the given reference zone.
func NewUsageService(db *gorm.DB, loc *time.Location) *UsageService {
	if loc == nil {
		loc = time.UTC
	}
	return &UsageService{DB: db, Loc: loc, Now: time.Now}
}

// Today returns the current ledger day as "2006-01-02" in the reference zone.
func (s *UsageService) Today() string {
	return s.Now().In(s.Loc).Format("2006-01-02")
}

// Record increments today's counter for (chatID, docType) and refreshes the
// cached display name. Name caching is best effort; its failure does not fail
// the record.
func (s *UsageService) Record(ctx context.Context, chatID int64, docType, chatName string) error {
	if err := repo.IncrementUsage(ctx, s.DB, s.Today(), chatID, docType); err != nil {
		return err
	}
	_ = repo.UpsertChatName(ctx, s.DB, chatID, strings.TrimSpace(chatName))
	return nil
}

// TodayForChat returns today's counters for one chat, keyed by document type.
func (s *UsageService) TodayForChat(ctx context.Context, chatID int64) (map[string]int, error) {
	return repo.ChatUsage(ctx, s.DB, s.Today(), chatID)
}

// ChatLine holds one chat's aggregated counters for the daily summary.
type ChatLine struct {
	ChatID int64
	Name   string
	Counts map[string]int
	Total  int
}

// TodaySummary aggregates today's ledger across all chats, resolving cached
// display names, ordered by chat ID.
func (s *UsageService) TodaySummary(ctx context.Context) ([]ChatLine, error) {
	rows, err := repo.DayUsage(ctx, s.DB, s.Today())
	if err != nil {
		return nil, err
	}

	byChat := make(map[int64]*ChatLine)
	ids := make([]int64, 0)
	for _, r := range rows {
		line, ok := byChat[r.ChatID]
		if !ok {
			line = &ChatLine{ChatID: r.ChatID, Counts: map[string]int{}}
			byChat[r.ChatID] = line
			ids = append(ids, r.ChatID)
		}
		line.Counts[r.DocType] += r.Count
		line.Total += r.Count
	}

	names, err := repo.ChatNames(ctx, s.DB, ids)
	if err == nil {
		for id, n := range names {
			if line, ok := byChat[id]; ok {
				line.Name = n
			}
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]ChatLine, 0, len(ids))
	for _, id := range ids {
		out = append(out, *byChat[id])
	}
	return out, nil
}

// FormatSummary renders the daily summary as a plain-text chat message.
func (s *UsageService) FormatSummary(lines []ChatLine) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Günlük rapor (%s)\n", s.Today())
	if len(lines) == 0 {
		b.WriteString("Bugün üretim yok.")
		return b.String()
	}
	grand := 0
	for _, l := range lines {
		label := l.Name
		if label == "" {
			label = fmt.Sprintf("chat %d", l.ChatID)
		}
		types := make([]string, 0, len(l.Counts))
		for dt := range l.Counts {
			types = append(types, dt)
		}
		sort.Strings(types)
		parts := make([]string, 0, len(types))
		for _, dt := range types {
			parts = append(parts, fmt.Sprintf("%s=%d", dt, l.Counts[dt]))
		}
		fmt.Fprintf(&b, "• %s: %s (toplam %d)\n", label, strings.Join(parts, ", "), l.Total)
		grand += l.Total
	}
	fmt.Fprintf(&b, "Genel toplam: %d", grand)
	return b.String()
}
