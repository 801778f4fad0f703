// Package sched runs the daily summary push: once a day, at a fixed local
// hour in the ledger's time zone, the per-chat production report is sent to
// the configured operator chat.
package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Carelightt/pdftelegram/internal/services"
)

// Sender is the outbound message surface the scheduler needs.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Summary pushes the daily usage report.
type Summary struct {
	Usage  *services.UsageService
	Sender Sender
	ChatID int64
	Hour   int
	Loc    *time.Location
	Logger zerolog.Logger

	now func() time.Time
}

// NewSummary constructs the scheduler. A zero chatID disables it: Run
// returns immediately.
func NewSummary(usage *services.UsageService, sender Sender, chatID int64, hour int, loc *time.Location, logger zerolog.Logger) *Summary {
	if hour < 0 || hour > 23 {
		hour = 23
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Summary{
		Usage:  usage,
		Sender: sender,
		ChatID: chatID,
		Hour:   hour,
		Loc:    loc,
		Logger: logger,
		now:    time.Now,
	}
}

// NextFire returns the first instant at the configured hour in the ledger
// zone that is strictly after now. The summary fires before the ledger rolls
// over, so it always reports the day it fires in.
func (s *Summary) NextFire(now time.Time) time.Time {
	local := now.In(s.Loc)
	fire := time.Date(local.Year(), local.Month(), local.Day(), s.Hour, 0, 0, 0, s.Loc)
	if !fire.After(now) {
		fire = fire.AddDate(0, 0, 1)
	}
	return fire
}

// Run sleeps until each day's fire time and pushes the report, until ctx is
// cancelled. Push failures are logged and the schedule continues.
func (s *Summary) Run(ctx context.Context) {
	if s.ChatID == 0 {
		return
	}
	for {
		next := s.NextFire(s.now())
		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.push(ctx)
	}
}

func (s *Summary) push(ctx context.Context) {
	lines, err := s.Usage.TodaySummary(ctx)
	if err != nil {
		s.Logger.Error().Err(err).Msg("summary query failed")
		return
	}
	if err := s.Sender.SendMessage(ctx, s.ChatID, s.Usage.FormatSummary(lines)); err != nil {
		s.Logger.Error().Err(err).Int64("chat_id", s.ChatID).Msg("summary push failed")
	}
}
