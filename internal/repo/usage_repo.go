// Package repo implements the data persistence layer for the access-control
// tables and the usage ledger, backed by GORM. This file provides the daily
// usage ledger and the chat display-name cache.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Carelightt/pdftelegram/internal/domain"
)

// IncrementUsage bumps the counter for (day, chatID, docType) by one,
// creating the row on first use. Rows belonging to any other day are purged
// first, so a day rollover replaces the whole ledger rather than merging.
func IncrementUsage(ctx context.Context, db *gorm.DB, day string, chatID int64, docType string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("day <> ?", day).Delete(&domain.UsageCount{}).Error; err != nil {
			return err
		}
		u := domain.UsageCount{Day: day, ChatID: chatID, DocType: docType, Count: 1}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "day"}, {Name: "chat_id"}, {Name: "doc_type"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count":      gorm.Expr("count + 1"),
				"updated_at": time.Now().UTC(),
			}),
		}).Create(&u).Error
	})
}

// ChatUsage returns the counters for one chat on the given day, keyed by
// document type. Chats with no generations yield an empty map.
func ChatUsage(ctx context.Context, db *gorm.DB, day string, chatID int64) (map[string]int, error) {
	var rows []domain.UsageCount
	err := db.WithContext(ctx).
		Where("day = ? AND chat_id = ?", day, chatID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.DocType] = r.Count
	}
	return out, nil
}

// DayUsage returns every counter row for the given day, ordered by chat then
// document type, for the global daily summary.
func DayUsage(ctx context.Context, db *gorm.DB, day string) ([]domain.UsageCount, error) {
	var rows []domain.UsageCount
	err := db.WithContext(ctx).
		Where("day = ?", day).
		Order("chat_id, doc_type").
		Find(&rows).Error
	return rows, err
}

// UpsertChatName refreshes the cached display name for chatID. Best effort;
// callers may ignore the error.
func UpsertChatName(ctx context.Context, db *gorm.DB, chatID int64, name string) error {
	if name == "" {
		return nil
	}
	c := domain.ChatName{ChatID: chatID, Name: name}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(&c).Error
}

// ChatNames returns the display-name cache for the given chat IDs.
func ChatNames(ctx context.Context, db *gorm.DB, chatIDs []int64) (map[int64]string, error) {
	if len(chatIDs) == 0 {
		return map[int64]string{}, nil
	}
	var rows []domain.ChatName
	err := db.WithContext(ctx).Where("chat_id IN ?", chatIDs).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int64]string, len(rows))
	for _, r := range rows {
		out[r.ChatID] = r.Name
	}
	return out, nil
}
