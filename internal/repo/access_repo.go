// Package repo implements the data persistence layer for the access-control
// tables and the usage ledger, backed by GORM. This file provides repository
// functions for grants, quotas, and denials.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. The one deliberate exception is
// DecrementQuota, whose conditional UPDATE is the serialization point that
// keeps two concurrent confirmations from spending the same quota unit.
//
// Error semantics:
//   - When a row is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Carelightt/pdftelegram/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer.
var ErrNotFound = gorm.ErrRecordNotFound

// GetGrant fetches the temporary grant row for chatID, expired or not.
// Expiry interpretation belongs to the service layer; this is raw storage.
func GetGrant(ctx context.Context, db *gorm.DB, chatID int64) (*domain.Grant, error) {
	var g domain.Grant
	if err := db.WithContext(ctx).Where("chat_id = ?", chatID).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// UpsertGrant inserts or replaces the grant for chatID with the given expiry.
func UpsertGrant(ctx context.Context, db *gorm.DB, chatID int64, expiresAt time.Time) error {
	g := domain.Grant{ChatID: chatID, ExpiresAt: expiresAt.UTC()}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"expires_at", "updated_at"}),
	}).Create(&g).Error
}

// DeleteGrant removes the grant row for chatID. Missing rows are not an error.
func DeleteGrant(ctx context.Context, db *gorm.DB, chatID int64) error {
	return db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&domain.Grant{}).Error
}

// PruneExpiredGrants deletes every grant whose expiry is at or before now and
// returns how many rows were removed. Called opportunistically on the read
// and write paths (lazy expiry).
func PruneExpiredGrants(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&domain.Grant{})
	return res.RowsAffected, res.Error
}

// GetQuota returns the remaining quota for chatID, or 0 if no row exists.
func GetQuota(ctx context.Context, db *gorm.DB, chatID int64) (int, error) {
	var q domain.Quota
	err := db.WithContext(ctx).Where("chat_id = ?", chatID).First(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return q.Remaining, nil
}

// SetQuota sets the remaining quota for chatID to an absolute value.
func SetQuota(ctx context.Context, db *gorm.DB, chatID int64, remaining int) error {
	q := domain.Quota{ChatID: chatID, Remaining: remaining}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"remaining", "updated_at"}),
	}).Create(&q).Error
}

// DecrementQuota atomically decrements the quota for chatID by one, but only
// when the remaining value is positive. It reports whether a unit was
// actually consumed. Concurrent callers cannot drive the value below zero:
// the guard lives in the UPDATE's WHERE clause, not in a read-then-write.
func DecrementQuota(ctx context.Context, db *gorm.DB, chatID int64) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Quota{}).
		Where("chat_id = ? AND remaining > 0", chatID).
		UpdateColumn("remaining", gorm.Expr("remaining - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// IsDenied reports whether chatID has a denial row.
func IsDenied(ctx context.Context, db *gorm.DB, chatID int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Denial{}).
		Where("chat_id = ?", chatID).
		Count(&n).Error
	return n > 0, err
}

// AddDenial inserts a denial row for chatID. Re-denying is a no-op.
func AddDenial(ctx context.Context, db *gorm.DB, chatID int64) error {
	d := domain.Denial{ChatID: chatID}
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&d).Error
}

// RemoveDenial deletes the denial row for chatID. Missing rows are not an error.
func RemoveDenial(ctx context.Context, db *gorm.DB, chatID int64) error {
	return db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&domain.Denial{}).Error
}
