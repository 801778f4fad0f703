// Package domain defines the persistence models for access control and the
// daily usage ledger. These types are mapped with GORM and form the durable
// state of the bot: temporary grants, consumable quotas, the deny set, the
// per-day generation counters, and a best-effort chat display-name cache.
package domain

import (
	"time"
)

// Grant is a time-bounded access entry for a chat. A grant whose ExpiresAt
// lies in the past is logically absent; readers must re-check expiry and
// prune stale rows (lazy expiry, no background sweep).
//
// Fields:
//   - ChatID: Telegram chat identifier, primary key.
//   - ExpiresAt: absolute UTC expiry; never returned as valid once passed.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Grant struct {
	ChatID    int64     `json:"chat_id"    gorm:"primaryKey;autoIncrement:false"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Grant.
func (Grant) TableName() string { return "grants" }

// Quota is a consumable use counter for a chat. Remaining is decremented only
// after a confirmed successful document delivery, never below zero, and only
// for chats that hold neither allow-list nor valid temporary-grant status.
type Quota struct {
	ChatID    int64     `json:"chat_id"   gorm:"primaryKey;autoIncrement:false"`
	Remaining int       `json:"remaining" gorm:"not null;check:remaining >= 0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Quota.
func (Quota) TableName() string { return "quotas" }

// Denial blocks a chat unconditionally. Denial beats every other access
// source, including the static allow-list; it is the emergency shutoff.
// Operator grant actions remove the denial row, access checks never do.
type Denial struct {
	ChatID    int64     `json:"chat_id" gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Denial.
func (Denial) TableName() string { return "denials" }

// UsageCount is one cell of the daily usage ledger: how many documents of one
// type a chat generated on a given calendar day (day rendered in the ledger's
// reference time zone as "2006-01-02"). Rows for days other than the current
// one are purged on rollover; the ledger is replaced, not merged.
type UsageCount struct {
	Day       string    `json:"day"      gorm:"type:char(10);primaryKey"`
	ChatID    int64     `json:"chat_id"  gorm:"primaryKey;autoIncrement:false"`
	DocType   string    `json:"doc_type" gorm:"type:varchar(32);primaryKey"`
	Count     int       `json:"count"    gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for UsageCount.
func (UsageCount) TableName() string { return "usage_counts" }

// ChatName caches a display name per chat for reporting. Refreshed
// opportunistically whenever a generation succeeds; staleness is acceptable.
type ChatName struct {
	ChatID    int64     `json:"chat_id" gorm:"primaryKey;autoIncrement:false"`
	Name      string    `json:"name"    gorm:"type:varchar(255);not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for ChatName.
func (ChatName) TableName() string { return "chat_names" }
