// Package services – AccessService
//
// This file implements the AccessService, the decision engine that gates every
// document request. Four access sources overlap: a static allow-list, a
// time-bounded grant table, a consumable quota table, and an explicit deny
// set. Checks evaluate them in strict precedence (deny, allow-list, grant,
// quota, reject) and exactly one outcome is produced per check.
//
// Two asymmetric rules are deliberate: a denial beats everything on the read
// path, including the allow-list, but an operator grant removes the denial on
// the write path (granting implies un-denying). Access checks never mutate the
// deny set themselves.
//
// All state lives in the injected *gorm.DB; every mutation is durable before
// the method returns. Expired grants are pruned lazily whenever the grant
// table is consulted, and the prune is persisted immediately.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Carelightt/pdftelegram/internal/repo"
)

// Outcome enumerates the mutually exclusive results of an access check.
type Outcome int

const (
	// OutcomeDenied: chat is on the deny set; hard override.
	OutcomeDenied Outcome = iota
	// OutcomeAllowListed: permanent unmetered access.
	OutcomeAllowListed
	// OutcomeGranted: valid (non-expired) temporary grant, unmetered.
	OutcomeGranted
	// OutcomeMetered: access via consumable quota; the caller must invoke
	// ConfirmUse after a successful delivery.
	OutcomeMetered
	// OutcomeNoAccess: no access source applies.
	OutcomeNoAccess
)

// Decision is the result of CheckAccess: the winning outcome plus the
// user-facing notice to send when access is not allowed.
type Decision struct {
	Outcome Outcome
	Notice  string
}

// Allowed reports whether the decision permits a generation.
func (d Decision) Allowed() bool {
	switch d.Outcome {
	case OutcomeAllowListed, OutcomeGranted, OutcomeMetered:
		return true
	}
	return false
}

// Metered reports whether a successful delivery must consume quota.
func (d Decision) Metered() bool { return d.Outcome == OutcomeMetered }

// User-facing notices for the two rejection outcomes.
const (
	noticeDenied   = "Hakkın kapalıdır. Destek için @CengizzAtay yazsın."
	noticeNoAccess = "Bu grubun kullanım hakkı bulunmuyor. Hak almak için @CengizzAtay yazsın."
)

// AccessRepo defines the repository contract required by AccessService.
type AccessRepo interface {
	IsDenied(ctx context.Context, db *gorm.DB, chatID int64) (bool, error)
	AddDenial(ctx context.Context, db *gorm.DB, chatID int64) error
	RemoveDenial(ctx context.Context, db *gorm.DB, chatID int64) error

	GetGrant(ctx context.Context, db *gorm.DB, chatID int64) (time.Time, error)
	UpsertGrant(ctx context.Context, db *gorm.DB, chatID int64, expiresAt time.Time) error
	DeleteGrant(ctx context.Context, db *gorm.DB, chatID int64) error
	PruneExpiredGrants(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)

	GetQuota(ctx context.Context, db *gorm.DB, chatID int64) (int, error)
	SetQuota(ctx context.Context, db *gorm.DB, chatID int64, remaining int) error
	DecrementQuota(ctx context.Context, db *gorm.DB, chatID int64) (bool, error)
}

// AccessService decides whether a chat may generate documents and applies
// operator mutations to the grant/quota/deny tables.
type AccessService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the access repository used by this service.
	Repo AccessRepo

	// AllowList holds chats with permanent unmetered access. Loaded once at
	// startup from configuration; never mutated at runtime.
	AllowList map[int64]struct{}

	// MaxGrantDays clamps temporary grant durations.
	MaxGrantDays int

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

// NewAccessService constructs an AccessService with the given allow-list.
func NewAccessService(db *gorm.DB, r AccessRepo, allowed []int64, maxGrantDays int) *AccessService {
	al := make(map[int64]struct{}, len(allowed))
	for _, id := range allowed {
		al[id] = struct{}{}
	}
	if maxGrantDays < 1 {
		maxGrantDays = 30
	}
	return &AccessService{
		DB:           db,
		Repo:         r,
		AllowList:    al,
		MaxGrantDays: maxGrantDays,
		Now:          time.Now,
	}
}

// CheckAccess evaluates the access sources for chatID in precedence order and
// returns exactly one Decision. It never mutates the deny set; it does prune
// expired grants it encounters, persisting the removal.
func (s *AccessService) CheckAccess(ctx context.Context, chatID int64) (Decision, error) {
	tr := otel.Tracer("services/AccessService")
	ctx, span := tr.Start(ctx, "CheckAccess",
		trace.WithAttributes(attribute.Int64("chat.id", chatID)),
	)
	defer span.End()

	denied, err := s.Repo.IsDenied(ctx, s.DB, chatID)
	if err != nil {
		return Decision{}, err
	}
	if denied {
		return Decision{Outcome: OutcomeDenied, Notice: noticeDenied}, nil
	}

	if _, ok := s.AllowList[chatID]; ok {
		return Decision{Outcome: OutcomeAllowListed}, nil
	}

	ok, err := s.hasValidGrant(ctx, chatID)
	if err != nil {
		return Decision{}, err
	}
	if ok {
		return Decision{Outcome: OutcomeGranted}, nil
	}

	remaining, err := s.Repo.GetQuota(ctx, s.DB, chatID)
	if err != nil {
		return Decision{}, err
	}
	if remaining > 0 {
		return Decision{Outcome: OutcomeMetered}, nil
	}

	return Decision{Outcome: OutcomeNoAccess, Notice: noticeNoAccess}, nil
}

// ConfirmUse consumes one quota unit for chatID after a successful delivery.
// It re-checks the unmetered sources at call time: a chat that became
// allow-listed or granted between the check and the confirmation is not
// metered. The decrement floors at zero and is a no-op when nothing remains.
func (s *AccessService) ConfirmUse(ctx context.Context, chatID int64) error {
	tr := otel.Tracer("services/AccessService")
	ctx, span := tr.Start(ctx, "ConfirmUse",
		trace.WithAttributes(attribute.Int64("chat.id", chatID)),
	)
	defer span.End()

	if _, ok := s.AllowList[chatID]; ok {
		return nil
	}
	ok, err := s.hasValidGrant(ctx, chatID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	_, err = s.Repo.DecrementQuota(ctx, s.DB, chatID)
	return err
}

// GrantTemporary gives chatID unmetered access for the given number of days,
// clamped to MaxGrantDays, and clears any denial in the same transaction.
func (s *AccessService) GrantTemporary(ctx context.Context, chatID int64, days int) (time.Time, error) {
	if days < 1 {
		return time.Time{}, ErrInvalidDuration
	}
	if days > s.MaxGrantDays {
		days = s.MaxGrantDays
	}
	expiresAt := s.Now().UTC().Add(time.Duration(days) * 24 * time.Hour)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.Repo.UpsertGrant(ctx, tx, chatID, expiresAt); err != nil {
			return err
		}
		return s.Repo.RemoveDenial(ctx, tx, chatID)
	})
	if err != nil {
		return time.Time{}, err
	}
	return expiresAt, nil
}

// GrantQuota sets the consumable quota for chatID to an absolute amount and
// clears any denial in the same transaction.
func (s *AccessService) GrantQuota(ctx context.Context, chatID int64, amount int) error {
	if amount < 0 {
		return ErrInvalidQuota
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.Repo.SetQuota(ctx, tx, chatID, amount); err != nil {
			return err
		}
		return s.Repo.RemoveDenial(ctx, tx, chatID)
	})
}

// Revoke removes any temporary grant and adds chatID to the deny set,
// superseding every other access source until an operator grants again.
func (s *AccessService) Revoke(ctx context.Context, chatID int64) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.Repo.DeleteGrant(ctx, tx, chatID); err != nil {
			return err
		}
		return s.Repo.AddDenial(ctx, tx, chatID)
	})
}

// RemainingQuota reports the quota left for chatID (0 when no row exists).
func (s *AccessService) RemainingQuota(ctx context.Context, chatID int64) (int, error) {
	return s.Repo.GetQuota(ctx, s.DB, chatID)
}

// hasValidGrant prunes expired rows, then reports whether a grant exists whose
// expiry is still in the future. Expiry is re-checked on the fetched row even
// though the prune just ran, so a row aging out between the two statements is
// never reported as valid.
func (s *AccessService) hasValidGrant(ctx context.Context, chatID int64) (bool, error) {
	now := s.Now().UTC()
	if _, err := s.Repo.PruneExpiredGrants(ctx, s.DB, now); err != nil {
		return false, err
	}
	expiresAt, err := s.Repo.GetGrant(ctx, s.DB, chatID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return expiresAt.After(now), nil
}
