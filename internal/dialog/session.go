package dialog

import (
	"context"
	"fmt"
	"time"

	"github.com/Carelightt/pdftelegram/internal/domain"
)

// Session is one in-flight step-by-step dialog: the fields collected so far
// and the index of the field currently being asked for. At most one session
// exists per (chat, document type); sessions for different document types in
// the same chat are independent.
type Session struct {
	ChatID   int64             `json:"chat_id"`
	DocCode  string            `json:"doc_code"`
	Step     int               `json:"step"`
	Fields   map[string]string `json:"fields"`
	Deadline time.Time         `json:"deadline"`
}

// Status classifies the result of feeding one message to the state machine.
type Status int

const (
	// StatusNone: no live session for this chat and document type.
	StatusNone Status = iota
	// StatusPrompt: input stored, the next field prompt should be sent.
	StatusPrompt
	// StatusComplete: all fields collected, generation should start.
	StatusComplete
	// StatusExpired: the session's deadline had passed; it was discarded
	// and the message was not consumed.
	StatusExpired
	// StatusIgnored: the message was a command and was not consumed as
	// field data; the session is unchanged.
	StatusIgnored
)

// Result is the outcome of Manager.Advance.
type Result struct {
	Status Status
	// Prompt is the next question when Status is StatusPrompt.
	Prompt string
	// Fields holds the completed raw field set when Status is StatusComplete.
	Fields map[string]string
}

// Manager drives the per-document-type dialogs over a session Store. It is
// not itself a serialization point: the dispatcher delivers one message at a
// time per chat, so session reads and writes for a given key never race.
type Manager struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
}

// NewManager constructs a Manager with the given session store and
// abandonment timeout.
func NewManager(store Store, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &Manager{store: store, timeout: timeout, now: time.Now}
}

func sessionKey(chatID int64, docCode string) string {
	return fmt.Sprintf("%d:%s", chatID, docCode)
}

// Begin starts (or restarts) the dialog for dt in chatID and returns the
// prompt for the first field. An existing session for the same document type
// is reset; its partial input is discarded.
func (m *Manager) Begin(ctx context.Context, chatID int64, dt domain.DocumentType) (string, error) {
	sess := &Session{
		ChatID:   chatID,
		DocCode:  dt.Code,
		Step:     0,
		Fields:   make(map[string]string, len(dt.Fields)),
		Deadline: m.now().Add(m.timeout),
	}
	if err := m.store.Put(ctx, sessionKey(chatID, dt.Code), sess); err != nil {
		return "", err
	}
	return dt.Fields[0].Prompt, nil
}

// Advance feeds one plain-text message to the live session for dt, if any.
//
//   - No session → StatusNone; the message belongs to someone else.
//   - Deadline passed → the session is discarded, StatusExpired.
//   - Message is a command → StatusIgnored; commands are never stored as
//     field data and the pending prompt stays pending.
//   - Otherwise the text is stored for the current field and the session
//     moves on: StatusPrompt with the next question, or StatusComplete with
//     the full field set once the last field is filled (the session is
//     destroyed before Complete is returned).
func (m *Manager) Advance(ctx context.Context, chatID int64, dt domain.DocumentType, text string) (Result, error) {
	key := sessionKey(chatID, dt.Code)
	sess, err := m.store.Get(ctx, key)
	if err != nil {
		return Result{}, err
	}
	if sess == nil {
		return Result{Status: StatusNone}, nil
	}

	if m.now().After(sess.Deadline) {
		if err := m.store.Delete(ctx, key); err != nil {
			return Result{}, err
		}
		return Result{Status: StatusExpired}, nil
	}

	if IsCommand(text) {
		return Result{Status: StatusIgnored}, nil
	}

	sess.Fields[dt.Fields[sess.Step].Name] = text
	sess.Step++

	if sess.Step >= len(dt.Fields) {
		if err := m.store.Delete(ctx, key); err != nil {
			return Result{}, err
		}
		return Result{Status: StatusComplete, Fields: sess.Fields}, nil
	}

	sess.Deadline = m.now().Add(m.timeout)
	if err := m.store.Put(ctx, key, sess); err != nil {
		return Result{}, err
	}
	return Result{Status: StatusPrompt, Prompt: dt.Fields[sess.Step].Prompt}, nil
}

// Cancel terminates the session for dt in chatID, if one exists, and reports
// whether there was one. Used both for the explicit cancel command and for
// mid-dialog access revocation, so a later grant cannot resurrect stale
// partial input.
func (m *Manager) Cancel(ctx context.Context, chatID int64, docCode string) (bool, error) {
	key := sessionKey(chatID, docCode)
	sess, err := m.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if sess == nil {
		return false, nil
	}
	return true, m.store.Delete(ctx, key)
}

// Active reports whether a live, unexpired session exists for dt in chatID.
// An expired session found on the way is discarded (lazy expiry).
func (m *Manager) Active(ctx context.Context, chatID int64, docCode string) (bool, error) {
	key := sessionKey(chatID, docCode)
	sess, err := m.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if sess == nil {
		return false, nil
	}
	if m.now().After(sess.Deadline) {
		return false, m.store.Delete(ctx, key)
	}
	return true, nil
}
