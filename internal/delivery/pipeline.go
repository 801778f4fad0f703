// Package delivery stages rendered documents on disk and pushes them to the
// chat transport with bounded retries. Staging through a temp file keeps the
// transport side restartable: every attempt re-reads the same bytes, and the
// file is removed no matter how the delivery ends.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sender transmits one staged document to a chat. Implementations signal
// retryable failures by returning errors that implement Transient() bool.
type Sender interface {
	SendDocument(ctx context.Context, chatID int64, filename string, doc io.Reader, caption string) error
}

// transienter is the marker retryable transport errors implement.
type transienter interface {
	Transient() bool
}

// IsTransient reports whether err (or anything it wraps) marks itself as a
// transient transport failure worth another attempt.
func IsTransient(err error) bool {
	var t transienter
	return errors.As(err, &t) && t.Transient()
}

// Pipeline delivers rendered documents. Zero values for Attempts and Backoff
// fall back to 3 attempts with a 2s base.
type Pipeline struct {
	Sender   Sender
	Logger   zerolog.Logger
	Dir      string
	Attempts int
	Backoff  time.Duration

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPipeline constructs a Pipeline staging files under dir (os.TempDir when
// empty).
func NewPipeline(sender Sender, logger zerolog.Logger, dir string, attempts int, backoff time.Duration) *Pipeline {
	if dir == "" {
		dir = os.TempDir()
	}
	if attempts <= 0 {
		attempts = 3
	}
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &Pipeline{
		Sender:   sender,
		Logger:   logger,
		Dir:      dir,
		Attempts: attempts,
		Backoff:  backoff,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Deliver stages data in a temp file and transmits it to chatID under
// filename. Transient transport failures are retried up to the attempt
// budget with a linearly growing pause (backoff, 2*backoff, ...); any other
// failure aborts immediately. The staged file is always removed; a removal
// failure is logged and swallowed, it never turns a delivered document into
// an error.
func (p *Pipeline) Deliver(ctx context.Context, chatID int64, filename string, data []byte, caption string) error {
	path := filepath.Join(p.Dir, uuid.NewString()+".pdf")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("stage document: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			p.Logger.Warn().Err(err).Str("path", path).Msg("staged document not removed")
		}
	}()

	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		lastErr = p.transmit(ctx, chatID, filename, path, caption)
		if lastErr == nil {
			if attempt > 1 {
				p.Logger.Info().Int64("chat_id", chatID).Int("attempt", attempt).Msg("document delivered after retry")
			}
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if attempt == p.Attempts {
			break
		}
		pause := time.Duration(attempt) * p.Backoff
		p.Logger.Warn().Err(lastErr).
			Int64("chat_id", chatID).
			Int("attempt", attempt).
			Dur("pause", pause).
			Msg("transient send failure, retrying")
		if err := p.sleep(ctx, pause); err != nil {
			return err
		}
	}
	return fmt.Errorf("delivery exhausted after %d attempts: %w", p.Attempts, lastErr)
}

func (p *Pipeline) transmit(ctx context.Context, chatID int64, filename, path, caption string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open staged document: %w", err)
	}
	defer f.Close()
	return p.Sender.SendDocument(ctx, chatID, filename, f, caption)
}
