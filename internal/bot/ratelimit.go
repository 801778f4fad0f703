package bot

import (
	"context"
	"io"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// chatBucket holds one chat's token bucket and the last time it was used,
// so idle buckets can be evicted.
type chatBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// SendLimiter paces outbound sends per chat with token buckets. The Bot API
// throttles per-chat traffic; pacing here keeps bursts of prompts and
// documents from tripping server-side rate limits. Buckets are created on
// demand and evicted opportunistically after sitting idle.
//
// Safe for concurrent use.
type SendLimiter struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[int64]*chatBucket

	ttl      time.Duration
	cleanupN uint64
}

// NewSendLimiter constructs a SendLimiter with the given per-chat
// tokens-per-second and burst size.
func NewSendLimiter(rps float64, burst int) *SendLimiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &SendLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		buckets: make(map[int64]*chatBucket),
		ttl:     10 * time.Minute,
	}
}

// Wait blocks until chatID may send again or ctx is cancelled.
func (l *SendLimiter) Wait(ctx context.Context, chatID int64) error {
	return l.bucket(chatID).Wait(ctx)
}

func (l *SendLimiter) bucket(chatID int64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.cleanupN++
	if l.cleanupN%256 == 0 {
		for id, b := range l.buckets {
			if now.Sub(b.lastSeen) > l.ttl {
				delete(l.buckets, id)
			}
		}
	}

	b, ok := l.buckets[chatID]
	if !ok {
		b = &chatBucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[chatID] = b
	}
	b.lastSeen = now
	return b.limiter
}

// limitedTransport decorates a Transport so every outbound send first takes a
// token from the per-chat bucket. Reads (GetUpdates) are not limited.
type limitedTransport struct {
	Transport
	limiter *SendLimiter
}

// NewLimitedTransport wraps t so outbound sends are paced by l.
func NewLimitedTransport(t Transport, l *SendLimiter) Transport {
	return &limitedTransport{Transport: t, limiter: l}
}

func (t *limitedTransport) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := t.limiter.Wait(ctx, chatID); err != nil {
		return err
	}
	return t.Transport.SendMessage(ctx, chatID, text)
}

func (t *limitedTransport) SendDocument(ctx context.Context, chatID int64, filename string, doc io.Reader, caption string) error {
	if err := t.limiter.Wait(ctx, chatID); err != nil {
		return err
	}
	return t.Transport.SendDocument(ctx, chatID, filename, doc, caption)
}
