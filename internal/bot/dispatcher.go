// Package bot consumes chat transport updates and drives the document
// workflows: command routing, step-by-step field dialogs, access control,
// rendering, and delivery. Messages from one chat are processed strictly in
// arrival order by a dedicated worker; different chats proceed in parallel.
package bot

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Carelightt/pdftelegram/internal/metrics"
	"github.com/Carelightt/pdftelegram/internal/telegram"
)

// Transport is the chat-platform surface the dispatcher and handler need.
// *telegram.Client implements it.
type Transport interface {
	GetUpdates(ctx context.Context, offset int64) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, filename string, doc io.Reader, caption string) error
}

// chatQueueDepth bounds how many messages a single chat may have waiting.
// A full queue drops the newest message rather than stalling other chats.
const chatQueueDepth = 16

// workerIdleTimeout is how long a chat worker lingers with an empty queue
// before it is reaped.
const workerIdleTimeout = 10 * time.Minute

// Dispatcher long-polls the transport and fans messages out to per-chat
// workers. Per-chat ordering is what makes the dialog layer race-free: a
// chat's session is only ever touched by its own worker.
type Dispatcher struct {
	transport Transport
	handler   *Handler
	logger    zerolog.Logger

	mu      sync.Mutex
	queues  map[int64]chan telegram.Message
	wg      sync.WaitGroup
	stopped bool
}

// NewDispatcher wires a Dispatcher. Outbound sends made by handler must go
// through the same (rate-limited) transport.
func NewDispatcher(transport Transport, handler *Handler, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		handler:   handler,
		logger:    logger,
		queues:    make(map[int64]chan telegram.Message),
	}
}

// Run polls for updates until ctx is cancelled, then drains the workers.
// Poll errors are logged and retried; they never terminate the loop.
func (d *Dispatcher) Run(ctx context.Context) {
	var offset int64
	for {
		select {
		case <-ctx.Done():
			d.shutdown()
			return
		default:
		}

		updates, err := d.transport.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				d.shutdown()
				return
			}
			d.logger.Warn().Err(err).Msg("poll failed")
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Message == nil || u.Message.Text == "" {
				continue
			}
			d.enqueue(ctx, *u.Message)
		}
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, msg telegram.Message) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	q, ok := d.queues[msg.Chat.ID]
	if !ok {
		q = make(chan telegram.Message, chatQueueDepth)
		d.queues[msg.Chat.ID] = q
		d.wg.Add(1)
		go d.worker(ctx, msg.Chat.ID, q)
	}

	// The buffered send happens under the lock so an idle worker cannot reap
	// the queue between lookup and send.
	select {
	case q <- msg:
	default:
		d.logger.Warn().Int64("chat_id", msg.Chat.ID).Msg("chat queue full, message dropped")
	}
	d.mu.Unlock()
}

func (d *Dispatcher) worker(ctx context.Context, chatID int64, q chan telegram.Message) {
	defer d.wg.Done()
	idle := time.NewTimer(workerIdleTimeout)
	defer idle.Stop()
	for {
		select {
		case msg, ok := <-q:
			if !ok {
				return
			}
			d.process(ctx, chatID, msg)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(workerIdleTimeout)
		case <-idle.C:
			if d.reap(chatID, q) {
				return
			}
			idle.Reset(workerIdleTimeout)
		}
	}
}

// reap removes this worker's queue if it is still empty; enqueue holds the
// same lock, so no message can slip into a reaped queue.
func (d *Dispatcher) reap(chatID int64, q chan telegram.Message) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(q) > 0 {
		return false
	}
	delete(d.queues, chatID)
	return true
}

// process runs one message through the handler with panic containment: a
// fault in one message must not take down the chat's worker.
func (d *Dispatcher) process(ctx context.Context, chatID int64, msg telegram.Message) {
	metrics.UpdatesInflight.Inc()
	defer metrics.UpdatesInflight.Dec()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Interface("panic", r).
				Int64("chat_id", chatID).
				Msg("handler panicked")
		}
	}()
	d.handler.Handle(ctx, msg)
}

func (d *Dispatcher) shutdown() {
	d.mu.Lock()
	d.stopped = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
