package delivery

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type transientErr struct{ msg string }

func (e *transientErr) Error() string   { return e.msg }
func (e *transientErr) Transient() bool { return true }

type fakeSender struct {
	errs   []error // one per attempt; nil means success
	calls  int
	bodies []string
	chatID int64
	name   string
}

func (s *fakeSender) SendDocument(ctx context.Context, chatID int64, filename string, doc io.Reader, caption string) error {
	s.calls++
	s.chatID = chatID
	s.name = filename
	b, _ := io.ReadAll(doc)
	s.bodies = append(s.bodies, string(b))
	if s.calls <= len(s.errs) {
		return s.errs[s.calls-1]
	}
	return nil
}

func newTestPipeline(t *testing.T, sender Sender) (*Pipeline, *[]time.Duration) {
	t.Helper()
	p := NewPipeline(sender, zerolog.Nop(), t.TempDir(), 3, 2*time.Second)
	var pauses []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}
	return p, &pauses
}

func stagedFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	return len(entries)
}

func TestDeliver_FirstAttemptSucceeds(t *testing.T) {
	sender := &fakeSender{}
	p, pauses := newTestPipeline(t, sender)

	err := p.Deliver(context.Background(), 42, "ALI_VELI.pdf", []byte("%PDF doc"), "")
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if sender.calls != 1 || sender.chatID != 42 || sender.name != "ALI_VELI.pdf" {
		t.Fatalf("sender = %+v", sender)
	}
	if sender.bodies[0] != "%PDF doc" {
		t.Fatalf("body = %q", sender.bodies[0])
	}
	if len(*pauses) != 0 {
		t.Fatalf("pauses = %v; want none", *pauses)
	}
	if n := stagedFiles(t, p.Dir); n != 0 {
		t.Fatalf("staged files left behind: %d", n)
	}
}

func TestDeliver_TransientRetriedWithLinearBackoff(t *testing.T) {
	sender := &fakeSender{errs: []error{
		&transientErr{"timeout"},
		&transientErr{"timeout again"},
	}}
	p, pauses := newTestPipeline(t, sender)

	if err := p.Deliver(context.Background(), 1, "doc.pdf", []byte("x"), ""); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if sender.calls != 3 {
		t.Fatalf("calls = %d; want 3", sender.calls)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(*pauses) != len(want) || (*pauses)[0] != want[0] || (*pauses)[1] != want[1] {
		t.Fatalf("pauses = %v; want %v", *pauses, want)
	}
	// Every attempt reads the full document from the start.
	for i, b := range sender.bodies {
		if b != "x" {
			t.Errorf("attempt %d body = %q", i+1, b)
		}
	}
}

func TestDeliver_BudgetExhausted(t *testing.T) {
	sender := &fakeSender{errs: []error{
		&transientErr{"1"}, &transientErr{"2"}, &transientErr{"3"},
	}}
	p, _ := newTestPipeline(t, sender)

	err := p.Deliver(context.Background(), 1, "doc.pdf", []byte("x"), "")
	if err == nil {
		t.Fatalf("expected exhaustion error")
	}
	if sender.calls != 3 {
		t.Fatalf("calls = %d; want 3", sender.calls)
	}
	if n := stagedFiles(t, p.Dir); n != 0 {
		t.Fatalf("staged files left behind after failure: %d", n)
	}
}

func TestDeliver_NonTransientAbortsImmediately(t *testing.T) {
	fatal := errors.New("chat not found")
	sender := &fakeSender{errs: []error{fatal}}
	p, pauses := newTestPipeline(t, sender)

	err := p.Deliver(context.Background(), 1, "doc.pdf", []byte("x"), "")
	if !errors.Is(err, fatal) {
		t.Fatalf("err = %v; want %v", err, fatal)
	}
	if sender.calls != 1 {
		t.Fatalf("calls = %d; want 1", sender.calls)
	}
	if len(*pauses) != 0 {
		t.Fatalf("pauses = %v; want none", *pauses)
	}
	if n := stagedFiles(t, p.Dir); n != 0 {
		t.Fatalf("staged files left behind: %d", n)
	}
}

func TestDeliver_ContextCancelledDuringBackoff(t *testing.T) {
	sender := &fakeSender{errs: []error{&transientErr{"slow"}}}
	p, _ := newTestPipeline(t, sender)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	err := p.Deliver(context.Background(), 1, "doc.pdf", []byte("x"), "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
	if sender.calls != 1 {
		t.Fatalf("calls = %d; want 1", sender.calls)
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(&transientErr{"t"}) {
		t.Error("plain transient not recognized")
	}
	if !IsTransient(errorsJoinWrap(&transientErr{"t"})) {
		t.Error("wrapped transient not recognized")
	}
	if IsTransient(errors.New("plain")) {
		t.Error("plain error reported transient")
	}
	if IsTransient(nil) {
		t.Error("nil reported transient")
	}
}

func errorsJoinWrap(err error) error {
	return &wrapErr{err}
}

type wrapErr struct{ err error }

func (w *wrapErr) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapErr) Unwrap() error { return w.err }
