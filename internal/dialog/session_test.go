package dialog

import (
	"context"
	"testing"
	"time"
)

func newTestManager(t *testing.T) (*Manager, *time.Time) {
	t.Helper()
	store, err := NewStore(StoreTypeMemory)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	m := NewManager(store, 3*time.Minute)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestManager_StepOrderThroughComplete(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	prompt, err := m.Begin(ctx, 1, feeType)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if prompt != feeType.Fields[0].Prompt {
		t.Fatalf("first prompt = %q", prompt)
	}

	res, err := m.Advance(ctx, 1, feeType, "12345")
	if err != nil || res.Status != StatusPrompt {
		t.Fatalf("step 1: %+v err=%v", res, err)
	}
	if res.Prompt != feeType.Fields[1].Prompt {
		t.Fatalf("step 1 prompt = %q", res.Prompt)
	}

	res, err = m.Advance(ctx, 1, feeType, "Ali")
	if err != nil || res.Status != StatusPrompt {
		t.Fatalf("step 2: %+v err=%v", res, err)
	}

	res, err = m.Advance(ctx, 1, feeType, "Veli")
	if err != nil {
		t.Fatalf("step 3: %v", err)
	}
	if res.Status != StatusComplete {
		t.Fatalf("status = %v; want StatusComplete", res.Status)
	}
	want := map[string]string{"tc": "12345", "ad": "Ali", "soyad": "Veli"}
	for k, v := range want {
		if res.Fields[k] != v {
			t.Errorf("fields[%q] = %q; want %q", k, res.Fields[k], v)
		}
	}

	// Session is destroyed on completion.
	res, err = m.Advance(ctx, 1, feeType, "more")
	if err != nil || res.Status != StatusNone {
		t.Fatalf("after complete: %+v err=%v", res, err)
	}
}

func TestManager_CommandNotConsumedAsField(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Begin(ctx, 1, feeType); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := m.Advance(ctx, 1, feeType, "12345"); err != nil {
		t.Fatalf("step 1: %v", err)
	}

	res, err := m.Advance(ctx, 1, feeType, "/whereami")
	if err != nil {
		t.Fatalf("command advance: %v", err)
	}
	if res.Status != StatusIgnored {
		t.Fatalf("status = %v; want StatusIgnored", res.Status)
	}

	// The dialog still expects the name, not the surname.
	res, err = m.Advance(ctx, 1, feeType, "Ali")
	if err != nil || res.Status != StatusPrompt {
		t.Fatalf("after command: %+v err=%v", res, err)
	}
	if res.Prompt != feeType.Fields[2].Prompt {
		t.Fatalf("prompt = %q; want surname prompt", res.Prompt)
	}
}

func TestManager_DeadlineExpiresLazily(t *testing.T) {
	m, now := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Begin(ctx, 1, feeType); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	*now = now.Add(4 * time.Minute)

	res, err := m.Advance(ctx, 1, feeType, "12345")
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if res.Status != StatusExpired {
		t.Fatalf("status = %v; want StatusExpired", res.Status)
	}

	// The discarded session leaves no trace; the next message sees none.
	res, err = m.Advance(ctx, 1, feeType, "12345")
	if err != nil || res.Status != StatusNone {
		t.Fatalf("after expiry: %+v err=%v", res, err)
	}
}

func TestManager_CancelTerminates(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Begin(ctx, 1, feeType); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	had, err := m.Cancel(ctx, 1, feeType.Code)
	if err != nil || !had {
		t.Fatalf("Cancel = %v, %v; want true", had, err)
	}
	had, err = m.Cancel(ctx, 1, feeType.Code)
	if err != nil || had {
		t.Fatalf("second Cancel = %v, %v; want false", had, err)
	}
}

func TestManager_TypesAreIndependent(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Begin(ctx, 1, feeType); err != nil {
		t.Fatalf("Begin fee: %v", err)
	}
	if _, err := m.Begin(ctx, 1, receiptType); err != nil {
		t.Fatalf("Begin receipt: %v", err)
	}

	if _, err := m.Advance(ctx, 1, feeType, "111"); err != nil {
		t.Fatalf("fee step: %v", err)
	}

	// The receipt dialog is still on its first field.
	res, err := m.Advance(ctx, 1, receiptType, "222")
	if err != nil || res.Status != StatusPrompt {
		t.Fatalf("receipt step: %+v err=%v", res, err)
	}
	if res.Prompt != receiptType.Fields[1].Prompt {
		t.Fatalf("receipt prompt = %q", res.Prompt)
	}
}

func TestManager_ReentryResets(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Begin(ctx, 1, feeType); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := m.Advance(ctx, 1, feeType, "12345"); err != nil {
		t.Fatalf("step: %v", err)
	}

	// Re-entering restarts at the first field with partial input dropped.
	prompt, err := m.Begin(ctx, 1, feeType)
	if err != nil {
		t.Fatalf("re-Begin: %v", err)
	}
	if prompt != feeType.Fields[0].Prompt {
		t.Fatalf("prompt = %q; want first field prompt", prompt)
	}

	res, err := m.Advance(ctx, 1, feeType, "999")
	if err != nil || res.Status != StatusPrompt {
		t.Fatalf("after reset: %+v err=%v", res, err)
	}
	if res.Prompt != feeType.Fields[1].Prompt {
		t.Fatalf("prompt = %q; want second field prompt", res.Prompt)
	}
}

func TestNewStore_UnknownType(t *testing.T) {
	if _, err := NewStore(StoreType("bolt")); err != ErrInvalidStoreType {
		t.Fatalf("expected ErrInvalidStoreType, got %v", err)
	}
}

func TestNewStore_RedisRequiresClient(t *testing.T) {
	if _, err := NewStore(StoreTypeRedis); err != ErrInvalidConfig {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
