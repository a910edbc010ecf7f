package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ltg-uic/beaconsync/internal/bus"
	"github.com/ltg-uic/beaconsync/internal/testutil"
	"github.com/ltg-uic/beaconsync/internal/types"
)

type busCall struct {
	Kind        string
	Topic       string
	Payload     any
	RequestName string
}

// fakeBus records every publish and signals each call on a channel so tests
// can wait without sleeping.
type fakeBus struct {
	mu    sync.Mutex
	calls []busCall
	seen  chan busCall
	fail  bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{seen: make(chan busCall, 64)}
}

func (f *fakeBus) record(call busCall) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	f.seen <- call
	if f.fail {
		return errors.New("broker unavailable")
	}
	return nil
}

func (f *fakeBus) Publish(ctx context.Context, topic string, payload any) error {
	return f.record(busCall{Kind: "publish", Topic: topic, Payload: payload})
}

func (f *fakeBus) AsyncRequest(ctx context.Context, topic string, payload any, requestName string) error {
	return f.record(busCall{Kind: "request", Topic: topic, Payload: payload, RequestName: requestName})
}

func (f *fakeBus) StartForwarder(ctx context.Context, onMsg func(m bus.Message)) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeBus) Close() error { return nil }

func (f *fakeBus) wait(tb testing.TB) busCall {
	tb.Helper()
	select {
	case call := <-f.seen:
		return call
	case <-time.After(2 * time.Second):
		tb.Fatalf("timed out waiting for bus call")
		return busCall{}
	}
}

func startDispatcher(tb testing.TB, d *Dispatcher) {
	tb.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()
	tb.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestDispatcherPreservesOrder(t *testing.T) {
	fake := newFakeBus()
	d := NewDispatcher(testutil.Logger(t), fake)

	d.QueryCurrentRun()
	d.ForceSync(2)
	d.QueryAllNotesForGroup(1)
	startDispatcher(t, d)

	first := fake.wait(t)
	second := fake.wait(t)
	third := fake.wait(t)

	if first.Topic != bus.ChannelGetCurrentRun {
		t.Fatalf("expected current-run first, got %q", first.Topic)
	}
	if second.Topic != bus.TopicForceSync || second.Kind != "publish" {
		t.Fatalf("expected forceSync publish second, got %+v", second)
	}
	if third.Topic != bus.ChannelAllNotesWithGroup {
		t.Fatalf("expected group query third, got %q", third.Topic)
	}
}

func TestDispatcherScheduleSaveWrapsHeader(t *testing.T) {
	fake := newFakeBus()
	d := NewDispatcher(testutil.Logger(t), fake)
	startDispatcher(t, d)

	note := types.NotePayload{ID: "srv-1", GroupIndex: 1}
	d.ScheduleSave(3, 1, note)

	call := fake.wait(t)
	if call.Topic != bus.TopicSaveNote || call.RequestName != "save_note" {
		t.Fatalf("unexpected call: %+v", call)
	}
	message, ok := call.Payload.(types.NoteMessage)
	if !ok {
		t.Fatalf("expected NoteMessage payload, got %T", call.Payload)
	}
	if message.Header == nil || *message.Header.SpeciesIndex != 3 || *message.Header.GroupIndex != 1 {
		t.Fatalf("bad header: %+v", message.Header)
	}
	if len(message.Notes) != 1 || message.Notes[0].ID != "srv-1" {
		t.Fatalf("bad notes: %+v", message.Notes)
	}
}

func TestDispatcherPublishFailureIsSwallowed(t *testing.T) {
	fake := newFakeBus()
	fake.fail = true
	d := NewDispatcher(testutil.Logger(t), fake)
	startDispatcher(t, d)

	d.ForceSync(1)
	fake.wait(t)

	// Fire-and-forget: the next task still runs after a failed publish.
	d.QueryRoster()
	call := fake.wait(t)
	if call.Topic != bus.ChannelGetRoster {
		t.Fatalf("expected roster query after failure, got %q", call.Topic)
	}
}

func TestDispatcherQueryChannelListCarriesActivity(t *testing.T) {
	fake := newFakeBus()
	d := NewDispatcher(testutil.Logger(t), fake)
	startDispatcher(t, d)

	d.QueryChannelList("observe")
	call := fake.wait(t)
	if call.Topic != bus.ChannelChannelList {
		t.Fatalf("unexpected topic %q", call.Topic)
	}
	raw, err := json.Marshal(call.Payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["activity"] != "observe" || decoded["type"] != "group" {
		t.Fatalf("unexpected payload: %v", decoded)
	}
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	fake := newFakeBus()
	d := NewDispatcher(testutil.Logger(t), fake)
	// Not running: fill the queue past capacity. Post must not block.
	for i := 0; i < dispatchQueueDepth+10; i++ {
		d.ForceSync(i)
	}
}
