package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(sink, 8)
	defer d.Close()

	for i, typ := range []string{TypeLoginSuccess, TypeTokenRotate, TypeRevokeAll} {
		d.Emit(Event{Type: typ, OwnerID: "owner-1", Timestamp: time.Now().Add(time.Duration(i))})
	}

	for _, want := range []string{TypeLoginSuccess, TypeTokenRotate, TypeRevokeAll} {
		select {
		case got := <-sink.Events():
			if got.Type != want {
				t.Fatalf("want %s, got %s", want, got.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	// A sink that never consumes: the run loop stalls on the first event,
	// leaving one buffer slot, so the third emit must drop.
	block := make(chan struct{})
	sink := blockingSink{block: block}

	d := NewDispatcher(sink, 1)

	d.Emit(Event{Type: TypeLoginFailure})
	// Give the relay goroutine time to pick up the first event and stall.
	time.Sleep(50 * time.Millisecond)
	d.Emit(Event{Type: TypeLoginFailure})
	d.Emit(Event{Type: TypeLoginFailure})

	if d.Dropped() == 0 {
		t.Fatal("expected at least one dropped event")
	}

	// Close waits for the relay goroutine, so the sink must be released
	// before it. Ordering the other way around deadlocks.
	close(block)
	d.Close()
}

type blockingSink struct {
	block chan struct{}
}

func (s blockingSink) Emit(context.Context, Event) {
	<-s.block
}

func TestDispatcherCloseDrains(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(sink, 16)

	for i := 0; i < 5; i++ {
		d.Emit(Event{Type: TypeTokenIssue})
	}
	d.Close()

	delivered := len(sink.Events())
	if delivered != 5 {
		t.Fatalf("want 5 delivered after close, got %d", delivered)
	}

	// Emits after close are silently ignored.
	d.Emit(Event{Type: TypeTokenIssue})
	if len(sink.Events()) != 5 {
		t.Fatal("emit after close must not deliver")
	}
}

func TestJSONLinesSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONLinesSink(&buf)

	sink.Emit(context.Background(), Event{
		Type:        TypeReuseDetected,
		OwnerID:     "owner-1",
		Fingerprint: "abcd1234",
		Success:     false,
		Error:       "refresh token reuse detected",
	})

	var decoded Event
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if decoded.Type != TypeReuseDetected || decoded.Fingerprint != "abcd1234" {
		t.Fatalf("unexpected event: %+v", decoded)
	}
}
