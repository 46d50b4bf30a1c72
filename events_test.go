package authclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestChannelSinkDelivers(t *testing.T) {
	sink := NewChannelSink(4)
	sink.Emit(context.Background(), Event{EventType: EventLogin, UserID: "alice", Success: true})

	select {
	case got := <-sink.Events():
		if got.EventType != EventLogin || got.UserID != "alice" || !got.Success {
			t.Fatalf("unexpected event: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestChannelSinkHonorsContext(t *testing.T) {
	sink := NewChannelSink(1)
	sink.Emit(context.Background(), Event{EventType: EventLogin})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		sink.Emit(ctx, Event{EventType: EventLogout})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full channel with a cancelled context")
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{EventType: EventRefresh, UserID: "alice", Success: true})
	sink.Emit(context.Background(), Event{EventType: EventLogout, UserID: "alice", Success: true})

	scanner := bufio.NewScanner(&buf)
	var types []string
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		types = append(types, event.EventType)
	}
	if len(types) != 2 || types[0] != EventRefresh || types[1] != EventLogout {
		t.Fatalf("events = %v", types)
	}
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := newEventDispatcher(EventConfig{Enabled: true, BufferSize: 16}, sink)
	for i := 0; i < 5; i++ {
		d.emit(Event{EventType: EventLogin})
	}
	d.Close()

	got := 0
	for {
		select {
		case <-sink.Events():
			got++
		default:
			if got != 5 {
				t.Fatalf("delivered %d events, want 5", got)
			}
			return
		}
	}
}

func TestDispatcherCountsDrops(t *testing.T) {
	// A sink that never accepts keeps the buffer full once the worker is
	// stuck on the first event.
	blocked := make(chan struct{})
	d := newEventDispatcher(EventConfig{Enabled: true, BufferSize: 1}, blockingSink{blocked})
	defer d.Close()
	defer close(blocked)

	for i := 0; i < 10; i++ {
		d.emit(Event{EventType: EventLogin})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped events")
	}
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := newEventDispatcher(EventConfig{Enabled: false}, nil)
	if d != nil {
		t.Fatal("disabled config should produce a nil dispatcher")
	}
	d.emit(Event{EventType: EventLogin}) // must not panic
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
	d.Close()
}

func TestCloseUnblocksStuckSink(t *testing.T) {
	// A sink that never accepts must not hang Close: the in-flight delivery
	// is cancelled and the drained ones time out and count as dropped.
	d := newEventDispatcher(EventConfig{Enabled: true, BufferSize: 1}, stuckSink{})
	for i := 0; i < 3; i++ {
		d.emit(Event{EventType: EventLogin})
	}

	closed := make(chan struct{})
	go func() {
		d.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(10 * time.Second):
		t.Fatal("Close hung on a stuck sink")
	}
	if d.Dropped() == 0 {
		t.Fatal("expected stuck deliveries to be counted as dropped")
	}
}

type stuckSink struct{}

func (stuckSink) Emit(ctx context.Context, _ Event) {
	<-ctx.Done()
}

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Emit(ctx context.Context, _ Event) {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
}
