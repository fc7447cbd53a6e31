package sync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lucas6028/silver-server/internal/logger"
	"github.com/lucas6028/silver-server/internal/mq"
)

func TestWatchEmitsInitialSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := mq.New(mq.NewMemoryBackend())

	out := Watch(ctx, bus, "ch", nil, func(context.Context) ([]string, error) {
		return []string{"a", "b"}, nil
	}, logger.Nop())

	select {
	case snapshot := <-out:
		if len(snapshot) != 2 {
			t.Fatalf("initial snapshot has %d items, want 2", len(snapshot))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no initial snapshot")
	}
}

func TestWatchRequeriesOnEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := mq.New(mq.NewMemoryBackend())

	var calls atomic.Int64
	out := Watch(ctx, bus, "ch", nil, func(context.Context) ([]int, error) {
		n := calls.Add(1)
		items := make([]int, n)
		return items, nil
	}, logger.Nop())

	first := <-out
	if len(first) != 1 {
		t.Fatalf("initial snapshot has %d items", len(first))
	}

	// The subscription attaches asynchronously, so keep publishing until a
	// fresh snapshot shows up.
	deadline := time.After(2 * time.Second)
	for {
		if _, err := bus.Publish(ctx, "ch", nil, nil); err != nil {
			t.Fatalf("publish: %v", err)
		}
		select {
		case snapshot := <-out:
			if len(snapshot) >= 2 {
				return
			}
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("no re-query after change event")
		}
	}
}

func TestWatchConcurrentWatchersBothSeeEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := mq.New(mq.NewMemoryBackend())

	// Two sessions watching the same channel must each receive every
	// change event; delivery to only one would freeze the other's view.
	var callsA, callsB atomic.Int64
	outA := Watch(ctx, bus, "ch", nil, func(context.Context) ([]int, error) {
		return []int{int(callsA.Add(1))}, nil
	}, logger.Nop())
	outB := Watch(ctx, bus, "ch", nil, func(context.Context) ([]int, error) {
		return []int{int(callsB.Add(1))}, nil
	}, logger.Nop())

	if first := <-outA; len(first) != 1 {
		t.Fatalf("watcher A initial snapshot %v", first)
	}
	if first := <-outB; len(first) != 1 {
		t.Fatalf("watcher B initial snapshot %v", first)
	}

	gotA, gotB := false, false
	deadline := time.After(2 * time.Second)
	for !gotA || !gotB {
		if _, err := bus.Publish(ctx, "ch", nil, nil); err != nil {
			t.Fatalf("publish: %v", err)
		}
		select {
		case snapshot := <-outA:
			if snapshot[0] >= 2 {
				gotA = true
			}
		case snapshot := <-outB:
			if snapshot[0] >= 2 {
				gotB = true
			}
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatalf("re-query missing: watcher A %v, watcher B %v", gotA, gotB)
		}
	}
}

func TestWatchFiltersByMatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := mq.New(mq.NewMemoryBackend())

	var calls atomic.Int64
	match := func(msg mq.Message) bool { return msg.Attributes["user"] == "u1" }
	out := Watch(ctx, bus, "ch", match, func(context.Context) ([]int, error) {
		calls.Add(1)
		return []int{}, nil
	}, logger.Nop())

	<-out

	deadline := time.After(2 * time.Second)
	for {
		_, _ = bus.Publish(ctx, "ch", nil, map[string]string{"user": "someone-else"})
		_, _ = bus.Publish(ctx, "ch", nil, map[string]string{"user": "u1"})
		select {
		case <-out:
			// Only the matching event can get here; the non-matching one
			// never wakes the query loop.
			return
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("matching event did not trigger a snapshot")
		}
	}
}

func TestWatchQueryErrorDegradesToEmpty(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := mq.New(mq.NewMemoryBackend())

	out := Watch(ctx, bus, "ch", nil, func(context.Context) ([]string, error) {
		return nil, errors.New("db down")
	}, logger.Nop())

	select {
	case snapshot := <-out:
		if snapshot == nil || len(snapshot) != 0 {
			t.Fatalf("got %v, want empty snapshot", snapshot)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot on query error")
	}
}

func TestWatchClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := mq.New(mq.NewMemoryBackend())

	out := Watch(ctx, bus, "ch", nil, func(context.Context) ([]int, error) {
		return []int{}, nil
	}, logger.Nop())

	<-out
	cancel()

	select {
	case _, ok := <-out:
		if ok {
			// A snapshot may have been in flight; the next read must
			// observe the close.
			if _, ok := <-out; ok {
				t.Fatal("channel still open after cancel")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
