package mq

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryBackendBroadcastFanOut(t *testing.T) {
	bus := New(NewMemoryBackend())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	received := make(chan Message, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			wg.Done()
			_ = bus.SubscribeBroadcast(ctx, "ch", func(_ context.Context, msg Message) error {
				received <- msg
				return nil
			})
		}()
	}
	wg.Wait()
	time.Sleep(20 * time.Millisecond)

	id, err := bus.Publish(ctx, "ch", []byte("hello"), map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if id == "" {
		t.Fatal("no message id")
	}

	for i := 0; i < 2; i++ {
		select {
		case msg := <-received:
			if string(msg.Data) != "hello" || msg.Attributes["k"] != "v" {
				t.Fatalf("message %+v", msg)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("subscriber %d got nothing", i)
		}
	}
}

func TestMemoryBackendWorkersCompete(t *testing.T) {
	bus := New(NewMemoryBackend())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	received := make(chan Message, 4)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			wg.Done()
			_ = bus.Subscribe(ctx, "jobs", func(_ context.Context, msg Message) error {
				received <- msg
				return nil
			})
		}()
	}
	wg.Wait()
	time.Sleep(20 * time.Millisecond)

	for i := 0; i < 4; i++ {
		if _, err := bus.Publish(ctx, "jobs", []byte("job"), nil); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	// Each message goes to exactly one worker: four publishes, four
	// deliveries total across both.
	for i := 0; i < 4; i++ {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatalf("delivery %d never arrived", i)
		}
	}
	select {
	case msg := <-received:
		t.Fatalf("duplicate delivery %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBackendBroadcastAndWorkerCoexist(t *testing.T) {
	bus := New(NewMemoryBackend())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher := make(chan Message, 2)
	worker := make(chan Message, 2)
	go func() {
		_ = bus.SubscribeBroadcast(ctx, "ch", func(_ context.Context, msg Message) error {
			watcher <- msg
			return nil
		})
	}()
	go func() {
		_ = bus.Subscribe(ctx, "ch", func(_ context.Context, msg Message) error {
			worker <- msg
			return nil
		})
	}()
	time.Sleep(20 * time.Millisecond)

	if _, err := bus.Publish(ctx, "ch", []byte("x"), nil); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for name, ch := range map[string]chan Message{"watcher": watcher, "worker": worker} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("%s got nothing", name)
		}
	}
}

func TestMemoryBackendSubscribeEndsOnCancel(t *testing.T) {
	bus := New(NewMemoryBackend())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- bus.Subscribe(ctx, "ch", func(context.Context, Message) error { return nil })
	}()

	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected context error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe did not return after cancel")
	}
}

func TestMemoryBackendNoSubscribers(t *testing.T) {
	bus := New(NewMemoryBackend())
	if _, err := bus.Publish(context.Background(), "empty", []byte("x"), nil); err != nil {
		t.Fatalf("publish to empty channel: %v", err)
	}
}

func TestMemoryBackendClosedRejectsPublish(t *testing.T) {
	bus := New(NewMemoryBackend())
	if err := bus.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := bus.Publish(context.Background(), "ch", []byte("x"), nil); err == nil {
		t.Fatal("publish after close succeeded")
	}
}
