package mq

import (
	"context"
	"errors"
	"sync"
)

// MemoryBackend is an in-process Backend for single-process deployments
// (MQ_PROVIDER=memory) and tests. It honors both delivery contracts:
// Subscribe channels round-robin across workers, SubscribeBroadcast
// channels deliver to every subscriber.
type MemoryBackend struct {
	mu        sync.Mutex
	broadcast map[string][]chan Message
	workers   map[string][]chan Message
	next      map[string]int
	closed    bool
}

// NewMemoryBackend constructs an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		broadcast: make(map[string][]chan Message),
		workers:   make(map[string][]chan Message),
		next:      make(map[string]int),
	}
}

// Publish delivers the message to every broadcast subscriber of the
// channel and to at most one worker. Messages on channels with no
// subscribers are dropped; there is no buffering.
func (m *MemoryBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	message := Message{
		ID:         newMessageID(),
		Data:       data,
		Attributes: attrs,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", errors.New("memory backend is closed")
	}
	targets := make([]chan Message, 0, len(m.broadcast[channel])+1)
	targets = append(targets, m.broadcast[channel]...)
	if workers := m.workers[channel]; len(workers) > 0 {
		targets = append(targets, workers[m.next[channel]%len(workers)])
		m.next[channel]++
	}
	m.mu.Unlock()

	for _, target := range targets {
		select {
		case target <- message:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return message.ID, nil
}

// Subscribe consumes as one of the channel's competing workers.
func (m *MemoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.consume(ctx, m.workers, channel, handler)
}

// SubscribeBroadcast consumes every message published on the channel.
func (m *MemoryBackend) SubscribeBroadcast(ctx context.Context, channel string, handler Handler) error {
	return m.consume(ctx, m.broadcast, channel, handler)
}

func (m *MemoryBackend) consume(ctx context.Context, set map[string][]chan Message, channel string, handler Handler) error {
	deliveries := make(chan Message, 64)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("memory backend is closed")
	}
	set[channel] = append(set[channel], deliveries)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		subs := set[channel]
		for i, sub := range subs {
			if sub == deliveries {
				set[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case message := <-deliveries:
			_ = handler(ctx, message)
		}
	}
}

// Close drops all subscriptions and rejects further use.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcast = make(map[string][]chan Message)
	m.workers = make(map[string][]chan Message)
	m.closed = true
	return nil
}
