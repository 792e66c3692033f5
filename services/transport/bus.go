package transport

import (
	"context"
	"sync"
)

// Subscription is one subscriber's view of a named channel. Chunks arrive on
// C; Done closes once Unsubscribe has been called.
type Subscription struct {
	C    <-chan string
	Done <-chan struct{}

	ch    chan string
	done  chan struct{}
	once  sync.Once
	leave func()
}

// Unsubscribe detaches the subscription from its channel. Safe to call more
// than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		if s.leave != nil {
			s.leave()
		}
	})
}

// Bridge is the subscribe side of the event channel used by Delegated.
type Bridge interface {
	Subscribe(channel string) *Subscription
}

// Publisher is the publish side of the event channel used by a Host.
type Publisher interface {
	Publish(ctx context.Context, channel, chunk string) error
}

// Bus is an in-memory named-channel bridge. Publish blocks until every
// current subscriber has received the chunk, so chunks are never dropped and
// arrive in publish order.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]*Subscription
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string][]*Subscription),
	}
}

// Subscribe registers a new subscriber for channel.
func (b *Bus) Subscribe(channel string) *Subscription {
	ch := make(chan string)
	done := make(chan struct{})
	sub := &Subscription{C: ch, Done: done, ch: ch, done: done}
	sub.leave = func() { b.remove(channel, sub) }

	b.mu.Lock()
	b.subscribers[channel] = append(b.subscribers[channel], sub)
	b.mu.Unlock()
	return sub
}

// Publish delivers chunk to every subscriber of channel. Subscribers that
// unsubscribe mid-publish are skipped. Returns ctx.Err() if ctx ends first.
func (b *Bus) Publish(ctx context.Context, channel, chunk string) error {
	b.mu.RLock()
	subs := append([]*Subscription(nil), b.subscribers[channel]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.ch <- chunk:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions on channel.
func (b *Bus) Subscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[channel])
}

func (b *Bus) remove(channel string, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[channel]
	for i, s := range subs {
		if s == sub {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(b.subscribers, channel)
		return
	}
	b.subscribers[channel] = subs
}
