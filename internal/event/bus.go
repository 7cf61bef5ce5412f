package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Event is a published message.
type Event struct {
	Topic   Topic
	Payload any
	Time    time.Time
}

// Handler is the interface for event handlers.
type Handler interface {
	// Handle processes an event.
	Handle(ctx context.Context, ev Event) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, ev Event) error

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Subscription identifies a registered handler.
type Subscription interface {
	// ID returns the unique subscription identifier.
	ID() string

	// Topic returns the subscribed topic pattern.
	Topic() Topic
}

// Bus is the central event bus interface.
type Bus interface {
	// Publish delivers an event to every matching subscription.
	Publish(ctx context.Context, topic Topic, payload any) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(pattern Topic, handler Handler) (Subscription, error)
	SubscribeFunc(pattern Topic, fn HandlerFunc) (Subscription, error)
	Unsubscribe(sub Subscription) error

	// Stats returns delivery counters.
	Stats() Stats
}

// Stats holds bus counters.
type Stats struct {
	EventsPublished  uint64
	EventsDelivered  uint64
	HandlerErrors    uint64
	HandlerPanics    uint64
	SubscriptionsNow int
}

type subscription struct {
	id      string
	pattern Topic
	handler Handler
}

func (s *subscription) ID() string   { return s.id }
func (s *subscription) Topic() Topic { return s.pattern }

// bus is the default Bus implementation.
type bus struct {
	mu     sync.RWMutex
	subs   []*subscription
	nextID atomic.Uint64

	eventsPublished atomic.Uint64
	eventsDelivered atomic.Uint64
	handlerErrors   atomic.Uint64
	handlerPanics   atomic.Uint64
}

// NewBus creates a new event bus.
func NewBus() Bus {
	return &bus{}
}

// Subscribe registers a handler for a topic pattern.
func (b *bus) Subscribe(pattern Topic, handler Handler) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if err := pattern.Validate(); err != nil {
		return nil, err
	}

	sub := &subscription{
		id:      fmt.Sprintf("sub-%d", b.nextID.Add(1)),
		pattern: pattern,
		handler: handler,
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return sub, nil
}

// SubscribeFunc registers a handler function for a topic pattern.
func (b *bus) SubscribeFunc(pattern Topic, fn HandlerFunc) (Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	return b.Subscribe(pattern, fn)
}

// Unsubscribe removes a subscription.
func (b *bus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return ErrSubscriptionNotFound
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == sub.ID() {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return nil
		}
	}
	return ErrSubscriptionNotFound
}

// Publish delivers synchronously in subscription order.
func (b *bus) Publish(ctx context.Context, topic Topic, payload any) error {
	if err := topic.Validate(); err != nil {
		return err
	}
	if topic.IsPattern() {
		return fmt.Errorf("%w: cannot publish pattern %q", ErrInvalidTopic, topic)
	}
	b.eventsPublished.Add(1)

	b.mu.RLock()
	matched := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if topic.Matches(s.pattern) {
			matched = append(matched, s)
		}
	}
	b.mu.RUnlock()

	ev := Event{Topic: topic, Payload: payload, Time: time.Now()}

	var errs []error
	for _, s := range matched {
		if err := b.deliver(ctx, s, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// deliver runs one handler with panic recovery.
func (b *bus) deliver(ctx context.Context, s *subscription, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.handlerPanics.Add(1)
			err = &PanicError{SubscriptionID: s.id, Topic: ev.Topic, Value: r}
		}
	}()

	b.eventsDelivered.Add(1)
	if herr := s.handler.Handle(ctx, ev); herr != nil {
		b.handlerErrors.Add(1)
		return &HandlerError{SubscriptionID: s.id, Topic: ev.Topic, Err: herr}
	}
	return nil
}

// Stats returns delivery counters.
func (b *bus) Stats() Stats {
	b.mu.RLock()
	n := len(b.subs)
	b.mu.RUnlock()

	return Stats{
		EventsPublished:  b.eventsPublished.Load(),
		EventsDelivered:  b.eventsDelivered.Load(),
		HandlerErrors:    b.handlerErrors.Load(),
		HandlerPanics:    b.handlerPanics.Load(),
		SubscriptionsNow: n,
	}
}
