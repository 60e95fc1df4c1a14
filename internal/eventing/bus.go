// Package eventing fans fee lifecycle events out to in-process
// subscribers. Delivery is synchronous and typed: a subscriber sees
// exactly the event type it registered for.
package eventing

import (
	"context"
	"errors"
	"reflect"
	"sync"
)

// ErrNilEvent is returned when a nil event is published.
var ErrNilEvent = errors.New("eventing: nil event")

// Publisher is the write side of the bus. Services publish through it
// and never touch the subscriber registry.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Bus routes events to subscribers keyed by the event's concrete
// type. Subscribers run on the publisher's goroutine in registration
// order.
type Bus struct {
	mu   sync.RWMutex
	subs map[reflect.Type][]func(ctx context.Context, event any) error
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[reflect.Type][]func(ctx context.Context, event any) error)}
}

// Subscribe registers fn for events of type T. Publishing *T still
// reaches a T subscriber; the bus unwraps pointers before dispatch.
func Subscribe[T any](b *Bus, fn func(ctx context.Context, event T) error) {
	if b == nil || fn == nil {
		return
	}
	key := reflect.TypeOf((*T)(nil)).Elem()
	wrapped := func(ctx context.Context, event any) error {
		typed, ok := event.(T)
		if !ok {
			return nil
		}
		return fn(ctx, typed)
	}
	b.mu.Lock()
	b.subs[key] = append(b.subs[key], wrapped)
	b.mu.Unlock()
}

// Publish delivers event to every subscriber of its type. A failing
// subscriber does not stop the others; the errors come back joined.
func (b *Bus) Publish(ctx context.Context, event any) error {
	if event == nil {
		return ErrNilEvent
	}
	key := reflect.TypeOf(event)
	value := reflect.ValueOf(event)
	for key.Kind() == reflect.Pointer {
		if value.IsNil() {
			return ErrNilEvent
		}
		key = key.Elem()
		value = value.Elem()
	}

	b.mu.RLock()
	subs := append([]func(ctx context.Context, event any) error(nil), b.subs[key]...)
	b.mu.RUnlock()

	var errs []error
	for _, fn := range subs {
		if err := fn(ctx, value.Interface()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
