// Package eventbus is the in-process pub/sub bus that carries
// EntityChanged notifications from services to cache invalidation and the
// realtime hub.
package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Entity names used as topics.
const (
	EntityForm           = "form"
	EntityFormSubmission = "form_submission"
	EntityEvent          = "event"
	EntityClient         = "client"
	EntityAgreement      = "agreement"
	EntityCarePlan       = "care_plan"
	EntityObservation    = "news2_observation"
	EntityBooking        = "booking"
	EntityMedication     = "medication_administration"
)

// EntityChanged is published after every successful mutation.
type EntityChanged struct {
	TenantID string    `json:"tenantId"`
	Entity   string    `json:"entity"`
	ID       string    `json:"id"`
	Action   Action    `json:"action"`
	At       time.Time `json:"at"`
}

// Topic is the realtime topic for the change, scoped to the tenant.
func (e EntityChanged) Topic() string {
	return Topic(e.TenantID, e.Entity)
}

func Topic(tenantID, entity string) string {
	return tenantID + ":" + entity
}

// Publisher is what services depend on.
type Publisher interface {
	Publish(ctx context.Context, evt EntityChanged)
}

// Handler processes an event. Implementations must be safe for
// concurrent use.
type Handler interface {
	HandleEvent(ctx context.Context, evt EntityChanged) error
}

type HandlerFunc func(ctx context.Context, evt EntityChanged) error

func (f HandlerFunc) HandleEvent(ctx context.Context, evt EntityChanged) error {
	return f(ctx, evt)
}

type namedHandler struct {
	name    string
	handler Handler
}

// Bus dispatches events to subscribers. Sync subscribers run inside
// Publish, before it returns; async subscribers run on a single consumer
// goroutine fed by a buffered channel and are skipped when it is full.
type Bus struct {
	mu        sync.RWMutex
	syncSubs  []namedHandler
	asyncSubs []namedHandler
	events    chan EntityChanged
	done      chan struct{}
	stopped   bool
	logger    zerolog.Logger

	stopOnce sync.Once
}

func New(bufSize int, logger zerolog.Logger) *Bus {
	if bufSize < 1 {
		bufSize = 256
	}
	return &Bus{
		events: make(chan EntityChanged, bufSize),
		done:   make(chan struct{}),
		logger: logger.With().Str("component", "eventbus").Logger(),
	}
}

// Subscribe registers an async handler. Must be called before Start.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.asyncSubs = append(b.asyncSubs, namedHandler{name: name, handler: h})
}

// SubscribeSync registers a handler that runs inside Publish. Use it for
// work a subsequent read depends on, such as cache invalidation.
func (b *Bus) SubscribeSync(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.syncSubs = append(b.syncSubs, namedHandler{name: name, handler: h})
}

// Publish never blocks on async subscribers.
func (b *Bus) Publish(ctx context.Context, evt EntityChanged) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}

	b.mu.RLock()
	subs := b.syncSubs
	b.mu.RUnlock()
	b.dispatch(ctx, subs, evt)

	// the read lock keeps Stop from closing the queue mid-send
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		b.logger.Warn().
			Str("entity", evt.Entity).
			Str("id", evt.ID).
			Msg("bus stopped, dropping async delivery")
		return
	}
	select {
	case b.events <- evt:
	default:
		b.logger.Warn().
			Str("entity", evt.Entity).
			Str("id", evt.ID).
			Msg("buffer full, dropping async delivery")
	}
}

// Start runs the async consumer until ctx is cancelled or Stop is called.
func (b *Bus) Start(ctx context.Context) {
	go func() {
		defer close(b.done)
		for {
			select {
			case evt, ok := <-b.events:
				if !ok {
					return
				}
				b.dispatchAsync(ctx, evt)
			case <-ctx.Done():
				for {
					select {
					case evt, ok := <-b.events:
						if !ok {
							return
						}
						b.dispatchAsync(context.Background(), evt)
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop closes the queue and waits for the consumer to drain it. Events
// published afterwards still reach sync subscribers; async delivery is
// dropped. Start must have been called.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.stopped = true
		close(b.events)
		b.mu.Unlock()
	})
	<-b.done
}

func (b *Bus) dispatchAsync(ctx context.Context, evt EntityChanged) {
	b.mu.RLock()
	subs := b.asyncSubs
	b.mu.RUnlock()
	b.dispatch(ctx, subs, evt)
}

func (b *Bus) dispatch(ctx context.Context, subs []namedHandler, evt EntityChanged) {
	for _, s := range subs {
		if err := s.handler.HandleEvent(ctx, evt); err != nil {
			b.logger.Error().Err(err).
				Str("subscriber", s.name).
				Str("entity", evt.Entity).
				Str("id", evt.ID).
				Msg("handler error")
		}
	}
}

// Nop discards events. Useful in tests and CLI commands.
type Nop struct{}

func (Nop) Publish(context.Context, EntityChanged) {}

// Recorder captures published events for assertions.
type Recorder struct {
	mu     sync.Mutex
	Events []EntityChanged
}

func (r *Recorder) Publish(_ context.Context, evt EntityChanged) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, evt)
}

// Last returns the most recent event, or the zero value.
func (r *Recorder) Last() EntityChanged {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Events) == 0 {
		return EntityChanged{}
	}
	return r.Events[len(r.Events)-1]
}
