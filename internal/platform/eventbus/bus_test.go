package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SyncSubscriberRunsBeforePublishReturns(t *testing.T) {
	b := New(4, zerolog.Nop())
	var got []EntityChanged
	b.SubscribeSync("cache", HandlerFunc(func(_ context.Context, evt EntityChanged) error {
		got = append(got, evt)
		return nil
	}))

	b.Publish(context.Background(), EntityChanged{TenantID: "north", Entity: EntityEvent, ID: "e-1", Action: ActionCreated})

	require.Len(t, got, 1)
	assert.Equal(t, "north:event", got[0].Topic())
	assert.False(t, got[0].At.IsZero())
}

func TestBus_AsyncDelivery(t *testing.T) {
	b := New(4, zerolog.Nop())
	var mu sync.Mutex
	var ids []string
	b.Subscribe("ws", HandlerFunc(func(_ context.Context, evt EntityChanged) error {
		mu.Lock()
		ids = append(ids, evt.ID)
		mu.Unlock()
		return nil
	}))

	b.Start(context.Background())
	b.Publish(context.Background(), EntityChanged{Entity: EntityBooking, ID: "b-1"})
	b.Publish(context.Background(), EntityChanged{Entity: EntityBooking, ID: "b-2"})
	b.Stop()

	assert.Equal(t, []string{"b-1", "b-2"}, ids)
}

func TestBus_DropsWhenFull(t *testing.T) {
	b := New(1, zerolog.Nop())
	calls := 0
	b.SubscribeSync("count", HandlerFunc(func(context.Context, EntityChanged) error {
		calls++
		return nil
	}))

	// not started: the async queue fills after one event
	for i := 0; i < 3; i++ {
		b.Publish(context.Background(), EntityChanged{Entity: EntityClient})
	}
	assert.Equal(t, 3, calls)
	assert.Len(t, b.events, 1)
}

func TestBus_HandlerErrorDoesNotStopOthers(t *testing.T) {
	b := New(4, zerolog.Nop())
	second := false
	b.SubscribeSync("failing", HandlerFunc(func(context.Context, EntityChanged) error {
		return errors.New("boom")
	}))
	b.SubscribeSync("second", HandlerFunc(func(context.Context, EntityChanged) error {
		second = true
		return nil
	}))

	b.Publish(context.Background(), EntityChanged{Entity: EntityForm})
	assert.True(t, second)
}

func TestBus_StartDrainsOnCancel(t *testing.T) {
	b := New(8, zerolog.Nop())
	var mu sync.Mutex
	count := 0
	b.Subscribe("count", HandlerFunc(func(context.Context, EntityChanged) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))
	for i := 0; i < 5; i++ {
		b.Publish(context.Background(), EntityChanged{Entity: EntityMedication})
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.Start(ctx)
	cancel()

	select {
	case <-b.done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not exit")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, count)
}

func TestBus_PublishAfterStop(t *testing.T) {
	b := New(4, zerolog.Nop())
	syncCalls := 0
	b.SubscribeSync("cache", HandlerFunc(func(context.Context, EntityChanged) error {
		syncCalls++
		return nil
	}))
	b.Start(context.Background())
	b.Stop()

	require.NotPanics(t, func() {
		b.Publish(context.Background(), EntityChanged{Entity: EntityEvent, ID: "late"})
	})
	assert.Equal(t, 1, syncCalls)
	require.NotPanics(t, b.Stop)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	assert.Equal(t, EntityChanged{}, r.Last())
	r.Publish(context.Background(), EntityChanged{ID: "x"})
	require.Len(t, r.Events, 1)
	assert.Equal(t, "x", r.Last().ID)
}
