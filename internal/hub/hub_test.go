package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/vigil/internal/model"
	"github.com/tinytelemetry/vigil/internal/severity"
)

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestBroadcast_ReachesEverySubscriber(t *testing.T) {
	t.Parallel()
	h := New(nil)
	sub1, cancel1 := h.Subscribe()
	defer cancel1()
	sub2, cancel2 := h.Subscribe()
	defer cancel2()

	h.OnEntries("default", []model.LogEntry{{ID: "a", Severity: severity.Error}}, 0)

	for _, sub := range []<-chan Event{sub1, sub2} {
		ev := recv(t, sub)
		assert.Equal(t, EventEntries, ev.Type)
		assert.Equal(t, "default", ev.Session)
		require.Len(t, ev.Entries, 1)
		assert.Equal(t, "a", ev.Entries[0].ID)
	}
}

func TestOnSnapshot(t *testing.T) {
	t.Parallel()
	h := New(nil)
	sub, cancel := h.Subscribe()
	defer cancel()

	h.OnSnapshot("default", model.MetricsSnapshot{ActiveStreams: 2})
	ev := recv(t, sub)
	assert.Equal(t, EventSnapshot, ev.Type)
	require.NotNil(t, ev.Snapshot)
	assert.Equal(t, 2, ev.Snapshot.ActiveStreams)
}

func TestSlowConsumerDropsInsteadOfBlocking(t *testing.T) {
	t.Parallel()
	h := New(nil)
	_, cancel := h.Subscribe()
	defer cancel()

	for range subscriberBuffer + 10 {
		h.Broadcast(Event{Type: EventSnapshot})
	}
	assert.Equal(t, int64(10), h.Dropped())
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	h := New(nil)
	sub, cancel := h.Subscribe()
	assert.Equal(t, 1, h.Subscribers())

	cancel()
	cancel()
	_, ok := <-sub
	assert.False(t, ok)
	assert.Zero(t, h.Subscribers())

	h.Broadcast(Event{Type: EventEntries})
	assert.Zero(t, h.Dropped())
}

func TestClose(t *testing.T) {
	t.Parallel()
	h := New(nil)
	sub, cancel := h.Subscribe()
	h.Close()
	h.Close()
	cancel()

	_, ok := <-sub
	assert.False(t, ok)

	late, _ := h.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}
