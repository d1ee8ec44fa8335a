package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesPublishedEvents(t *testing.T) {
	m := New()
	events, unsubscribe := m.Subscribe()
	defer unsubscribe()

	m.Notify(EventSyncStart, "sync-1", "tree-1")

	select {
	case evt := <-events:
		assert.Equal(t, EventSyncStart, evt.Kind)
		assert.Equal(t, "sync-1", evt.SyncUUID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	m := New()
	events, unsubscribe := m.Subscribe()
	unsubscribe()

	m.Notify(EventIndexStart, "sync-1", "tree-1")

	_, ok := <-events
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	m := New()
	_, unsubscribe := m.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			m.Notify(EventSyncModify, "sync-1", "tree-1")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber channel")
	}
}

func TestNotifyDownloadFileNumber(t *testing.T) {
	m := New()
	events, unsubscribe := m.Subscribe()
	defer unsubscribe()

	m.NotifyDownloadFileNumber("tree-1", 42)

	evt := <-events
	require.Equal(t, EventDownloadFileNumber, evt.Kind)
	assert.Equal(t, int64(42), evt.FileNumber)
}
