package sse

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBroadcastReachesAllClients(t *testing.T) {
	hub := NewHub(zap.NewNop())

	a := &Client{ID: "a", UserID: "u1", Events: make(chan Event, 4)}
	b := &Client{ID: "b", UserID: "u2", Events: make(chan Event, 4)}
	hub.Register(a)
	hub.Register(b)

	hub.PublishPermitEvent("p-1", "approved", "active")

	for _, c := range []*Client{a, b} {
		ev := <-c.Events
		assert.Equal(t, "permit_update", ev.EventType)

		var payload map[string]string
		require.NoError(t, json.Unmarshal([]byte(ev.Data), &payload))
		assert.Equal(t, "p-1", payload["permit_id"])
		assert.Equal(t, "active", payload["status"])
	}
}

func TestBroadcastNeverBlocksOnFullBuffer(t *testing.T) {
	hub := NewHub(zap.NewNop())

	slow := &Client{ID: "slow", UserID: "u1", Events: make(chan Event, 1)}
	hub.Register(slow)

	// second event overflows the buffer and is dropped, not queued
	hub.PublishChildEvent("p-1", "gas_test", "gt-1")
	hub.PublishChildEvent("p-1", "gas_test", "gt-2")

	ev := <-slow.Events
	assert.Equal(t, "permit_child_added", ev.EventType)
	select {
	case <-slow.Events:
		t.Fatal("expected second event to be dropped")
	default:
	}
}

func TestSendToUserTargetsOnlyThatUser(t *testing.T) {
	hub := NewHub(zap.NewNop())

	mine := &Client{ID: "a", UserID: "u1", Events: make(chan Event, 4)}
	theirs := &Client{ID: "b", UserID: "u2", Events: make(chan Event, 4)}
	hub.Register(mine)
	hub.Register(theirs)

	hub.SendToUser("u1", Event{EventType: "ping", Data: "{}"})

	assert.Len(t, mine.Events, 1)
	assert.Len(t, theirs.Events, 0)
}

func TestUnregisterClosesChannel(t *testing.T) {
	hub := NewHub(zap.NewNop())

	c := &Client{ID: "a", UserID: "u1", Events: make(chan Event, 1)}
	hub.Register(c)
	hub.Unregister(c.ID)

	_, open := <-c.Events
	assert.False(t, open)

	// double unregister is a no-op
	hub.Unregister(c.ID)
}
