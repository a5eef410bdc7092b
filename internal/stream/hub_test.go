package stream

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouva/dermascan/internal/scan"
	"github.com/ouva/dermascan/internal/score"
)

func testClient(buffer int) *Client {
	return &Client{send: make(chan []byte, buffer)}
}

func receiveEvent(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case message := <-client.send:
		var event Event
		require.NoError(t, json.Unmarshal(message, &event))
		return event
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestHub_RegisterAndBroadcast(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := testClient(8)
	hub.register <- client

	require.Eventually(t, func() bool {
		return hub.ConnectedClients() == 1
	}, time.Second, time.Millisecond)

	hub.Broadcast(EventScoresUpdated, map[string]int{"face_count": 1})

	event := receiveEvent(t, client)
	assert.Equal(t, EventScoresUpdated, event.Type)
	assert.False(t, event.Timestamp.IsZero())

	hub.unregister <- client
	require.Eventually(t, func() bool {
		return hub.ConnectedClients() == 0
	}, time.Second, time.Millisecond)
}

func TestHub_PublishMapsSnapshotToEventType(t *testing.T) {
	tests := []struct {
		name string
		snap scan.Snapshot
		want EventType
	}{
		{
			name: "running frame",
			snap: scan.Snapshot{State: scan.StateRunning, Scores: score.ScoreSet{Lighting: 60}},
			want: EventScoresUpdated,
		},
		{
			name: "classification done",
			snap: scan.Snapshot{State: scan.StateRunning, Classification: scan.StatusDone},
			want: EventClassification,
		},
		{
			name: "classification failed",
			snap: scan.Snapshot{State: scan.StateRunning, Classification: scan.StatusFailed},
			want: EventClassification,
		},
		{
			name: "session stopped",
			snap: scan.Snapshot{State: scan.StateStopped},
			want: EventSessionStopped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewHub()
			client := testClient(8)
			hub.addClient(client)

			hub.Publish(tt.snap)
			hub.broadcastEvent(<-hub.broadcast)

			event := receiveEvent(t, client)
			assert.Equal(t, tt.want, event.Type)
		})
	}
}

func TestHub_PublishClassificationEventOnlyOnTransition(t *testing.T) {
	hub := NewHub()
	client := testClient(8)
	hub.addClient(client)

	done := scan.Snapshot{State: scan.StateRunning, Classification: scan.StatusDone}

	hub.Publish(done)
	hub.broadcastEvent(<-hub.broadcast)
	assert.Equal(t, EventClassification, receiveEvent(t, client).Type)

	// The completed status lingers in every snapshot until the next
	// dispatch; the frame updates in between are score updates, not
	// repeated classification events.
	for i := 0; i < 3; i++ {
		hub.Publish(done)
		hub.broadcastEvent(<-hub.broadcast)
		assert.Equal(t, EventScoresUpdated, receiveEvent(t, client).Type)
	}

	// A fresh classification cycle fires the event again.
	hub.Publish(scan.Snapshot{State: scan.StateRunning, Classification: scan.StatusRunning})
	hub.broadcastEvent(<-hub.broadcast)
	assert.Equal(t, EventScoresUpdated, receiveEvent(t, client).Type)

	hub.Publish(done)
	hub.broadcastEvent(<-hub.broadcast)
	assert.Equal(t, EventClassification, receiveEvent(t, client).Type)
}

func TestHub_SlowClientDropped(t *testing.T) {
	hub := NewHub()
	slow := testClient(1)
	fast := testClient(8)
	hub.addClient(slow)
	hub.addClient(fast)

	// The slow client's buffer fills after one event; the next delivery
	// drops it instead of blocking the hub.
	hub.broadcastEvent(Event{Type: EventScoresUpdated})
	hub.broadcastEvent(Event{Type: EventScoresUpdated})

	assert.Equal(t, 1, hub.ConnectedClients())
	assert.Len(t, fast.send, 2)

	// A dropped client's channel is closed so its write pump exits.
	<-slow.send
	_, open := <-slow.send
	assert.False(t, open)
}

func TestHub_BroadcastDropsWhenQueueFull(t *testing.T) {
	hub := NewHub()

	// No Run goroutine draining: fill the queue and confirm extra events
	// are shed without blocking.
	for i := 0; i < 300; i++ {
		hub.Broadcast(EventScoresUpdated, i)
	}

	assert.Len(t, hub.broadcast, 256)
}

func TestHub_EventJSON(t *testing.T) {
	hub := NewHub()
	client := testClient(1)
	hub.addClient(client)

	snap := scan.Snapshot{
		State:     scan.StateRunning,
		FaceCount: 1,
		Scores:    score.ScoreSet{Lighting: 55.5, Redness: 20, Shine: 5},
	}
	hub.Publish(snap)
	hub.broadcastEvent(<-hub.broadcast)

	message := <-client.send
	var decoded struct {
		Type string `json:"type"`
		Data struct {
			State     string `json:"state"`
			FaceCount int    `json:"face_count"`
			Scores    struct {
				Lighting float64 `json:"lighting"`
			} `json:"scores"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(message, &decoded))
	assert.Equal(t, "scores.updated", decoded.Type)
	assert.Equal(t, "running", decoded.Data.State)
	assert.Equal(t, 1, decoded.Data.FaceCount)
	assert.InDelta(t, 55.5, decoded.Data.Scores.Lighting, 1e-9)
}
