package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastReachesTopicSubscribers(t *testing.T) {
	h := NewHub()
	watcher := make(Client, 1)
	other := make(Client, 1)
	h.Subscribe("job-1", watcher)
	h.Subscribe("job-2", other)

	h.Broadcast("job-1", Event{Type: "status", Payload: map[string]string{"state": "running"}})

	require.Len(t, watcher, 1)
	assert.JSONEq(t, `{"type":"status","payload":{"state":"running"}}`, string(<-watcher))
	assert.Empty(t, other)
}

func TestBroadcastDropsForFullClients(t *testing.T) {
	h := NewHub()
	slow := make(Client)
	h.Subscribe("job", slow)

	h.Broadcast("job", Event{Type: "status"})
	assert.Equal(t, 1, h.Subscribers("job"))
}

func TestUnsubscribeClosesClient(t *testing.T) {
	h := NewHub()
	client := make(Client, 1)
	h.Subscribe("job", client)
	h.Unsubscribe("job", client)

	_, open := <-client
	assert.False(t, open)
	assert.Zero(t, h.Subscribers("job"))

	// unknown topic and client are ignored
	h.Unsubscribe("job", client)
}
