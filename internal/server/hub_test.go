package server

import (
	"context"
	"testing"
	"time"

	"casinoclient/internal/game"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientQueueBackpressure(t *testing.T) {
	c := &Client{queue: make(chan []byte, 1)}

	assert.True(t, c.enqueue([]byte(`{"n":1}`)))
	assert.False(t, c.enqueue([]byte(`{"n":2}`)), "full queue refuses the frame")
	assert.ErrorIs(t, c.send(game.Message{Type: "pong"}), errClientBacklog)

	assert.Equal(t, `{"n":1}`, string(<-c.queue))
	assert.NoError(t, c.send(game.Message{Type: "pong"}))
}

func TestHubRegisterAfterStop(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	require.False(t, hub.Register(&Client{}))
	hub.Unregister(&Client{})
	assert.Equal(t, 0, hub.ClientCount())
}
