package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"poselink/models"
)

func TestHubSendUnknownConnection(t *testing.T) {
	hub := NewConnectionHub()

	err := hub.Send("missing", []byte("data"))
	require.ErrorIs(t, err, ErrConnectionNotFound)
}

func TestHubSendAndUnregister(t *testing.T) {
	hub := NewConnectionHub()
	conn := &Connection{ID: "c-1", Send: make(chan []byte, 2)}
	hub.Register(conn)
	require.Equal(t, 1, hub.Count())

	require.NoError(t, hub.SendEvent("c-1", models.Envelope{Event: models.EventSessionCreated, Code: "AB12CD"}))
	require.Len(t, conn.Send, 1)

	hub.Unregister("c-1")
	require.Zero(t, hub.Count())

	_, open := <-conn.Send
	require.True(t, open, "queued message still readable")
	_, open = <-conn.Send
	require.False(t, open, "send channel closed on unregister")
}

func TestHubDropsOnFullBuffer(t *testing.T) {
	hub := NewConnectionHub()
	conn := &Connection{ID: "c-1", Send: make(chan []byte, 1)}
	hub.Register(conn)

	require.NoError(t, hub.Send("c-1", []byte("first")))
	err := hub.Send("c-1", []byte("second"))
	require.ErrorIs(t, err, ErrConnectionBufferFull)
	require.Len(t, conn.Send, 1)
}
