package server

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/AmoghxAnubis/Agora/internal/protocol"
	"github.com/AmoghxAnubis/Agora/internal/room"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T, mutate func(*Config)) *Hub {
	t.Helper()
	cfg := NewConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	hub := NewHub(cfg.Sanitize(), logs.GetLoggerFromLevel(slog.LevelDebug))
	go hub.Run()
	t.Cleanup(func() { _ = hub.Shutdown(time.Second) })
	return hub
}

// attach registers a client without a websocket, so no pumps run and frames
// stay in its send buffer.
func attach(hub *Hub) *Client {
	client := NewClient(nil, hub, "test")
	hub.mutex.Lock()
	hub.clients[client.id] = client
	hub.mutex.Unlock()
	return client
}

func nextFrame(t *testing.T, client *Client) protocol.Envelope {
	t.Helper()
	select {
	case frame, ok := <-client.GetSendChan():
		require.True(t, ok, "send channel closed")
		var env protocol.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("no frame queued")
		return protocol.Envelope{}
	}
}

func requireNoFrame(t *testing.T, client *Client) {
	t.Helper()
	select {
	case frame := <-client.GetSendChan():
		t.Fatalf("unexpected frame: %s", frame)
	default:
	}
}

func TestHub_DeliverQueuesEncodedFrame(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(t, nil)
	client := attach(hub)

	req.NoError(hub.Deliver(client.ID(), room.UserLeft{ConnectionID: "conn-x"}))

	frame := <-client.GetSendChan()
	req.JSONEq(`{"type":"user-left","payload":"conn-x"}`, string(frame))
}

func TestHub_DeliverUnknownConnection(t *testing.T) {
	hub := newTestHub(t, nil)
	err := hub.Deliver("nobody", room.UserLeft{ConnectionID: "conn-x"})
	require.ErrorIs(t, err, ErrUnknownConnection)
}

func TestHub_DeliverEvictsSlowClient(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(t, func(cfg *Config) { cfg.SendBufferSize = 1 })
	client := attach(hub)

	req.NoError(hub.Deliver(client.ID(), room.UserLeft{ConnectionID: "a"}))
	req.ErrorIs(hub.Deliver(client.ID(), room.UserLeft{ConnectionID: "b"}), ErrSendBufferFull)

	req.Eventually(func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)

	// the queued frame is still drained before the channel reports closed
	_, ok := <-client.GetSendChan()
	req.True(ok)
	_, ok = <-client.GetSendChan()
	req.False(ok)
}

func TestHub_PreparedEventIsEncodedOnce(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(t, nil)
	alice, bob := attach(hub), attach(hub)

	prepared, err := hub.Prepare(room.CodeUpdate{Code: "x=1", Language: "go"})
	req.NoError(err)
	req.Equal(room.EventCodeUpdate, prepared.Type())

	again, err := hub.Prepare(prepared)
	req.NoError(err)
	req.Equal(prepared, again)

	req.NoError(hub.Deliver(alice.ID(), prepared))
	req.NoError(hub.Deliver(bob.ID(), prepared))

	first, second := <-alice.GetSendChan(), <-bob.GetSendChan()
	req.JSONEq(`{"type":"code-update","payload":{"code":"x=1","language":"go"}}`, string(first))
	req.Same(&first[0], &second[0], "recipients share one encoded frame")
}

func TestHub_DeliverToClosedClientDoesNotEvict(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(t, nil)
	client := attach(hub)

	hub.mutex.Lock()
	client.closed = true
	hub.mutex.Unlock()

	err := hub.Deliver(client.ID(), room.UserLeft{ConnectionID: "conn-x"})
	req.ErrorIs(err, ErrUnknownConnection)
	req.NotErrorIs(err, ErrSendBufferFull)

	time.Sleep(50 * time.Millisecond)
	req.Equal(1, hub.ClientCount(), "closed client must not be evicted")
}

func TestHub_DispatchJoinAndBroadcast(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(t, nil)
	alice := attach(hub)
	bob := attach(hub)

	join := func(c *Client, name string) {
		cmd, err := protocol.Decode([]byte(`{"type":"join-room","payload":{"roomId":"r1","userData":{"id":"u","name":"` + name + `"}}}`))
		req.NoError(err)
		req.NoError(hub.dispatch(c, cmd))
	}

	join(alice, "Alice")
	req.Equal(string(room.EventRoomUsers), nextFrame(t, alice).Type)

	join(bob, "Bob")
	req.Equal(string(room.EventUserJoined), nextFrame(t, alice).Type)
	env := nextFrame(t, bob)
	req.Equal(string(room.EventRoomUsers), env.Type)
	var users []room.Participant
	req.NoError(json.Unmarshal(env.Payload, &users))
	req.Equal([]room.ConnectionID{alice.ID(), bob.ID()},
		[]room.ConnectionID{users[0].ConnectionID, users[1].ConnectionID})

	cmd, err := protocol.Decode([]byte(`{"type":"code-change","payload":{"roomId":"r1","code":"x=1","language":"go"}}`))
	req.NoError(err)
	req.NoError(hub.dispatch(bob, cmd))

	env = nextFrame(t, alice)
	req.Equal(string(room.EventCodeUpdate), env.Type)
	req.JSONEq(`{"code":"x=1","language":"go"}`, string(env.Payload))
	requireNoFrame(t, bob)

	roomID, ok := hub.Rooms().RoomOf(bob.ID())
	req.True(ok)
	req.Equal(room.ID("r1"), roomID)
}

func TestClient_ProcessMessageRepliesWithErrorFrame(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(t, nil)
	client := attach(hub)

	client.processMessage([]byte(`{"type":"shout","payload":{}}`))

	env := nextFrame(t, client)
	req.Equal(protocol.TypeError, env.Type)
	var payload protocol.ErrorPayload
	req.NoError(json.Unmarshal(env.Payload, &payload))
	req.Equal(protocol.CodeMalformed, payload.Code)
}

func TestClient_ProcessMessageIgnoresNonMember(t *testing.T) {
	hub := newTestHub(t, nil)
	client := attach(hub)

	client.processMessage([]byte(`{"type":"cursor-move","payload":{"roomId":"r1","position":1}}`))
	requireNoFrame(t, client)
}

func TestClient_JoinIsNotRateLimited(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(t, func(cfg *Config) {
		cfg.RateLimit = RateLimitConfig{Burst: 1, RefillInterval: time.Hour}
	})
	client := attach(hub)

	client.processMessage([]byte(`{"type":"code-change","payload":{"roomId":"r1","code":"x"}}`))
	client.processMessage([]byte(`{"type":"code-change","payload":{"roomId":"r1","code":"y"}}`))
	req.False(client.rateLimiter.allow(), "bucket is exhausted")

	client.processMessage([]byte(`{"type":"join-room","payload":{"roomId":"r1","userData":{"id":"u"}}}`))
	req.Equal(string(room.EventRoomUsers), nextFrame(t, client).Type)

	client.processMessage([]byte(`{"type":"leave-room","payload":"r1"}`))
	_, joined := hub.Rooms().RoomOf(client.ID())
	req.False(joined)
}

func TestHub_Snapshot(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(t, nil)
	client := attach(hub)
	req.NoError(hub.rooms.Join(client.ID(), "r1", room.Participant{Name: "Alice"}))

	stats := hub.Snapshot()
	req.Equal(1, stats.Connections)
	req.Equal([]room.Summary{{ID: "r1", Members: 1}}, stats.Rooms)
}

func TestHub_RegisterAfterShutdown(t *testing.T) {
	hub := NewHub(NewConfig(), nil)
	go hub.Run()
	require.NoError(t, hub.Shutdown(time.Second))
	require.ErrorIs(t, hub.Register(NewClient(nil, hub, "late")), ErrHubStopped)
}
