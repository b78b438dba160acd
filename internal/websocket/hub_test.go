package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-freelance/internal/event"
	"go-freelance/internal/model"
)

type presenceRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (p *presenceRecorder) record(userID string, online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state := "offline"
	if online {
		state = "online"
	}
	p.calls = append(p.calls, userID+":"+state)
}

func (p *presenceRecorder) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func startHub(t *testing.T, onPresence PresenceFunc) (*Hub, *event.InMemoryBus) {
	t.Helper()
	bus := event.NewBus()
	hub := NewHub(bus, onPresence, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub, bus
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestHub_RoutesEventsByRoom(t *testing.T) {
	hub, bus := startHub(t, nil)

	alice := NewClient(hub, nil, "alice")
	bob := NewClient(hub, nil, "bob")
	require.True(t, hub.Register(alice))
	require.True(t, hub.Register(bob))

	hub.request(clientRequest{client: alice, op: opJoin, room: "task:7"})
	assert.Equal(t, Message{Type: MessageTypeJoined, Room: "task:7"}, receive(t, alice))

	bus.Publish(event.New(event.UserRoom("bob"), event.TypeNotification, "hello bob"))
	msg := receive(t, bob)
	assert.Equal(t, MessageTypeEvent, msg.Type)
	assert.Equal(t, "user:bob", msg.Room)
	assert.Equal(t, "hello bob", msg.Data)

	bus.Publish(event.New(event.TaskRoom("7"), event.TypeTaskUpdate, "moved"))
	msg = receive(t, alice)
	assert.Equal(t, "task:7", msg.Room)
	assert.Equal(t, string(event.TypeTaskUpdate), msg.Event)

	assert.Empty(t, bob.send)
	assert.Equal(t, 1, hub.RoomSize("task:7"))

	hub.request(clientRequest{client: alice, op: opLeave, room: "task:7"})
	assert.Equal(t, MessageTypeLeft, receive(t, alice).Type)
	assert.Equal(t, 0, hub.RoomSize("task:7"))
}

func TestHub_PresenceTracksLastSocket(t *testing.T) {
	recorder := &presenceRecorder{}
	hub, _ := startHub(t, recorder.record)

	first := NewClient(hub, nil, "carol")
	second := NewClient(hub, nil, "carol")
	require.True(t, hub.Register(first))
	require.True(t, hub.Register(second))
	assert.Equal(t, 2, hub.RoomSize("user:carol"))

	hub.Unregister(first)
	hub.Unregister(second)

	assert.Eventually(t, func() bool {
		return len(recorder.snapshot()) == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"carol:online", "carol:offline"}, recorder.snapshot())
	assert.Equal(t, 0, hub.ClientCount())

	_, open := <-first.send
	assert.False(t, open)
}

func TestHub_RegisterIsAppliedOnReturn(t *testing.T) {
	hub, _ := startHub(t, nil)

	for i := 1; i <= 20; i++ {
		require.True(t, hub.Register(NewClient(hub, nil, "gina")))
		require.Equal(t, i, hub.ClientCount())
		require.Equal(t, i, hub.RoomSize("user:gina"))
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub, bus := startHub(t, nil)

	slow := NewClient(hub, nil, "dave")
	require.True(t, hub.Register(slow))

	for i := 0; i < sendBuffer+1; i++ {
		bus.Publish(event.New(event.UserRoom("dave"), event.TypeNotification, i))
	}

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestClient_RejectsNonTaskRooms(t *testing.T) {
	hub, _ := startHub(t, nil)
	c := NewClient(hub, nil, "erin")
	require.True(t, hub.Register(c))

	c.handle(Message{Type: MessageTypeJoin, Room: "user:someone-else"})
	msg := receive(t, c)
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Equal(t, 0, hub.RoomSize("user:someone-else"))

	c.handle(Message{Type: MessageTypePing})
	assert.Equal(t, MessageTypePong, receive(t, c).Type)
}

type stubResolver struct{}

func (stubResolver) ResolveIdentity(_ context.Context, token string) (model.Identity, error) {
	if token == "valid" {
		return model.Identity{ID: "frank", Role: model.RoleFreelancer}, nil
	}
	return model.Identity{}, model.ErrInvalidToken
}

func TestHandler_Handshake(t *testing.T) {
	hub, bus := startHub(t, nil)
	server := httptest.NewServer(http.HandlerFunc(NewHandler(hub, stubResolver{}, []string{"*"}).ServeWS))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	t.Run("missing token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("invalid token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token=forged", nil)
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid token receives user room events", func(t *testing.T) {
		header := http.Header{}
		header.Set("Authorization", "Bearer valid")
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
		require.NoError(t, err)
		defer conn.Close()

		require.Eventually(t, func() bool { return hub.RoomSize("user:frank") == 1 }, time.Second, 10*time.Millisecond)

		bus.Publish(event.New(event.UserRoom("frank"), event.TypeNotification, map[string]string{"title": "hi"}))

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, MessageTypeEvent, msg.Type)
		assert.Equal(t, "user:frank", msg.Room)
	})
}
