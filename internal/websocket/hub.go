package websocket

import (
	"context"
	"log/slog"
	"sync"

	"go-freelance/internal/event"
	"go-freelance/internal/metrics"
)

// PresenceFunc is told when a user's first socket connects and when the
// last one goes away.
type PresenceFunc func(userID string, online bool)

type requestOp int

const (
	opJoin requestOp = iota
	opLeave
	opReply
)

// clientRequest is applied on the hub goroutine so that nothing else ever
// writes to a client's send channel.
type clientRequest struct {
	client *Client
	op     requestOp
	room   string
	reply  Message
}

// Hub routes bus events to the sockets joined to each room. Every client is
// joined to its own user room for the lifetime of the connection.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	online  map[string]int

	register   chan registration
	unregister chan *Client
	requests   chan clientRequest
	done       chan struct{}

	bus        event.Bus
	onPresence PresenceFunc
	presenceQ  chan presenceUpdate
	metrics    *metrics.Metrics
}

// registration is acknowledged once the client has joined its user room.
type registration struct {
	client *Client
	added  chan struct{}
}

type presenceUpdate struct {
	userID string
	online bool
}

func NewHub(bus event.Bus, onPresence PresenceFunc, m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    map[*Client]struct{}{},
		rooms:      map[string]map[*Client]struct{}{},
		online:     map[string]int{},
		register:   make(chan registration),
		unregister: make(chan *Client),
		requests:   make(chan clientRequest),
		done:       make(chan struct{}),
		bus:        bus,
		onPresence: onPresence,
		presenceQ:  make(chan presenceUpdate, 256),
		metrics:    m,
	}
}

// Run owns all hub state until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()
	defer close(h.done)

	// presence updates are applied in order, off the hub goroutine
	go func() {
		for update := range h.presenceQ {
			if h.onPresence != nil {
				h.onPresence(update.userID, update.online)
			}
		}
	}()
	defer close(h.presenceQ)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case reg := <-h.register:
			h.add(reg.client)
			close(reg.added)
		case client := <-h.unregister:
			h.remove(client)
		case req := <-h.requests:
			h.apply(req)
		case e, ok := <-events:
			if !ok {
				h.closeAll()
				return
			}
			h.dispatch(e)
		}
	}
}

// Register blocks until the hub has added c, or reports false when the hub
// has stopped.
func (h *Hub) Register(c *Client) bool {
	reg := registration{client: c, added: make(chan struct{})}
	select {
	case h.register <- reg:
		<-reg.added
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) request(req clientRequest) {
	select {
	case h.requests <- req:
	case <-h.done:
	}
}

func (h *Hub) replyTo(c *Client, msg Message) {
	h.request(clientRequest{client: c, op: opReply, reply: msg})
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.joinLocked(c, event.UserRoom(c.userID))
	h.online[c.userID]++
	first := h.online[c.userID] == 1
	h.mu.Unlock()

	h.metrics.SocketOpened()
	slog.Debug("socket connected", "user_id", c.userID, "client_id", c.id)
	if first {
		h.presence(c.userID, true)
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	h.dropLocked(c)
	h.online[c.userID]--
	last := h.online[c.userID] <= 0
	if last {
		delete(h.online, c.userID)
	}
	h.mu.Unlock()

	h.metrics.SocketClosed()
	slog.Debug("socket disconnected", "user_id", c.userID, "client_id", c.id)
	if last {
		h.presence(c.userID, false)
	}
}

func (h *Hub) apply(req clientRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[req.client]; !ok {
		return
	}

	reply := req.reply
	switch req.op {
	case opJoin:
		h.joinLocked(req.client, req.room)
		reply = Message{Type: MessageTypeJoined, Room: req.room}
	case opLeave:
		h.leaveLocked(req.client, req.room)
		reply = Message{Type: MessageTypeLeft, Room: req.room}
	}
	req.client.trySend(reply)
}

func (h *Hub) dispatch(e event.Event) {
	msg := Message{Type: MessageTypeEvent, Room: e.Room, Event: string(e.Type), Data: e.Payload}

	h.mu.Lock()
	var slow []*Client
	for c := range h.rooms[e.Room] {
		if !c.trySend(msg) {
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		slog.Warn("dropping slow socket", "user_id", c.userID, "client_id", c.id)
		h.remove(c)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		h.dropLocked(c)
		h.metrics.SocketClosed()
	}
	h.online = map[string]int{}
}

func (h *Hub) joinLocked(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = map[*Client]struct{}{}
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

func (h *Hub) dropLocked(c *Client) {
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) presence(userID string, online bool) {
	if h.onPresence == nil {
		return
	}
	select {
	case h.presenceQ <- presenceUpdate{userID: userID, online: online}:
	default:
		slog.Warn("presence update dropped", "user_id", userID, "online", online)
	}
}
