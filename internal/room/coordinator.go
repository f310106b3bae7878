package room

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Coordinator tracks which connections belong to which room and fans events
// out to the right subset of them.
//
// Every room has its own lock, so operations on one room are applied one at a
// time while different rooms proceed independently. The table lock only guards
// the room and membership maps and is never held while acquiring a room lock.
type Coordinator struct {
	mu          sync.Mutex
	rooms       map[ID]*state
	memberships map[ConnectionID]map[ID]struct{}
	sink        Sink
	log         *slog.Logger
}

type state struct {
	mu      sync.Mutex
	id      ID
	members map[ConnectionID]member
	seq     uint64
	// closed is set once the room has been dropped from the table. A caller
	// that locked a closed room must look it up again.
	closed bool
}

type member struct {
	participant Participant
	joinedAt    uint64
}

// NewCoordinator returns an empty coordinator delivering through sink.
func NewCoordinator(sink Sink, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		rooms:       make(map[ID]*state),
		memberships: make(map[ConnectionID]map[ID]struct{}),
		sink:        sink,
		log:         log,
	}
}

// Join registers conn in roomID, notifies the other members with user-joined
// and replies to conn alone with a room-users snapshot that includes itself.
//
// Joining the room the connection is already in refreshes its participant
// record and resends the snapshot without announcing it again.
func (c *Coordinator) Join(conn ConnectionID, roomID ID, p Participant) error {
	if conn == "" || roomID == "" {
		return fmt.Errorf("join: %w", ErrMalformedPayload)
	}
	p.ConnectionID = conn

	r := c.acquire(roomID, true)
	defer c.release(r)

	c.mu.Lock()
	for other := range c.memberships[conn] {
		if other != roomID {
			c.mu.Unlock()
			return fmt.Errorf("join %q: %w (member of %q)", roomID, ErrAlreadyInRoom, other)
		}
	}
	if c.memberships[conn] == nil {
		c.memberships[conn] = make(map[ID]struct{}, 1)
	}
	c.memberships[conn][roomID] = struct{}{}
	c.mu.Unlock()

	existing, rejoin := r.members[conn]
	if rejoin {
		r.members[conn] = member{participant: p, joinedAt: existing.joinedAt}
	} else {
		r.seq++
		r.members[conn] = member{participant: p, joinedAt: r.seq}
		c.fanout(r, conn, UserJoined{Participant: p})
	}

	snapshot := r.snapshot()
	c.log.Info("Participant joined room",
		"conn", conn, "room", roomID, "user", p.UserID, "members", len(snapshot), "rejoin", rejoin)

	if err := c.sink.Deliver(conn, RoomUsers{Participants: snapshot}); err != nil {
		c.log.Warn("Failed to deliver room snapshot", "conn", conn, "room", roomID, "error", err)
	}
	return nil
}

// Leave removes conn from roomID and notifies the remaining members. Leaving
// a room the connection is not in is a no-op.
func (c *Coordinator) Leave(conn ConnectionID, roomID ID) error {
	if conn == "" || roomID == "" {
		return fmt.Errorf("leave: %w", ErrMalformedPayload)
	}

	r := c.acquire(roomID, false)
	if r == nil {
		return nil
	}
	defer c.release(r)

	c.remove(r, conn)
	return nil
}

// BroadcastCodeChange relays a code update from conn to every other member of
// roomID. It returns ErrNotAMember when conn has not joined the room.
func (c *Coordinator) BroadcastCodeChange(conn ConnectionID, roomID ID, update CodeUpdate) error {
	return c.broadcast(conn, roomID, update)
}

// BroadcastCursor relays a cursor position from conn to every other member of
// roomID. Cursor updates are never stored.
func (c *Coordinator) BroadcastCursor(conn ConnectionID, roomID ID, update CursorUpdate) error {
	return c.broadcast(conn, roomID, update)
}

// Disconnect removes conn from every room it is recorded in, announcing
// user-left in each of them.
func (c *Coordinator) Disconnect(conn ConnectionID) {
	c.mu.Lock()
	joined := lo.Keys(c.memberships[conn])
	c.mu.Unlock()

	for _, roomID := range joined {
		if err := c.Leave(conn, roomID); err != nil {
			c.log.Warn("Failed to leave room on disconnect", "conn", conn, "room", roomID, "error", err)
		}
	}
}

// Members returns the participants of roomID in join order.
func (c *Coordinator) Members(roomID ID) []Participant {
	r := c.acquire(roomID, false)
	if r == nil {
		return nil
	}
	defer c.release(r)
	return r.snapshot()
}

// RoomOf returns the room conn currently belongs to.
func (c *Coordinator) RoomOf(conn ConnectionID) (ID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for roomID := range c.memberships[conn] {
		return roomID, true
	}
	return "", false
}

// Rooms summarizes every live room, sorted by id.
func (c *Coordinator) Rooms() []Summary {
	c.mu.Lock()
	states := lo.Values(c.rooms)
	c.mu.Unlock()

	summaries := make([]Summary, 0, len(states))
	for _, r := range states {
		r.mu.Lock()
		if !r.closed {
			summaries = append(summaries, Summary{ID: r.id, Members: len(r.members)})
		}
		r.mu.Unlock()
	}
	slices.SortFunc(summaries, func(a, b Summary) int { return cmp.Compare(a.ID, b.ID) })
	return summaries
}

// Len returns the number of live rooms.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rooms)
}

// Close drops every room without notifying anyone. It is meant for shutdown,
// once the transport no longer accepts traffic.
func (c *Coordinator) Close() {
	c.mu.Lock()
	states := lo.Values(c.rooms)
	c.rooms = make(map[ID]*state)
	c.memberships = make(map[ConnectionID]map[ID]struct{})
	c.mu.Unlock()

	for _, r := range states {
		r.mu.Lock()
		r.closed = true
		r.members = nil
		r.mu.Unlock()
	}
	c.log.Info("Room coordinator closed", "rooms", len(states))
}

func (c *Coordinator) broadcast(conn ConnectionID, roomID ID, evt Event) error {
	if conn == "" || roomID == "" {
		return fmt.Errorf("%s: %w", evt.Type(), ErrMalformedPayload)
	}

	r := c.acquire(roomID, false)
	if r == nil {
		return ErrNotAMember
	}
	defer c.release(r)

	if _, ok := r.members[conn]; !ok {
		return ErrNotAMember
	}
	c.fanout(r, conn, evt)
	return nil
}

// acquire returns the locked state of roomID, creating it when create is set.
// It returns nil when the room does not exist and create is false.
func (c *Coordinator) acquire(roomID ID, create bool) *state {
	for {
		c.mu.Lock()
		r, ok := c.rooms[roomID]
		if !ok {
			if !create {
				c.mu.Unlock()
				return nil
			}
			r = &state{id: roomID, members: make(map[ConnectionID]member)}
			c.rooms[roomID] = r
		}
		c.mu.Unlock()

		r.mu.Lock()
		if !r.closed {
			return r
		}
		r.mu.Unlock()
	}
}

// release unlocks r, dropping it from the table first when it is empty.
func (c *Coordinator) release(r *state) {
	if len(r.members) == 0 && !r.closed {
		r.closed = true
		c.mu.Lock()
		if c.rooms[r.id] == r {
			delete(c.rooms, r.id)
		}
		c.mu.Unlock()
		c.log.Debug("Room dropped", "room", r.id)
	}
	r.mu.Unlock()
}

// remove deletes conn from the locked room r and announces user-left.
func (c *Coordinator) remove(r *state, conn ConnectionID) {
	if _, ok := r.members[conn]; !ok {
		return
	}
	delete(r.members, conn)

	c.mu.Lock()
	if joined, ok := c.memberships[conn]; ok {
		delete(joined, r.id)
		if len(joined) == 0 {
			delete(c.memberships, conn)
		}
	}
	c.mu.Unlock()

	c.log.Info("Participant left room", "conn", conn, "room", r.id, "members", len(r.members))
	c.fanout(r, conn, UserLeft{ConnectionID: conn})
}

// fanout delivers evt to every member of the locked room r except sender. A
// failed delivery is logged and never stops the loop.
func (c *Coordinator) fanout(r *state, sender ConnectionID, evt Event) {
	if p, ok := c.sink.(Preparer); ok && len(r.members) > 1 {
		prepared, err := p.Prepare(evt)
		if err != nil {
			c.log.Warn("Failed to prepare event", "event", evt.Type(), "room", r.id, "error", err)
			return
		}
		evt = prepared
	}
	for conn := range r.members {
		if conn == sender {
			continue
		}
		if err := c.sink.Deliver(conn, evt); err != nil {
			c.log.Warn("Failed to deliver event",
				"event", evt.Type(), "conn", conn, "room", r.id, "error", err)
		}
	}
}

func (r *state) snapshot() []Participant {
	members := lo.Values(r.members)
	slices.SortFunc(members, func(a, b member) int { return cmp.Compare(a.joinedAt, b.joinedAt) })
	return lo.Map(members, func(m member, _ int) Participant { return m.participant })
}
