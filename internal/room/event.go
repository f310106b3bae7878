package room

import "encoding/json"

// EventType is the wire name of a server to client event.
type EventType string

const (
	EventRoomUsers    EventType = "room-users"
	EventUserJoined   EventType = "user-joined"
	EventUserLeft     EventType = "user-left"
	EventCodeUpdate   EventType = "code-update"
	EventCursorUpdate EventType = "cursor-update"
)

// Event is one of RoomUsers, UserJoined, UserLeft, CodeUpdate or CursorUpdate.
type Event interface {
	Type() EventType
}

// RoomUsers is the membership snapshot sent to a connection right after it
// joins. It includes the joiner itself.
type RoomUsers struct {
	Participants []Participant
}

// UserJoined announces a new participant to the rest of the room.
type UserJoined struct {
	Participant Participant
}

// UserLeft announces the departure of a connection.
type UserLeft struct {
	ConnectionID ConnectionID
}

// CodeUpdate carries the full editor content. Receivers replace what they
// display; there is no merge.
type CodeUpdate struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// CursorUpdate is an ephemeral cursor position. Position is relayed untouched.
type CursorUpdate struct {
	Position json.RawMessage `json:"position"`
	UserID   string          `json:"userId"`
	UserName string          `json:"userName"`
	Color    string          `json:"color"`
}

func (RoomUsers) Type() EventType    { return EventRoomUsers }
func (UserJoined) Type() EventType   { return EventUserJoined }
func (UserLeft) Type() EventType     { return EventUserLeft }
func (CodeUpdate) Type() EventType   { return EventCodeUpdate }
func (CursorUpdate) Type() EventType { return EventCursorUpdate }
