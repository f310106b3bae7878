// Package protocol defines the JSON envelope exchanged over the websocket,
// the tagged client commands it carries, and their validation. Nothing that
// fails validation here ever reaches the room coordinator.
package protocol

import (
	"encoding/json"

	"github.com/AmoghxAnubis/Agora/internal/room"
)

// Client to server event names.
const (
	TypeJoinRoom   = "join-room"
	TypeLeaveRoom  = "leave-room"
	TypeCodeChange = "code-change"
	TypeCursorMove = "cursor-move"
)

// TypeError is sent to a single connection whose frame was rejected.
const TypeError = "error"

// Envelope is the frame format for both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Command is one of JoinRoom, LeaveRoom, CodeChange or CursorMove.
type Command interface {
	Name() string
	Room() room.ID
}

// UserData is the identity a client attaches when joining. Every field may be
// blank; identity is not checked here.
type UserData struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type JoinRoom struct {
	RoomID   string    `json:"roomId" validate:"required,roomid"`
	UserData *UserData `json:"userData" validate:"required"`
}

type LeaveRoom struct {
	RoomID string `validate:"required,roomid"`
}

type CodeChange struct {
	RoomID   string `json:"roomId" validate:"required,roomid"`
	Code     string `json:"code"`
	Language string `json:"language"`
}

type CursorMove struct {
	RoomID   string          `json:"roomId" validate:"required,roomid"`
	Position json.RawMessage `json:"position"`
	UserID   string          `json:"userId"`
	UserName string          `json:"userName"`
	Color    string          `json:"color"`
}

func (JoinRoom) Name() string   { return TypeJoinRoom }
func (LeaveRoom) Name() string  { return TypeLeaveRoom }
func (CodeChange) Name() string { return TypeCodeChange }
func (CursorMove) Name() string { return TypeCursorMove }

func (c JoinRoom) Room() room.ID   { return room.ID(c.RoomID) }
func (c LeaveRoom) Room() room.ID  { return room.ID(c.RoomID) }
func (c CodeChange) Room() room.ID { return room.ID(c.RoomID) }
func (c CursorMove) Room() room.ID { return room.ID(c.RoomID) }

// Participant builds the membership record for the joining connection.
func (c JoinRoom) Participant(conn room.ConnectionID) room.Participant {
	return room.Participant{
		ConnectionID: conn,
		UserID:       c.UserData.ID,
		Name:         c.UserData.Name,
		Color:        c.UserData.Color,
	}
}

// Update returns the event relayed to the rest of the room.
func (c CodeChange) Update() room.CodeUpdate {
	return room.CodeUpdate{Code: c.Code, Language: c.Language}
}

// Update returns the event relayed to the rest of the room.
func (c CursorMove) Update() room.CursorUpdate {
	return room.CursorUpdate{Position: c.Position, UserID: c.UserID, UserName: c.UserName, Color: c.Color}
}

// ErrorPayload is the body of an error frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
