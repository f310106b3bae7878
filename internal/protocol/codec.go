package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AmoghxAnubis/Agora/internal/room"
	"github.com/go-playground/validator/v10"
)

// Error codes carried by error frames.
const (
	CodeMalformed     = "malformed-payload"
	CodeAlreadyInRoom = "already-in-room"
	CodeInternal      = "internal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("roomid", func(fl validator.FieldLevel) bool {
		return room.ID(fl.Field().String()).Valid()
	}); err != nil {
		panic(err)
	}
	return v
}

// Decode parses and validates a client frame. Every failure wraps
// room.ErrMalformedPayload.
func Decode(raw []byte) (Command, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", room.ErrMalformedPayload, err)
	}
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return nil, fmt.Errorf("%w: %q has no payload", room.ErrMalformedPayload, env.Type)
	}

	var (
		cmd Command
		err error
	)
	switch env.Type {
	case TypeJoinRoom:
		cmd, err = decodeInto[JoinRoom](env.Payload)
	case TypeCodeChange:
		cmd, err = decodeInto[CodeChange](env.Payload)
	case TypeCursorMove:
		cmd, err = decodeInto[CursorMove](env.Payload)
	case TypeLeaveRoom:
		cmd, err = decodeLeave(env.Payload)
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", room.ErrMalformedPayload, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", room.ErrMalformedPayload, env.Type, err)
	}
	return cmd, nil
}

func decodeInto[T Command](payload json.RawMessage) (T, error) {
	var cmd T
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return cmd, err
	}
	return cmd, validate.Struct(cmd)
}

// decodeLeave accepts the bare room id string clients send, as well as an
// object carrying roomId.
func decodeLeave(payload json.RawMessage) (LeaveRoom, error) {
	var cmd LeaveRoom
	if err := json.Unmarshal(payload, &cmd.RoomID); err != nil {
		var obj struct {
			RoomID string `json:"roomId"`
		}
		if objErr := json.Unmarshal(payload, &obj); objErr != nil {
			return cmd, err
		}
		cmd.RoomID = obj.RoomID
	}
	return cmd, validate.Struct(cmd)
}

// Encode renders a coordinator event as a frame.
func Encode(evt room.Event) ([]byte, error) {
	var payload any
	switch e := evt.(type) {
	case room.RoomUsers:
		participants := e.Participants
		if participants == nil {
			participants = []room.Participant{}
		}
		payload = participants
	case room.UserJoined:
		payload = e.Participant
	case room.UserLeft:
		payload = e.ConnectionID
	case room.CodeUpdate, room.CursorUpdate:
		payload = e
	default:
		return nil, fmt.Errorf("unsupported event %T", evt)
	}
	return encode(string(evt.Type()), payload)
}

// EncodeError renders an error frame for err.
func EncodeError(err error) ([]byte, error) {
	code := CodeInternal
	switch {
	case errors.Is(err, room.ErrMalformedPayload):
		code = CodeMalformed
	case errors.Is(err, room.ErrAlreadyInRoom):
		code = CodeAlreadyInRoom
	}
	return encode(TypeError, ErrorPayload{Code: code, Message: err.Error()})
}

func encode(eventType string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: eventType, Payload: body})
}
