package server

import (
	"fmt"

	"github.com/AmoghxAnubis/Agora/internal/protocol"
	"github.com/AmoghxAnubis/Agora/internal/room"
)

// dispatch applies a decoded command from client to the room coordinator.
// Commands from one client are dispatched in order by its read pump.
func (h *Hub) dispatch(client *Client, cmd protocol.Command) error {
	switch cmd := cmd.(type) {
	case protocol.JoinRoom:
		return h.rooms.Join(client.id, cmd.Room(), cmd.Participant(client.id))
	case protocol.LeaveRoom:
		return h.rooms.Leave(client.id, cmd.Room())
	case protocol.CodeChange:
		return h.rooms.BroadcastCodeChange(client.id, cmd.Room(), cmd.Update())
	case protocol.CursorMove:
		return h.rooms.BroadcastCursor(client.id, cmd.Room(), cmd.Update())
	default:
		return fmt.Errorf("%w: unhandled command %s", room.ErrMalformedPayload, cmd.Name())
	}
}
