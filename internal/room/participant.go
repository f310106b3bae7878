package room

// ID identifies a room. It is opaque to the coordinator.
type ID string

// MaxIDBytes bounds the encoded length of a room id.
const MaxIDBytes = 256

// Valid reports whether id is non-empty and at most MaxIDBytes bytes long.
func (id ID) Valid() bool {
	return id != "" && len(id) <= MaxIDBytes
}

// ConnectionID identifies one live bidirectional channel to a client.
type ConnectionID string

// Participant is a room membership record for one connection. UserID may
// repeat across participants (one user, several tabs); ConnectionID is unique.
type Participant struct {
	ConnectionID ConnectionID `json:"connectionId"`
	UserID       string       `json:"id"`
	Name         string       `json:"name"`
	Color        string       `json:"color"`
}

// Summary describes a room for stats reporting.
type Summary struct {
	ID      ID  `json:"id"`
	Members int `json:"members"`
}
