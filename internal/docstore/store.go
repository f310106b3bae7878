// Package docstore persists the latest saved document of each room in
// BadgerDB. Clients load and save documents through the HTTP API; the room
// coordinator never touches it.
package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AmoghxAnubis/Agora/internal/room"
	"github.com/dgraph-io/badger/v4"
	"github.com/go-playground/validator/v10"
)

const keyPrefix = "doc:"

var (
	ErrNotFound = errors.New("document not found")
	// ErrStale is returned when an upsert carries a timestamp older than the
	// stored document.
	ErrStale = errors.New("document is older than the stored version")
)

// Document is the saved content of a room. There is at most one per room.
type Document struct {
	RoomID    string    `json:"roomId" validate:"required,roomid"`
	Content   string    `json:"content"`
	Language  string    `json:"language" validate:"max=64"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Store struct {
	db        *badger.DB
	log       *slog.Logger
	validator *validator.Validate
	now       func() time.Time
}

func NewStore(db *badger.DB, log *slog.Logger) *Store {
	v := validator.New()
	if err := v.RegisterValidation("roomid", func(fl validator.FieldLevel) bool {
		return room.ID(fl.Field().String()).Valid()
	}); err != nil {
		panic(err)
	}
	return &Store{db: db, log: log, validator: v, now: time.Now}
}

// Open opens (or creates) a Badger database at path.
func Open(path string) (*badger.DB, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return db, nil
}

// OpenReadOnly opens an existing database without taking the write lock, so
// it can be inspected while the server is running.
func OpenReadOnly(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger read-only at %s: %w", path, err)
	}
	return db, nil
}

// Load returns the document saved for roomID.
func (s *Store) Load(roomID string) (Document, error) {
	var doc Document
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(roomID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &doc)
		})
	})
	return doc, err
}

// Upsert saves doc as the room's document, replacing any previous one. A zero
// UpdatedAt is stamped with the current time.
func (s *Store) Upsert(doc Document) (Document, error) {
	if err := s.validator.Struct(doc); err != nil {
		return Document{}, fmt.Errorf("invalid document: %w", err)
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = s.now()
	}
	doc.UpdatedAt = doc.UpdatedAt.UTC()

	bytes, err := json.Marshal(doc)
	if err != nil {
		return Document{}, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key(doc.RoomID))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			var stored Document
			if err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &stored)
			}); err != nil {
				return err
			}
			if doc.UpdatedAt.Before(stored.UpdatedAt) {
				return ErrStale
			}
		}
		return txn.Set(key(doc.RoomID), bytes)
	})
	if err != nil {
		return Document{}, err
	}

	s.log.Debug("Document saved", "room", doc.RoomID, "language", doc.Language, "bytes", len(doc.Content))
	return doc, nil
}

// List returns up to limit documents ordered by room id. A limit of zero or
// less returns all of them.
func (s *Store) List(limit int) ([]Document, error) {
	return List(s.db, limit)
}

// List scans db for documents. It is shared with the read-only inspector.
func List(db *badger.DB, limit int) ([]Document, error) {
	var docs []Document
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(docs) == limit {
				break
			}
			var doc Document
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &doc)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			docs = append(docs, doc)
		}
		return nil
	})
	return docs, err
}

func key(roomID string) []byte {
	return []byte(keyPrefix + roomID)
}
