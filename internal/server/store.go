//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_document_store.go -package=mocks
package server

import "github.com/AmoghxAnubis/Agora/internal/docstore"

// DocumentStore is the document collaborator used by the HTTP API.
type DocumentStore interface {
	Load(roomID string) (docstore.Document, error)
	Upsert(doc docstore.Document) (docstore.Document, error)
	List(limit int) ([]docstore.Document, error)
}
