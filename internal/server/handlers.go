// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, relay stats, the document API, and the built-in test page.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/AmoghxAnubis/Agora/internal/docstore"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
)

const maxDocumentBody = 1 << 20

// WebSocketHandler upgrades GET requests from allowed origins and registers a
// new client with the hub, which launches its pumps.
func WebSocketHandler(hub *Hub) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if hub.cfg.IsOriginAllowed(r.Header.Get("Origin")) {
				return true
			}
			hub.log.Warn("Blocked WebSocket connection from disallowed origin", "origin", r.Header.Get("Origin"))
			return false
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Warn("WebSocket upgrade failed", "error", err)
			return
		}

		client := NewClient(conn, hub, r.RemoteAddr)
		if err := hub.Register(client); err != nil {
			client.log.Warn("Rejecting connection", "error", err)
			_ = conn.Close()
		}
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Agora relay is running!")
}

// StatsHandler serves the hub's live stats as JSON.
func StatsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, hub.log, http.StatusOK, hub.Snapshot())
	}
}

type documentRequest struct {
	Content   string    `json:"content"`
	Language  string    `json:"language"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DocumentHandler loads (GET) or saves (PUT) the document of the room named
// in the path.
func DocumentHandler(store DocumentStore, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.PathValue("roomID")

		switch r.Method {
		case http.MethodGet:
			doc, err := store.Load(roomID)
			if errors.Is(err, docstore.ErrNotFound) {
				http.Error(w, "document not found", http.StatusNotFound)
				return
			}
			if err != nil {
				log.Error("Error loading document", "room", roomID, "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			writeJSON(w, log, http.StatusOK, doc)

		case http.MethodPut:
			var body documentRequest
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDocumentBody)).Decode(&body); err != nil {
				http.Error(w, "invalid document body", http.StatusBadRequest)
				return
			}

			doc, err := store.Upsert(docstore.Document{
				RoomID:    roomID,
				Content:   body.Content,
				Language:  body.Language,
				UpdatedAt: body.UpdatedAt,
			})
			var validationErrs validator.ValidationErrors
			switch {
			case errors.Is(err, docstore.ErrStale):
				http.Error(w, err.Error(), http.StatusConflict)
			case errors.As(err, &validationErrs):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case err != nil:
				log.Error("Error saving document", "room", roomID, "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
			default:
				writeJSON(w, log, http.StatusOK, doc)
			}

		default:
			w.Header().Set("Allow", "GET, PUT, OPTIONS")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// DocumentListHandler lists saved documents, optionally bounded by ?limit=.
func DocumentListHandler(store DocumentStore, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		docs, err := store.List(limit)
		if err != nil {
			log.Error("Error listing documents", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if docs == nil {
			docs = []docstore.Document{}
		}
		writeJSON(w, log, http.StatusOK, docs)
	}
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn("Error writing JSON response", "error", err)
	}
}
