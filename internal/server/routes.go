// Package server wires HTTP handlers into a ServeMux for the relay via
// routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes. The document API is only mounted when a store is provided.
func SetupRoutes(hub *Hub, store DocumentStore) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", WebSocketHandler(hub))
	mux.HandleFunc("/test", TestPageHandler)
	mux.Handle("/api/stats", withCORS(hub.cfg, StatsHandler(hub)))

	if store != nil {
		mux.Handle("/api/rooms/{roomID}/document", withCORS(hub.cfg, DocumentHandler(store, hub.log)))
		mux.Handle("/api/documents", withCORS(hub.cfg, DocumentListHandler(store, hub.log)))
	}
	return mux
}
