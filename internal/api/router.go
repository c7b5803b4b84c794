package api

import (
	"net/http"

	"typeduet/internal/middleware"
	"typeduet/internal/services/collaboration"

	"github.com/gorilla/mux"
)

func SetupRoutes(h *Handler, ws *collaboration.WebSocketHandler, staticDir string) *mux.Router {
	r := mux.NewRouter()

	// Middleware order: tracing first, then recovery, then CORS
	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.ErrorRecoveryMiddleware)
	r.Use(middleware.CORSMiddleware)

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/rooms", h.ListRooms).Methods("GET")
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// WebSocket route
	r.HandleFunc("/ws", ws.HandleConnection)

	// Lobby and room UI
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, staticDir+"/index.html")
	})
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))

	return r
}
