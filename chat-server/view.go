package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewHandler builds the chat HTTP router: websocket endpoint plus the
// upload boundary. The page itself is rendered by whatever front end sits
// on top; this server only speaks the event channel and files.
func NewHandler(h *hub, uploadDir string) http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("wifi-chat server\n"))
	})
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) { handleWS(w, r, h) })
	r.Post("/upload", func(w http.ResponseWriter, r *http.Request) { handleUpload(w, r, uploadDir) })
	r.Get("/uploads/{name}", func(w http.ResponseWriter, r *http.Request) { handleServeUpload(w, r, uploadDir) })
	return r
}
