// Package chat serves the bot operations over JSON HTTP.
package chat

import (
	"log/slog"
	"net/http"

	chatUC "pablos-ai/internal/usecase/chat"
)

// Register wires the chat, image and history routes into mux.
func Register(mux *http.ServeMux, svc *chatUC.Service, logger *slog.Logger) {
	mux.Handle("POST /v1/chat", ChatHandler{Svc: svc})
	mux.Handle("POST /v1/images", ImageHandler{Svc: svc})
	mux.Handle("GET /v1/history", HistoryHandler{Svc: svc})
	mux.Handle("DELETE /v1/history", ClearHistoryHandler{Svc: svc})

	logger.Info("chat routes registered")
}
