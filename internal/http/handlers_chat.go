package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const messageHistoryLimit = 50

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin browser clients are expected; auth is token based.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if room == "" {
		s.respondError(w, http.StatusBadRequest, "room is required")
		return
	}
	msgs, err := s.store.ListMessages(r.Context(), room, messageHistoryLimit)
	if err != nil {
		s.logger.Error("listing messages failed", "room", room, "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"messages": msgs, "count": len(msgs)})
}

func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	claims := identityFromContext(r.Context())
	room := mux.Vars(r)["room"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "room", room, "error", err)
		return
	}
	session := s.chat.Join(room, claims.UserID, conn)
	s.logger.Info("chat session opened", "room", room, "user_id", claims.UserID)
	s.chat.RunReadLoop(r.Context(), room, session)
}
