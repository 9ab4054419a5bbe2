// Package chat relays room-scoped messages between connected websockets and
// persists them through the message store.
package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/example/carpool-matching/internal/models"
	"github.com/example/carpool-matching/internal/observability"
	"github.com/example/carpool-matching/internal/storage"
)

// Event is the wire format pushed to connected clients.
type Event struct {
	Type    string          `json:"type"` // "message" or "join"
	Room    string          `json:"room"`
	Text    string          `json:"text,omitempty"`
	Message *models.Message `json:"message,omitempty"`
}

// Session wraps one connection. Writes are serialized per connection since
// gorilla/websocket allows only one concurrent writer.
type Session struct {
	UserID string
	conn   *websocket.Conn
	mu     sync.Mutex
}

func (s *Session) send(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(ev)
}

// Registry tracks which sessions are in which room.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Session]struct{}
	store  storage.MessageStore
	logger *slog.Logger
}

func NewRegistry(store storage.MessageStore, logger *slog.Logger) *Registry {
	return &Registry{rooms: make(map[string]map[*Session]struct{}), store: store, logger: logger}
}

// Join adds a connection to a room and announces it to the other members.
func (r *Registry) Join(room, userID string, conn *websocket.Conn) *Session {
	s := &Session{UserID: userID, conn: conn}
	r.mu.Lock()
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[*Session]struct{})
		r.rooms[room] = members
	}
	members[s] = struct{}{}
	r.mu.Unlock()

	r.fanOut(room, Event{Type: "join", Room: room, Text: userID + " joined the chat"}, s)
	return s
}

// Leave removes a session; the last member leaving drops the room.
func (r *Registry) Leave(room string, s *Session) {
	r.mu.Lock()
	if members, ok := r.rooms[room]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	r.mu.Unlock()
}

// Relay persists a message and broadcasts it to every session in the room,
// including the sender.
func (r *Registry) Relay(ctx context.Context, room, senderID, content string) (*models.Message, error) {
	msg := &models.Message{
		ID:       uuid.NewString(),
		SenderID: senderID,
		Room:     room,
		Content:  content,
		SentAt:   time.Now(),
	}
	if err := r.store.SaveMessage(ctx, msg); err != nil {
		return nil, err
	}
	observability.ChatMessagesSent.Inc()
	r.fanOut(room, Event{Type: "message", Room: room, Message: msg}, nil)
	return msg, nil
}

// fanOut sends an event to all sessions in a room except skip.
func (r *Registry) fanOut(room string, ev Event, skip *Session) {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.rooms[room]))
	for s := range r.rooms[room] {
		if s != skip {
			sessions = append(sessions, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		if err := s.send(ev); err != nil {
			r.logger.Warn("chat send failed", "room", room, "user_id", s.UserID, "error", err)
		}
	}
}

// RunReadLoop consumes inbound frames from one session until the connection
// closes, relaying each "message" event to the room.
func (r *Registry) RunReadLoop(ctx context.Context, room string, s *Session) {
	defer func() {
		r.Leave(room, s)
		_ = s.conn.Close()
	}()
	for {
		var in struct {
			Content string `json:"content"`
		}
		if err := s.conn.ReadJSON(&in); err != nil {
			return
		}
		if in.Content == "" {
			continue
		}
		if _, err := r.Relay(ctx, room, s.UserID, in.Content); err != nil {
			r.logger.Error("relaying chat message failed", "room", room, "error", err)
		}
	}
}
