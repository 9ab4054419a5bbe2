// Package httpapi exposes the carpool service over HTTP: auth, profiles,
// trips, matches, bookings, and the chat socket.
package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/example/carpool-matching/internal/auth"
	"github.com/example/carpool-matching/internal/chat"
	"github.com/example/carpool-matching/internal/config"
	"github.com/example/carpool-matching/internal/ingest"
	"github.com/example/carpool-matching/internal/matcher"
	"github.com/example/carpool-matching/internal/payments"
	"github.com/example/carpool-matching/internal/ratelimit"
	"github.com/example/carpool-matching/internal/storage"
)

// Per-IP budgets for the credential endpoints, per minute.
const (
	loginRateLimit    = 5
	registerRateLimit = 10
	authRateWindow    = time.Minute
)

type Server struct {
	store       storage.Store
	matcher     *matcher.Service
	tokens      *auth.TokenManager
	revocations auth.RevocationStore
	limiter     ratelimit.Limiter
	chat        *chat.Registry
	producer    *ingest.KafkaProducer // optional, nil when Kafka is not configured
	stripe      *payments.StripeClient
	cfg         config.ServerConfig
	logger      *slog.Logger
	mux         *mux.Router
}

// NewServer wires every component from config. Redis, Kafka, and Stripe are
// optional; the service degrades to in-process fallbacks without them.
func NewServer(cfg config.ServerConfig, store storage.Store, logger *slog.Logger) *Server {
	var revocations auth.RevocationStore
	var limiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		revocations = auth.NewRedisRevocationStore(rc)
		limiter = ratelimit.NewRedisLimiter(rc, authRateWindow)
	} else {
		revocations = auth.NewMemoryRevocationStore()
		limiter = ratelimit.NewMemoryLimiter(authRateWindow)
	}

	var producer *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		producer = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	var stripeClient *payments.StripeClient
	if cfg.StripeAPIKey != "" {
		stripeClient = payments.NewStripeClient(cfg.StripeAPIKey)
	}

	s := &Server{
		store:       store,
		matcher:     matcher.NewService(store, matcher.DefaultConfig(), logger),
		tokens:      auth.NewTokenManager(cfg.JWTSecret, cfg.AccessExpiry, cfg.RefreshExpiry),
		revocations: revocations,
		limiter:     limiter,
		chat:        chat.NewRegistry(store, logger),
		producer:    producer,
		stripe:      stripeClient,
		cfg:         cfg,
		logger:      logger,
		mux:         mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", s.rateLimited(registerRateLimit, s.handleRegister)).Methods("POST")
	api.HandleFunc("/auth/login", s.rateLimited(loginRateLimit, s.handleLogin)).Methods("POST")
	api.HandleFunc("/auth/refresh", s.handleRefresh).Methods("POST")

	api.HandleFunc("/trips", s.handleListTrips).Methods("GET")
	api.HandleFunc("/trips/{id}", s.handleGetTrip).Methods("GET")

	authed := api.NewRoute().Subrouter()
	authed.Use(s.authMiddleware)
	authed.HandleFunc("/auth/logout", s.handleLogout).Methods("POST")
	authed.HandleFunc("/users/me", s.handleGetProfile).Methods("GET")
	authed.HandleFunc("/users/me", s.handleUpdateProfile).Methods("PUT")
	authed.HandleFunc("/users/{id}", s.handleGetUser).Methods("GET")
	authed.HandleFunc("/trips", s.handleCreateTrip).Methods("POST")
	authed.HandleFunc("/trips/{id}", s.handleUpdateTrip).Methods("PUT")
	authed.HandleFunc("/trips/{id}", s.handleDeleteTrip).Methods("DELETE")
	authed.HandleFunc("/trips/{id}/book", s.handleBookSeat).Methods("POST")
	authed.HandleFunc("/bookings/{id}/confirm", s.handleConfirmBooking).Methods("POST")
	authed.HandleFunc("/bookings/{id}/release", s.handleReleaseBooking).Methods("POST")
	authed.HandleFunc("/matches", s.handleMatches).Methods("GET")
	authed.HandleFunc("/matches/detailed", s.handleDetailedMatches).Methods("GET")
	authed.HandleFunc("/matches/reverse", s.handleReverseMatches).Methods("GET")
	authed.HandleFunc("/matches/stats", s.handleMatchStats).Methods("GET")
	authed.HandleFunc("/messages", s.handleListMessages).Methods("GET")

	ws := s.mux.PathPrefix("/ws").Subrouter()
	ws.Use(s.authMiddleware)
	ws.HandleFunc("/{room}", s.handleChatSocket)

	s.mux.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// handleHealth proves the backing store is reachable before reporting
// healthy. Stores without a Ping (the in-memory one) are always up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type pinger interface {
		Ping(ctx context.Context) error
	}
	if p, ok := s.store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			s.logger.Error("health check failed", "error", err)
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response failed", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(v)
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
