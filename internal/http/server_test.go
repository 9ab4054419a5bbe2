package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/carpool-matching/internal/config"
	"github.com/example/carpool-matching/internal/logging"
	"github.com/example/carpool-matching/internal/storage"
)

func testServer() *Server {
	cfg := config.ServerConfig{
		JWTSecret:     "test-secret",
		AccessExpiry:  time.Hour,
		RefreshExpiry: 24 * time.Hour,
		BcryptCost:    4, // keep the hashing fast in tests
		MatchLimit:    10,
	}
	return NewServer(cfg, storage.NewMemoryStore(), logging.NewNop())
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func registerUser(t *testing.T, srv *Server, email, role, origin, schedule string) (userID, access string) {
	t.Helper()
	rec, out := doJSON(t, srv, "POST", "/api/v1/auth/register", "", map[string]any{
		"first_name": "Test",
		"last_name":  "User",
		"phone":      "06" + email,
		"email":      email,
		"password":   "s3cret",
		"role":       role,
		"origin":     origin,
		"schedule":   schedule,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := out["user"].(map[string]any)
	tokens := out["tokens"].(map[string]any)
	return user["id"].(string), tokens["access_token"].(string)
}

func TestRegisterLoginFlow(t *testing.T) {
	srv := testServer()

	_, _ = registerUser(t, srv, "ana@example.com", "passenger", "Campus Nord", "matin")

	// duplicate email
	rec, out := doJSON(t, srv, "POST", "/api/v1/auth/register", "", map[string]any{
		"first_name": "Other", "last_name": "User", "phone": "0699",
		"email": "ana@example.com", "password": "x",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, out["error"], "already in use")

	// wrong password
	rec, _ = doJSON(t, srv, "POST", "/api/v1/auth/login", "", map[string]any{
		"email": "ana@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// correct password
	rec, out = doJSON(t, srv, "POST", "/api/v1/auth/login", "", map[string]any{
		"email": "ana@example.com", "password": "s3cret",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	tokens := out["tokens"].(map[string]any)
	assert.NotEmpty(t, tokens["access_token"])
	assert.NotEmpty(t, tokens["refresh_token"])
}

func TestAuthRequired(t *testing.T) {
	srv := testServer()

	rec, _ := doJSON(t, srv, "GET", "/api/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doJSON(t, srv, "GET", "/api/v1/users/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	srv := testServer()
	_, access := registerUser(t, srv, "ana@example.com", "passenger", "", "")

	rec, _ := doJSON(t, srv, "GET", "/api/v1/users/me", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, srv, "POST", "/api/v1/auth/logout", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, srv, "GET", "/api/v1/users/me", access, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	srv := testServer()

	rec, out := doJSON(t, srv, "POST", "/api/v1/auth/register", "", map[string]any{
		"first_name": "Ana", "last_name": "B", "phone": "0601",
		"email": "ana@example.com", "password": "s3cret", "role": "driver",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	refresh := out["tokens"].(map[string]any)["refresh_token"].(string)

	rec, out = doJSON(t, srv, "POST", "/api/v1/auth/refresh", "", map[string]any{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	access := out["access_token"].(string)

	rec, out = doJSON(t, srv, "GET", "/api/v1/users/me", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "driver", out["user"].(map[string]any)["role"])
}

func TestProfileUpdateIsPartial(t *testing.T) {
	srv := testServer()
	_, access := registerUser(t, srv, "ana@example.com", "passenger", "Campus Nord", "matin")

	rec, out := doJSON(t, srv, "PUT", "/api/v1/users/me", access, map[string]any{"origin": "Gare Centrale"})
	require.Equal(t, http.StatusOK, rec.Code)
	user := out["user"].(map[string]any)
	assert.Equal(t, "Gare Centrale", user["origin"])
	assert.Equal(t, "matin", user["schedule"], "untouched fields survive")
}

func TestTripCRUDAndOwnership(t *testing.T) {
	srv := testServer()
	_, driver := registerUser(t, srv, "driver@example.com", "driver", "Campus Nord", "matin")
	_, other := registerUser(t, srv, "other@example.com", "driver", "", "")

	rec, out := doJSON(t, srv, "POST", "/api/v1/trips", driver, map[string]any{
		"origin": "Campus Nord", "destination": "Centre Ville", "departure_time": "8h", "seats": 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tripID := out["trip"].(map[string]any)["id"].(string)

	// missing fields
	rec, _ = doJSON(t, srv, "POST", "/api/v1/trips", driver, map[string]any{"origin": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// public listing with pagination metadata
	rec, out = doJSON(t, srv, "GET", "/api/v1/trips?page=1&per_page=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["trips"], 1)
	assert.EqualValues(t, 1, out["pagination"].(map[string]any)["total"])

	// only the owner may update
	rec, _ = doJSON(t, srv, "PUT", "/api/v1/trips/"+tripID, other, map[string]any{"seats": 4})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, out = doJSON(t, srv, "PUT", "/api/v1/trips/"+tripID, driver, map[string]any{"seats": 4})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 4, out["trip"].(map[string]any)["seats"])

	// only the owner may remove, and removal hides the trip
	rec, _ = doJSON(t, srv, "DELETE", "/api/v1/trips/"+tripID, other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = doJSON(t, srv, "DELETE", "/api/v1/trips/"+tripID, driver, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out = doJSON(t, srv, "GET", "/api/v1/trips", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, out["trips"])
}

func TestMatchesEndpoint(t *testing.T) {
	srv := testServer()
	_, driver := registerUser(t, srv, "driver@example.com", "driver", "Campus Nord", "8h")
	_, passenger := registerUser(t, srv, "ana@example.com", "passenger", "Campus Nord", "matin")

	rec, _ := doJSON(t, srv, "POST", "/api/v1/trips", driver, map[string]any{
		"origin": "Campus Nord", "destination": "Centre Ville", "departure_time": "8h", "seats": 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, out := doJSON(t, srv, "GET", "/api/v1/matches", passenger, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, out["count"])

	rec, out = doJSON(t, srv, "GET", "/api/v1/matches/detailed", passenger, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	matches := out["matches"].([]any)
	require.Len(t, matches, 1)
	first := matches[0].(map[string]any)
	assert.NotEmpty(t, first["reasons"])
	assert.Greater(t, first["score"].(float64), 0.3)

	rec, out = doJSON(t, srv, "GET", "/api/v1/matches/reverse", driver, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, out["count"])

	rec, out = doJSON(t, srv, "GET", "/api/v1/matches/stats", passenger, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := out["stats"].(map[string]any)
	assert.EqualValues(t, 1, stats["available_trips"])
}

func TestBookingFlow(t *testing.T) {
	srv := testServer()
	_, driver := registerUser(t, srv, "driver@example.com", "driver", "Campus Nord", "8h")
	_, passenger := registerUser(t, srv, "ana@example.com", "passenger", "Campus Nord", "matin")

	rec, out := doJSON(t, srv, "POST", "/api/v1/trips", driver, map[string]any{
		"origin": "Campus Nord", "destination": "Centre Ville", "departure_time": "8h", "seats": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	tripID := out["trip"].(map[string]any)["id"].(string)

	// drivers cannot book their own trip
	rec, _ = doJSON(t, srv, "POST", "/api/v1/trips/"+tripID+"/book", driver, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out = doJSON(t, srv, "POST", "/api/v1/trips/"+tripID+"/book", passenger, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booking := out["booking"].(map[string]any)
	bookingID := booking["id"].(string)
	assert.Equal(t, "held", booking["status"])

	// the seat is gone
	rec, _ = doJSON(t, srv, "POST", "/api/v1/trips/"+tripID+"/book", passenger, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// only the driver confirms
	rec, _ = doJSON(t, srv, "POST", "/api/v1/bookings/"+bookingID+"/confirm", passenger, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, out = doJSON(t, srv, "POST", "/api/v1/bookings/"+bookingID+"/confirm", driver, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "confirmed", out["booking"].(map[string]any)["status"])

	// a confirmed booking cannot be released
	rec, _ = doJSON(t, srv, "POST", "/api/v1/bookings/"+bookingID+"/release", driver, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReleaseBookingReturnsSeat(t *testing.T) {
	srv := testServer()
	_, driver := registerUser(t, srv, "driver@example.com", "driver", "", "")
	_, passenger := registerUser(t, srv, "ana@example.com", "passenger", "", "")

	rec, out := doJSON(t, srv, "POST", "/api/v1/trips", driver, map[string]any{
		"origin": "A", "destination": "B", "departure_time": "9h", "seats": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	tripID := out["trip"].(map[string]any)["id"].(string)

	rec, out = doJSON(t, srv, "POST", "/api/v1/trips/"+tripID+"/book", passenger, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	bookingID := out["booking"].(map[string]any)["id"].(string)

	rec, out = doJSON(t, srv, "POST", "/api/v1/bookings/"+bookingID+"/release", passenger, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "released", out["booking"].(map[string]any)["status"])

	rec, out = doJSON(t, srv, "GET", "/api/v1/trips/"+tripID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, out["trip"].(map[string]any)["seats"])
}

func TestPublicProfileHidesContactInfo(t *testing.T) {
	srv := testServer()
	otherID, _ := registerUser(t, srv, "driver@example.com", "driver", "Campus Nord", "8h")
	_, access := registerUser(t, srv, "ana@example.com", "passenger", "", "")

	rec, out := doJSON(t, srv, "GET", "/api/v1/users/"+otherID, access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	user := out["user"].(map[string]any)
	assert.Equal(t, "Campus Nord", user["origin"])
	assert.NotContains(t, user, "email")
	assert.NotContains(t, user, "phone")
}

func TestListMessagesRequiresRoom(t *testing.T) {
	srv := testServer()
	_, access := registerUser(t, srv, "ana@example.com", "passenger", "", "")

	rec, _ := doJSON(t, srv, "GET", "/api/v1/messages", access, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out := doJSON(t, srv, "GET", "/api/v1/messages?room=general", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, out["count"])
}

func TestHealthz(t *testing.T) {
	srv := testServer()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

// deadStore reports a dead backing connection.
type deadStore struct{ *storage.MemoryStore }

func (deadStore) Ping(ctx context.Context) error { return errors.New("connection refused") }

func TestHealthzReportsStoreOutage(t *testing.T) {
	cfg := config.ServerConfig{
		JWTSecret:     "test-secret",
		AccessExpiry:  time.Hour,
		RefreshExpiry: 24 * time.Hour,
		MatchLimit:    10,
	}
	srv := NewServer(cfg, deadStore{storage.NewMemoryStore()}, logging.NewNop())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLoginRateLimited(t *testing.T) {
	srv := testServer()
	_, _ = registerUser(t, srv, "ana@example.com", "passenger", "", "")

	body := map[string]any{"email": "ana@example.com", "password": "wrong"}
	for i := 0; i < loginRateLimit; i++ {
		rec, _ := doJSON(t, srv, "POST", "/api/v1/auth/login", "", body)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d stays within the budget", i+1)
	}

	rec, out := doJSON(t, srv, "POST", "/api/v1/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, out["error"], "too many requests")

	// the register budget is separate and still open
	rec, _ = doJSON(t, srv, "POST", "/api/v1/auth/register", "", map[string]any{
		"first_name": "Ben", "last_name": "C", "phone": "0699",
		"email": "ben@example.com", "password": "s3cret",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}
