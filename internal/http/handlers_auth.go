package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/example/carpool-matching/internal/auth"
	"github.com/example/carpool-matching/internal/models"
	"github.com/example/carpool-matching/internal/storage"
)

type registerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	Origin    string `json:"origin"`
	Schedule  string `json:"schedule"`
	Photo     string `json:"photo"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.FirstName == "" || req.LastName == "" || req.Phone == "" || req.Email == "" || req.Password == "" {
		s.respondError(w, http.StatusBadRequest, "first_name, last_name, phone, email and password are required")
		return
	}
	if req.Role == "" {
		req.Role = models.RolePassenger
	}
	if req.Role != models.RoleDriver && req.Role != models.RolePassenger {
		s.respondError(w, http.StatusBadRequest, "role must be driver or passenger")
		return
	}

	hash, err := auth.HashPassword(req.Password, s.cfg.BcryptCost)
	if err != nil {
		s.logger.Error("hashing password failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user := &models.User{
		ID:           uuid.NewString(),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		Origin:       req.Origin,
		Schedule:     req.Schedule,
		Photo:        req.Photo,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			s.respondError(w, http.StatusConflict, "email or phone already in use")
			return
		}
		s.logger.Error("creating user failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	pair, err := s.tokens.IssuePair(user.ID, user.Role)
	if err != nil {
		s.logger.Error("issuing tokens failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	s.respondJSON(w, http.StatusCreated, map[string]any{"user": user, "tokens": pair})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		s.respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.logger.Warn("login failed", "email", req.Email)
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	pair, err := s.tokens.IssuePair(user.ID, user.Role)
	if err != nil {
		s.logger.Error("issuing tokens failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"user": user, "tokens": pair})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := identityFromContext(r.Context())
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if err := s.revocations.Revoke(r.Context(), claims.ID, ttl); err != nil {
		s.logger.Error("revoking token failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	claims, err := s.tokens.Validate(req.RefreshToken)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, err.Error())
		return
	}
	revoked, err := s.revocations.IsRevoked(r.Context(), claims.ID)
	if err != nil {
		s.logger.Error("revocation check failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if revoked {
		s.respondError(w, http.StatusUnauthorized, auth.ErrRevokedToken.Error())
		return
	}
	// refresh tokens have no role claim, re-read it from the profile
	user, err := s.store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "unknown user")
		return
	}
	access, err := s.tokens.Refresh(req.RefreshToken, user.Role)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"access_token": access})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	claims := identityFromContext(r.Context())
	user, err := s.store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "user not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"user": user})
}

type profileUpdateRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Email     *string `json:"email"`
	Password  *string `json:"password"`
	Origin    *string `json:"origin"`
	Schedule  *string `json:"schedule"`
	Photo     *string `json:"photo"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := identityFromContext(r.Context())
	user, err := s.store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "user not found")
		return
	}

	var req profileUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	applyString(&user.FirstName, req.FirstName)
	applyString(&user.LastName, req.LastName)
	applyString(&user.Phone, req.Phone)
	applyString(&user.Email, req.Email)
	applyString(&user.Origin, req.Origin)
	applyString(&user.Schedule, req.Schedule)
	applyString(&user.Photo, req.Photo)
	if req.Password != nil && *req.Password != "" {
		hash, err := auth.HashPassword(*req.Password, s.cfg.BcryptCost)
		if err != nil {
			s.logger.Error("hashing password failed", "error", err)
			s.respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		user.PasswordHash = hash
	}

	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			s.respondError(w, http.StatusConflict, "email or phone already in use")
			return
		}
		s.logger.Error("updating user failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "user not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"user": user.PublicProfile()})
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
