package httpapi

import (
	"net/http"
)

func (s *Server) matchLimit(r *http.Request) int {
	limit := queryInt(r, "limit", s.cfg.MatchLimit)
	if limit < 1 {
		limit = s.cfg.MatchLimit
	}
	return limit
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	claims := identityFromContext(r.Context())
	trips := s.matcher.FindMatches(r.Context(), claims.UserID, s.matchLimit(r))
	s.respondJSON(w, http.StatusOK, map[string]any{"matches": trips, "count": len(trips)})
}

func (s *Server) handleDetailedMatches(w http.ResponseWriter, r *http.Request) {
	claims := identityFromContext(r.Context())
	matches := s.matcher.FindDetailedMatches(r.Context(), claims.UserID, s.matchLimit(r))
	s.respondJSON(w, http.StatusOK, map[string]any{"matches": matches, "count": len(matches)})
}

func (s *Server) handleReverseMatches(w http.ResponseWriter, r *http.Request) {
	claims := identityFromContext(r.Context())
	matches := s.matcher.FindReverseMatches(r.Context(), claims.UserID, s.matchLimit(r))
	s.respondJSON(w, http.StatusOK, map[string]any{"matches": matches, "count": len(matches)})
}

func (s *Server) handleMatchStats(w http.ResponseWriter, r *http.Request) {
	claims := identityFromContext(r.Context())
	stats := s.matcher.Statistics(r.Context(), claims.UserID)
	if stats == nil {
		s.respondError(w, http.StatusNotFound, "stats unavailable")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"stats": stats})
}
