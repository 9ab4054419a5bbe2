// Package matcher scores open trips against a user's stated origin and
// schedule and returns a ranked, explained subset. It only reads the data it
// is given: eligibility, weighting, and thresholds all live here, persistence
// and transport do not.
package matcher

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/example/carpool-matching/internal/models"
	"github.com/example/carpool-matching/internal/observability"
	"github.com/example/carpool-matching/internal/schedule"
	"github.com/example/carpool-matching/internal/similarity"
)

// Directory is the read-only view of users and trips the scorer consumes.
type Directory interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListOpenTrips(ctx context.Context, excludingDriverID string) ([]models.Trip, error)
	ListCandidateTrips(ctx context.Context, excludingDriverID string) ([]models.Trip, error)
	ListTripsByDriver(ctx context.Context, driverID string) ([]models.Trip, error)
	ListUsersByRole(ctx context.Context, role, excludingID string) ([]models.User, error)
}

type Service struct {
	Directory Directory
	Config    Config
	Logger    *slog.Logger

	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewService(dir Directory, cfg Config, logger *slog.Logger) *Service {
	return &Service{Directory: dir, Config: cfg, Logger: logger, Now: time.Now}
}

type scoredTrip struct {
	trip    models.Trip
	score   float64
	reasons []string
}

// FindMatches returns the top trips for a user, best first. Matching is
// best-effort: a missing user or a failing lookup yields an empty slice, it
// never fails the caller.
func (s *Service) FindMatches(ctx context.Context, userID string, limit int) (out []models.Trip) {
	defer s.recoverScoring(userID, func() { out = nil })

	scored := s.rankedMatches(ctx, userID, limit)
	out = make([]models.Trip, 0, len(scored))
	for _, m := range scored {
		out = append(out, m.trip)
	}
	return out
}

// FindDetailedMatches is FindMatches with scores, reasons, and a driver
// summary attached to each trip.
func (s *Service) FindDetailedMatches(ctx context.Context, userID string, limit int) (out []models.Match) {
	defer s.recoverScoring(userID, func() { out = nil })

	scored := s.rankedMatches(ctx, userID, limit)
	out = make([]models.Match, 0, len(scored))
	for _, m := range scored {
		detail := models.Match{
			Trip:       m.trip,
			Score:      math.Round(m.score*100) / 100,
			Percentage: math.Round(m.score*1000) / 10,
			Reasons:    m.reasons,
		}
		if driver, err := s.Directory.GetUser(ctx, m.trip.DriverID); err == nil {
			detail.Driver = driver.PublicProfile()
		}
		out = append(out, detail)
	}
	return out
}

// FindReverseMatches scores candidate passengers against each of a driver's
// own trips, using only the geographic and temporal terms. The bar is higher
// than for forward matching and each passenger appears at most once, at their
// best-scoring trip.
func (s *Service) FindReverseMatches(ctx context.Context, driverID string, limit int) (out []models.ReverseMatch) {
	defer s.recoverScoring(driverID, func() { out = nil })

	if limit <= 0 {
		limit = s.Config.DefaultLimit
	}
	trips, err := s.Directory.ListTripsByDriver(ctx, driverID)
	if err != nil {
		s.Logger.Error("listing driver trips failed", "user_id", driverID, "error", err)
		return nil
	}
	passengers, err := s.Directory.ListUsersByRole(ctx, models.RolePassenger, driverID)
	if err != nil {
		s.Logger.Error("listing passengers failed", "user_id", driverID, "error", err)
		return nil
	}

	candidates := make([]models.ReverseMatch, 0)
	for _, trip := range trips {
		for i := range passengers {
			p := &passengers[i]
			score, reasons := s.scorePair(p, trip)
			if score <= s.Config.ReverseThreshold {
				continue
			}
			candidates = append(candidates, models.ReverseMatch{
				Passenger: p.PublicProfile(),
				Trip:      trip,
				Score:     math.Round(score*100) / 100,
				Reasons:   reasons,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	seen := make(map[any]struct{}, len(candidates))
	out = make([]models.ReverseMatch, 0, limit)
	for _, c := range candidates {
		id := c.Passenger["id"]
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, c)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// rankedMatches scores every eligible trip, filters by threshold, and sorts
// best first. The sort is stable so equal scores keep pool order.
func (s *Service) rankedMatches(ctx context.Context, userID string, limit int) []scoredTrip {
	start := time.Now()
	defer func() { observability.MatchLatency.Observe(time.Since(start).Seconds()) }()

	if limit <= 0 {
		limit = s.Config.DefaultLimit
	}
	user, err := s.Directory.GetUser(ctx, userID)
	if err != nil {
		s.Logger.Warn("match requested for unknown user", "user_id", userID, "error", err)
		return nil
	}
	pool, err := s.Directory.ListOpenTrips(ctx, userID)
	if err != nil {
		s.Logger.Error("listing open trips failed", "user_id", userID, "error", err)
		return nil
	}

	scored := make([]scoredTrip, 0, len(pool))
	for _, trip := range pool {
		score, reasons := s.scoreTrip(user, trip)
		if score <= s.Config.MatchThreshold {
			continue
		}
		scored = append(scored, scoredTrip{trip: trip, score: score, reasons: reasons})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	observability.MatchesTotal.Add(float64(len(scored)))
	return scored
}

// scoreTrip computes the full weighted score for one trip. Each term is
// independent and additive; the passenger bonus can push the total past 1.0.
func (s *Service) scoreTrip(user *models.User, trip models.Trip) (float64, []string) {
	cfg := s.Config
	var score float64
	var reasons []string

	if user.Origin != "" && trip.Origin != "" {
		sim := similarity.Score(user.Origin, trip.Origin)
		score += sim * cfg.GeoWeight
		if sim > cfg.GeoReasonFloor {
			reasons = append(reasons, "departure points match closely")
		}
	}

	if user.Schedule != "" && trip.DepartureTime != "" {
		ts := schedule.CompatibilityScore(user.Schedule, trip.DepartureTime)
		score += ts * cfg.TimeWeight
		if ts > cfg.TimeReasonFloor {
			reasons = append(reasons, "departure time fits your schedule")
		}
	}

	seatRatio := float64(trip.Seats) / cfg.SeatTarget
	if seatRatio > 1 {
		seatRatio = 1
	}
	score += seatRatio * cfg.SeatWeight

	if !trip.CreatedAt.IsZero() {
		days := math.Floor(s.Now().Sub(trip.CreatedAt).Hours() / 24)
		if days < 0 {
			days = 0
		}
		recency := 1 - days/cfg.RecencyWindowDays
		if recency < 0 {
			recency = 0
		}
		score += recency * cfg.RecencyWeight
	}

	if user.Role == models.RolePassenger {
		score += cfg.RoleBonus
		reasons = append(reasons, "user is searching for a trip")
	}

	return score, reasons
}

// scorePair rates a passenger against a trip using the geographic and
// temporal terms only, for reverse matching.
func (s *Service) scorePair(passenger *models.User, trip models.Trip) (float64, []string) {
	cfg := s.Config
	var score float64
	var reasons []string

	if passenger.Origin != "" && trip.Origin != "" {
		sim := similarity.Score(passenger.Origin, trip.Origin)
		score += sim * cfg.GeoWeight
		if sim > cfg.GeoReasonFloor {
			reasons = append(reasons, "departure points match closely")
		}
	}
	if passenger.Schedule != "" && trip.DepartureTime != "" {
		ts := schedule.CompatibilityScore(passenger.Schedule, trip.DepartureTime)
		score += ts * cfg.TimeWeight
		if ts > cfg.TimeReasonFloor {
			reasons = append(reasons, "departure time fits the trip")
		}
	}
	return score, reasons
}

// recoverScoring is the outermost boundary required by the engine's failure
// semantics: a panic anywhere in scoring degrades to an empty result instead
// of reaching the caller.
func (s *Service) recoverScoring(userID string, reset func()) {
	if rec := recover(); rec != nil {
		s.Logger.Error("match scoring panicked", "user_id", userID, "panic", rec)
		reset()
	}
}
