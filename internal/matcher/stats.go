package matcher

import (
	"context"
	"math"

	"github.com/example/carpool-matching/internal/models"
)

// Statistics reports the match landscape for a user: candidate pool sizes,
// how many trips currently clear the threshold, and what the user could fix
// on their profile to match better. Returns nil when the user is unknown or
// a lookup fails.
func (s *Service) Statistics(ctx context.Context, userID string) (stats *models.MatchStats) {
	defer s.recoverScoring(userID, func() { stats = nil })

	user, err := s.Directory.GetUser(ctx, userID)
	if err != nil {
		s.Logger.Warn("statistics requested for unknown user", "user_id", userID, "error", err)
		return nil
	}
	candidates, err := s.Directory.ListCandidateTrips(ctx, userID)
	if err != nil {
		s.Logger.Error("listing candidate trips failed", "user_id", userID, "error", err)
		return nil
	}

	available := 0
	for _, t := range candidates {
		if t.Seats > 0 {
			available++
		}
	}

	matches := s.rankedMatches(ctx, userID, len(candidates)+1)
	highQuality := 0
	for _, m := range matches {
		if math.Round(m.score*100)/100 > s.Config.HighQualityFloor {
			highQuality++
		}
	}

	rate := 0.0
	if available > 0 {
		rate = float64(len(matches)) / float64(available) * 100
	}

	return &models.MatchStats{
		TotalTrips:          len(candidates),
		AvailableTrips:      available,
		TotalMatches:        len(matches),
		HighQualityMatches:  highQuality,
		MatchingRate:        rate,
		ProfileCompleteness: profileCompleteness(user),
		Recommendations:     recommendations(user),
	}
}

// profileCompleteness is the populated fraction of the fields matching cares
// about, as a percentage rounded to one decimal.
func profileCompleteness(u *models.User) float64 {
	fields := []string{u.FirstName, u.LastName, u.Phone, u.Email, u.Origin, u.Schedule}
	filled := 0
	for _, f := range fields {
		if f != "" {
			filled++
		}
	}
	pct := float64(filled) / float64(len(fields)) * 100
	return math.Round(pct*10) / 10
}

func recommendations(u *models.User) []string {
	recs := make([]string, 0, 4)
	if u.Origin == "" {
		recs = append(recs, "add your departure point to get matched")
	} else if len(u.Origin) < 5 {
		recs = append(recs, "describe your departure point more precisely")
	}
	if u.Schedule == "" {
		recs = append(recs, "add your usual schedule to improve time matching")
	}
	if u.Photo == "" {
		recs = append(recs, "add a profile photo so drivers recognize you")
	}
	return recs
}
