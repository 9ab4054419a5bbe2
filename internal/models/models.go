// Package models holds the shared domain types persisted and exchanged over
// the API.
package models

import "time"

const (
	RoleDriver    = "driver"
	RolePassenger = "passenger"
)

// User is a registered account. Origin and Schedule are the free-text
// preferences the matcher scores against.
type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Origin       string    `json:"origin"`
	Schedule     string    `json:"schedule"`
	Photo        string    `json:"photo"`
	CreatedAt    time.Time `json:"created_at"`
}

// PublicProfile is the subset of a user safe to show to other members.
func (u *User) PublicProfile() map[string]any {
	return map[string]any{
		"id":         u.ID,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"role":       u.Role,
		"origin":     u.Origin,
		"photo":      u.Photo,
	}
}

// Trip is a published ride offer. DepartureTime stays free text, the
// schedule parser extracts hours from it.
type Trip struct {
	ID            string    `json:"id"`
	DriverID      string    `json:"driver_id"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	DepartureTime string    `json:"departure_time"`
	Seats         int       `json:"seats"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// Message is one chat line in a room.
type Message struct {
	ID       string    `json:"id"`
	SenderID string    `json:"sender_id"`
	Room     string    `json:"room"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sent_at"`
}

// Match pairs a trip with its score for one searching user.
type Match struct {
	Trip       Trip           `json:"trip"`
	Driver     map[string]any `json:"driver,omitempty"`
	Score      float64        `json:"score"`
	Percentage float64        `json:"percentage"`
	Reasons    []string       `json:"reasons"`
}

// ReverseMatch pairs a candidate passenger with one of a driver's trips.
type ReverseMatch struct {
	Passenger map[string]any `json:"passenger"`
	Trip      Trip           `json:"trip"`
	Score     float64        `json:"score"`
	Reasons   []string       `json:"reasons"`
}

// MatchStats summarizes match quality for one user.
type MatchStats struct {
	TotalTrips          int      `json:"total_trips"`
	AvailableTrips      int      `json:"available_trips"`
	TotalMatches        int      `json:"total_matches"`
	HighQualityMatches  int      `json:"high_quality_matches"`
	MatchingRate        float64  `json:"matching_rate"`
	ProfileCompleteness float64  `json:"profile_completeness"`
	Recommendations     []string `json:"recommendations"`
}

// Booking is a held, confirmed, or released seat reservation.
type Booking struct {
	ID              string    `json:"id"`
	TripID          string    `json:"trip_id"`
	PassengerID     string    `json:"passenger_id"`
	PaymentIntentID string    `json:"payment_intent_id,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}
