package storage

import (
	"context"
	"errors"

	"github.com/example/carpool-matching/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
	ErrNoSeats   = errors.New("no seats available")
)

// UserStore defines persistence operations for accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	ListUsersByRole(ctx context.Context, role, excludingID string) ([]models.User, error)
}

// TripStore defines persistence operations for published trips.
type TripStore interface {
	CreateTrip(ctx context.Context, t *models.Trip) error
	GetTrip(ctx context.Context, id string) (*models.Trip, error)
	UpdateTrip(ctx context.Context, t *models.Trip) error
	DeactivateTrip(ctx context.Context, id string) error
	ListTrips(ctx context.Context, page, perPage int) ([]models.Trip, int, error)
	ListOpenTrips(ctx context.Context, excludingDriverID string) ([]models.Trip, error)
	ListCandidateTrips(ctx context.Context, excludingDriverID string) ([]models.Trip, error)
	ListTripsByDriver(ctx context.Context, driverID string) ([]models.Trip, error)
	ReserveSeat(ctx context.Context, tripID string) error
	ReleaseSeat(ctx context.Context, tripID string) error
}

// MessageStore defines persistence operations for chat messages.
type MessageStore interface {
	SaveMessage(ctx context.Context, m *models.Message) error
	ListMessages(ctx context.Context, room string, limit int) ([]models.Message, error)
}

// BookingStore defines persistence operations for seat bookings.
type BookingStore interface {
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	UpdateBooking(ctx context.Context, b *models.Booking) error
}

// Store aggregates everything the service persists.
type Store interface {
	UserStore
	TripStore
	MessageStore
	BookingStore
}
