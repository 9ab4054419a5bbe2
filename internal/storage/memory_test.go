package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/carpool-matching/internal/models"
)

func TestCreateUserRejectsDuplicates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "u1", Email: "ana@example.com", Phone: "0601"}))

	err := s.CreateUser(ctx, &models.User{ID: "u2", Email: "ANA@example.com", Phone: "0602"})
	assert.ErrorIs(t, err, ErrDuplicate, "email match is case insensitive")

	err = s.CreateUser(ctx, &models.User{ID: "u3", Email: "ben@example.com", Phone: "0601"})
	assert.ErrorIs(t, err, ErrDuplicate, "phone must be unique too")
}

func TestEmptyContactFieldsNeverCollide(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "u1", Email: "ana@example.com"}))
	assert.NoError(t, s.CreateUser(ctx, &models.User{ID: "u2", Email: "ben@example.com"}),
		"two users without a phone are not duplicates")

	u2 := &models.User{ID: "u2", Email: "ben@example.com", Origin: "Campus"}
	assert.NoError(t, s.UpdateUser(ctx, u2))
}

func TestUpdateUserKeepsOwnContactInfo(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "u1", Email: "ana@example.com", Phone: "0601"}))
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "u2", Email: "ben@example.com", Phone: "0602"}))

	// same email, same user: fine
	assert.NoError(t, s.UpdateUser(ctx, &models.User{ID: "u1", Email: "ana@example.com", Phone: "0601", Origin: "Campus"}))

	// taking someone else's email: rejected
	err := s.UpdateUser(ctx, &models.User{ID: "u1", Email: "ben@example.com", Phone: "0601"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestTripListingFilters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateTrip(ctx, &models.Trip{ID: "t1", DriverID: "d1", Seats: 2, Active: true}))
	require.NoError(t, s.CreateTrip(ctx, &models.Trip{ID: "t2", DriverID: "d2", Seats: 0, Active: true}))
	require.NoError(t, s.CreateTrip(ctx, &models.Trip{ID: "t3", DriverID: "d2", Seats: 3, Active: false}))

	open, err := s.ListOpenTrips(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, open, "full and inactive trips are not open, own trips excluded")

	open, err = s.ListOpenTrips(ctx, "nobody")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "t1", open[0].ID)

	// candidates include full trips but never inactive ones
	candidates, err := s.ListCandidateTrips(ctx, "nobody")
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
}

func TestListTripsPagination(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.CreateTrip(ctx, &models.Trip{
			ID:       fmt.Sprintf("t%d", i),
			DriverID: "d1",
			Seats:    1,
			Active:   true,
		}))
	}

	page1, total, err := s.ListTrips(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page1, 2)
	assert.Equal(t, "t4", page1[0].ID, "newest first")

	page3, _, err := s.ListTrips(ctx, 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, "t0", page3[0].ID)

	empty, total, err := s.ListTrips(ctx, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, empty)
}

func TestReserveAndReleaseSeat(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateTrip(ctx, &models.Trip{ID: "t1", DriverID: "d1", Seats: 1, Active: true}))

	require.NoError(t, s.ReserveSeat(ctx, "t1"))
	assert.ErrorIs(t, s.ReserveSeat(ctx, "t1"), ErrNoSeats)
	assert.ErrorIs(t, s.ReserveSeat(ctx, "missing"), ErrNotFound)

	require.NoError(t, s.ReleaseSeat(ctx, "t1"))
	trip, err := s.GetTrip(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, trip.Seats)
}

func TestDeactivateTripHidesItFromListings(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateTrip(ctx, &models.Trip{ID: "t1", DriverID: "d1", Seats: 2, Active: true}))
	require.NoError(t, s.DeactivateTrip(ctx, "t1"))

	trips, total, err := s.ListTrips(ctx, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, trips)

	// the record itself survives
	trip, err := s.GetTrip(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, trip.Active)
}

func TestMessagesNewestFirstWithLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, s.SaveMessage(ctx, &models.Message{
			ID:      fmt.Sprintf("m%d", i),
			Room:    "general",
			Content: fmt.Sprintf("hello %d", i),
			SentAt:  base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, s.SaveMessage(ctx, &models.Message{ID: "other", Room: "private", Content: "psst"}))

	msgs, err := s.ListMessages(ctx, "general", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m3", msgs[0].ID)
	assert.Equal(t, "m1", msgs[2].ID)
}

func TestBookingLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	b := &models.Booking{ID: "b1", TripID: "t1", PassengerID: "p1", Status: "held"}
	require.NoError(t, s.CreateBooking(ctx, b))

	got, err := s.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "held", got.Status)

	got.Status = "confirmed"
	require.NoError(t, s.UpdateBooking(ctx, got))

	again, err := s.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "confirmed", again.Status)

	_, err = s.GetBooking(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
