package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/example/carpool-matching/internal/models"
	"github.com/example/carpool-matching/internal/observability"
	"github.com/example/carpool-matching/internal/storage"
)

const maxPerPage = 100

func (s *Server) handleListTrips(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 10)
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	trips, total, err := s.store.ListTrips(r.Context(), page, perPage)
	if err != nil {
		s.logger.Error("listing trips failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	pages := (total + perPage - 1) / perPage
	s.respondJSON(w, http.StatusOK, map[string]any{
		"trips": trips,
		"pagination": map[string]any{
			"page":     page,
			"per_page": perPage,
			"pages":    pages,
			"total":    total,
			"has_next": page < pages,
			"has_prev": page > 1 && total > 0,
		},
	})
}

func (s *Server) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := s.store.GetTrip(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, http.StatusNotFound, "trip not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"trip": trip})
}

type tripRequest struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureTime string `json:"departure_time"`
	Seats         *int   `json:"seats"`
}

func (s *Server) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	claims := identityFromContext(r.Context())

	var req tripRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Origin == "" || req.Destination == "" || req.DepartureTime == "" {
		s.respondError(w, http.StatusBadRequest, "origin, destination and departure_time are required")
		return
	}
	seats := 1
	if req.Seats != nil {
		seats = *req.Seats
	}
	if seats < 0 {
		s.respondError(w, http.StatusBadRequest, "seats must be >= 0")
		return
	}

	trip := &models.Trip{
		ID:            uuid.NewString(),
		DriverID:      claims.UserID,
		Origin:        req.Origin,
		Destination:   req.Destination,
		DepartureTime: req.DepartureTime,
		Seats:         seats,
		Active:        true,
		CreatedAt:     time.Now(),
	}
	if err := s.store.CreateTrip(r.Context(), trip); err != nil {
		s.logger.Error("creating trip failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	observability.TripsPublished.Inc()
	s.publishTripEvent("trip_created", *trip)
	s.respondJSON(w, http.StatusCreated, map[string]any{"trip": trip})
}

func (s *Server) handleUpdateTrip(w http.ResponseWriter, r *http.Request) {
	claims := identityFromContext(r.Context())
	trip, err := s.store.GetTrip(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, http.StatusNotFound, "trip not found")
		return
	}
	if trip.DriverID != claims.UserID {
		s.respondError(w, http.StatusForbidden, "not your trip")
		return
	}

	var req tripRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Origin != "" {
		trip.Origin = req.Origin
	}
	if req.Destination != "" {
		trip.Destination = req.Destination
	}
	if req.DepartureTime != "" {
		trip.DepartureTime = req.DepartureTime
	}
	if req.Seats != nil {
		if *req.Seats < 0 {
			s.respondError(w, http.StatusBadRequest, "seats must be >= 0")
			return
		}
		trip.Seats = *req.Seats
	}

	if err := s.store.UpdateTrip(r.Context(), trip); err != nil {
		s.logger.Error("updating trip failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.publishTripEvent("trip_updated", *trip)
	s.respondJSON(w, http.StatusOK, map[string]any{"trip": trip})
}

func (s *Server) handleDeleteTrip(w http.ResponseWriter, r *http.Request) {
	claims := identityFromContext(r.Context())
	trip, err := s.store.GetTrip(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, http.StatusNotFound, "trip not found")
		return
	}
	if trip.DriverID != claims.UserID {
		s.respondError(w, http.StatusForbidden, "not your trip")
		return
	}
	if err := s.store.DeactivateTrip(r.Context(), trip.ID); err != nil {
		s.logger.Error("deactivating trip failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	trip.Active = false
	s.publishTripEvent("trip_closed", *trip)
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "trip removed"})
}

func (s *Server) handleBookSeat(w http.ResponseWriter, r *http.Request) {
	claims := identityFromContext(r.Context())
	trip, err := s.store.GetTrip(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, http.StatusNotFound, "trip not found")
		return
	}
	if trip.DriverID == claims.UserID {
		s.respondError(w, http.StatusBadRequest, "cannot book your own trip")
		return
	}
	if !trip.Active {
		s.respondError(w, http.StatusConflict, "trip is closed")
		return
	}

	if err := s.store.ReserveSeat(r.Context(), trip.ID); err != nil {
		if errors.Is(err, storage.ErrNoSeats) {
			s.respondError(w, http.StatusConflict, "no seats available")
			return
		}
		s.logger.Error("reserving seat failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	booking := &models.Booking{
		ID:          uuid.NewString(),
		TripID:      trip.ID,
		PassengerID: claims.UserID,
		Status:      "held",
		CreatedAt:   time.Now(),
	}
	if s.stripe != nil {
		piID, err := s.stripe.HoldSeat(r.Context(), s.seatPriceCents(), "eur", "")
		if err != nil {
			// roll the seat back, the hold is part of the booking
			if relErr := s.store.ReleaseSeat(r.Context(), trip.ID); relErr != nil {
				s.logger.Error("releasing seat after failed hold", "error", relErr)
			}
			s.logger.Error("payment hold failed", "trip_id", trip.ID, "error", err)
			s.respondError(w, http.StatusBadGateway, "payment hold failed")
			return
		}
		booking.PaymentIntentID = piID
	}

	if err := s.store.CreateBooking(r.Context(), booking); err != nil {
		s.logger.Error("creating booking failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	observability.BookingsTotal.Inc()
	s.respondJSON(w, http.StatusCreated, map[string]any{"booking": booking})
}

func (s *Server) handleConfirmBooking(w http.ResponseWriter, r *http.Request) {
	claims := identityFromContext(r.Context())
	booking, trip, ok := s.bookingForDriver(w, r)
	if !ok {
		return
	}
	if trip.DriverID != claims.UserID {
		s.respondError(w, http.StatusForbidden, "only the driver can confirm a booking")
		return
	}
	if booking.Status != "held" {
		s.respondError(w, http.StatusConflict, "booking is not held")
		return
	}
	if s.stripe != nil && booking.PaymentIntentID != "" {
		if err := s.stripe.Capture(r.Context(), booking.PaymentIntentID); err != nil {
			s.logger.Error("capturing payment failed", "booking_id", booking.ID, "error", err)
			s.respondError(w, http.StatusBadGateway, "payment capture failed")
			return
		}
	}
	booking.Status = "confirmed"
	if err := s.store.UpdateBooking(r.Context(), booking); err != nil {
		s.logger.Error("updating booking failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"booking": booking})
}

func (s *Server) handleReleaseBooking(w http.ResponseWriter, r *http.Request) {
	booking, trip, ok := s.bookingForDriver(w, r)
	if !ok {
		return
	}
	if booking.Status != "held" {
		s.respondError(w, http.StatusConflict, "booking is not held")
		return
	}
	if s.stripe != nil && booking.PaymentIntentID != "" {
		if err := s.stripe.Release(r.Context(), booking.PaymentIntentID); err != nil {
			s.logger.Error("releasing payment failed", "booking_id", booking.ID, "error", err)
		}
	}
	if err := s.store.ReleaseSeat(r.Context(), trip.ID); err != nil {
		s.logger.Error("releasing seat failed", "error", err)
	}
	booking.Status = "released"
	if err := s.store.UpdateBooking(r.Context(), booking); err != nil {
		s.logger.Error("updating booking failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"booking": booking})
}

// bookingForDriver loads a booking and checks the caller owns the trip.
// The passenger who made a held booking may also release it.
func (s *Server) bookingForDriver(w http.ResponseWriter, r *http.Request) (*models.Booking, *models.Trip, bool) {
	claims := identityFromContext(r.Context())
	booking, err := s.store.GetBooking(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, http.StatusNotFound, "booking not found")
		return nil, nil, false
	}
	trip, err := s.store.GetTrip(r.Context(), booking.TripID)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "trip not found")
		return nil, nil, false
	}
	if trip.DriverID != claims.UserID && booking.PassengerID != claims.UserID {
		s.respondError(w, http.StatusForbidden, "not your booking")
		return nil, nil, false
	}
	return booking, trip, true
}

func (s *Server) publishTripEvent(eventType string, trip models.Trip) {
	if s.producer == nil {
		return
	}
	if err := s.producer.PublishTripEvent(eventType, trip); err != nil {
		s.logger.Warn("publishing trip event failed", "type", eventType, "trip_id", trip.ID, "error", err)
	}
}

// seatPriceCents is a flat fare for now; pricing was never part of the
// matching engine.
func (s *Server) seatPriceCents() int64 { return 300 }

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
