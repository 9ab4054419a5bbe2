package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/example/carpool-matching/internal/models"
)

// MemoryStore keeps everything in process memory. Used for local runs and
// tests when no PG_DSN is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	trips    map[string]*models.Trip
	tripIDs  []string // insertion order, keeps listings stable
	messages []models.Message
	bookings map[string]*models.Booking
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*models.User),
		trips:    make(map[string]*models.Trip),
		bookings: make(map[string]*models.Booking),
	}
}

func (m *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if contactTaken(existing, u) {
			return ErrDuplicate
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

// contactTaken reports whether u claims another user's email or phone.
// Empty fields never collide.
func contactTaken(existing, u *models.User) bool {
	if u.Email != "" && strings.EqualFold(existing.Email, u.Email) {
		return true
	}
	return u.Phone != "" && existing.Phone == u.Phone
}

func (m *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range m.users {
		if id == u.ID {
			continue
		}
		if contactTaken(existing, u) {
			return ErrDuplicate
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *MemoryStore) ListUsersByRole(ctx context.Context, role, excludingID string) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.User, 0)
	for _, u := range m.users {
		if u.Role != role || u.ID == excludingID {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) CreateTrip(ctx context.Context, t *models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.trips[t.ID] = &cp
	m.tripIDs = append(m.tripIDs, t.ID)
	return nil
}

func (m *MemoryStore) GetTrip(ctx context.Context, id string) (*models.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) UpdateTrip(ctx context.Context, t *models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trips[t.ID]; !ok {
		return ErrNotFound
	}
	cp := *t
	m.trips[t.ID] = &cp
	return nil
}

func (m *MemoryStore) DeactivateTrip(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok {
		return ErrNotFound
	}
	t.Active = false
	return nil
}

func (m *MemoryStore) ListTrips(ctx context.Context, page, perPage int) ([]models.Trip, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	active := make([]models.Trip, 0, len(m.tripIDs))
	// newest first
	for i := len(m.tripIDs) - 1; i >= 0; i-- {
		t := m.trips[m.tripIDs[i]]
		if t.Active {
			active = append(active, *t)
		}
	}
	total := len(active)
	start := (page - 1) * perPage
	if start >= total {
		return []models.Trip{}, total, nil
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return active[start:end], total, nil
}

func (m *MemoryStore) ListCandidateTrips(ctx context.Context, excludingDriverID string) ([]models.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Trip, 0)
	for _, id := range m.tripIDs {
		t := m.trips[id]
		if !t.Active || t.DriverID == excludingDriverID {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (m *MemoryStore) ListOpenTrips(ctx context.Context, excludingDriverID string) ([]models.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Trip, 0)
	for _, id := range m.tripIDs {
		t := m.trips[id]
		if !t.Active || t.Seats <= 0 || t.DriverID == excludingDriverID {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (m *MemoryStore) ListTripsByDriver(ctx context.Context, driverID string) ([]models.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Trip, 0)
	for _, id := range m.tripIDs {
		t := m.trips[id]
		if t.DriverID == driverID && t.Active {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *MemoryStore) ReserveSeat(ctx context.Context, tripID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[tripID]
	if !ok {
		return ErrNotFound
	}
	if t.Seats <= 0 {
		return ErrNoSeats
	}
	t.Seats--
	return nil
}

func (m *MemoryStore) ReleaseSeat(ctx context.Context, tripID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[tripID]
	if !ok {
		return ErrNotFound
	}
	t.Seats++
	return nil
}

func (m *MemoryStore) SaveMessage(ctx context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *MemoryStore) ListMessages(ctx context.Context, room string, limit int) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Message, 0, limit)
	// newest first
	for i := len(m.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if m.messages[i].Room == room {
			out = append(out, m.messages[i])
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *MemoryStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) UpdateBooking(ctx context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[b.ID]; !ok {
		return ErrNotFound
	}
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}
