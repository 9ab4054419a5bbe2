package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/example/carpool-matching/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

// Ping reports whether the database connection is alive.
func (p *PostgresStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO users(id, first_name, last_name, phone, email, password_hash, role, origin, schedule, photo, created_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		u.ID, u.FirstName, u.LastName, u.Phone, u.Email, u.PasswordHash, u.Role, u.Origin, u.Schedule, u.Photo, u.CreatedAt)
	return translateErr(err)
}

func (p *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, phone, email, password_hash, role, origin, schedule, photo, created_at
		 FROM users WHERE id=$1`, id))
}

func (p *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, phone, email, password_hash, role, origin, schedule, photo, created_at
		 FROM users WHERE lower(email)=lower($1)`, email))
}

func (p *PostgresStore) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Phone, &u.Email, &u.PasswordHash,
		&u.Role, &u.Origin, &u.Schedule, &u.Photo, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (p *PostgresStore) UpdateUser(ctx context.Context, u *models.User) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE users SET first_name=$1, last_name=$2, phone=$3, email=$4, password_hash=$5, origin=$6, schedule=$7, photo=$8
		 WHERE id=$9`,
		u.FirstName, u.LastName, u.Phone, u.Email, u.PasswordHash, u.Origin, u.Schedule, u.Photo, u.ID)
	if err != nil {
		return translateErr(err)
	}
	return checkAffected(res)
}

func (p *PostgresStore) ListUsersByRole(ctx context.Context, role, excludingID string) ([]models.User, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, first_name, last_name, phone, email, password_hash, role, origin, schedule, photo, created_at
		 FROM users WHERE role=$1 AND id<>$2 ORDER BY created_at`, role, excludingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]models.User, 0)
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Phone, &u.Email, &u.PasswordHash,
			&u.Role, &u.Origin, &u.Schedule, &u.Photo, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CreateTrip(ctx context.Context, t *models.Trip) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO trips(id, driver_id, origin, destination, departure_time, seats, active, created_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		t.ID, t.DriverID, t.Origin, t.Destination, t.DepartureTime, t.Seats, t.Active, t.CreatedAt)
	return translateErr(err)
}

func (p *PostgresStore) GetTrip(ctx context.Context, id string) (*models.Trip, error) {
	var t models.Trip
	err := p.db.QueryRowContext(ctx,
		`SELECT id, driver_id, origin, destination, departure_time, seats, active, created_at
		 FROM trips WHERE id=$1`, id).
		Scan(&t.ID, &t.DriverID, &t.Origin, &t.Destination, &t.DepartureTime, &t.Seats, &t.Active, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (p *PostgresStore) UpdateTrip(ctx context.Context, t *models.Trip) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE trips SET origin=$1, destination=$2, departure_time=$3, seats=$4, active=$5 WHERE id=$6`,
		t.Origin, t.Destination, t.DepartureTime, t.Seats, t.Active, t.ID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (p *PostgresStore) DeactivateTrip(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE trips SET active=false WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (p *PostgresStore) ListTrips(ctx context.Context, page, perPage int) ([]models.Trip, int, error) {
	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM trips WHERE active`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, driver_id, origin, destination, departure_time, seats, active, created_at
		 FROM trips WHERE active ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	trips, err := scanTrips(rows)
	return trips, total, err
}

func (p *PostgresStore) ListCandidateTrips(ctx context.Context, excludingDriverID string) ([]models.Trip, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, driver_id, origin, destination, departure_time, seats, active, created_at
		 FROM trips WHERE active AND driver_id<>$1 ORDER BY created_at`, excludingDriverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrips(rows)
}

func (p *PostgresStore) ListOpenTrips(ctx context.Context, excludingDriverID string) ([]models.Trip, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, driver_id, origin, destination, departure_time, seats, active, created_at
		 FROM trips WHERE active AND seats > 0 AND driver_id<>$1 ORDER BY created_at`, excludingDriverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrips(rows)
}

func (p *PostgresStore) ListTripsByDriver(ctx context.Context, driverID string) ([]models.Trip, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, driver_id, origin, destination, departure_time, seats, active, created_at
		 FROM trips WHERE active AND driver_id=$1 ORDER BY created_at`, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrips(rows)
}

func (p *PostgresStore) ReserveSeat(ctx context.Context, tripID string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE trips SET seats = seats - 1 WHERE id=$1 AND seats > 0`, tripID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// distinguish a full trip from a missing one
		if _, err := p.GetTrip(ctx, tripID); err != nil {
			return err
		}
		return ErrNoSeats
	}
	return nil
}

func (p *PostgresStore) ReleaseSeat(ctx context.Context, tripID string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE trips SET seats = seats + 1 WHERE id=$1`, tripID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (p *PostgresStore) SaveMessage(ctx context.Context, m *models.Message) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO messages(id, sender_id, room, content, sent_at) VALUES($1,$2,$3,$4,$5)`,
		m.ID, m.SenderID, m.Room, m.Content, m.SentAt)
	return err
}

func (p *PostgresStore) ListMessages(ctx context.Context, room string, limit int) ([]models.Message, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, sender_id, room, content, sent_at FROM messages
		 WHERE room=$1 ORDER BY sent_at DESC LIMIT $2`, room, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]models.Message, 0, limit)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.Room, &m.Content, &m.SentAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO bookings(id, trip_id, passenger_id, payment_intent_id, status, created_at)
		 VALUES($1,$2,$3,$4,$5,$6)`,
		b.ID, b.TripID, b.PassengerID, b.PaymentIntentID, b.Status, b.CreatedAt)
	return translateErr(err)
}

func (p *PostgresStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	err := p.db.QueryRowContext(ctx,
		`SELECT id, trip_id, passenger_id, payment_intent_id, status, created_at FROM bookings WHERE id=$1`, id).
		Scan(&b.ID, &b.TripID, &b.PassengerID, &b.PaymentIntentID, &b.Status, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (p *PostgresStore) UpdateBooking(ctx context.Context, b *models.Booking) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE bookings SET payment_intent_id=$1, status=$2 WHERE id=$3`,
		b.PaymentIntentID, b.Status, b.ID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func scanTrips(rows *sql.Rows) ([]models.Trip, error) {
	out := make([]models.Trip, 0)
	for rows.Next() {
		var t models.Trip
		if err := rows.Scan(&t.ID, &t.DriverID, &t.Origin, &t.Destination, &t.DepartureTime, &t.Seats, &t.Active, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func translateErr(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
		return ErrDuplicate
	}
	return err
}
