package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ticketarena/ticketarena/internal/domain"
)

type BookingRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *BookingRepo) With(db DB) *BookingRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *BookingRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// AdminBookingRow joins a booking with the user and event content the admin
// back-office renders. Read-side only.
type AdminBookingRow struct {
	Booking    domain.Booking       `json:"booking"`
	UserName   string               `json:"user_name"`
	EventTitle domain.LocalizedText `json:"event_title"`
}

func (r *BookingRepo) Create(ctx context.Context, b *domain.Booking) error {
	const op = "postgres.BookingRepo.Create"

	db := r.handle()

	seats, err := json.Marshal(b.Seats)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := db.Exec(ctx,
		`INSERT INTO bookings (id, user_id, event_id, seats, total_price, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.UserID, b.EventID, seats, b.TotalPrice.String(), b.Status, b.CreatedAt,
	); err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return nil
}

// Get retrieves a booking by id.
//
// Returns repository.ErrNotFound when no such booking exists.
func (r *BookingRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.Get"

	row := r.handle().QueryRow(ctx,
		`SELECT id, user_id, event_id, seats, total_price::text, status, created_at
		 FROM bookings WHERE id = $1`,
		id,
	)

	b, err := scanBooking(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return b, nil
}

// GetForUpdate locks the booking row for the rest of the transaction. Every
// status transition goes through this lock, so a confirm and a cancel racing
// on the same booking resolve to exactly one terminal effect.
//
// Must run inside a transaction (With(tx)).
func (r *BookingRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.GetForUpdate"

	row := r.handle().QueryRow(ctx,
		`SELECT id, user_id, event_id, seats, total_price::text, status, created_at
		 FROM bookings WHERE id = $1
		 FOR UPDATE`,
		id,
	)

	b, err := scanBooking(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return b, nil
}

func (r *BookingRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus) error {
	const op = "postgres.BookingRepo.SetStatus"

	tag, err := r.handle().Exec(ctx,
		`UPDATE bookings SET status = $2 WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, translateDBErr(pgx.ErrNoRows))
	}

	return nil
}

// ListByUser returns one page of the user's bookings, newest first, plus the
// total count.
func (r *BookingRepo) ListByUser(
	ctx context.Context,
	userID int64,
	limit, offset int,
) ([]domain.Booking, int64, error) {
	const op = "postgres.BookingRepo.ListByUser"

	db := r.handle()

	var total int64
	if err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	rows, err := db.Query(ctx,
		`SELECT id, user_id, event_id, seats, total_price::text, status, created_at
		 FROM bookings
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return out, total, nil
}

// ListAll returns one page of all bookings joined with user name and event
// title for the admin projection. An empty status means no status filter.
func (r *BookingRepo) ListAll(
	ctx context.Context,
	limit, offset int,
	status domain.BookingStatus,
) ([]AdminBookingRow, int64, error) {
	const op = "postgres.BookingRepo.ListAll"

	db := r.handle()

	var (
		total int64
		err   error
	)
	if status != "" {
		err = db.QueryRow(ctx,
			`SELECT COUNT(*) FROM bookings WHERE status = $1`, status,
		).Scan(&total)
	} else {
		err = db.QueryRow(ctx, `SELECT COUNT(*) FROM bookings`).Scan(&total)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	var rows pgx.Rows
	if status != "" {
		rows, err = db.Query(ctx,
			`SELECT b.id, b.user_id, b.event_id, b.seats, b.total_price::text,
			        b.status, b.created_at, u.name, e.title
			 FROM bookings b
			 JOIN users u ON u.id = b.user_id
			 JOIN events e ON e.id = b.event_id
			 WHERE b.status = $1
			 ORDER BY b.created_at DESC, b.id
			 LIMIT $2 OFFSET $3`,
			status, limit, offset,
		)
	} else {
		rows, err = db.Query(ctx,
			`SELECT b.id, b.user_id, b.event_id, b.seats, b.total_price::text,
			        b.status, b.created_at, u.name, e.title
			 FROM bookings b
			 JOIN users u ON u.id = b.user_id
			 JOIN events e ON e.id = b.event_id
			 ORDER BY b.created_at DESC, b.id
			 LIMIT $1 OFFSET $2`,
			limit, offset,
		)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []AdminBookingRow
	for rows.Next() {
		var (
			row          AdminBookingRow
			seats, title []byte
			price        string
		)

		if err := rows.Scan(
			&row.Booking.ID, &row.Booking.UserID, &row.Booking.EventID,
			&seats, &price, &row.Booking.Status, &row.Booking.CreatedAt,
			&row.UserName, &title,
		); err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}

		if err := decodeBookingFields(&row.Booking, seats, price); err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		if len(title) > 0 {
			if err := json.Unmarshal(title, &row.EventTitle); err != nil {
				return nil, 0, fmt.Errorf("%s: decode event title: %w", op, err)
			}
		}

		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return out, total, nil
}

func (r *BookingRepo) Count(ctx context.Context) (int64, error) {
	const op = "postgres.BookingRepo.Count"

	var total int64
	if err := r.handle().QueryRow(ctx, `SELECT COUNT(*) FROM bookings`).Scan(&total); err != nil {
		return 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return total, nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b     domain.Booking
		seats []byte
		price string
	)

	if err := row.Scan(
		&b.ID, &b.UserID, &b.EventID, &seats, &price, &b.Status, &b.CreatedAt,
	); err != nil {
		return nil, translateDBErr(err)
	}

	if err := decodeBookingFields(&b, seats, price); err != nil {
		return nil, err
	}

	return &b, nil
}

func decodeBookingFields(b *domain.Booking, seats []byte, price string) error {
	if len(seats) > 0 {
		if err := json.Unmarshal(seats, &b.Seats); err != nil {
			return fmt.Errorf("decode seats: %w", err)
		}
	}

	d, err := decimal.NewFromString(price)
	if err != nil {
		return fmt.Errorf("decode total price: %w", err)
	}
	b.TotalPrice = d

	return nil
}
