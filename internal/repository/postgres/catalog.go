package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ticketarena/ticketarena/internal/domain"
	"github.com/ticketarena/ticketarena/internal/repository"
)

type CatalogRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *CatalogRepo) With(db DB) *CatalogRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *CatalogRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// ListEvents returns one page of events ordered by date ascending (id breaks
// ties, so pages are stable) together with the total number of matching
// events. An empty category means no filter.
func (r *CatalogRepo) ListEvents(
	ctx context.Context,
	limit, offset int,
	category domain.EventCategory,
) ([]domain.Event, int64, error) {
	const op = "postgres.CatalogRepo.ListEvents"

	db := r.handle()

	var (
		rows  pgx.Rows
		total int64
		err   error
	)

	if category != "" {
		err = db.QueryRow(ctx,
			`SELECT COUNT(*) FROM events WHERE category = $1`,
			category,
		).Scan(&total)
	} else {
		err = db.QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&total)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	if category != "" {
		rows, err = db.Query(ctx,
			`SELECT id, title, description, venue, date, category, image_url, created_at
			 FROM events
			 WHERE category = $1
			 ORDER BY date, id
			 LIMIT $2 OFFSET $3`,
			category, limit, offset,
		)
	} else {
		rows, err = db.Query(ctx,
			`SELECT id, title, description, venue, date, category, image_url, created_at
			 FROM events
			 ORDER BY date, id
			 LIMIT $1 OFFSET $2`,
			limit, offset,
		)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := r.attachTickets(ctx, db, out); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return out, total, nil
}

// GetEvent retrieves one event with its ticket categories.
//
// Returns repository.ErrNotFound when the event does not exist.
func (r *CatalogRepo) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "postgres.CatalogRepo.GetEvent"

	db := r.handle()

	row := db.QueryRow(ctx,
		`SELECT id, title, description, venue, date, category, image_url, created_at
		 FROM events WHERE id = $1`,
		id,
	)

	e, err := scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	events := []domain.Event{*e}
	if err := r.attachTickets(ctx, db, events); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &events[0], nil
}

// ListTicketCategories returns the event's ticket categories in insertion
// order. Returns repository.ErrNotFound when the event does not exist.
func (r *CatalogRepo) ListTicketCategories(ctx context.Context, eventID int64) ([]domain.TicketCategory, error) {
	const op = "postgres.CatalogRepo.ListTicketCategories"

	db := r.handle()

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, eventID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	rows, err := db.Query(ctx,
		`SELECT id, event_id, category, price::text, capacity, age_restriction
		 FROM ticket_categories
		 WHERE event_id = $1
		 ORDER BY id`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.TicketCategory
	for rows.Next() {
		tc, err := scanTicketCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, *tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// CreateEvent inserts the event and its ticket categories and returns the
// generated event id.
func (r *CatalogRepo) CreateEvent(ctx context.Context, e *domain.Event) (int64, error) {
	const op = "postgres.CatalogRepo.CreateEvent"

	db := r.handle()

	title, description, venue, err := marshalLocalized(e)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO events (title, description, venue, date, category, image_url)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		title, description, venue, e.Date, e.Category, e.ImageURL,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	batch := &pgx.Batch{}
	for _, tc := range e.Tickets {
		batch.Queue(
			`INSERT INTO ticket_categories (event_id, category, price, capacity, age_restriction)
			 VALUES ($1, $2, $3, $4, $5)`,
			id, tc.Category, tc.Price.String(), tc.Capacity, tc.AgeRestriction,
		)
	}
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return id, nil
}

// UpdateEvent overwrites the event's descriptive fields. Ticket categories
// are managed through AddTicketCategory and the inventory.
func (r *CatalogRepo) UpdateEvent(ctx context.Context, e *domain.Event) error {
	const op = "postgres.CatalogRepo.UpdateEvent"

	db := r.handle()

	title, description, venue, err := marshalLocalized(e)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tag, err := db.Exec(ctx,
		`UPDATE events
		 SET title = $2, description = $3, venue = $4, date = $5, category = $6, image_url = $7
		 WHERE id = $1`,
		e.ID, title, description, venue, e.Date, e.Category, e.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}

// DeleteEvent removes the event and its ticket categories. Events referenced
// by any booking are never deleted; the caller gets
// repository.ErrReferentialConflict instead.
func (r *CatalogRepo) DeleteEvent(ctx context.Context, id int64) error {
	const op = "postgres.CatalogRepo.DeleteEvent"

	db := r.handle()

	var referenced bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bookings WHERE event_id = $1)`, id,
	).Scan(&referenced); err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}
	if referenced {
		return fmt.Errorf("%s: %w", op, repository.ErrReferentialConflict)
	}

	tag, err := db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}

// AddTicketCategory attaches a new ticket category to an existing event.
//
// Returns repository.ErrConflict when the event already has that category.
func (r *CatalogRepo) AddTicketCategory(ctx context.Context, tc *domain.TicketCategory) (int64, error) {
	const op = "postgres.CatalogRepo.AddTicketCategory"

	db := r.handle()

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO ticket_categories (event_id, category, price, capacity, age_restriction)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		tc.EventID, tc.Category, tc.Price.String(), tc.Capacity, tc.AgeRestriction,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return id, nil
}

func (r *CatalogRepo) CountEvents(ctx context.Context) (int64, error) {
	const op = "postgres.CatalogRepo.CountEvents"

	var total int64
	if err := r.handle().QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&total); err != nil {
		return 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return total, nil
}

func (r *CatalogRepo) attachTickets(ctx context.Context, db DB, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	ids := make([]int64, len(events))
	index := make(map[int64]int, len(events))
	for i := range events {
		ids[i] = events[i].ID
		index[events[i].ID] = i
	}

	rows, err := db.Query(ctx,
		`SELECT id, event_id, category, price::text, capacity, age_restriction
		 FROM ticket_categories
		 WHERE event_id = ANY($1)
		 ORDER BY id`,
		ids,
	)
	if err != nil {
		return translateDBErr(err)
	}

	defer rows.Close()

	for rows.Next() {
		tc, err := scanTicketCategory(rows)
		if err != nil {
			return err
		}
		if i, ok := index[tc.EventID]; ok {
			events[i].Tickets = append(events[i].Tickets, *tc)
		}
	}

	return rows.Err()
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var (
		e                        domain.Event
		title, description, venu []byte
	)

	if err := row.Scan(
		&e.ID, &title, &description, &venu,
		&e.Date, &e.Category, &e.ImageURL, &e.CreatedAt,
	); err != nil {
		return nil, translateDBErr(err)
	}

	for _, pair := range []struct {
		raw []byte
		dst *domain.LocalizedText
	}{
		{title, &e.Title},
		{description, &e.Description},
		{venu, &e.Venue},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return nil, fmt.Errorf("decode localized text: %w", err)
		}
	}

	return &e, nil
}

func scanTicketCategory(row pgx.Row) (*domain.TicketCategory, error) {
	var (
		tc    domain.TicketCategory
		price string
	)

	if err := row.Scan(
		&tc.ID, &tc.EventID, &tc.Category, &price, &tc.Capacity, &tc.AgeRestriction,
	); err != nil {
		return nil, translateDBErr(err)
	}

	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("decode price: %w", err)
	}
	tc.Price = d

	return &tc, nil
}

func marshalLocalized(e *domain.Event) (title, description, venue []byte, err error) {
	if title, err = json.Marshal(e.Title); err != nil {
		return nil, nil, nil, err
	}
	if description, err = json.Marshal(e.Description); err != nil {
		return nil, nil, nil, err
	}
	if venue, err = json.Marshal(e.Venue); err != nil {
		return nil, nil, nil, err
	}
	return title, description, venue, nil
}
