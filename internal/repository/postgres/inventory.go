package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ticketarena/ticketarena/internal/domain"
	"github.com/ticketarena/ticketarena/internal/repository"
)

type InventoryRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *InventoryRepo) With(db DB) *InventoryRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *InventoryRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Reserve atomically debits qty seats from the category and returns the
// current price per seat. The guard lives in the statement itself
// (capacity >= qty), so two racing reservations can never jointly oversell:
// the row update serializes them and the loser sees a non-matching predicate.
//
// Returns:
//   - repository.ErrInsufficientCapacity when fewer than qty seats remain.
//   - repository.ErrNotFound when the event has no such category.
func (r *InventoryRepo) Reserve(
	ctx context.Context,
	eventID int64,
	category domain.TicketCategoryID,
	qty int,
) (decimal.Decimal, error) {
	const op = "postgres.InventoryRepo.Reserve"

	db := r.handle()

	var price string
	err := db.QueryRow(ctx,
		`UPDATE ticket_categories
		 SET capacity = capacity - $3
		 WHERE event_id = $1 AND category = $2 AND capacity >= $3
		 RETURNING price::text`,
		eventID, category, qty,
	).Scan(&price)
	if err == nil {
		d, perr := decimal.NewFromString(price)
		if perr != nil {
			return decimal.Zero, fmt.Errorf("%s: decode price: %w", op, perr)
		}
		return d, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	// No row matched: missing category or not enough seats left.
	var exists bool
	if scanErr := db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM ticket_categories WHERE event_id = $1 AND category = $2
		 )`,
		eventID, category,
	).Scan(&exists); scanErr != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, translateDBErr(scanErr))
	}

	if exists {
		return decimal.Zero, fmt.Errorf("%s: %w", op, repository.ErrInsufficientCapacity)
	}

	return decimal.Zero, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
}

// Release credits qty seats back to the category. It runs with the seat
// counts recorded at booking time, so later capacity edits do not change how
// many seats come back.
func (r *InventoryRepo) Release(
	ctx context.Context,
	eventID int64,
	category domain.TicketCategoryID,
	qty int,
) error {
	const op = "postgres.InventoryRepo.Release"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE ticket_categories
		 SET capacity = capacity + $3
		 WHERE event_id = $1 AND category = $2`,
		eventID, category, qty,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}
