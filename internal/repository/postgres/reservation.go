package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ticketarena/ticketarena/internal/domain"
)

// Lifecycle transactions run at Read Committed. The capacity-guard UPDATE
// and the FOR UPDATE booking lock already serialize conflicting writers on
// the rows they touch; at Repeatable Read or above the second writer on the
// same ticket_categories row aborts with SQLSTATE 40001 once the first
// commits, instead of re-evaluating the guard against the committed row.
var lifecycleTxOpts = pgx.TxOptions{
	IsoLevel:   pgx.ReadCommitted,
	AccessMode: pgx.ReadWrite,
}

// TransitionFunc decides the outcome of a status transition while the
// booking row is locked. It returns the target status and whether the
// booking's seats go back to the inventory. Returning an error aborts the
// transaction without touching the row.
type TransitionFunc func(b *domain.Booking) (target domain.BookingStatus, release bool, err error)

// CreateBooking reserves the booking's seats and persists the booking in one
// transaction. On entry b carries id, user, event, seats and created-at; the
// method debits each seat category atomically, snapshots TotalPrice from the
// prices returned by the reservation, and inserts the pending row. Any
// failure rolls back every debit.
//
// Returns:
//   - repository.ErrInsufficientCapacity when a category has too few seats.
//   - repository.ErrNotFound when the event lacks a requested category.
func (s *Store) CreateBooking(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
	const op = "postgres.Store.CreateBooking"

	err := s.RunTx(ctx, &lifecycleTxOpts, func(ctx context.Context, tx DB) error {
		inventory := s.Inventory().With(tx)

		total := decimal.Zero
		order, counts := domain.SeatCounts(b.Seats)
		for _, category := range order {
			qty := counts[category]

			price, err := inventory.Reserve(ctx, b.EventID, category, qty)
			if err != nil {
				return err
			}

			total = total.Add(price.Mul(decimal.NewFromInt(int64(qty))))
		}

		b.TotalPrice = total
		b.Status = domain.StatusPending

		return s.Bookings().With(tx).Create(ctx, b)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return b, nil
}

// TransitionBooking applies decide to the booking under a row lock and, in
// the same transaction, releases the originally reserved seat counts when the
// transition cancels the booking. Serializing on the row lock means two
// near-simultaneous transitions resolve in order and seats are released at
// most once.
//
// Returns repository.ErrNotFound when no such booking exists.
func (s *Store) TransitionBooking(
	ctx context.Context,
	id uuid.UUID,
	decide TransitionFunc,
) (*domain.Booking, error) {
	const op = "postgres.Store.TransitionBooking"

	var out *domain.Booking

	txErr := s.RunTx(ctx, &lifecycleTxOpts, func(ctx context.Context, tx DB) error {
		bookings := s.Bookings().With(tx)

		b, err := bookings.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		target, release, err := decide(b)
		if err != nil {
			return err
		}

		if err := bookings.SetStatus(ctx, id, target); err != nil {
			return err
		}

		if release {
			inventory := s.Inventory().With(tx)
			order, counts := domain.SeatCounts(b.Seats)
			for _, category := range order {
				if err := inventory.Release(ctx, b.EventID, category, counts[category]); err != nil {
					return err
				}
			}
		}

		b.Status = target
		out = b

		return nil
	})
	if txErr != nil {
		return nil, fmt.Errorf("%s: %w", op, txErr)
	}

	return out, nil
}

// GetBooking and ListBookingsByUser expose plain reads at the Store level so
// the lifecycle engine depends on one narrow interface.

func (s *Store) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return s.Bookings().Get(ctx, id)
}

func (s *Store) ListBookingsByUser(
	ctx context.Context,
	userID int64,
	limit, offset int,
) ([]domain.Booking, int64, error) {
	return s.Bookings().ListByUser(ctx, userID, limit, offset)
}
