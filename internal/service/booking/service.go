package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ticketarena/ticketarena/internal/domain"
	"github.com/ticketarena/ticketarena/internal/monitoring"
	"github.com/ticketarena/ticketarena/internal/repository"
	postgresrepo "github.com/ticketarena/ticketarena/internal/repository/postgres"
	redisrepo "github.com/ticketarena/ticketarena/internal/repository/redis"
	redisx "github.com/ticketarena/ticketarena/internal/redis"
)

// Store is the persistence the lifecycle engine needs. *postgresrepo.Store
// implements it; tests substitute an in-memory double.
type Store interface {
	// CreateBooking atomically reserves the booking's seats, snapshots the
	// total price and persists the pending booking.
	CreateBooking(ctx context.Context, b *domain.Booking) (*domain.Booking, error)

	// TransitionBooking applies decide under a per-booking lock and releases
	// the recorded seat counts when decide asks for it, all in one
	// transaction.
	TransitionBooking(ctx context.Context, id uuid.UUID, decide postgresrepo.TransitionFunc) (*domain.Booking, error)

	GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	ListBookingsByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Booking, int64, error)
}

type Config struct {
	DefaultPerPage int
	MaxPerPage     int
}

// Service is the booking lifecycle engine: it owns every status transition a
// booking can make and the capacity bookkeeping each transition implies.
type Service struct {
	store   Store
	cache   *redisrepo.Cache
	pubsub  *redisx.EventsPubSub
	limiter *redisrepo.SlidingWindowLimiter
	cfg     Config
}

func New(
	store Store,
	cache *redisrepo.Cache,
	pubsub *redisx.EventsPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	cfg Config,
) *Service {
	if cfg.DefaultPerPage <= 0 {
		cfg.DefaultPerPage = 10
	}

	if cfg.MaxPerPage <= 0 || cfg.MaxPerPage < cfg.DefaultPerPage {
		cfg.MaxPerPage = 100
	}

	return &Service{
		store:   store,
		cache:   cache,
		pubsub:  pubsub,
		limiter: limiter,
		cfg:     cfg,
	}
}

// Create turns a purchase request into a pending booking. The seat list
// carries one category code per requested seat; reservation and persistence
// happen in one transaction, so a failed insert never leaks reserved seats.
//
// Returns:
//   - booking.ErrNoSeats / booking.ErrInvalidSeatCategory on bad input.
//   - booking.ErrEventNotFound when the event or category does not exist.
//   - booking.ErrInsufficientCapacity when any category lacks seats.
//   - booking.ErrRateLimited when the caller exceeded the purchase budget.
func (s *Service) Create(
	ctx context.Context,
	actor domain.Actor,
	eventID int64,
	seats []domain.TicketCategoryID,
	rlKey string,
) (*domain.Booking, error) {
	const op = "service.booking.Create"

	if len(seats) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoSeats)
	}

	for _, seat := range seats {
		if !seat.Valid() {
			return nil, fmt.Errorf("%s: %w: %q", op, ErrInvalidSeatCategory, seat)
		}
	}

	if s.limiter != nil && rlKey != "" {
		ok, _, retry, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s: %w, retry in %s", op, ErrRateLimited, retry)
		}
	}

	b := &domain.Booking{
		ID:        uuid.New(),
		UserID:    actor.UserID,
		EventID:   eventID,
		Seats:     seats,
		Status:    domain.StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	created, err := s.store.CreateBooking(ctx, b)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientCapacity) {
			monitoring.CapacityRejected()
			return nil, fmt.Errorf("%s: %w", op, ErrInsufficientCapacity)
		}

		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrEventNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	monitoring.BookingCreated(created.Seats)
	s.eventChanged(ctx, created.EventID)

	return created, nil
}

// UpdateStatus moves a booking along the lifecycle. The transition rule runs
// while the booking row is locked, so concurrent confirm/cancel attempts on
// one booking serialize and seats are released exactly once.
//
// Returns:
//   - booking.ErrBookingNotFound when no such booking exists.
//   - booking.ErrInvalidTransition when the lifecycle forbids the move,
//     including re-applying the current status.
//   - booking.ErrForbidden when the actor may not perform the move.
func (s *Service) UpdateStatus(
	ctx context.Context,
	actor domain.Actor,
	id uuid.UUID,
	target domain.BookingStatus,
) (*domain.Booking, error) {
	const op = "service.booking.UpdateStatus"

	if !target.Valid() {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrInvalidStatus, target)
	}

	var from domain.BookingStatus

	updated, err := s.store.TransitionBooking(ctx, id,
		func(b *domain.Booking) (domain.BookingStatus, bool, error) {
			if err := domain.CanTransition(b, target, actor); err != nil {
				return "", false, err
			}

			from = b.Status

			return target, domain.ReleasesSeats(target), nil
		},
	)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%s: %w", op, ErrBookingNotFound)
		case errors.Is(err, domain.ErrInvalidTransition):
			monitoring.InvalidTransition()
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidTransition)
		case errors.Is(err, domain.ErrForbidden):
			return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	monitoring.StatusTransition(from, target)
	s.eventChanged(ctx, updated.EventID)

	return updated, nil
}

// Cancel is the cancellation entry point used by both users and
// administrators; it delegates to UpdateStatus, so all release and
// idempotency guarantees come from the shared transition path.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Booking, error) {
	return s.UpdateStatus(ctx, actor, id, domain.StatusCancelled)
}

// Get retrieves a booking. Non-admin actors can only read their own.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Booking, error) {
	const op = "service.booking.Get"

	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrBookingNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !actor.IsAdmin() && b.UserID != actor.UserID {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	return b, nil
}

// ListByUser returns one page of the actor's own bookings plus the total
// count, newest first.
func (s *Service) ListByUser(
	ctx context.Context,
	actor domain.Actor,
	page, perPage int,
) ([]domain.Booking, int64, error) {
	const op = "service.booking.ListByUser"

	page, perPage = s.clampPage(page, perPage)

	items, total, err := s.store.ListBookingsByUser(ctx, actor.UserID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return items, total, nil
}

func (s *Service) clampPage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}

	if perPage <= 0 {
		perPage = s.cfg.DefaultPerPage
	}

	if perPage > s.cfg.MaxPerPage {
		perPage = s.cfg.MaxPerPage
	}

	return page, perPage
}

func (s *Service) eventChanged(ctx context.Context, eventID int64) {
	if s.cache != nil {
		_ = s.cache.InvalidateEvent(ctx, eventID)
	}
	if s.pubsub != nil {
		_ = s.pubsub.PublishEventChanged(ctx, eventID)
	}
}
