package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/ticketarena/ticketarena/internal/domain"
	"github.com/ticketarena/ticketarena/internal/repository"
	postgresrepo "github.com/ticketarena/ticketarena/internal/repository/postgres"
	redisrepo "github.com/ticketarena/ticketarena/internal/repository/redis"
	redisx "github.com/ticketarena/ticketarena/internal/redis"
	"github.com/ticketarena/ticketarena/internal/uow"
)

type Service struct {
	store  *postgresrepo.Store
	cache  *redisrepo.Cache
	pubsub *redisx.EventsPubSub
	uow    *uow.UoW
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache, pubsub *redisx.EventsPubSub) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		pubsub: pubsub,
		uow:    uow.NewUoW(store),
	}
}

// CreateEvent persists a new event with its ticket categories.
//
// Returns admin.ErrValidation when localized fields miss a required language
// or a ticket category is malformed.
func (s *Service) CreateEvent(ctx context.Context, e *domain.Event) (int64, error) {
	const op = "service.admin.CreateEvent"

	if err := validateEvent(e); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var id int64
	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		var err error
		id, err = s.store.Catalog().With(tx).CreateEvent(ctx, e)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		after(func(ctx context.Context) {
			_ = s.pubsub.PublishEventChanged(ctx, id)
		})

		return nil
	})

	return id, err
}

// UpdateEvent overwrites an event's descriptive fields. Ticket capacities are
// untouched; only the inventory mutates them.
func (s *Service) UpdateEvent(ctx context.Context, e *domain.Event) error {
	const op = "service.admin.UpdateEvent"

	if err := validateEvent(e); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		if err := s.store.Catalog().With(tx).UpdateEvent(ctx, e); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s: %w", op, ErrEventNotFound)
			}
			return fmt.Errorf("%s: %w", op, err)
		}

		after(func(ctx context.Context) {
			_ = s.cache.InvalidateEvent(ctx, e.ID)
			_ = s.pubsub.PublishEventChanged(ctx, e.ID)
		})

		return nil
	})

	return err
}

// DeleteEvent removes an event that no booking references.
//
// Returns admin.ErrEventHasBookings otherwise; cancelled bookings still
// count, they are records, not tombstones.
func (s *Service) DeleteEvent(ctx context.Context, id int64) error {
	const op = "service.admin.DeleteEvent"

	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		if err := s.store.Catalog().With(tx).DeleteEvent(ctx, id); err != nil {
			if errors.Is(err, repository.ErrReferentialConflict) {
				return fmt.Errorf("%s: %w", op, ErrEventHasBookings)
			}
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s: %w", op, ErrEventNotFound)
			}
			return fmt.Errorf("%s: %w", op, err)
		}

		after(func(ctx context.Context) {
			_ = s.cache.InvalidateEvent(ctx, id)
			_ = s.pubsub.PublishEventChanged(ctx, id)
		})

		return nil
	})

	return err
}

// AddTicketCategory attaches a new priced category to an existing event.
func (s *Service) AddTicketCategory(ctx context.Context, tc *domain.TicketCategory) (int64, error) {
	const op = "service.admin.AddTicketCategory"

	if err := validateTicket(tc); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var id int64
	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		var err error
		id, err = s.store.Catalog().With(tx).AddTicketCategory(ctx, tc)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%s: %w", op, ErrTicketConflict)
			}
			if errors.Is(err, repository.ErrReferentialConflict) {
				return fmt.Errorf("%s: %w", op, ErrEventNotFound)
			}
			return fmt.Errorf("%s: %w", op, err)
		}

		after(func(ctx context.Context) {
			_ = s.cache.InvalidateEvent(ctx, tc.EventID)
			_ = s.pubsub.PublishEventChanged(ctx, tc.EventID)
		})

		return nil
	})

	return id, err
}

// BookingRow is one row of the back-office bookings table: the booking plus
// the user name, localized event title and a grouped seats label.
type BookingRow struct {
	Booking    domain.Booking       `json:"booking"`
	UserName   string               `json:"user_name"`
	EventTitle domain.LocalizedText `json:"event_title"`
	SeatsLabel string               `json:"seats_label"`
}

type BookingsPage struct {
	Items   []BookingRow `json:"items"`
	Total   int64        `json:"total"`
	Page    int          `json:"page"`
	PerPage int          `json:"per_page"`
	Pages   int          `json:"pages"`
}

// ListBookings is the read-side projection for moderation. It never mutates
// a booking; transitions go through the lifecycle engine.
func (s *Service) ListBookings(
	ctx context.Context,
	page, perPage int,
	status domain.BookingStatus,
) (*BookingsPage, error) {
	const op = "service.admin.ListBookings"

	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%s: %w: bad status %q", op, ErrValidation, status)
	}

	page, perPage = clampPage(page, perPage)

	rows, total, err := s.store.Bookings().ListAll(ctx, perPage, (page-1)*perPage, status)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	items := make([]BookingRow, 0, len(rows))
	for _, row := range rows {
		items = append(items, BookingRow{
			Booking:    row.Booking,
			UserName:   row.UserName,
			EventTitle: row.EventTitle,
			SeatsLabel: domain.SeatSummary(row.Booking.Seats),
		})
	}

	return &BookingsPage{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   pages(total, perPage),
	}, nil
}

type UsersPage struct {
	Items   []domain.User `json:"items"`
	Total   int64         `json:"total"`
	Page    int           `json:"page"`
	PerPage int           `json:"per_page"`
	Pages   int           `json:"pages"`
}

func (s *Service) ListUsers(ctx context.Context, page, perPage int) (*UsersPage, error) {
	const op = "service.admin.ListUsers"

	page, perPage = clampPage(page, perPage)

	items, total, err := s.store.Users().List(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &UsersPage{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   pages(total, perPage),
	}, nil
}

// UpdateUser applies the provided non-zero fields to the user.
func (s *Service) UpdateUser(
	ctx context.Context,
	id int64,
	name, email *string,
	role *domain.Role,
	active *bool,
	avatarURL *string,
) (*domain.User, error) {
	const op = "service.admin.UpdateUser"

	u, err := s.store.Users().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if name != nil {
		u.Name = *name
	}
	if email != nil {
		u.Email = *email
	}
	if role != nil {
		if *role != domain.RoleUser && *role != domain.RoleAdmin {
			return nil, fmt.Errorf("%s: %w: bad role %q", op, ErrValidation, *role)
		}
		u.Role = *role
	}
	if active != nil {
		u.Active = *active
	}
	if avatarURL != nil {
		u.AvatarURL = *avatarURL
	}

	if err := s.store.Users().Update(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

// DeleteUser removes a user. Administrators cannot delete themselves, and
// users referenced by bookings stay.
func (s *Service) DeleteUser(ctx context.Context, actor domain.Actor, id int64) error {
	const op = "service.admin.DeleteUser"

	if actor.UserID == id {
		return fmt.Errorf("%s: %w", op, ErrSelfDelete)
	}

	if err := s.store.Users().Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		if errors.Is(err, repository.ErrReferentialConflict) {
			return fmt.Errorf("%s: %w", op, ErrUserHasBookings)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

type Stats struct {
	Users    int64 `json:"users"`
	Events   int64 `json:"events"`
	Bookings int64 `json:"bookings"`
}

func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	const op = "service.admin.GetStats"

	users, err := s.store.Users().Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	events, err := s.store.Catalog().CountEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	bookings, err := s.store.Bookings().Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Stats{Users: users, Events: events, Bookings: bookings}, nil
}

func validateEvent(e *domain.Event) error {
	for field, text := range map[string]domain.LocalizedText{
		"title": e.Title,
		"venue": e.Venue,
	} {
		if err := text.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrValidation, field, err)
		}
	}

	if !e.Category.Valid() {
		return fmt.Errorf("%w: bad category %q", ErrValidation, e.Category)
	}

	if e.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrValidation)
	}

	for i := range e.Tickets {
		if err := validateTicket(&e.Tickets[i]); err != nil {
			return err
		}
	}

	return nil
}

func validateTicket(tc *domain.TicketCategory) error {
	if !tc.Category.Valid() {
		return fmt.Errorf("%w: bad ticket category %q", ErrValidation, tc.Category)
	}

	if tc.Price.IsNegative() {
		return fmt.Errorf("%w: negative price", ErrValidation)
	}

	if tc.Capacity < 0 {
		return fmt.Errorf("%w: negative capacity", ErrValidation)
	}

	return nil
}

func clampPage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

func pages(total int64, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}
