package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ticketarena/ticketarena/internal/domain"
	"github.com/ticketarena/ticketarena/internal/repository"
	postgresrepo "github.com/ticketarena/ticketarena/internal/repository/postgres"
	redisrepo "github.com/ticketarena/ticketarena/internal/repository/redis"
	redisx "github.com/ticketarena/ticketarena/internal/redis"
)

type Config struct {
	EventSummaryTTL time.Duration
	EventTicketsTTL time.Duration
	DefaultPerPage  int
	MaxPerPage      int
}

type Service struct {
	store *postgresrepo.Store
	cache *redisrepo.Cache
	cfg   Config
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.EventSummaryTTL <= 0 {
		cfg.EventSummaryTTL = 60 * time.Second
	}

	if cfg.EventTicketsTTL <= 0 {
		cfg.EventTicketsTTL = 15 * time.Second
	}

	if cfg.DefaultPerPage <= 0 {
		cfg.DefaultPerPage = 8
	}

	if cfg.MaxPerPage <= 0 || cfg.MaxPerPage < cfg.DefaultPerPage {
		cfg.MaxPerPage = 50
	}

	return &Service{
		store: store,
		cache: cache,
		cfg:   cfg,
	}
}

// Page is one catalog page plus the pagination envelope the clients render.
type Page struct {
	Items   []domain.Event `json:"items"`
	Total   int64          `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
	Pages   int            `json:"pages"`
}

// ListEvents returns one page of events ordered by date, optionally
// restricted to a single category.
func (s *Service) ListEvents(
	ctx context.Context,
	page, perPage int,
	category domain.EventCategory,
) (*Page, error) {
	const op = "service.catalog.ListEvents"

	if page < 1 {
		page = 1
	}

	if perPage <= 0 {
		perPage = s.cfg.DefaultPerPage
	}

	if perPage > s.cfg.MaxPerPage {
		perPage = s.cfg.MaxPerPage
	}

	items, total, err := s.store.Catalog().ListEvents(ctx, perPage, (page-1)*perPage, category)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Page{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   pages(total, perPage),
	}, nil
}

// GetEvent retrieves an event by its ID through the summary cache.
//
// Returns catalog.ErrEventNotFound when the event does not exist.
func (s *Service) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "service.catalog.GetEvent"

	key := redisx.KeyEventSummary(id)

	event, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.EventSummaryTTL,
		func(ctx context.Context) (domain.Event, error) {
			e, err := s.store.Catalog().GetEvent(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Event{}, ErrEventNotFound
				}

				return domain.Event{}, err
			}

			return *e, nil
		},
	)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrEventNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &event, nil
}

// TicketCategories returns the event's ticket categories through a short
// cache; remaining capacities change on every booking, so the TTL is tight.
func (s *Service) TicketCategories(ctx context.Context, eventID int64) ([]domain.TicketCategory, error) {
	const op = "service.catalog.TicketCategories"

	key := redisx.KeyEventTickets(eventID)

	tickets, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.EventTicketsTTL,
		func(ctx context.Context) ([]domain.TicketCategory, error) {
			out, err := s.store.Catalog().ListTicketCategories(ctx, eventID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil, ErrEventNotFound
				}

				return nil, err
			}

			return out, nil
		},
	)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrEventNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tickets, nil
}

// Search filters an already-fetched page of events by a case-insensitive
// substring match over the given language's title, description and venue.
// It is deliberately local: searching only the loaded page avoids a server
// round-trip per keystroke.
func Search(events []domain.Event, query string, lang domain.Lang) []domain.Event {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return events
	}

	var out []domain.Event
	for _, e := range events {
		if matches(e.Title, query, lang) ||
			matches(e.Description, query, lang) ||
			matches(e.Venue, query, lang) {
			out = append(out, e)
		}
	}

	return out
}

func matches(text domain.LocalizedText, query string, lang domain.Lang) bool {
	return strings.Contains(strings.ToLower(text.Get(lang)), query)
}

func pages(total int64, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}
