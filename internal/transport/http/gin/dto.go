package httpgin

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ticketarena/ticketarena/internal/domain"
)

type CreateBookingRequest struct {
	EventID int64    `json:"event_id" binding:"required"`
	Seats   []string `json:"seats" binding:"required,min=1,dive,required"`
}

type UpdateBookingRequest struct {
	Status string `json:"status" binding:"required"`
}

type TicketInput struct {
	Category       string          `json:"category" binding:"required"`
	Price          decimal.Decimal `json:"price"`
	Capacity       int             `json:"capacity" binding:"min=0"`
	AgeRestriction string          `json:"age_restriction"`
}

type EventInput struct {
	Title       map[string]string `json:"title" binding:"required"`
	Description map[string]string `json:"description"`
	Venue       map[string]string `json:"venue" binding:"required"`
	Date        string            `json:"date" binding:"required"`
	Category    string            `json:"category" binding:"required"`
	ImageURL    string            `json:"image_url"`
	Tickets     []TicketInput     `json:"tickets"`
}

type UpdateUserRequest struct {
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	Role      *string `json:"role"`
	IsActive  *bool   `json:"is_active"`
	AvatarURL *string `json:"avatar_url"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type BookingListResponse struct {
	Items   []domain.Booking `json:"items"`
	Total   int64            `json:"total"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
	Pages   int              `json:"pages"`
}

func (in EventInput) toDomain() (*domain.Event, error) {
	date, err := time.Parse(time.RFC3339, in.Date)
	if err != nil {
		return nil, err
	}

	e := &domain.Event{
		Title:       localized(in.Title),
		Description: localized(in.Description),
		Venue:       localized(in.Venue),
		Date:        date,
		Category:    domain.EventCategory(in.Category),
		ImageURL:    in.ImageURL,
	}

	for _, t := range in.Tickets {
		e.Tickets = append(e.Tickets, domain.TicketCategory{
			Category:       domain.TicketCategoryID(t.Category),
			Price:          t.Price,
			Capacity:       t.Capacity,
			AgeRestriction: t.AgeRestriction,
		})
	}

	return e, nil
}

func localized(m map[string]string) domain.LocalizedText {
	out := make(domain.LocalizedText, len(m))
	for k, v := range m {
		out[domain.Lang(k)] = v
	}
	return out
}

func seatCategories(seats []string) []domain.TicketCategoryID {
	out := make([]domain.TicketCategoryID, len(seats))
	for i, s := range seats {
		out[i] = domain.TicketCategoryID(s)
	}
	return out
}
