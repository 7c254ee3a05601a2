package admin

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ticketarena/ticketarena/internal/domain"
)

func validEvent() *domain.Event {
	return &domain.Event{
		Title:    domain.LocalizedText{domain.LangRU: "Финал", domain.LangEN: "Final"},
		Venue:    domain.LocalizedText{domain.LangRU: "Арена", domain.LangEN: "Arena"},
		Date:     time.Date(2026, 10, 1, 19, 0, 0, 0, time.UTC),
		Category: domain.CategoryFootball,
		Tickets: []domain.TicketCategory{
			{Category: domain.TicketStandard, Price: decimal.RequireFromString("1500.00"), Capacity: 100},
		},
	}
}

func TestValidateEvent(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validateEvent(validEvent()))
	})

	t.Run("title missing a language", func(t *testing.T) {
		e := validEvent()
		e.Title = domain.LocalizedText{domain.LangRU: "Финал"}
		assert.ErrorIs(t, validateEvent(e), ErrValidation)
	})

	t.Run("venue missing entirely", func(t *testing.T) {
		e := validEvent()
		e.Venue = nil
		assert.ErrorIs(t, validateEvent(e), ErrValidation)
	})

	t.Run("description is optional", func(t *testing.T) {
		e := validEvent()
		e.Description = nil
		assert.NoError(t, validateEvent(e))
	})

	t.Run("bad category", func(t *testing.T) {
		e := validEvent()
		e.Category = "opera"
		assert.ErrorIs(t, validateEvent(e), ErrValidation)
	})

	t.Run("zero date", func(t *testing.T) {
		e := validEvent()
		e.Date = time.Time{}
		assert.ErrorIs(t, validateEvent(e), ErrValidation)
	})

	t.Run("bad ticket bubbles up", func(t *testing.T) {
		e := validEvent()
		e.Tickets[0].Category = "premium"
		assert.ErrorIs(t, validateEvent(e), ErrValidation)
	})
}

func TestValidateTicket(t *testing.T) {
	tc := domain.TicketCategory{Category: domain.TicketVIP, Price: decimal.RequireFromString("5000.00"), Capacity: 10}
	assert.NoError(t, validateTicket(&tc))

	neg := tc
	neg.Price = decimal.RequireFromString("-1")
	assert.ErrorIs(t, validateTicket(&neg), ErrValidation)

	cap0 := tc
	cap0.Capacity = 0
	assert.NoError(t, validateTicket(&cap0), "zero capacity means sold out, not invalid")

	capNeg := tc
	capNeg.Capacity = -1
	assert.ErrorIs(t, validateTicket(&capNeg), ErrValidation)
}

func TestClampPage(t *testing.T) {
	page, perPage := clampPage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, 10, perPage)

	page, perPage = clampPage(3, 500)
	assert.Equal(t, 3, page)
	assert.Equal(t, 100, perPage)
}
