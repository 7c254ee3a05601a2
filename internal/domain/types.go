package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventCategory string

const (
	CategoryFootball   EventCategory = "football"
	CategoryBasketball EventCategory = "basketball"
	CategoryHockey     EventCategory = "hockey"
	CategoryTennis     EventCategory = "tennis"
	CategoryConcert    EventCategory = "concert"
)

func (c EventCategory) Valid() bool {
	switch c {
	case CategoryFootball, CategoryBasketball, CategoryHockey, CategoryTennis, CategoryConcert:
		return true
	}
	return false
}

type TicketCategoryID string

const (
	TicketStandard TicketCategoryID = "standard"
	TicketChild    TicketCategoryID = "child"
	TicketVIP      TicketCategoryID = "vip"
)

func (t TicketCategoryID) Valid() bool {
	switch t {
	case TicketStandard, TicketChild, TicketVIP:
		return true
	}
	return false
}

// TicketCategory is a priced class of seat with finite capacity, owned by
// exactly one event. Capacity is mutated only through inventory
// reserve/release, never by display code.
type TicketCategory struct {
	ID             int64            `json:"id"`
	EventID        int64            `json:"event_id"`
	Category       TicketCategoryID `json:"category"`
	Price          decimal.Decimal  `json:"price"`
	Capacity       int              `json:"capacity"`
	AgeRestriction string           `json:"age_restriction"`
}

type Event struct {
	ID          int64            `json:"id"`
	Title       LocalizedText    `json:"title"`
	Description LocalizedText    `json:"description"`
	Venue       LocalizedText    `json:"venue"`
	Date        time.Time        `json:"date"`
	Category    EventCategory    `json:"category"`
	ImageURL    string           `json:"image_url"`
	Tickets     []TicketCategory `json:"tickets"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Booking is a user's purchase record. Seats holds one category code per
// purchased seat, in purchase order. TotalPrice is snapshotted at booking
// time and never recomputed from live category prices.
type Booking struct {
	ID         uuid.UUID          `json:"id"`
	UserID     int64              `json:"user_id"`
	EventID    int64              `json:"event_id"`
	Seats      []TicketCategoryID `json:"seats"`
	TotalPrice decimal.Decimal    `json:"total_price"`
	Status     BookingStatus      `json:"status"`
	CreatedAt  time.Time          `json:"created_at"`
}

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Active    bool      `json:"is_active"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Actor is the authenticated identity performing an operation. Authentication
// itself happens outside the service; the actor arrives as opaque input.
type Actor struct {
	UserID int64
	Role   Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
