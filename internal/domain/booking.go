package domain

import (
	"errors"
	"fmt"
	"strings"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

var (
	// ErrInvalidTransition rejects a status change the lifecycle does not
	// permit, including re-applying the current status. A second confirm is
	// an error, not a silent success, so retrying clients surface their bug.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrForbidden rejects an actor that may not perform the transition.
	ErrForbidden = errors.New("not enough rights")
)

// CanTransition enforces the booking lifecycle:
//
//	pending   -> confirmed   owner or admin
//	pending   -> cancelled   owner or admin
//	confirmed -> cancelled   admin only
//	cancelled -> *           never
//
// It returns nil when the transition is allowed for the actor.
func CanTransition(b *Booking, target BookingStatus, actor Actor) error {
	if !actor.IsAdmin() && b.UserID != actor.UserID {
		return ErrForbidden
	}

	switch b.Status {
	case StatusPending:
		if target == StatusConfirmed || target == StatusCancelled {
			return nil
		}
	case StatusConfirmed:
		if target == StatusCancelled {
			if !actor.IsAdmin() {
				return ErrForbidden
			}
			return nil
		}
	case StatusCancelled:
		// terminal
	}

	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, target)
}

// ReleasesSeats reports whether entering target returns the booking's seats
// to the inventory. Only the transition into cancelled releases; a booking is
// cancelled at most once, so release happens at most once.
func ReleasesSeats(target BookingStatus) bool {
	return target == StatusCancelled
}

// SeatCounts groups a seats list by category, preserving first-appearance
// order. The counts are the ones recorded at booking time and drive release.
func SeatCounts(seats []TicketCategoryID) ([]TicketCategoryID, map[TicketCategoryID]int) {
	counts := make(map[TicketCategoryID]int, len(seats))
	var order []TicketCategoryID
	for _, s := range seats {
		if counts[s] == 0 {
			order = append(order, s)
		}
		counts[s]++
	}
	return order, counts
}

// SeatSummary renders a human label for a seats list, e.g. "VIP (2), Standard (1)".
func SeatSummary(seats []TicketCategoryID) string {
	order, counts := SeatCounts(seats)

	parts := make([]string, 0, len(order))
	for _, cat := range order {
		parts = append(parts, fmt.Sprintf("%s (%d)", displayName(cat), counts[cat]))
	}
	return strings.Join(parts, ", ")
}

func displayName(cat TicketCategoryID) string {
	if cat == TicketVIP {
		return "VIP"
	}
	s := string(cat)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
