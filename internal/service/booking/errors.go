package booking

import "errors"

var (
	ErrEventNotFound        = errors.New("event not found")
	ErrBookingNotFound      = errors.New("booking not found")
	ErrInsufficientCapacity = errors.New("not enough tickets in category")
	ErrInvalidTransition    = errors.New("status change not permitted")
	ErrForbidden            = errors.New("not enough rights")
	ErrNoSeats              = errors.New("no seats selected")
	ErrInvalidSeatCategory  = errors.New("unknown seat category")
	ErrInvalidStatus        = errors.New("unknown booking status")
	ErrRateLimited          = errors.New("rate limited")
)
