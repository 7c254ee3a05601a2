package admin

import "errors"

var (
	ErrEventNotFound    = errors.New("event not found")
	ErrEventHasBookings = errors.New("event has related bookings")
	ErrTicketConflict   = errors.New("ticket category already exists")
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailTaken       = errors.New("email is already in use")
	ErrSelfDelete       = errors.New("cannot delete own account")
	ErrUserHasBookings  = errors.New("user has related bookings")
	ErrValidation       = errors.New("validation failed")
)
