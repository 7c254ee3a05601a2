package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ticketarena/ticketarena/internal/domain"
)

var (
	bookingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketarena_bookings_created_total",
			Help: "Bookings successfully created",
		},
	)

	seatsReserved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketarena_seats_reserved_total",
			Help: "Seats reserved per ticket category",
		},
		[]string{"category"},
	)

	capacityRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketarena_capacity_rejections_total",
			Help: "Purchase attempts rejected for insufficient capacity",
		},
	)

	statusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketarena_booking_status_transitions_total",
			Help: "Booking status transitions applied",
		},
		[]string{"from", "to"},
	)

	invalidTransitions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketarena_invalid_transitions_total",
			Help: "Booking status transitions rejected",
		},
	)
)

func BookingCreated(seats []domain.TicketCategoryID) {
	bookingsCreated.Inc()
	for _, s := range seats {
		seatsReserved.WithLabelValues(string(s)).Inc()
	}
}

func CapacityRejected() {
	capacityRejections.Inc()
}

func StatusTransition(from, to domain.BookingStatus) {
	statusTransitions.WithLabelValues(string(from), string(to)).Inc()
}

func InvalidTransition() {
	invalidTransitions.Inc()
}
