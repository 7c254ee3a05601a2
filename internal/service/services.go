package service

import (
	postgres "github.com/ticketarena/ticketarena/internal/repository/postgres"
	redis "github.com/ticketarena/ticketarena/internal/repository/redis"
	redisx "github.com/ticketarena/ticketarena/internal/redis"
	"github.com/ticketarena/ticketarena/internal/service/admin"
	"github.com/ticketarena/ticketarena/internal/service/booking"
	"github.com/ticketarena/ticketarena/internal/service/catalog"
)

type Services struct {
	Catalog *catalog.Service
	Booking *booking.Service
	Admin   *admin.Service
}

type Config struct {
	Catalog catalog.Config
	Booking booking.Config
}

func NewServices(
	store *postgres.Store,
	cache *redis.Cache,
	pubsub *redisx.EventsPubSub,
	limiter *redis.SlidingWindowLimiter,
	cfg Config,
) *Services {
	return &Services{
		Catalog: catalog.New(store, cache, cfg.Catalog),
		Booking: booking.New(store, cache, pubsub, limiter, cfg.Booking),
		Admin:   admin.New(store, cache, pubsub),
	}
}
