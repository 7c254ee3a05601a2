package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerfiles "github.com/swaggo/files"
	ginswagger "github.com/swaggo/gin-swagger"

	"github.com/ticketarena/ticketarena/internal/domain"
	redisx "github.com/ticketarena/ticketarena/internal/redis"
	redisrepo "github.com/ticketarena/ticketarena/internal/repository/redis"
	"github.com/ticketarena/ticketarena/internal/service"
	"github.com/ticketarena/ticketarena/internal/service/admin"
	"github.com/ticketarena/ticketarena/internal/service/booking"
	"github.com/ticketarena/ticketarena/internal/service/catalog"
)

const idemLockTTL = 10 * time.Second

// NewRouter wires every public and admin route onto a fresh gin engine.
func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	for _, mw := range middlewares {
		router.Use(mw)
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginswagger.WrapHandler(swaggerfiles.Handler))

	registerCatalogRoutes(router, svcs.Catalog, logger)
	registerBookingRoutes(router, svcs.Booking, idem, logger)
	registerAdminRoutes(router, svcs.Admin, logger)

	return router
}

// listEvents godoc
//
//	@Summary		List events
//	@Description	Returns one page of upcoming events, optionally filtered by category and localized search query.
//	@Tags			events
//	@Produce		json
//	@Param			page		query		int		false	"Page number"		default(1)
//	@Param			per_page	query		int		false	"Items per page"	default(8)
//	@Param			category	query		string	false	"Event category"	Enums(football, basketball, hockey, tennis, concert)
//	@Param			q			query		string	false	"Search query over title, description and venue"
//	@Param			lang		query		string	false	"Language of the search"	Enums(ru, en)	default(ru)
//	@Success		200			{object}	catalog.Page
//	@Failure		400			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/events [get]
func registerCatalogRoutes(router *gin.Engine, svc *catalog.Service, logger *slog.Logger) {
	router.GET("/events", func(c *gin.Context) {
		page := queryInt(c, "page", 1)
		perPage := queryInt(c, "per_page", 0)

		category := domain.EventCategory(c.Query("category"))
		if category == "all" {
			category = ""
		}
		if category != "" && !category.Valid() {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown category"})
			return
		}

		result, err := svc.ListEvents(c.Request.Context(), page, perPage, category)
		if err != nil {
			respondErr(c, logger, err)
			return
		}

		if q := c.Query("q"); q != "" {
			lang := domain.Lang(c.DefaultQuery("lang", string(domain.LangRU)))
			result.Items = catalog.Search(result.Items, q, lang)
		}

		writeJSONWithCache(c, http.StatusOK, result, 30)
	})

	// getEvent godoc
	//
	//	@Summary	Get event
	//	@Tags		events
	//	@Produce	json
	//	@Param		id	path		int	true	"Event ID"
	//	@Success	200	{object}	domain.Event
	//	@Failure	404	{object}	ErrorResponse
	//	@Router		/events/{id} [get]
	router.GET("/events/:id", func(c *gin.Context) {
		id, ok := paramInt64(c, "id")
		if !ok {
			return
		}

		event, err := svc.GetEvent(c.Request.Context(), id)
		if err != nil {
			respondErr(c, logger, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, event, 60)
	})

	// listEventTickets godoc
	//
	//	@Summary	Ticket categories of an event
	//	@Tags		events
	//	@Produce	json
	//	@Param		id	path		int	true	"Event ID"
	//	@Success	200	{array}		domain.TicketCategory
	//	@Failure	404	{object}	ErrorResponse
	//	@Router		/events/{id}/tickets [get]
	router.GET("/events/:id/tickets", func(c *gin.Context) {
		id, ok := paramInt64(c, "id")
		if !ok {
			return
		}

		tickets, err := svc.TicketCategories(c.Request.Context(), id)
		if err != nil {
			respondErr(c, logger, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, tickets, 15)
	})
}

func registerBookingRoutes(
	router *gin.Engine,
	svc *booking.Service,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
) {
	group := router.Group("/bookings")
	group.Use(RequireAuth())

	// createBooking godoc
	//
	//	@Summary		Create booking
	//	@Description	Reserves the requested seats and creates a pending booking at current prices. Safe to retry with the same Idempotency-Key.
	//	@Tags			bookings
	//	@Accept			json
	//	@Produce		json
	//	@Param			Idempotency-Key	header		string					false	"Client retry token"
	//	@Param			request			body		CreateBookingRequest	true	"Booking payload"
	//	@Success		201				{object}	domain.Booking
	//	@Failure		400				{object}	ErrorResponse
	//	@Failure		401				{object}	ErrorResponse
	//	@Failure		409				{object}	ErrorResponse
	//	@Failure		429				{object}	ErrorResponse
	//	@Router			/bookings [post]
	group.POST("", func(c *gin.Context) {
		actor, _ := actorFrom(c)

		var req CreateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}

		idemKey := c.GetHeader("Idempotency-Key")
		if idemKey != "" {
			key := redisx.KeyIdemBooking(actor.UserID, idemKey)

			if payload, found, err := idem.GetResult(c.Request.Context(), key); err == nil && found {
				replayBooking(c, payload)
				return
			}

			acquired, err := idem.AcquireLock(c.Request.Context(), key, idemLockTTL)
			if err == nil && !acquired {
				c.JSON(http.StatusConflict, ErrorResponse{Error: "request already in progress"})
				return
			}

			b, err := svc.Create(c.Request.Context(), actor, req.EventID, seatCategories(req.Seats), clientKey(c, actor))
			if err != nil {
				_ = idem.Release(c.Request.Context(), key)
				respondErr(c, logger, err)
				return
			}

			if body, mErr := json.Marshal(b); mErr == nil {
				_ = idem.SaveResult(c.Request.Context(), key, string(body))
			}

			c.JSON(http.StatusCreated, b)
			return
		}

		b, err := svc.Create(c.Request.Context(), actor, req.EventID, seatCategories(req.Seats), clientKey(c, actor))
		if err != nil {
			respondErr(c, logger, err)
			return
		}

		c.JSON(http.StatusCreated, b)
	})

	// listBookings godoc
	//
	//	@Summary	List own bookings
	//	@Tags		bookings
	//	@Produce	json
	//	@Param		page		query		int	false	"Page number"		default(1)
	//	@Param		per_page	query		int	false	"Items per page"	default(10)
	//	@Success	200			{object}	BookingListResponse
	//	@Failure	401			{object}	ErrorResponse
	//	@Router		/bookings [get]
	group.GET("", func(c *gin.Context) {
		actor, _ := actorFrom(c)

		page := queryInt(c, "page", 1)
		perPage := queryInt(c, "per_page", 0)

		items, total, err := svc.ListByUser(c.Request.Context(), actor, page, perPage)
		if err != nil {
			respondErr(c, logger, err)
			return
		}

		if items == nil {
			items = []domain.Booking{}
		}

		c.JSON(http.StatusOK, BookingListResponse{
			Items:   items,
			Total:   total,
			Page:    page,
			PerPage: perPage,
			Pages:   pagesOf(total, perPage),
		})
	})

	// getBooking godoc
	//
	//	@Summary	Get booking
	//	@Tags		bookings
	//	@Produce	json
	//	@Param		id	path		string	true	"Booking ID"
	//	@Success	200	{object}	domain.Booking
	//	@Failure	403	{object}	ErrorResponse
	//	@Failure	404	{object}	ErrorResponse
	//	@Router		/bookings/{id} [get]
	group.GET("/:id", func(c *gin.Context) {
		actor, _ := actorFrom(c)

		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}

		b, err := svc.Get(c.Request.Context(), actor, id)
		if err != nil {
			respondErr(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, b)
	})

	// updateBooking godoc
	//
	//	@Summary		Update booking status
	//	@Description	Moves the booking along its lifecycle: pending to confirmed or cancelled. Confirmed bookings can only be cancelled by an admin.
	//	@Tags			bookings
	//	@Accept			json
	//	@Produce		json
	//	@Param			id		path		string					true	"Booking ID"
	//	@Param			request	body		UpdateBookingRequest	true	"Target status"
	//	@Success		200		{object}	domain.Booking
	//	@Failure		400		{object}	ErrorResponse
	//	@Failure		403		{object}	ErrorResponse
	//	@Failure		404		{object}	ErrorResponse
	//	@Failure		409		{object}	ErrorResponse
	//	@Router			/bookings/{id} [put]
	group.PUT("/:id", func(c *gin.Context) {
		actor, _ := actorFrom(c)

		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}

		var req UpdateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}

		b, err := svc.UpdateStatus(c.Request.Context(), actor, id, domain.BookingStatus(req.Status))
		if err != nil {
			respondErr(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, b)
	})

	// cancelBooking godoc
	//
	//	@Summary	Cancel booking
	//	@Tags		bookings
	//	@Produce	json
	//	@Param		id	path		string	true	"Booking ID"
	//	@Success	200	{object}	domain.Booking
	//	@Failure	403	{object}	ErrorResponse
	//	@Failure	404	{object}	ErrorResponse
	//	@Failure	409	{object}	ErrorResponse
	//	@Router		/bookings/{id} [delete]
	group.DELETE("/:id", func(c *gin.Context) {
		actor, _ := actorFrom(c)

		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}

		b, err := svc.Cancel(c.Request.Context(), actor, id)
		if err != nil {
			respondErr(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, b)
	})
}

func registerAdminRoutes(router *gin.Engine, svc *admin.Service, logger *slog.Logger) {
	group := router.Group("/admin")
	group.Use(RequireAuth(), RequireAdmin())

	// createEvent godoc
	//
	//	@Summary	Create event
	//	@Tags		admin
	//	@Accept		json
	//	@Produce	json
	//	@Param		request	body		EventInput	true	"Event payload"
	//	@Success	201		{object}	map[string]int64
	//	@Failure	400		{object}	ErrorResponse
	//	@Failure	403		{object}	ErrorResponse
	//	@Router		/admin/events [post]
	group.POST("/events", func(c *gin.Context) {
		var req EventInput
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}

		e, err := req.toDomain()
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad date, want RFC3339"})
			return
		}

		id, err := svc.CreateEvent(c.Request.Context(), e)
		if err != nil {
			respondErr(c, logger, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"id": id})
	})

	// updateEvent godoc
	//
	//	@Summary	Update event
	//	@Tags		admin
	//	@Accept		json
	//	@Produce	json
	//	@Param		id		path		int			true	"Event ID"
	//	@Param		request	body		EventInput	true	"Event payload"
	//	@Success	200		{object}	map[string]string
	//	@Failure	400		{object}	ErrorResponse
	//	@Failure	404		{object}	ErrorResponse
	//	@Router		/admin/events/{id} [put]
	group.PUT("/events/:id", func(c *gin.Context) {
		id, ok := paramInt64(c, "id")
		if !ok {
			return
		}

		var req EventInput
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}

		e, err := req.toDomain()
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad date, want RFC3339"})
			return
		}
		e.ID = id

		if err := svc.UpdateEvent(c.Request.Context(), e); err != nil {
			respondErr(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "updated"})
	})

	// deleteEvent godoc
	//
	//	@Summary		Delete event
	//	@Description	Fails with 409 while any booking still references the event.
	//	@Tags			admin
	//	@Produce		json
	//	@Param			id	path		int	true	"Event ID"
	//	@Success		200	{object}	map[string]string
	//	@Failure		404	{object}	ErrorResponse
	//	@Failure		409	{object}	ErrorResponse
	//	@Router			/admin/events/{id} [delete]
	group.DELETE("/events/:id", func(c *gin.Context) {
		id, ok := paramInt64(c, "id")
		if !ok {
			return
		}

		if err := svc.DeleteEvent(c.Request.Context(), id); err != nil {
			respondErr(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})

	// addTicketCategory godoc
	//
	//	@Summary	Add ticket category
	//	@Tags		admin
	//	@Accept		json
	//	@Produce	json
	//	@Param		id		path		int			true	"Event ID"
	//	@Param		request	body		TicketInput	true	"Ticket category payload"
	//	@Success	201		{object}	map[string]int64
	//	@Failure	404		{object}	ErrorResponse
	//	@Failure	409		{object}	ErrorResponse
	//	@Router		/admin/events/{id}/tickets [post]
	group.POST("/events/:id/tickets", func(c *gin.Context) {
		id, ok := paramInt64(c, "id")
		if !ok {
			return
		}

		var req TicketInput
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}

		tc := &domain.TicketCategory{
			EventID:        id,
			Category:       domain.TicketCategoryID(req.Category),
			Price:          req.Price,
			Capacity:       req.Capacity,
			AgeRestriction: req.AgeRestriction,
		}

		tcID, err := svc.AddTicketCategory(c.Request.Context(), tc)
		if err != nil {
			respondErr(c, logger, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"id": tcID})
	})

	// adminListBookings godoc
	//
	//	@Summary	List all bookings
	//	@Tags		admin
	//	@Produce	json
	//	@Param		page		query		int		false	"Page number"		default(1)
	//	@Param		per_page	query		int		false	"Items per page"	default(10)
	//	@Param		status		query		string	false	"Status filter"		Enums(pending, confirmed, cancelled)
	//	@Success	200			{object}	admin.BookingsPage
	//	@Failure	400			{object}	ErrorResponse
	//	@Router		/admin/bookings [get]
	group.GET("/bookings", func(c *gin.Context) {
		page := queryInt(c, "page", 1)
		perPage := queryInt(c, "per_page", 0)
		status := domain.BookingStatus(c.Query("status"))

		result, err := svc.ListBookings(c.Request.Context(), page, perPage, status)
		if err != nil {
			respondErr(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, result)
	})

	// adminListUsers godoc
	//
	//	@Summary	List users
	//	@Tags		admin
	//	@Produce	json
	//	@Param		page		query		int	false	"Page number"		default(1)
	//	@Param		per_page	query		int	false	"Items per page"	default(10)
	//	@Success	200			{object}	admin.UsersPage
	//	@Router		/admin/users [get]
	group.GET("/users", func(c *gin.Context) {
		page := queryInt(c, "page", 1)
		perPage := queryInt(c, "per_page", 0)

		result, err := svc.ListUsers(c.Request.Context(), page, perPage)
		if err != nil {
			respondErr(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, result)
	})

	// adminUpdateUser godoc
	//
	//	@Summary	Update user
	//	@Tags		admin
	//	@Accept		json
	//	@Produce	json
	//	@Param		id		path		int					true	"User ID"
	//	@Param		request	body		UpdateUserRequest	true	"Fields to change"
	//	@Success	200		{object}	domain.User
	//	@Failure	404		{object}	ErrorResponse
	//	@Failure	409		{object}	ErrorResponse
	//	@Router		/admin/users/{id} [put]
	group.PUT("/users/:id", func(c *gin.Context) {
		id, ok := paramInt64(c, "id")
		if !ok {
			return
		}

		var req UpdateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}

		var role *domain.Role
		if req.Role != nil {
			r := domain.Role(*req.Role)
			role = &r
		}

		u, err := svc.UpdateUser(c.Request.Context(), id, req.Name, req.Email, role, req.IsActive, req.AvatarURL)
		if err != nil {
			respondErr(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, u)
	})

	// adminDeleteUser godoc
	//
	//	@Summary	Delete user
	//	@Tags		admin
	//	@Produce	json
	//	@Param		id	path		int	true	"User ID"
	//	@Success	200	{object}	map[string]string
	//	@Failure	404	{object}	ErrorResponse
	//	@Failure	409	{object}	ErrorResponse
	//	@Router		/admin/users/{id} [delete]
	group.DELETE("/users/:id", func(c *gin.Context) {
		actor, _ := actorFrom(c)

		id, ok := paramInt64(c, "id")
		if !ok {
			return
		}

		if err := svc.DeleteUser(c.Request.Context(), actor, id); err != nil {
			respondErr(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})

	// adminStats godoc
	//
	//	@Summary	Platform counters
	//	@Tags		admin
	//	@Produce	json
	//	@Success	200	{object}	admin.Stats
	//	@Router		/admin/stats [get]
	group.GET("/stats", func(c *gin.Context) {
		stats, err := svc.GetStats(c.Request.Context())
		if err != nil {
			respondErr(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, stats)
	})
}

// replayBooking re-serves a stored create response. The status matches the
// original 201 so a client retrying a lost response sees the same contract.
func replayBooking(c *gin.Context, payload string) {
	var b domain.Booking
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "stored result corrupted"})
		return
	}

	c.JSON(http.StatusCreated, b)
}

// clientKey identifies the caller for rate limiting. Authenticated traffic
// keys on the user ID so a user cannot dodge the budget by rotating IPs.
func clientKey(c *gin.Context, actor domain.Actor) string {
	if actor.UserID != 0 {
		return "u:" + strconv.FormatInt(actor.UserID, 10)
	}

	return "ip:" + c.ClientIP()
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}

	return v
}

func paramInt64(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad " + name})
		return 0, false
	}

	return v, true
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad " + name})
		return uuid.Nil, false
	}

	return v, true
}

func pagesOf(total int64, perPage int) int {
	if perPage <= 0 {
		return 0
	}

	return int((total + int64(perPage) - 1) / int64(perPage))
}

func respondErr(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, catalog.ErrEventNotFound),
		errors.Is(err, booking.ErrEventNotFound),
		errors.Is(err, booking.ErrBookingNotFound),
		errors.Is(err, admin.ErrEventNotFound),
		errors.Is(err, admin.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})

	case errors.Is(err, booking.ErrInsufficientCapacity):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "not enough seats"})

	case errors.Is(err, booking.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "transition not allowed"})

	case errors.Is(err, admin.ErrEventHasBookings),
		errors.Is(err, admin.ErrUserHasBookings),
		errors.Is(err, admin.ErrTicketConflict),
		errors.Is(err, admin.ErrEmailTaken),
		errors.Is(err, admin.ErrSelfDelete):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})

	case errors.Is(err, booking.ErrNoSeats),
		errors.Is(err, booking.ErrInvalidSeatCategory),
		errors.Is(err, booking.ErrInvalidStatus),
		errors.Is(err, admin.ErrValidation):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})

	case errors.Is(err, booking.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not enough rights"})

	case errors.Is(err, booking.ErrRateLimited):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many requests"})

	default:
		logger.Error("request failed", "error", err, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
