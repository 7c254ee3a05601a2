package httpgin

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketarena/ticketarena/internal/domain"
	redisx "github.com/ticketarena/ticketarena/internal/redis"
	redisrepo "github.com/ticketarena/ticketarena/internal/repository/redis"
	"github.com/ticketarena/ticketarena/internal/service"
)

func idemRouter(t *testing.T) (*gin.Engine, redismock.ClientMock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rdb, mock := redismock.NewClientMock()
	idem := redisrepo.NewIdempotencyStore(rdb, time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewRouter(&service.Services{}, idem, logger, IdentityMiddleware()), mock
}

func postBooking(router *gin.Engine, idemKey string) *httptest.ResponseRecorder {
	body := bytes.NewBufferString(`{"event_id":1,"seats":["VIP"]}`)
	req := httptest.NewRequest(http.MethodPost, "/bookings", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "7")
	req.Header.Set("X-User-Role", "user")
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func TestCreateBooking_ReplayRepeats201(t *testing.T) {
	router, mock := idemRouter(t)

	stored := domain.Booking{
		ID:      uuid.New(),
		UserID:  7,
		EventID: 1,
		Seats:   []domain.TicketCategoryID{"VIP"},
		Status:  domain.StatusPending,
	}
	payload, err := json.Marshal(stored)
	require.NoError(t, err)

	key := redisx.KeyIdemBooking(7, "retry-1")
	mock.ExpectGet(key).SetVal("RES:" + string(payload))

	w := postBooking(router, "retry-1")
	require.Equal(t, http.StatusCreated, w.Code)

	var got domain.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, stored.ID, got.ID)
	assert.Equal(t, stored.Seats, got.Seats)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBooking_LockedKeyConflicts(t *testing.T) {
	router, mock := idemRouter(t)

	key := redisx.KeyIdemBooking(7, "retry-2")
	mock.ExpectGet(key).SetVal("LOCK")
	mock.ExpectSetNX(key, "LOCK", idemLockTTL).SetVal(false)

	w := postBooking(router, "retry-2")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"request already in progress"}`, w.Body.String())

	assert.NoError(t, mock.ExpectationsWereMet())
}
