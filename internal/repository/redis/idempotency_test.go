package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const idemKey = "ticketarena:v1:idem:bookings:7:abc-123"

func TestIdempotencyStore_AcquireLock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(db, 2*time.Hour)

	mock.ExpectSetNX(idemKey, "LOCK", 10*time.Second).SetVal(true)

	ok, err := store.AcquireLock(context.Background(), idemKey, 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second acquisition loses the race.
	mock.ExpectSetNX(idemKey, "LOCK", 10*time.Second).SetVal(false)

	ok, err = store.AcquireLock(context.Background(), idemKey, 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore_SaveAndGetResult(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(db, 2*time.Hour)

	payload := `{"id":"b1","status":"pending"}`

	mock.ExpectSet(idemKey, "RES:"+payload, 2*time.Hour).SetVal("OK")
	require.NoError(t, store.SaveResult(context.Background(), idemKey, payload))

	mock.ExpectGet(idemKey).SetVal("RES:" + payload)

	got, found, err := store.GetResult(context.Background(), idemKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, payload, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore_GetResult_Miss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(db, 2*time.Hour)

	mock.ExpectGet(idemKey).RedisNil()

	_, found, err := store.GetResult(context.Background(), idemKey)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIdempotencyStore_GetResult_LockIsNotAResult(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(db, 2*time.Hour)

	// While the original request is in flight the key holds the lock marker;
	// a replay must not mistake it for a stored response.
	mock.ExpectGet(idemKey).SetVal("LOCK")

	_, found, err := store.GetResult(context.Background(), idemKey)
	require.NoError(t, err)
	assert.False(t, found)

	mock.ExpectGet(idemKey).SetVal("LOCK")

	locked, err := store.IsLocked(context.Background(), idemKey)
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestIdempotencyStore_Release(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(db, 2*time.Hour)

	mock.ExpectDel(idemKey).SetVal(1)

	require.NoError(t, store.Release(context.Background(), idemKey))
	assert.NoError(t, mock.ExpectationsWereMet())
}
