package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summary struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

func TestGetOrSetJSON_MissLoadsAndStores(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := New(db)

	const key = "ticketarena:v1:event:1:summary"
	stored := `{"id":1,"title":"Cup Final"}`

	// Miss path: outer read, singleflight re-read, then the store.
	mock.ExpectGet(key).RedisNil()
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, stored, time.Minute).SetVal("OK")

	calls := 0
	got, err := GetOrSetJSON(context.Background(), cache, key, time.Minute,
		func(ctx context.Context) (summary, error) {
			calls++
			return summary{ID: 1, Title: "Cup Final"}, nil
		})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, summary{ID: 1, Title: "Cup Final"}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrSetJSON_HitSkipsLoader(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := New(db)

	const key = "ticketarena:v1:event:1:summary"
	mock.ExpectGet(key).SetVal(`{"id":1,"title":"Cup Final"}`)

	got, err := GetOrSetJSON(context.Background(), cache, key, time.Minute,
		func(ctx context.Context) (summary, error) {
			t.Fatal("loader must not run on a cache hit")
			return summary{}, nil
		})
	require.NoError(t, err)

	assert.EqualValues(t, 1, got.ID)
}

func TestGetOrSetJSON_LoaderError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := New(db)

	const key = "ticketarena:v1:event:2:summary"
	mock.ExpectGet(key).RedisNil()
	mock.ExpectGet(key).RedisNil()

	wantErr := errors.New("db down")
	_, err := GetOrSetJSON(context.Background(), cache, key, time.Minute,
		func(ctx context.Context) (summary, error) {
			return summary{}, wantErr
		})

	assert.ErrorIs(t, err, wantErr)
}

func TestInvalidateEvent(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := New(db)

	mock.ExpectDel(
		"ticketarena:v1:event:7:summary",
		"ticketarena:v1:event:7:tickets",
	).SetVal(2)

	require.NoError(t, cache.InvalidateEvent(context.Background(), 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}
