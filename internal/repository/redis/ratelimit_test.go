package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The timestamp and member argument of the script change per call, so the
// mock only pins the command and key. The mock still compares argument
// counts before consulting the matcher, so expectations carry four
// placeholder args matching now/window/limit/member.
func anyArgs(expected, actual []interface{}) error { return nil }

func TestSlidingWindowLimiter_Allow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewSlidingWindowLimiter(db, "rl:bookings", 10, time.Minute)

	sha := redis.NewScript(luaSlidingWindow).Hash()

	mock.CustomMatch(anyArgs).
		ExpectEvalSha(sha, []string{"rl:bookings:u:7"}, 0, 0, 0, "m").
		SetVal([]interface{}{int64(1), int64(3), int64(0)})

	allowed, current, retry, err := limiter.Allow(context.Background(), "u:7")
	require.NoError(t, err)

	assert.True(t, allowed)
	assert.EqualValues(t, 3, current)
	assert.Zero(t, retry)
}

func TestSlidingWindowLimiter_Rejects(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewSlidingWindowLimiter(db, "rl:bookings", 10, time.Minute)

	sha := redis.NewScript(luaSlidingWindow).Hash()

	mock.CustomMatch(anyArgs).
		ExpectEvalSha(sha, []string{"rl:bookings:u:7"}, 0, 0, 0, "m").
		SetVal([]interface{}{int64(0), int64(11), int64(42000)})

	allowed, current, retry, err := limiter.Allow(context.Background(), "u:7")
	require.NoError(t, err)

	assert.False(t, allowed)
	assert.EqualValues(t, 11, current)
	assert.Equal(t, 42*time.Second, retry)
}

func TestToInt(t *testing.T) {
	assert.EqualValues(t, 5, toInt(int64(5)))
	assert.EqualValues(t, 5, toInt(5))
	assert.EqualValues(t, 5, toInt(float64(5.0)))
	assert.EqualValues(t, 5, toInt("5"))
	assert.EqualValues(t, 0, toInt(nil))
}
