package mocks

import (
	context "context"
	time "time"

	mock "github.com/stretchr/testify/mock"
)

// RateLimiter is a mock type for the RateLimiter type
type RateLimiter struct {
	mock.Mock
}

func (_m *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	ret := _m.Called(ctx, key, limit, window)
	return ret.Bool(0), ret.Get(1).(int64), ret.Error(2)
}
