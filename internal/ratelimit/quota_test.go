package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubCounter struct {
	count int
	err   error
	since time.Time
}

func (s *stubCounter) CountEntriesSince(_ context.Context, _ uuid.UUID, since time.Time) (int, error) {
	s.since = since
	return s.count, s.err
}

func TestDailyQuotaCheck(t *testing.T) {
	now := time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name         string
		count        int
		wantExceeded bool
		wantLeft     int
	}{
		{"no calls yet", 0, false, 20},
		{"one below limit", 19, false, 1},
		{"at limit", 20, true, 0},
		{"above limit", 23, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := &stubCounter{count: tt.count}
			q := NewDailyQuota(counter, 20, zap.NewNop()).WithClock(func() time.Time { return now })

			usage := q.Check(context.Background(), uuid.New())

			assert.Equal(t, tt.wantExceeded, usage.Exceeded())
			assert.Equal(t, tt.wantLeft, usage.Remaining)
			assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), counter.since)
			assert.Equal(t, time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC), usage.ResetsAt)
		})
	}
}

func TestDailyQuotaFailsOpen(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	q := NewDailyQuota(&stubCounter{count: 99, err: errors.New("db down")}, 20, zap.New(core))

	usage := q.Check(context.Background(), uuid.New())

	assert.False(t, usage.Exceeded())
	assert.Equal(t, 0, usage.CallsToday)
	assert.Equal(t, 1, logs.FilterMessage("quota count failed, allowing request").Len())
}

func TestStartOfDayUTC(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	local := time.Date(2026, 10, 20, 3, 0, 0, 0, tokyo)

	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), StartOfDayUTC(local))
}
