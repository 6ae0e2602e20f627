package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Counter counts ledger rows written for a business since a point in time.
type Counter interface {
	CountEntriesSince(ctx context.Context, businessID uuid.UUID, since time.Time) (int, error)
}

type Usage struct {
	CallsToday int       `json:"calls_today"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetsAt   time.Time `json:"resets_at"`
}

func (u Usage) Exceeded() bool {
	return u.CallsToday >= u.Limit
}

// DailyQuota caps AI calls per business per UTC day.
//
// The check is not atomic with the insert that follows a successful call, so
// concurrent requests near the limit can overshoot by the number of requests
// in flight.
type DailyQuota struct {
	counter Counter
	limit   int
	logger  *zap.Logger
	now     func() time.Time
}

func NewDailyQuota(counter Counter, limit int, logger *zap.Logger) *DailyQuota {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailyQuota{counter: counter, limit: limit, logger: logger, now: time.Now}
}

// WithClock replaces the time source.
func (q *DailyQuota) WithClock(now func() time.Time) *DailyQuota {
	q.now = now
	return q
}

func (q *DailyQuota) Limit() int { return q.limit }

// Check returns today's usage. A failing count query is logged and treated
// as zero calls so a storage outage does not block AI access.
func (q *DailyQuota) Check(ctx context.Context, businessID uuid.UUID) Usage {
	now := q.now().UTC()
	dayStart := StartOfDayUTC(now)

	calls, err := q.counter.CountEntriesSince(ctx, businessID, dayStart)
	if err != nil {
		q.logger.Error("quota count failed, allowing request",
			zap.String("business_id", businessID.String()),
			zap.Error(err),
		)
		calls = 0
	}

	remaining := q.limit - calls
	if remaining < 0 {
		remaining = 0
	}

	return Usage{
		CallsToday: calls,
		Limit:      q.limit,
		Remaining:  remaining,
		ResetsAt:   dayStart.Add(24 * time.Hour),
	}
}

func StartOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
