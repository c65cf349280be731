package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/adhocore/gronx"
)

// RetentionJob deletes read notifications older than the retention window on
// a cron schedule.
type RetentionJob struct {
	notifications NotificationStore
	expr          string
	keep          time.Duration
	clock         Clock
}

func NewRetentionJob(notifications NotificationStore, expr string, keep time.Duration, clock Clock) (*RetentionJob, error) {
	if !gronx.New().IsValid(expr) {
		return nil, fmt.Errorf("invalid retention cron %q", expr)
	}
	if keep <= 0 {
		return nil, fmt.Errorf("retention window must be positive, got %s", keep)
	}
	if clock == nil {
		clock = SystemClock
	}
	return &RetentionJob{notifications: notifications, expr: expr, keep: keep, clock: clock}, nil
}

// Run blocks until ctx is cancelled, purging at every cron tick.
func (j *RetentionJob) Run(ctx context.Context) {
	log.Printf("[Retention] scheduled %q, keeping read notifications for %s", j.expr, j.keep)
	for {
		now := j.clock.Now()
		next, err := gronx.NextTickAfter(j.expr, now, false)
		if err != nil {
			log.Printf("[Retention] next tick: %v", err)
			return
		}
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if n, err := j.RunOnce(ctx); err != nil {
			log.Printf("[Retention] purge failed: %v", err)
		} else if n > 0 {
			log.Printf("[Retention] purged %d read notifications", n)
		}
	}
}

func (j *RetentionJob) RunOnce(ctx context.Context) (int64, error) {
	return j.notifications.DeleteReadBefore(ctx, j.clock.Now().Add(-j.keep))
}
