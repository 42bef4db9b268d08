// Package sweeper expires stale follow and message requests on a schedule.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/oggyb/kinnect/internal/app"
	"github.com/oggyb/kinnect/internal/metrics"
	"github.com/oggyb/kinnect/internal/repository"
)

// Result counts the rows one sweep touched.
type Result struct {
	FollowRequestsDeleted  int64
	MessageRequestsExpired int64
}

// Sweeper removes pending follow requests past expiry and marks lapsed message requests expired.
// Read paths check expiry on their own, so a missed run only delays cleanup.
type Sweeper struct {
	appCtx   *app.AppContext
	follows  *repository.FollowRequestRepository
	messages *repository.MessageRequestRepository
	cron     *cron.Cron
}

func New(appCtx *app.AppContext) *Sweeper {
	return &Sweeper{
		appCtx:   appCtx,
		follows:  repository.NewFollowRequestRepository(appCtx.DB),
		messages: repository.NewMessageRequestRepository(appCtx.DB),
	}
}

// SweepExpired runs one pass at now.
func (s *Sweeper) SweepExpired(ctx context.Context, now time.Time) (Result, error) {
	var res Result

	n, err := s.follows.DeleteExpiredPending(ctx, now)
	if err != nil {
		return res, fmt.Errorf("sweep follow requests: %w", err)
	}
	res.FollowRequestsDeleted = n
	metrics.SweptRequestsTotal.WithLabelValues("follow").Add(float64(n))

	n, err = s.messages.ExpirePending(ctx, now)
	if err != nil {
		return res, fmt.Errorf("sweep message requests: %w", err)
	}
	res.MessageRequestsExpired = n
	metrics.SweptRequestsTotal.WithLabelValues("message").Add(float64(n))

	return res, nil
}

// Start schedules SweepExpired on spec (standard cron syntax or descriptors like "@every 10m").
func (s *Sweeper) Start(spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger), cron.Recover(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, s.run); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", spec, err)
	}
	s.cron = c
	c.Start()
	s.appCtx.Logger.Info("request sweeper started", "spec", spec)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := s.SweepExpired(ctx, s.appCtx.Now())
	if err != nil {
		s.appCtx.Logger.Error("request sweep failed", "err", err)
		return
	}
	if res.FollowRequestsDeleted > 0 || res.MessageRequestsExpired > 0 {
		s.appCtx.Logger.Info("request sweep done",
			"follow_deleted", res.FollowRequestsDeleted,
			"message_expired", res.MessageRequestsExpired)
	}
}
