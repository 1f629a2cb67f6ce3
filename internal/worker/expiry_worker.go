package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/civica/membership-backend/internal/config"
	"github.com/civica/membership-backend/internal/metrics"
	"github.com/civica/membership-backend/internal/model"
	"github.com/civica/membership-backend/internal/service"
)

// ExpiryScanConcurrency bounds how many members are recomputed at once.
const ExpiryScanConcurrency = 8

// ExpiryWorker periodically recomputes notifications for every member holding
// an active mandate and publishes the sets that changed. A Redis lock keeps
// replicas from scanning the same tick twice.
type ExpiryWorker struct {
	mandates      *service.MandateService
	notifications *service.NotificationService
	rdb           *redis.Client
	interval      time.Duration
	metrics       *metrics.Metrics
	log           zerolog.Logger
}

func NewExpiryWorker(
	mandates *service.MandateService,
	notifications *service.NotificationService,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *ExpiryWorker {
	interval := cfg.ExpiryScanInterval
	if interval <= 0 {
		interval = config.DefaultExpiryScanInterval
	}
	return &ExpiryWorker{
		mandates:      mandates,
		notifications: notifications,
		rdb:           rdb,
		interval:      interval,
		log:           log.With().Str("component", "expiry_worker").Logger(),
	}
}

// WithMetrics records scan outcomes on m.
func (w *ExpiryWorker) WithMetrics(m *metrics.Metrics) *ExpiryWorker {
	w.metrics = m
	return w
}

// ----------------------------------------------------------------
// Worker loop
// ----------------------------------------------------------------

func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("ExpiryWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.scanSafe(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("ExpiryWorker stopped")
			return
		case <-ticker.C:
			w.scanSafe(ctx)
		}
	}
}

func (w *ExpiryWorker) scanSafe(ctx context.Context) {
	published, err := w.Scan(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Expiry scan failed")
		}
		return
	}
	if published > 0 {
		w.log.Info().Int("published", published).Msg("Expiry scan published notifications")
	}
}

// ----------------------------------------------------------------
// Scan
// ----------------------------------------------------------------

// Scan runs one pass and reports how many members received a new set. It
// returns zero without error when another replica holds the lock.
func (w *ExpiryWorker) Scan(ctx context.Context) (int, error) {
	start := time.Now()
	acquired, err := w.rdb.SetNX(ctx, config.CacheKey.ExpiryScanLockKey(), start.UTC().Format(time.RFC3339), w.lockTTL()).Result()
	if err != nil {
		w.metrics.ObserveScan(metrics.ScanFailed, 0, 0)
		return 0, err
	}
	if !acquired {
		w.log.Debug().Msg("Expiry scan lock held elsewhere, skipping")
		w.metrics.ObserveScan(metrics.ScanSkipped, 0, 0)
		return 0, nil
	}

	published, err := w.scanMembers(ctx)
	if err != nil {
		w.metrics.ObserveScan(metrics.ScanFailed, 0, 0)
		return 0, err
	}
	w.metrics.ObserveScan(metrics.ScanOK, time.Since(start), published)
	return published, nil
}

func (w *ExpiryWorker) scanMembers(ctx context.Context) (int, error) {

	grouped, err := w.mandates.ListActiveByMember(ctx)
	if err != nil {
		return 0, err
	}

	results := make(chan bool, len(grouped))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ExpiryScanConcurrency)
	for memberID := range grouped {
		g.Go(func() error {
			changed, err := w.refresh(gctx, memberID)
			if err != nil {
				// One member failing must not stop the pass.
				w.log.Warn().Err(err).Int("member_id", memberID).Msg("Notification refresh failed")
				return nil
			}
			results <- changed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	close(results)

	published := 0
	for changed := range results {
		if changed {
			published++
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return published, nil
}

// refresh publishes the member's set only when it differs from the stored one.
func (w *ExpiryWorker) refresh(ctx context.Context, memberID int) (bool, error) {
	previous, ok, err := w.notifications.Latest(ctx, memberID)
	if err != nil {
		w.log.Debug().Err(err).Int("member_id", memberID).Msg("Ignoring unreadable previous set")
		ok = false
	}

	list, err := w.mandates.List(ctx, memberID)
	if err != nil {
		if errors.Is(err, service.ErrMemberNotFound) {
			return false, nil
		}
		return false, err
	}

	current := w.notifications.Compute(list, 0)
	if ok && sameNotifications(previous.Notifications, current) {
		return false, nil
	}
	if _, err := w.notifications.Publish(ctx, memberID, list); err != nil {
		return false, err
	}
	return true, nil
}

// lockTTL expires just before the next tick so a crashed holder never blocks
// the schedule.
func (w *ExpiryWorker) lockTTL() time.Duration {
	ttl := w.interval - time.Second
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func sameNotifications(a, b []model.Notification) bool {
	if len(a) != len(b) {
		return false
	}
	left, err := json.Marshal(a)
	if err != nil {
		return false
	}
	right, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(left) == string(right)
}
