package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/civica/membership-backend/internal/config"
	"github.com/civica/membership-backend/internal/mandate"
	"github.com/civica/membership-backend/internal/model"
)

// NotificationService derives mandate notifications and fans them out through
// Redis: the latest set is stored per member and every recompute is published
// on the member's channel.
type NotificationService struct {
	rdb         *redis.Client
	warningDays int
	ttl         time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *NotificationService {
	days := cfg.ExpiryWarningDays
	if days <= 0 {
		days = mandate.DefaultWarningDays
	}
	// The stored set must outlive one scan interval so readers never see a gap.
	ttl := 2 * cfg.ExpiryScanInterval
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &NotificationService{
		rdb:         rdb,
		warningDays: days,
		ttl:         ttl,
		now:         time.Now,
		log:         log.With().Str("component", "notification_service").Logger(),
	}
}

// WarningDays returns the configured expiry horizon.
func (s *NotificationService) WarningDays() int { return s.warningDays }

// Today returns the current calendar date used for expiry scans.
func (s *NotificationService) Today() model.Date { return model.DateOf(s.now().UTC()) }

// Compute derives the notifications of a mandate list. days <= 0 uses the
// configured horizon.
func (s *NotificationService) Compute(mandates []model.RoleMandate, days int) []model.Notification {
	if days <= 0 {
		days = s.warningDays
	}
	notes := mandate.Notifications(mandates, s.Today(), days)
	if notes == nil {
		notes = []model.Notification{}
	}
	return notes
}

// Publish computes a member's notification set, stores it and broadcasts it.
func (s *NotificationService) Publish(ctx context.Context, memberID int, mandates []model.RoleMandate) (model.NotificationSet, error) {
	set := model.NotificationSet{
		MemberID:      memberID,
		Notifications: s.Compute(mandates, 0),
		ComputedAt:    s.now().UTC(),
	}
	payload, err := json.Marshal(set)
	if err != nil {
		return set, fmt.Errorf("marshal notifications: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.MemberNotificationsKey(memberID), payload, s.ttl)
	pipe.Publish(ctx, config.CacheKey.MemberNotificationsChannel(memberID), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return set, fmt.Errorf("publish notifications: %w", err)
	}

	s.log.Debug().
		Int("member_id", memberID).
		Int("count", len(set.Notifications)).
		Msg("Notifications published")
	return set, nil
}

// Latest returns the last published set for a member, if one is stored.
func (s *NotificationService) Latest(ctx context.Context, memberID int) (model.NotificationSet, bool, error) {
	var set model.NotificationSet
	raw, err := s.rdb.Get(ctx, config.CacheKey.MemberNotificationsKey(memberID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return set, false, nil
		}
		return set, false, fmt.Errorf("read notifications: %w", err)
	}
	if err := json.Unmarshal(raw, &set); err != nil {
		return set, false, fmt.Errorf("decode notifications: %w", err)
	}
	return set, true, nil
}

// Subscribe attaches to a member's notification channel. The caller closes it.
func (s *NotificationService) Subscribe(ctx context.Context, memberID int) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.MemberNotificationsChannel(memberID))
}
