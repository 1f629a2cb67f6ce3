package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/civica/membership-backend/internal/config"
	"github.com/civica/membership-backend/internal/mandate"
	"github.com/civica/membership-backend/internal/model"
)

// Mandate errors surfaced to handlers.
var (
	ErrMandateNotFound   = errors.New("mandate not found")
	ErrInvalidDateRange  = errors.New("end date is before start date")
	ErrRoleNotAssignable = errors.New("role cannot be assigned")
)

// MandateService handles role mandate business logic. Member lists are
// cached in Redis and every mutation drops the cache and republishes the
// member's notifications.
type MandateService struct {
	mandateRepo   MandateRepository
	memberRepo    MemberRepository
	notifications *NotificationService
	rdb           *redis.Client
	cacheTTL      time.Duration
	group         singleflight.Group
	log           zerolog.Logger
}

// NewMandateService creates a new MandateService.
func NewMandateService(
	mandateRepo MandateRepository,
	memberRepo MemberRepository,
	notifications *NotificationService,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *MandateService {
	return &MandateService{
		mandateRepo:   mandateRepo,
		memberRepo:    memberRepo,
		notifications: notifications,
		rdb:           rdb,
		cacheTTL:      cfg.MandateCacheTTL,
		log:           log.With().Str("component", "mandate_service").Logger(),
	}
}

// List returns a member's mandates ordered by start date.
func (s *MandateService) List(ctx context.Context, memberID int) ([]model.RoleMandate, error) {
	if err := s.ensureMember(ctx, memberID); err != nil {
		return nil, err
	}
	return s.cachedList(ctx, memberID)
}

// Search returns a member's mandates narrowed by q, ordered by start date.
func (s *MandateService) Search(ctx context.Context, memberID int, q mandate.Query) ([]model.RoleMandate, error) {
	all, err := s.List(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return mandate.Apply(all, q), nil
}

// Get returns one mandate of a member.
func (s *MandateService) Get(ctx context.Context, memberID int, id string) (*model.RoleMandate, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrMandateNotFound
	}
	m, err := s.mandateRepo.GetByID(ctx, memberID, id)
	if err != nil {
		return nil, mapMandateErr(err)
	}
	return m, nil
}

// Create adds a mandate to a member. ADMIN is never granted this way.
func (s *MandateService) Create(ctx context.Context, memberID int, req model.CreateMandateRequest) (*model.RoleMandate, error) {
	if !req.Role.Assignable() {
		return nil, ErrRoleNotAssignable
	}
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	if err := s.ensureMember(ctx, memberID); err != nil {
		return nil, err
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	m := &model.RoleMandate{
		ID:        uuid.New().String(),
		MemberID:  memberID,
		Role:      req.Role,
		StartDate: start,
		EndDate:   end,
		IsActive:  active,
	}
	if err := s.mandateRepo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create mandate: %w", err)
	}

	s.afterMutation(ctx, memberID)
	return m, nil
}

// Update applies a partial change to a mandate.
func (s *MandateService) Update(ctx context.Context, memberID int, id string, req model.UpdateMandateRequest) (*model.RoleMandate, error) {
	patch, err := patchFromRequest(req)
	if err != nil {
		return nil, err
	}
	current, err := s.Get(ctx, memberID, id)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return current, nil
	}

	merged := patch.Merge(*current)
	if !merged.Role.Valid() {
		return nil, ErrRoleNotAssignable
	}
	if merged.EndDate.Before(merged.StartDate) {
		return nil, ErrInvalidDateRange
	}
	if err := s.mandateRepo.Update(ctx, &merged); err != nil {
		return nil, mapMandateErr(err)
	}

	s.afterMutation(ctx, memberID)
	return &merged, nil
}

// Delete removes a mandate.
func (s *MandateService) Delete(ctx context.Context, memberID int, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrMandateNotFound
	}
	if err := s.mandateRepo.Delete(ctx, memberID, id); err != nil {
		return mapMandateErr(err)
	}
	s.afterMutation(ctx, memberID)
	return nil
}

// Notifications derives overlap and expiry notices for a member. days <= 0
// uses the configured horizon.
func (s *MandateService) Notifications(ctx context.Context, memberID int, days int) ([]model.Notification, error) {
	all, err := s.List(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return s.notifications.Compute(all, days), nil
}

// ListActiveByMember groups every active mandate by member for the expiry worker.
func (s *MandateService) ListActiveByMember(ctx context.Context) (map[int][]model.RoleMandate, error) {
	active, err := s.mandateRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active mandates: %w", err)
	}
	grouped := make(map[int][]model.RoleMandate)
	for _, m := range active {
		grouped[m.MemberID] = append(grouped[m.MemberID], m)
	}
	return grouped, nil
}

// listFillTimeout bounds a shared cache fill, which outlives any single caller.
const listFillTimeout = 10 * time.Second

// setIfGeneration stores the list only when the member's write counter still
// holds the value read before the database query.
var setIfGeneration = redis.NewScript(`
local gen = redis.call("GET", KEYS[2])
if not gen then gen = "0" end
if gen ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// Invalidate bumps the member's write counter and drops the cached list, so a
// read that started before the write cannot store what it loaded.
func (s *MandateService) Invalidate(ctx context.Context, memberID int) error {
	pipe := s.rdb.TxPipeline()
	pipe.Incr(ctx, config.CacheKey.MemberMandatesGenKey(memberID))
	pipe.Del(ctx, config.CacheKey.MemberMandatesKey(memberID))
	_, err := pipe.Exec(ctx)
	return err
}

// cachedList reads through Redis; concurrent misses for one member and write
// generation share a single database query.
func (s *MandateService) cachedList(ctx context.Context, memberID int) ([]model.RoleMandate, error) {
	key := config.CacheKey.MemberMandatesKey(memberID)

	if raw, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
		var cached []model.RoleMandate
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		s.log.Warn().Int("member_id", memberID).Msg("Discarding undecodable mandate cache entry")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Int("member_id", memberID).Msg("Mandate cache read failed")
	}

	gen, err := s.rdb.Get(ctx, config.CacheKey.MemberMandatesGenKey(memberID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		gen = "0"
	case err != nil:
		// Without a generation the fill cannot be guarded; skip caching.
		s.log.Warn().Err(err).Int("member_id", memberID).Msg("Mandate cache generation read failed")
		gen = ""
	}

	v, err, _ := s.group.Do(strconv.Itoa(memberID)+":"+gen, func() (interface{}, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), listFillTimeout)
		defer cancel()

		list, err := s.mandateRepo.ListByMember(fillCtx, memberID)
		if err != nil {
			return nil, err
		}
		list = mandate.SortByStartDate(list)
		if gen == "" || s.cacheTTL <= 0 {
			return list, nil
		}
		payload, err := json.Marshal(list)
		if err != nil {
			return list, nil
		}
		stored, err := setIfGeneration.Run(fillCtx, s.rdb,
			[]string{key, config.CacheKey.MemberMandatesGenKey(memberID)},
			gen, payload, s.cacheTTL.Milliseconds(),
		).Int()
		switch {
		case err != nil:
			s.log.Warn().Err(err).Int("member_id", memberID).Msg("Mandate cache write failed")
		case stored == 0:
			s.log.Debug().Int("member_id", memberID).Msg("Mandate list changed during read, not cached")
		}
		return list, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list mandates: %w", err)
	}
	return v.([]model.RoleMandate), nil
}

// afterMutation invalidates the cache and pushes the recomputed notifications.
// Failures are logged; the write itself already succeeded.
func (s *MandateService) afterMutation(ctx context.Context, memberID int) {
	if err := s.Invalidate(ctx, memberID); err != nil {
		s.log.Warn().Err(err).Int("member_id", memberID).Msg("Mandate cache invalidation failed")
	}
	list, err := s.mandateRepo.ListByMember(ctx, memberID)
	if err != nil {
		s.log.Warn().Err(err).Int("member_id", memberID).Msg("Reload after mutation failed")
		return
	}
	if _, err := s.notifications.Publish(ctx, memberID, list); err != nil {
		s.log.Warn().Err(err).Int("member_id", memberID).Msg("Notification publish failed")
	}
}

func (s *MandateService) ensureMember(ctx context.Context, memberID int) error {
	if _, err := s.memberRepo.GetByID(ctx, memberID); err != nil {
		return mapMemberErr(err)
	}
	return nil
}

func parseRange(startRaw, endRaw string) (model.Date, model.Date, error) {
	start, err := model.ParseDate(startRaw)
	if err != nil {
		return model.Date{}, model.Date{}, fmt.Errorf("start_date: %w", ErrInvalidDateRange)
	}
	end, err := model.ParseDate(endRaw)
	if err != nil {
		return model.Date{}, model.Date{}, fmt.Errorf("end_date: %w", ErrInvalidDateRange)
	}
	if end.Before(start) {
		return model.Date{}, model.Date{}, ErrInvalidDateRange
	}
	return start, end, nil
}

func patchFromRequest(req model.UpdateMandateRequest) (mandate.Patch, error) {
	patch := mandate.Patch{Role: req.Role, IsActive: req.IsActive}
	if req.StartDate != nil {
		d, err := model.ParseDate(*req.StartDate)
		if err != nil {
			return patch, fmt.Errorf("start_date: %w", ErrInvalidDateRange)
		}
		patch.StartDate = &d
	}
	if req.EndDate != nil {
		d, err := model.ParseDate(*req.EndDate)
		if err != nil {
			return patch, fmt.Errorf("end_date: %w", ErrInvalidDateRange)
		}
		patch.EndDate = &d
	}
	return patch, nil
}

func mapMandateErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrMandateNotFound
	}
	return err
}
