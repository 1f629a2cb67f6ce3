package mandate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/civica/membership-backend/internal/model"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultPrefetchLimit  = 4
)

// Option configures a Store.
type Option func(*Store)

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithRequestTimeout bounds every remote call. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// WithClock replaces time.Now, used for temporary ids and "today".
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithWarningDays sets the expiry look-ahead used by Notifications.
func WithWarningDays(days int) Option {
	return func(s *Store) { s.warningDays = days }
}

// WithPrefetch toggles detail prefetching after a list and bounds its fan-out.
func WithPrefetch(enabled bool, limit int) Option {
	return func(s *Store) {
		s.prefetch = enabled
		if limit > 0 {
			s.prefetchLimit = limit
		}
	}
}

// Store is the session's view of one member's mandates. Mutations are applied
// locally first, sent to the remote, then confirmed or rolled back.
//
// Mutations are serialized. Each one cancels reads in flight and bumps the
// generation, and a read that finishes under an older generation or while a
// mutation is pending is dropped, so a slow list cannot clobber a local change.
type Store struct {
	remote   Remote
	memberID int

	log           zerolog.Logger
	timeout       time.Duration
	now           func() time.Time
	warningDays   int
	prefetch      bool
	prefetchLimit int

	mutMu sync.Mutex

	mu         sync.Mutex
	state      []model.RoleMandate
	loaded     bool
	stale      bool
	generation uint64
	pending    int
	nextRead   uint64
	reads      map[uint64]context.CancelFunc
	details    map[string]model.RoleMandate
	listeners  []func([]model.Notification)

	outbox      [][]model.Notification
	dispatching bool

	prefetchWG sync.WaitGroup
	dispatchWG sync.WaitGroup
}

// NewStore creates the store for one member.
func NewStore(remote Remote, memberID int, opts ...Option) *Store {
	s := &Store{
		remote:        remote,
		memberID:      memberID,
		log:           zerolog.Nop(),
		timeout:       defaultRequestTimeout,
		now:           time.Now,
		warningDays:   DefaultWarningDays,
		prefetch:      true,
		prefetchLimit: defaultPrefetchLimit,
		reads:         make(map[uint64]context.CancelFunc),
		details:       make(map[string]model.RoleMandate),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "mandate_store").Int("member_id", memberID).Logger()
	return s
}

// MemberID returns the member this store belongs to.
func (s *Store) MemberID() int { return s.memberID }

// Snapshot returns a copy of the current collection, including unconfirmed changes.
func (s *Store) Snapshot() []model.RoleMandate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMandates(s.state)
}

// Invalidate marks the collection stale so the next List refetches.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

// List returns the member's mandates, fetching them when nothing fresh is held.
func (s *Store) List(ctx context.Context) ([]model.RoleMandate, error) {
	s.mu.Lock()
	if s.loaded && !s.stale {
		snap := cloneMandates(s.state)
		s.mu.Unlock()
		return snap, nil
	}
	gen := s.generation
	readCtx, cancel := context.WithCancel(ctx)
	readID := s.nextRead
	s.nextRead++
	s.reads[readID] = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.reads, readID)
		s.mu.Unlock()
		cancel()
	}()

	var fetched []model.RoleMandate
	err := s.call(readCtx, func(ctx context.Context) error {
		var err error
		fetched, err = s.remote.ListMandates(ctx, s.memberID)
		return err
	})
	if err != nil {
		if errors.Is(readCtx.Err(), context.Canceled) && ctx.Err() == nil {
			s.log.Debug().Msg("list superseded by a mutation")
			return s.Snapshot(), nil
		}
		return nil, fmt.Errorf("list mandates: %w", err)
	}

	s.mu.Lock()
	if s.generation != gen || s.pending > 0 {
		snap := cloneMandates(s.state)
		s.mu.Unlock()
		s.log.Debug().Msg("discarding stale list result")
		return snap, nil
	}
	s.state = cloneMandates(fetched)
	s.loaded = true
	s.stale = false
	snap := cloneMandates(s.state)
	s.mu.Unlock()

	s.emit()
	if s.prefetch {
		s.prefetchDetails(snap)
	}
	return snap, nil
}

// Add validates the draft, inserts it locally under a temporary id and creates
// it remotely. On failure the collection is restored to its previous state.
func (s *Store) Add(ctx context.Context, draft Draft) (model.RoleMandate, error) {
	if err := draft.Validate(); err != nil {
		return model.RoleMandate{}, err
	}

	optimistic := model.RoleMandate{
		ID:        newTempID(s.now()),
		MemberID:  s.memberID,
		Role:      draft.Role,
		StartDate: draft.StartDate,
		EndDate:   draft.EndDate,
		IsActive:  draft.IsActive,
	}

	return s.mutate(ctx, "add", "",
		func(ms []model.RoleMandate) ([]model.RoleMandate, error) {
			return applyAdd(ms, optimistic), nil
		},
		func(ctx context.Context) (model.RoleMandate, error) {
			return s.remote.CreateMandate(ctx, s.memberID, draft)
		},
		func(ms []model.RoleMandate, confirmed model.RoleMandate) []model.RoleMandate {
			if out, err := applyReplace(ms, optimistic.ID, confirmed); err == nil {
				return out
			}
			return applyAdd(ms, confirmed)
		},
	)
}

// Update merges patch into the mandate with the given id, locally first.
func (s *Store) Update(ctx context.Context, mandateID string, patch Patch) (model.RoleMandate, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return model.RoleMandate{}, err
	}
	if patch.Empty() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if i := indexOf(s.state, mandateID); i >= 0 {
			return s.state[i], nil
		}
		return model.RoleMandate{}, ErrNotFound
	}

	return s.mutate(ctx, "update", mandateID,
		func(ms []model.RoleMandate) ([]model.RoleMandate, error) {
			i := indexOf(ms, mandateID)
			if i < 0 {
				return nil, ErrNotFound
			}
			merged := patch.Merge(ms[i])
			if err := validateMerged(merged); err != nil {
				return nil, err
			}
			return applyReplace(ms, mandateID, merged)
		},
		func(ctx context.Context) (model.RoleMandate, error) {
			return s.remote.UpdateMandate(ctx, s.memberID, mandateID, patch)
		},
		func(ms []model.RoleMandate, confirmed model.RoleMandate) []model.RoleMandate {
			if out, err := applyReplace(ms, mandateID, confirmed); err == nil {
				return out
			}
			return ms
		},
	)
}

// Delete removes the mandate locally and remotely, restoring it on failure.
func (s *Store) Delete(ctx context.Context, mandateID string) error {
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	_, err := s.mutate(ctx, "delete", mandateID,
		func(ms []model.RoleMandate) ([]model.RoleMandate, error) {
			return applyDelete(ms, mandateID)
		},
		func(ctx context.Context) (model.RoleMandate, error) {
			return model.RoleMandate{}, s.remote.DeleteMandate(ctx, s.memberID, mandateID)
		},
		func(ms []model.RoleMandate, _ model.RoleMandate) []model.RoleMandate {
			return ms
		},
	)
	if err == nil {
		s.mu.Lock()
		delete(s.details, mandateID)
		s.mu.Unlock()
	}
	return err
}

// mutate runs the cancel, apply, send, then confirm-or-restore sequence.
func (s *Store) mutate(
	ctx context.Context,
	op, mandateID string,
	apply func([]model.RoleMandate) ([]model.RoleMandate, error),
	send func(context.Context) (model.RoleMandate, error),
	confirm func([]model.RoleMandate, model.RoleMandate) []model.RoleMandate,
) (model.RoleMandate, error) {
	s.mutMu.Lock()
	defer s.mutMu.Unlock()

	s.mu.Lock()
	snapshot := s.state
	next, err := apply(snapshot)
	if err != nil {
		s.mu.Unlock()
		return model.RoleMandate{}, err
	}
	for id, cancel := range s.reads {
		cancel()
		delete(s.reads, id)
	}
	s.generation++
	s.pending++
	s.state = next
	s.mu.Unlock()
	s.emit()

	var result model.RoleMandate
	sendErr := s.call(ctx, func(ctx context.Context) error {
		var err error
		result, err = send(ctx)
		return err
	})

	s.mu.Lock()
	s.pending--
	s.generation++
	if sendErr != nil {
		s.state = snapshot
		s.mu.Unlock()
		s.emit()
		s.log.Warn().Err(sendErr).Str("op", op).Str("mandate_id", mandateID).Msg("mutation rolled back")
		return model.RoleMandate{}, &MutationError{Op: op, MemberID: s.memberID, MandateID: mandateID, Err: sendErr}
	}
	s.state = confirm(s.state, result)
	s.stale = true
	if result.ID != "" {
		s.details[result.ID] = result
	}
	s.mu.Unlock()
	s.emit()

	s.log.Debug().Str("op", op).Str("mandate_id", result.ID).Msg("mutation confirmed")
	return result, nil
}

func (s *Store) ensureLoaded(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if loaded {
		return nil
	}
	_, err := s.List(ctx)
	return err
}

func (s *Store) call(ctx context.Context, fn func(context.Context) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return fn(ctx)
}

// prefetchDetails warms the detail cache in the background. Failures only cost
// a later round-trip, so they are logged and dropped.
func (s *Store) prefetchDetails(ms []model.RoleMandate) {
	if len(ms) == 0 {
		return
	}
	s.prefetchWG.Add(1)
	go func() {
		defer s.prefetchWG.Done()

		g, ctx := errgroup.WithContext(context.Background())
		g.SetLimit(s.prefetchLimit)
		for _, m := range ms {
			id := m.ID
			g.Go(func() error {
				var detail model.RoleMandate
				err := s.call(ctx, func(ctx context.Context) error {
					var err error
					detail, err = s.remote.GetMandate(ctx, s.memberID, id)
					return err
				})
				if err != nil {
					s.log.Debug().Err(err).Str("mandate_id", id).Msg("prefetch failed")
					return nil
				}
				s.mu.Lock()
				s.details[id] = detail
				s.mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// Detail returns a prefetched or confirmed detail record.
func (s *Store) Detail(mandateID string) (model.RoleMandate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.details[mandateID]
	return d, ok
}

// Today returns the store's notion of the current date.
func (s *Store) Today() model.Date {
	return model.DateOf(s.now().UTC())
}

// Notifications derives overlap and expiry notifications from the current collection.
func (s *Store) Notifications(today model.Date) []model.Notification {
	return Notifications(s.Snapshot(), today, s.warningDays)
}

// Subscribe registers fn to receive recomputed notifications on every change.
// Listeners run in order on a dispatch goroutine, never on the goroutine that
// changed the collection, so a listener may itself call Add, Update or Delete.
func (s *Store) Subscribe(fn func([]model.Notification)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// emit queues the notifications of the current collection for the listeners.
func (s *Store) emit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.listeners) == 0 {
		return
	}
	s.outbox = append(s.outbox, Notifications(s.state, s.Today(), s.warningDays))
	if s.dispatching {
		return
	}
	s.dispatching = true
	s.dispatchWG.Add(1)
	go s.dispatch()
}

func (s *Store) dispatch() {
	defer s.dispatchWG.Done()
	for {
		s.mu.Lock()
		if len(s.outbox) == 0 {
			s.dispatching = false
			s.mu.Unlock()
			return
		}
		notes := s.outbox[0]
		s.outbox = s.outbox[1:]
		listeners := make([]func([]model.Notification), len(s.listeners))
		copy(listeners, s.listeners)
		s.mu.Unlock()

		for _, fn := range listeners {
			fn(notes)
		}
	}
}

type persistedState struct {
	MemberID int                 `json:"member_id"`
	Mandates []model.RoleMandate `json:"mandates"`
}

// Save writes the current collection for later restoration.
func (s *Store) Save(w io.Writer) error {
	return json.NewEncoder(w).Encode(persistedState{MemberID: s.memberID, Mandates: s.Snapshot()})
}

// Load restores a collection written by Save. The result is marked stale so the
// next List revalidates it against the remote.
func (s *Store) Load(r io.Reader) error {
	var st persistedState
	if err := json.NewDecoder(r).Decode(&st); err != nil {
		return fmt.Errorf("decode mandate state: %w", err)
	}
	if st.MemberID != s.memberID {
		return fmt.Errorf("state belongs to member %d, not %d", st.MemberID, s.memberID)
	}
	s.mutMu.Lock()
	defer s.mutMu.Unlock()
	s.mu.Lock()
	s.state = st.Mandates
	s.loaded = true
	s.stale = true
	s.generation++
	s.mu.Unlock()
	s.emit()
	return nil
}
