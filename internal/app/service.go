// Package service wires the cohort engine together: classification on
// intake, the scheduled balance and aggregation jobs, and the ghost
// data read path served to the API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/momenta/cohortd/internal/adapters/benchmark"
	"github.com/momenta/cohortd/internal/adapters/mq/queue"
	"github.com/momenta/cohortd/internal/adapters/mq/worker"
	"github.com/momenta/cohortd/internal/adapters/partition"
	"github.com/momenta/cohortd/internal/adapters/roster"
	"github.com/momenta/cohortd/internal/domain/balance"
	"github.com/momenta/cohortd/internal/domain/classify"
	"github.com/momenta/cohortd/internal/domain/cohort"
	"github.com/momenta/cohortd/internal/domain/dedupe"
	"github.com/momenta/cohortd/internal/domain/ghost"
	"github.com/momenta/cohortd/internal/domain/progress"
	"github.com/momenta/cohortd/internal/domain/stats"
	"github.com/momenta/cohortd/pkg/logger"
	"github.com/momenta/cohortd/pkg/metrics"
)

// Scheduling and lookup defaults.
const (
	defaultBalanceInterval     = 7 * 24 * time.Hour
	defaultAggregationInterval = time.Hour
	defaultTargetBand          = 7.5
	defaultBenchmarkPercentile = 25

	// maxBenchmarkDay caps the journey day used for benchmark lookups;
	// published benchmarks cover the first 90 days only.
	maxBenchmarkDay = 90
)

// rosterAdapter narrows the roster to the aggregator's member lookup,
// folding the not-found error into the ok flag.
type rosterAdapter struct {
	roster roster.Roster
}

func (a *rosterAdapter) Get(ctx context.Context, id string) (cohort.Member, bool, error) {
	m, err := a.roster.Get(ctx, id)
	if err != nil {
		if errors.Is(err, roster.ErrMemberNotFound) {
			return cohort.Member{}, false, nil
		}
		return cohort.Member{}, false, err
	}
	return m, true, nil
}

// Service owns the engine components and their schedules.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      partition.Store
	movements  partition.MovementLog
	roster     roster.Roster
	benchmarks *benchmark.Repository
	aggregator *stats.Aggregator
	balancer   *balance.Balancer

	// Progress ingestion
	deduper    dedupe.Deduper
	queue      queue.Queue
	pool       *worker.Pool
	poolCancel context.CancelFunc

	// Configuration
	balanceInterval     time.Duration
	aggregationInterval time.Duration
	targetBand          float64
	benchmarkPercentile int
	progressWorkers     int
	queueCapacity       int
	dedupeSize          int

	// State
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	now    func() time.Time
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the partition store. Defaults to the in-memory store.
func WithStore(s partition.Store) Option {
	return func(svc *Service) {
		if s != nil {
			svc.store = s
		}
	}
}

// WithMovementLog sets the movement audit log.
func WithMovementLog(l partition.MovementLog) Option {
	return func(svc *Service) {
		if l != nil {
			svc.movements = l
		}
	}
}

// WithRoster sets the member directory.
func WithRoster(r roster.Roster) Option {
	return func(svc *Service) {
		if r != nil {
			svc.roster = r
		}
	}
}

// WithBenchmarks sets the benchmark repository.
func WithBenchmarks(r *benchmark.Repository) Option {
	return func(svc *Service) {
		if r != nil {
			svc.benchmarks = r
		}
	}
}

// WithBalanceInterval sets the rebalance schedule.
func WithBalanceInterval(d time.Duration) Option {
	return func(svc *Service) {
		if d > 0 {
			svc.balanceInterval = d
		}
	}
}

// WithAggregationInterval sets the peer stats refresh schedule.
func WithAggregationInterval(d time.Duration) Option {
	return func(svc *Service) {
		if d > 0 {
			svc.aggregationInterval = d
		}
	}
}

// WithTargetBand sets the benchmark target band used for ghost data.
func WithTargetBand(band float64) Option {
	return func(svc *Service) {
		if band > 0 {
			svc.targetBand = band
		}
	}
}

// WithBenchmarkPercentile sets the benchmark percentile band used for
// ghost data.
func WithBenchmarkPercentile(p int) Option {
	return func(svc *Service) {
		if p > 0 {
			svc.benchmarkPercentile = p
		}
	}
}

// WithProgressWorkers sets the progress worker pool size. A
// non-positive count leaves the pool's CPU-derived default in place.
func WithProgressWorkers(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.progressWorkers = n
		}
	}
}

// WithQueueCapacity sets the progress queue capacity.
func WithQueueCapacity(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.queueCapacity = n
		}
	}
}

// WithDedupeSize sets the idempotency window: how many recent event IDs
// are remembered. A negative value disables eviction.
func WithDedupeSize(n int) Option {
	return func(svc *Service) {
		if n != 0 {
			svc.dedupeSize = n
		}
	}
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) {
		if now != nil {
			svc.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		balanceInterval:     defaultBalanceInterval,
		aggregationInterval: defaultAggregationInterval,
		targetBand:          defaultTargetBand,
		benchmarkPercentile: defaultBenchmarkPercentile,
		stopCh:              make(chan struct{}),
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the engine components and launches the schedules.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.store == nil {
		s.store = partition.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory partition store")
	}
	if s.movements == nil {
		s.movements = partition.NewMemoryMovementLog()
	}
	if s.roster == nil {
		s.roster = roster.NewMemoryRoster()
	}
	if s.benchmarks == nil {
		s.benchmarks = benchmark.NewRepository()
	}

	members := &rosterAdapter{roster: s.roster}
	s.aggregator = stats.NewAggregator(s.store, members,
		stats.WithClock(s.now),
		stats.WithLogger(s.logger.Named("stats")),
	)
	s.balancer = balance.New(s.store, s.movements, s.roster,
		balance.WithClock(s.now),
		balance.WithLogger(s.logger.Named("balance")),
	)

	var dopts []dedupe.Option
	if s.dedupeSize != 0 {
		dopts = append(dopts, dedupe.WithMaxSize(s.dedupeSize))
	}
	s.deduper = dedupe.NewInMemoryDeduper(dopts...)

	var qopts []queue.Option
	if s.queueCapacity > 0 {
		qopts = append(qopts, queue.WithCapacity(s.queueCapacity))
	}
	s.queue = queue.NewInMemoryQueue(qopts...)
	s.pool = worker.NewPool(s.progressWorkers, s.queue, s)

	poolCtx, cancel := context.WithCancel(context.Background())
	s.poolCancel = cancel
	s.pool.Start(poolCtx)

	s.wg.Add(2)
	go s.schedule(s.aggregationInterval, "aggregation", s.RunAggregation)
	go s.schedule(s.balanceInterval, "balance", s.RunBalance)

	s.started = true
	s.logger.Info(ctx, "cohort engine started",
		logger.Duration("balanceInterval", s.balanceInterval),
		logger.Duration("aggregationInterval", s.aggregationInterval),
		logger.String("benchmarkVersion", s.benchmarks.Version()),
	)
	return nil
}

// Stop halts the schedules and waits for in-flight runs to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.wg.Wait()

	// Closing the queue drains the workers; Stop waits for them.
	_ = s.queue.Close()
	s.pool.Stop()
	s.poolCancel()

	if closer, ok := s.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	s.started = false
	s.logger.Info(context.Background(), "cohort engine stopped")
}

// schedule runs job on a fixed interval until the service stops. A
// failing run is logged and the schedule keeps going.
func (s *Service) schedule(interval time.Duration, name string, job func(context.Context) error) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx := context.Background()
			if err := job(ctx); err != nil {
				s.logger.Error(ctx, "scheduled job failed",
					logger.String("job", name),
					logger.Error(err),
				)
			}
		}
	}
}

// AssignCohort places a member on intake. A member without a
// diagnostic score lands in the global bucket. Assigning an
// already-placed member is a no-op returning their current cohort.
func (s *Service) AssignCohort(ctx context.Context, m cohort.Member) (cohort.Key, error) {
	if cur, err := s.store.UserKey(ctx, m.ID); err == nil {
		return cur, nil
	} else if !errors.Is(err, partition.ErrUserNotFound) {
		return cohort.Key{}, err
	}

	key, err := classify.Key(m)
	if err != nil {
		if !errors.Is(err, classify.ErrMissingDiagnostic) {
			return cohort.Key{}, err
		}
		key = cohort.GlobalKey
	}

	if err := s.store.Transfer(ctx, m.ID, cohort.Key{}, key); err != nil {
		return cohort.Key{}, fmt.Errorf("place member %s: %w", m.ID, err)
	}

	now := s.now()
	m.Key = key
	m.JoinedAt = now
	m.JoinedSkillTier = 0
	if score, ok := m.Score(); ok {
		m.JoinedSkillTier = classify.SkillTier(score)
	}
	if err := s.roster.Upsert(ctx, m); err != nil {
		return cohort.Key{}, fmt.Errorf("record member %s: %w", m.ID, err)
	}

	if err := s.movements.Append(ctx, cohort.NewMovement(m.ID, cohort.Key{}, key, cohort.ReasonInitial, now)); err != nil {
		return cohort.Key{}, fmt.Errorf("record placement of %s: %w", m.ID, err)
	}
	metrics.RecordMovement()

	s.logger.Info(ctx, "member assigned",
		logger.String("user", m.ID),
		logger.String("cohort", key.String()),
	)
	return key, nil
}

// SubmitProgress queues a member activity update for asynchronous
// application. Duplicate event IDs inside the idempotency window are
// rejected; a full queue rejects the update without recording its ID.
func (s *Service) SubmitProgress(ctx context.Context, u progress.Update) error {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}

	if s.deduper.SeenAndRecord(ctx, u.EventID) {
		metrics.RecordProgressDuplicate()
		return fmt.Errorf("event %s: %w", u.EventID, ErrDuplicateEvent)
	}
	if u.At.IsZero() {
		u.At = s.now()
	}
	if !s.queue.Enqueue(ctx, u) {
		s.deduper.Unrecord(ctx, u.EventID)
		return ErrQueueBusy
	}
	metrics.UpdateDedupeSize(s.deduper.Size())
	return nil
}

// ApplyProgress merges an activity update into the roster record. It is
// called by the progress workers; an update for an unknown member fails.
func (s *Service) ApplyProgress(ctx context.Context, u progress.Update) error {
	m, err := s.roster.Get(ctx, u.UserID)
	if err != nil {
		return fmt.Errorf("apply progress for %s: %w", u.UserID, err)
	}

	// Lifetime counters only grow; replays and out-of-order delivery
	// must not regress them.
	if u.TasksCompleted > m.TasksCompleted {
		m.TasksCompleted = u.TasksCompleted
	}
	if u.PracticeMinutes > m.PracticeMinutes {
		m.PracticeMinutes = u.PracticeMinutes
	}
	if u.DaysActive > m.DaysActive {
		m.DaysActive = u.DaysActive
	}
	m.WeeklyTasks = u.WeeklyTasks
	m.StreakDays = u.StreakDays

	// Fresh activity lifts an inactivity exclusion.
	m.Excluded = false

	if err := s.roster.Upsert(ctx, m); err != nil {
		return fmt.Errorf("apply progress for %s: %w", u.UserID, err)
	}
	return nil
}

// CohortStats returns the latest aggregate snapshot for a user's
// cohort. Returns ErrNoSnapshot until an aggregation cycle has covered
// the cohort.
func (s *Service) CohortStats(ctx context.Context, userID string) (*stats.Snapshot, error) {
	key, err := s.store.UserKey(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.CohortStatsByKey(ctx, key)
}

// CohortStatsByKey returns the latest aggregate snapshot for a cohort
// key directly, without resolving a member first.
func (s *Service) CohortStatsByKey(_ context.Context, key cohort.Key) (*stats.Snapshot, error) {
	snap, ok := s.aggregator.Snapshot(key)
	if !ok {
		return nil, fmt.Errorf("cohort %q: %w", key.String(), ErrNoSnapshot)
	}
	return snap, nil
}

// GhostData assembles the full anonymized comparison payload for one
// user: their own stats, the historical success benchmark, and the
// live cohort aggregates.
func (s *Service) GhostData(ctx context.Context, userID string) (ghost.Data, error) {
	metrics.RecordGhostRequest()

	m, err := s.roster.Get(ctx, userID)
	if err != nil {
		return ghost.Data{}, err
	}

	day := m.DaysActive
	if day < 1 {
		day = 1
	}
	if day > maxBenchmarkDay {
		day = maxBenchmarkDay
	}

	velocity := classify.VelocityTier(m.DaysActive, m.TasksCompleted)
	var tier float64
	if score, ok := m.Score(); ok {
		tier = classify.SkillTier(score)
	}

	data := ghost.Data{
		UserStats: ghost.UserStats{
			TasksCompleted:  m.TasksCompleted,
			PracticeMinutes: m.PracticeMinutes,
			StreakDays:      m.StreakDays,
			DayNumber:       day,
			SkillTier:       tier,
			Velocity:        string(velocity),
		},
	}

	if tier > 0 {
		if e, ok := s.benchmarks.Get(s.targetBand, tier, day, s.benchmarkPercentile); ok {
			metrics.RecordBenchmarkHit()
			data.SuccessBenchmark = &ghost.BenchmarkComparison{
				AvgTasksCompleted:  e.AvgTasksCompleted,
				AvgPracticeMinutes: e.AvgPracticeMinutes,
				SampleSize:         e.SampleSize,
				Message:            ghost.Compose(float64(m.TasksCompleted), e.AvgTasksCompleted, "tasks", ghost.KindSuccessBenchmark),
			}
		} else {
			metrics.RecordBenchmarkMiss()
		}
	}

	key, err := s.store.UserKey(ctx, userID)
	if err != nil {
		return ghost.Data{}, err
	}
	if snap, ok := s.aggregator.Snapshot(key); ok {
		pct, err := s.userPercentile(ctx, key, m)
		if err != nil {
			return ghost.Data{}, err
		}
		data.CohortComparison = &ghost.CohortComparison{
			CohortKey:      key.String(),
			CohortSize:     snap.Count,
			AvgTasks:       snap.TasksCompleted.Mean,
			MedianTasks:    snap.TasksCompleted.Median,
			UserPercentile: pct,
			Message:        ghost.Compose(float64(m.TasksCompleted), snap.TasksCompleted.Mean, "tasks", ghost.KindCohortComparison),
			StreakMessage:  ghost.Compose(float64(m.StreakDays), snap.Streak.Median, "days", ghost.KindStreak),
		}
		data.TopPerformers = &ghost.TopPerformers{
			P90Tasks: snap.TasksCompleted.P90,
			P75Tasks: snap.TasksCompleted.P75,
			Message:  ghost.Compose(float64(m.TasksCompleted), snap.TasksCompleted.P90, "tasks", ghost.KindTopPerformer),
		}
	}

	return data, nil
}

// userPercentile is the share of active cohort peers with strictly
// fewer completed tasks, as a percentage.
func (s *Service) userPercentile(ctx context.Context, key cohort.Key, m cohort.Member) (float64, error) {
	ids, err := s.store.Members(ctx, key)
	if err != nil {
		return 0, err
	}

	total, below := 0, 0
	for _, id := range ids {
		if id == m.ID {
			continue
		}
		peer, err := s.roster.Get(ctx, id)
		if err != nil {
			if errors.Is(err, roster.ErrMemberNotFound) {
				continue
			}
			return 0, err
		}
		if peer.Excluded {
			continue
		}
		total++
		if peer.TasksCompleted < m.TasksCompleted {
			below++
		}
	}
	if total == 0 {
		return 0, nil
	}
	return float64(below) / float64(total) * 100, nil
}

// Movements returns the audit trail of a user's cohort transfers.
func (s *Service) Movements(ctx context.Context, userID string) ([]cohort.Movement, error) {
	return s.movements.Movements(ctx, userID)
}

// RunBalance triggers a full rebalance run immediately.
func (s *Service) RunBalance(ctx context.Context) error {
	return s.balancer.Run(ctx)
}

// RunAggregation recomputes all cohort snapshots immediately.
func (s *Service) RunAggregation(ctx context.Context) error {
	return s.aggregator.Run(ctx)
}

// SwapBenchmarks atomically replaces the active benchmark snapshot.
func (s *Service) SwapBenchmarks(snap *benchmark.Snapshot) {
	s.benchmarks.Swap(snap)
	s.logger.Info(context.Background(), "benchmark snapshot swapped",
		logger.String("version", s.benchmarks.Version()),
	)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string]interface{}{
		"started":             s.started,
		"balanceInterval":     s.balanceInterval.String(),
		"aggregationInterval": s.aggregationInterval.String(),
	}
	if !s.started {
		return out
	}

	keys, err := s.store.Keys(ctx)
	if err != nil {
		return out
	}
	cohorts, members, globalSize := 0, 0, 0
	for _, key := range keys {
		ids, err := s.store.Members(ctx, key)
		if err != nil {
			continue
		}
		members += len(ids)
		if key.Global {
			globalSize = len(ids)
			continue
		}
		cohorts++
	}
	out["cohorts"] = cohorts
	out["members"] = members
	out["globalBucket"] = globalSize
	out["benchmarkVersion"] = s.benchmarks.Version()
	out["queueLength"] = s.queue.Len(ctx)
	out["progressWorkers"] = s.pool.Size()
	out["dedupeSize"] = s.deduper.Size()

	metrics.UpdateCohortCount(cohorts)
	metrics.UpdateMemberCount(members)
	metrics.UpdateGlobalBucketSize(globalSize)
	return out
}
