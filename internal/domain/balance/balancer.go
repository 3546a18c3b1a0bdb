package balance

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/momenta/cohortd/internal/domain/classify"
	"github.com/momenta/cohortd/internal/domain/cohort"
	"github.com/momenta/cohortd/pkg/logger"
	"github.com/momenta/cohortd/pkg/metrics"
)

// Partition is the mutation surface of the partition store the
// balancer commits through.
type Partition interface {
	Transfer(ctx context.Context, userID string, from, to cohort.Key) error
}

// Ledger records committed movements.
type Ledger interface {
	Append(ctx context.Context, mv cohort.Movement) error
}

// MemberSource supplies the member snapshot a run plans over and
// receives placement updates as transfers commit.
type MemberSource interface {
	All(ctx context.Context) ([]cohort.Member, error)
	SetPlacement(ctx context.Context, id string, key cohort.Key, joinedAt time.Time, joinedSkillTier float64) error
}

// Balancer executes full rebalance runs. At most one run may execute
// at a time; concurrent triggers are rejected, never queued.
type Balancer struct {
	partition Partition
	ledger    Ledger
	members   MemberSource

	running atomic.Bool
	now     func() time.Time
	logger  logger.Logger
}

// Option applies a configuration option to the Balancer.
type Option func(*Balancer)

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(b *Balancer) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Balancer) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a balancer over the given partition, movement ledger,
// and member source.
func New(p Partition, l Ledger, m MemberSource, opts ...Option) *Balancer {
	b := &Balancer{
		partition: p,
		ledger:    l,
		members:   m,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run executes one full balance cycle: snapshot, plan, validate,
// commit. Returns ErrBalanceInProgress when a run is already
// executing and ErrInvariantViolation when the plan fails validation;
// in the latter case nothing is committed.
func (b *Balancer) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		metrics.RecordBalanceRejected()
		return ErrBalanceInProgress
	}
	defer b.running.Store(false)

	if b.logger == nil {
		b.logger = logger.Get().Named("balance")
	}
	start := time.Now()

	members, err := b.members.All(ctx)
	if err != nil {
		return fmt.Errorf("snapshot members: %w", err)
	}

	plan := BuildPlan(members, b.now())
	metrics.RecordMovesPlanned(len(plan.Moves))
	metrics.RecordMovesDeferred(plan.Deferred)

	if err := Validate(members, plan); err != nil {
		metrics.RecordBalanceAborted()
		b.logger.Error(ctx, "balance plan rejected", logger.Error(err))
		return err
	}

	if err := b.commit(ctx, members, plan); err != nil {
		metrics.RecordBalanceAborted()
		return err
	}

	for i := 0; i < plan.Merges; i++ {
		metrics.RecordCohortMerge()
	}
	for i := 0; i < plan.Splits; i++ {
		metrics.RecordCohortSplit()
	}
	for i := 0; i < plan.GlobalFallbacks; i++ {
		metrics.RecordGlobalFallback()
	}
	b.updateGauges(members, plan)

	elapsed := time.Since(start)
	metrics.RecordBalanceRun()
	metrics.RecordBalanceDuration(elapsed.Seconds())

	b.logger.Info(ctx, "balance run complete",
		logger.Int("members", len(members)),
		logger.Int("moves", len(plan.Moves)),
		logger.Int("deferred", plan.Deferred),
		logger.Int("merges", plan.Merges),
		logger.Int("splits", plan.Splits),
		logger.Int("global_fallbacks", plan.GlobalFallbacks),
		logger.Duration("elapsed", elapsed),
	)
	return nil
}

// commit applies each planned move through the store's atomic
// transfer. A concurrency conflict aborts the remainder of the run;
// transfers already committed stand, each having been individually
// validated.
func (b *Balancer) commit(ctx context.Context, members []cohort.Member, plan Plan) error {
	byID := make(map[string]cohort.Member, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}

	for _, mv := range plan.Moves {
		if err := b.partition.Transfer(ctx, mv.UserID, mv.From, mv.To); err != nil {
			b.logger.Error(ctx, "transfer failed, aborting run",
				logger.String("user", mv.UserID),
				logger.String("from", mv.From.String()),
				logger.String("to", mv.To.String()),
				logger.Error(err),
			)
			return fmt.Errorf("transfer %s: %w", mv.UserID, err)
		}

		tier := mv.To.SkillTier
		if mv.To.Global {
			if score, ok := byID[mv.UserID].Score(); ok {
				tier = classify.SkillTier(score)
			} else {
				tier = 0
			}
		}
		if err := b.members.SetPlacement(ctx, mv.UserID, mv.To, plan.TakenAt, tier); err != nil {
			return fmt.Errorf("record placement for %s: %w", mv.UserID, err)
		}

		if err := b.ledger.Append(ctx, cohort.NewMovement(mv.UserID, mv.From, mv.To, mv.Reason, plan.TakenAt)); err != nil {
			return fmt.Errorf("append movement for %s: %w", mv.UserID, err)
		}
		metrics.RecordMoveCommitted()
		metrics.RecordMovement()
	}
	return nil
}

// updateGauges recomputes partition-shape gauges from the post-run
// state implied by the snapshot and the committed plan.
func (b *Balancer) updateGauges(members []cohort.Member, plan Plan) {
	loc := make(map[string]cohort.Key, len(members))
	for _, m := range members {
		if !m.Key.IsZero() {
			loc[m.ID] = m.Key
		}
	}
	for _, mv := range plan.Moves {
		loc[mv.UserID] = mv.To
	}

	globalSize := 0
	cohorts := make(map[cohort.Key]struct{})
	for _, key := range loc {
		if key.Global {
			globalSize++
			continue
		}
		cohorts[key] = struct{}{}
	}

	metrics.UpdateMemberCount(len(loc))
	metrics.UpdateCohortCount(len(cohorts))
	metrics.UpdateGlobalBucketSize(globalSize)
}
