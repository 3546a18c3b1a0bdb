package balance_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/momenta/cohortd/internal/adapters/partition"
	"github.com/momenta/cohortd/internal/adapters/roster"
	"github.com/momenta/cohortd/internal/domain/balance"
	"github.com/momenta/cohortd/internal/domain/cohort"
	"github.com/momenta/cohortd/pkg/logger"
)

func init() {
	logger.Init()
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// tasksFor yields a lifetime task count landing in the given velocity
// tier at 30 active days.
func tasksFor(v cohort.Velocity) int {
	switch v {
	case cohort.VelocitySlow:
		return 30
	case cohort.VelocityFast:
		return 107
	default:
		return 60
	}
}

// member builds a member whose metrics classify exactly to key's base.
func member(id string, key cohort.Key, joinedAt time.Time) cohort.Member {
	score := key.SkillTier
	return cohort.Member{
		ID:              id,
		DiagnosticScore: &score,
		Track:           key.Track,
		TasksCompleted:  tasksFor(key.Velocity),
		DaysActive:      30,
		Key:             key,
		JoinedAt:        joinedAt,
		JoinedSkillTier: key.SkillTier,
	}
}

// fill builds n correctly-classified members for one cohort.
func fill(key cohort.Key, n int, prefix string) []cohort.Member {
	out := make([]cohort.Member, 0, n)
	for i := 0; i < n; i++ {
		joined := testNow.AddDate(0, 0, -60+i)
		out = append(out, member(fmt.Sprintf("%s-%02d", prefix, i), key, joined))
	}
	return out
}

func TestBuildPlanReclassification(t *testing.T) {
	Convey("Given a partition of correctly classified cohorts", t, func() {
		a := cohort.NewKey(7.0, cohort.VelocityMedium, "sprint")
		b := cohort.NewKey(7.5, cohort.VelocityMedium, "sprint")
		members := append(fill(a, 20, "a"), fill(b, 18, "b")...)

		Convey("The plan is empty", func() {
			plan := balance.BuildPlan(members, testNow)

			So(plan.Moves, ShouldBeEmpty)
			So(plan.Deferred, ShouldEqual, 0)
			So(plan.Merges, ShouldEqual, 0)
			So(plan.Splits, ShouldEqual, 0)
		})

		Convey("A member whose skill outgrew their cohort is moved", func() {
			score := 7.5
			members[0].DiagnosticScore = &score

			plan := balance.BuildPlan(members, testNow)

			So(plan.Moves, ShouldHaveLength, 1)
			So(plan.Moves[0].UserID, ShouldEqual, "a-00")
			So(plan.Moves[0].From, ShouldResemble, a)
			So(plan.Moves[0].To, ShouldResemble, b)
			So(plan.Moves[0].Reason, ShouldEqual, cohort.ReasonRebalance)
		})

		Convey("Members of a split cohort matching their base do not churn", func() {
			for i := range members {
				if members[i].Key == a {
					members[i].Key = a.WithSplit(1)
				}
			}

			plan := balance.BuildPlan(members, testNow)

			So(plan.Moves, ShouldBeEmpty)
		})

		Convey("Excluded members never move even when misclassified", func() {
			score := 7.5
			members[0].DiagnosticScore = &score
			members[0].Excluded = true

			plan := balance.BuildPlan(members, testNow)

			So(plan.Moves, ShouldBeEmpty)
		})
	})
}

func TestBuildPlanMoveCap(t *testing.T) {
	Convey("Given a cohort of 20 with six misclassified members", t, func() {
		src := cohort.NewKey(7.0, cohort.VelocityMedium, "sprint")
		dst := cohort.NewKey(7.5, cohort.VelocityMedium, "sprint")
		members := append(fill(src, 20, "src"), fill(dst, 18, "dst")...)
		for i := 0; i < 6; i++ {
			score := 7.5
			members[i].DiagnosticScore = &score
		}

		Convey("Only a fifth of the cohort moves; the rest defer", func() {
			plan := balance.BuildPlan(members, testNow)

			moved := 0
			for _, mv := range plan.Moves {
				if mv.From == src {
					moved++
				}
			}
			So(moved, ShouldEqual, 4)
			So(plan.Deferred, ShouldEqual, 2)
		})

		Convey("Earlier joiners win ties within the cap", func() {
			plan := balance.BuildPlan(members, testNow)

			ids := make(map[string]bool)
			for _, mv := range plan.Moves {
				ids[mv.UserID] = true
			}
			// fill assigns strictly increasing join times by index.
			So(ids["src-00"], ShouldBeTrue)
			So(ids["src-03"], ShouldBeTrue)
			So(ids["src-04"], ShouldBeFalse)
			So(ids["src-05"], ShouldBeFalse)
		})
	})
}

func TestBuildPlanStabilityHold(t *testing.T) {
	Convey("Given members placed five days ago", t, func() {
		src := cohort.NewKey(6.0, cohort.VelocityMedium, "sprint")
		dst := cohort.NewKey(7.5, cohort.VelocityMedium, "sprint")
		near := cohort.NewKey(6.5, cohort.VelocityMedium, "sprint")
		members := append(fill(src, 16, "src"), fill(dst, 15, "dst")...)
		members = append(members, fill(near, 16, "near")...)
		recent := testNow.AddDate(0, 0, -5)

		Convey("A half-band drift stays put", func() {
			score := 6.5
			members[0].DiagnosticScore = &score
			members[0].JoinedAt = recent

			plan := balance.BuildPlan(members, testNow)

			So(plan.Moves, ShouldBeEmpty)
		})

		Convey("A full-band jump overrides the hold as a graduation", func() {
			score := 7.5
			members[0].DiagnosticScore = &score
			members[0].JoinedAt = recent

			plan := balance.BuildPlan(members, testNow)

			So(plan.Moves, ShouldHaveLength, 1)
			So(plan.Moves[0].To, ShouldResemble, dst)
			So(plan.Moves[0].Reason, ShouldEqual, cohort.ReasonGraduation)
		})

		Convey("A full-band decline stays held", func() {
			// dst-00 joined at tier 7.5; only improvement graduates
			// early, so a drop to 6.5 waits out the hold.
			score := 6.5
			members[16].DiagnosticScore = &score
			members[16].JoinedAt = recent

			plan := balance.BuildPlan(members, testNow)

			So(plan.Moves, ShouldBeEmpty)
		})
	})
}

func TestBuildPlanMerge(t *testing.T) {
	Convey("Given two adjacent undersized cohorts of 12 and 10", t, func() {
		lower := cohort.NewKey(4.5, cohort.VelocitySlow, "sprint")
		upper := cohort.NewKey(5.0, cohort.VelocitySlow, "sprint")
		members := append(fill(lower, 12, "lo"), fill(upper, 10, "hi")...)

		Convey("They merge into one cohort of 22", func() {
			plan := balance.BuildPlan(members, testNow)

			So(plan.Merges, ShouldEqual, 1)
			So(plan.GlobalFallbacks, ShouldEqual, 0)
			So(plan.Moves, ShouldHaveLength, 12)
			for _, mv := range plan.Moves {
				So(mv.From, ShouldResemble, lower)
				So(mv.To, ShouldResemble, upper)
				So(mv.Reason, ShouldEqual, cohort.ReasonMerge)
			}
			So(balance.Validate(members, plan), ShouldBeNil)
		})
	})

	Convey("Given an undersized cohort whose only neighbor is full", t, func() {
		small := cohort.NewKey(7.0, cohort.VelocityFast, "sprint")
		full := cohort.NewKey(7.5, cohort.VelocityFast, "sprint")
		members := append(fill(small, 10, "sm"), fill(full, 28, "fl")...)

		Convey("Its members fall back to the global bucket", func() {
			plan := balance.BuildPlan(members, testNow)

			So(plan.Merges, ShouldEqual, 0)
			So(plan.GlobalFallbacks, ShouldEqual, 1)
			So(plan.Moves, ShouldHaveLength, 10)
			for _, mv := range plan.Moves {
				So(mv.To, ShouldResemble, cohort.GlobalKey)
				So(mv.Reason, ShouldEqual, cohort.ReasonGlobalFallback)
			}
		})
	})

	Convey("Given a lone undersized cohort with no neighbors at all", t, func() {
		lone := cohort.NewKey(8.0, cohort.VelocityMedium, "academic")
		members := fill(lone, 7, "ln")

		Convey("Its members fall back to the global bucket", func() {
			plan := balance.BuildPlan(members, testNow)

			So(plan.GlobalFallbacks, ShouldEqual, 1)
			So(plan.Moves, ShouldHaveLength, 7)
		})
	})
}

func TestBuildPlanSplit(t *testing.T) {
	Convey("Given an oversized cohort of 45", t, func() {
		key := cohort.NewKey(7.0, cohort.VelocityFast, "sprint")
		members := fill(key, 45, "m")

		Convey("It splits into two even chunks", func() {
			plan := balance.BuildPlan(members, testNow)

			So(plan.Splits, ShouldEqual, 1)
			So(plan.Moves, ShouldHaveLength, 22)
			for _, mv := range plan.Moves {
				So(mv.To, ShouldResemble, key.WithSplit(1))
				So(mv.Reason, ShouldEqual, cohort.ReasonSplit)
			}
			So(balance.Validate(members, plan), ShouldBeNil)
		})

		Convey("The longest-tenured members keep the original key", func() {
			plan := balance.BuildPlan(members, testNow)

			moved := make(map[string]bool)
			for _, mv := range plan.Moves {
				moved[mv.UserID] = true
			}
			// fill assigns strictly increasing join times by index, so
			// the first 23 are the veterans.
			So(moved["m-00"], ShouldBeFalse)
			So(moved["m-22"], ShouldBeFalse)
			So(moved["m-23"], ShouldBeTrue)
			So(moved["m-44"], ShouldBeTrue)
		})
	})

	Convey("Given a cohort of 70 and an existing split sibling", t, func() {
		key := cohort.NewKey(7.0, cohort.VelocityFast, "sprint")
		members := append(fill(key, 70, "m"), fill(key.WithSplit(1), 20, "s")...)

		Convey("New chunks take fresh split indices past the sibling", func() {
			plan := balance.BuildPlan(members, testNow)

			So(plan.Splits, ShouldEqual, 1)
			targets := make(map[cohort.Key]int)
			for _, mv := range plan.Moves {
				targets[mv.To]++
			}
			So(targets[key.WithSplit(1)], ShouldEqual, 0)
			So(targets[key.WithSplit(2)], ShouldBeGreaterThan, 0)
			So(balance.Validate(members, plan), ShouldBeNil)
		})
	})
}

func TestBuildPlanIdempotence(t *testing.T) {
	Convey("Given a snapshot needing structural work", t, func() {
		a := cohort.NewKey(4.5, cohort.VelocitySlow, "sprint")
		b := cohort.NewKey(5.0, cohort.VelocitySlow, "sprint")
		big := cohort.NewKey(7.0, cohort.VelocityFast, "sprint")
		members := append(fill(a, 12, "a"), fill(b, 10, "b")...)
		members = append(members, fill(big, 45, "c")...)

		Convey("Replaying the plan then planning again yields no moves", func() {
			plan := balance.BuildPlan(members, testNow)
			So(plan.Moves, ShouldNotBeEmpty)

			after := make([]cohort.Member, len(members))
			copy(after, members)
			byID := make(map[string]int, len(after))
			for i, m := range after {
				byID[m.ID] = i
			}
			for _, mv := range plan.Moves {
				i := byID[mv.UserID]
				after[i].Key = mv.To
				after[i].JoinedAt = testNow
				after[i].JoinedSkillTier = after[i].Key.SkillTier
			}

			again := balance.BuildPlan(after, testNow.Add(time.Hour))
			So(again.Moves, ShouldBeEmpty)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given a healthy snapshot", t, func() {
		key := cohort.NewKey(7.0, cohort.VelocityMedium, "sprint")
		members := fill(key, 16, "m")

		Convey("A plan draining a cohort below the floor is rejected", func() {
			plan := balance.Plan{Moves: []balance.Move{
				{UserID: "m-00", From: key, To: cohort.GlobalKey, Reason: cohort.ReasonRebalance},
				{UserID: "m-01", From: key, To: cohort.GlobalKey, Reason: cohort.ReasonRebalance},
			}}

			err := balance.Validate(members, plan)

			So(err, ShouldWrap, balance.ErrInvariantViolation)
		})

		Convey("A duplicate move for one user is rejected", func() {
			plan := balance.Plan{Moves: []balance.Move{
				{UserID: "m-00", From: key, To: cohort.GlobalKey},
				{UserID: "m-00", From: key, To: cohort.GlobalKey},
			}}

			err := balance.Validate(members, plan)

			So(err, ShouldWrap, balance.ErrInvariantViolation)
		})

		Convey("A move whose origin disagrees with the snapshot is rejected", func() {
			plan := balance.Plan{Moves: []balance.Move{
				{UserID: "m-00", From: cohort.NewKey(9.0, cohort.VelocitySlow, "sprint"), To: cohort.GlobalKey},
			}}

			err := balance.Validate(members, plan)

			So(err, ShouldWrap, balance.ErrInvariantViolation)
		})

		Convey("Members moved into the global bucket never fail bounds", func() {
			all := balance.Plan{Moves: make([]balance.Move, 0, len(members))}
			for _, m := range members {
				all.Moves = append(all.Moves, balance.Move{UserID: m.ID, From: key, To: cohort.GlobalKey})
			}

			So(balance.Validate(members, all), ShouldBeNil)
		})
	})
}

// seededWorld wires a memory store, roster, and movement log with the
// given members already placed.
func seededWorld(ctx context.Context, members []cohort.Member) (*partition.MemoryStore, *roster.MemoryRoster, *partition.MemoryMovementLog) {
	store := partition.NewMemoryStore()
	ros := roster.NewMemoryRoster()
	log := partition.NewMemoryMovementLog()
	for _, m := range members {
		if err := store.Transfer(ctx, m.ID, cohort.Key{}, m.Key); err != nil {
			panic(err)
		}
		if err := ros.Upsert(ctx, m); err != nil {
			panic(err)
		}
	}
	return store, ros, log
}

func TestBalancerRun(t *testing.T) {
	ctx := context.Background()

	Convey("Given a world with two undersized adjacent cohorts", t, func() {
		lower := cohort.NewKey(4.5, cohort.VelocitySlow, "sprint")
		upper := cohort.NewKey(5.0, cohort.VelocitySlow, "sprint")
		members := append(fill(lower, 12, "lo"), fill(upper, 10, "hi")...)
		store, ros, mlog := seededWorld(ctx, members)

		b := balance.New(store, mlog, ros, balance.WithClock(func() time.Time { return testNow }))

		Convey("A run commits the merge to the store and roster", func() {
			So(b.Run(ctx), ShouldBeNil)

			ids, err := store.Members(ctx, upper)
			So(err, ShouldBeNil)
			So(ids, ShouldHaveLength, 22)

			keys, err := store.Keys(ctx)
			So(err, ShouldBeNil)
			So(keys, ShouldHaveLength, 1)

			m, err := ros.Get(ctx, "lo-00")
			So(err, ShouldBeNil)
			So(m.Key, ShouldResemble, upper)
			So(m.JoinedAt.Equal(testNow), ShouldBeTrue)
			So(m.JoinedSkillTier, ShouldEqual, 5.0)

			n, err := mlog.Len(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 12)

			mvs, err := mlog.Movements(ctx, "lo-00")
			So(err, ShouldBeNil)
			So(mvs, ShouldHaveLength, 1)
			So(mvs[0].Reason, ShouldEqual, cohort.ReasonMerge)
			So(mvs[0].From, ShouldEqual, lower.String())
			So(mvs[0].To, ShouldEqual, upper.String())
		})

		Convey("A second run finds nothing to do", func() {
			So(b.Run(ctx), ShouldBeNil)
			So(b.Run(ctx), ShouldBeNil)

			n, err := mlog.Len(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 12)
		})
	})

	Convey("Given a run already in progress", t, func() {
		key := cohort.NewKey(7.0, cohort.VelocityMedium, "sprint")
		members := fill(key, 16, "m")
		store, ros, mlog := seededWorld(ctx, members)

		release := make(chan struct{})
		entered := make(chan struct{})
		slow := &blockingSource{Roster: ros, entered: entered, release: release}
		b := balance.New(store, mlog, slow)

		Convey("A concurrent trigger is rejected, not queued", func() {
			done := make(chan error, 1)
			go func() { done <- b.Run(ctx) }()
			<-entered

			So(b.Run(ctx), ShouldWrap, balance.ErrBalanceInProgress)

			close(release)
			So(<-done, ShouldBeNil)
		})
	})
}

// blockingSource stalls the snapshot until released, to hold a run
// open across a concurrent trigger.
type blockingSource struct {
	roster.Roster
	entered chan struct{}
	release chan struct{}
	once    bool
}

func (s *blockingSource) All(ctx context.Context) ([]cohort.Member, error) {
	if !s.once {
		s.once = true
		close(s.entered)
		<-s.release
	}
	return s.Roster.All(ctx)
}
