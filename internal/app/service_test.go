package service_test

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/momenta/cohortd/internal/app"
	"github.com/momenta/cohortd/internal/domain/cohort"
	"github.com/momenta/cohortd/internal/domain/progress"
	"github.com/momenta/cohortd/pkg/logger"
)

func init() {
	logger.Init()
}

func scored(id string, score float64, days, tasks int) cohort.Member {
	return cohort.Member{
		ID:              id,
		DiagnosticScore: &score,
		Track:           "sprint",
		TasksCompleted:  tasks,
		DaysActive:      days,
	}
}

func TestAssignCohort(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service", t, func() {
		svc := service.New()
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)

		Convey("A scored member lands in their classified cohort", func() {
			key, err := svc.AssignCohort(ctx, scored("u1", 6.8, 30, 107))

			So(err, ShouldBeNil)
			So(key, ShouldResemble, cohort.NewKey(7.0, cohort.VelocityFast, "sprint"))

			mvs, err := svc.Movements(ctx, "u1")
			So(err, ShouldBeNil)
			So(mvs, ShouldHaveLength, 1)
			So(mvs[0].Reason, ShouldEqual, cohort.ReasonInitial)
			So(mvs[0].From, ShouldEqual, "")
			So(mvs[0].To, ShouldEqual, "7.0/fast/sprint")
		})

		Convey("A member without a diagnostic lands in the global bucket", func() {
			key, err := svc.AssignCohort(ctx, cohort.Member{ID: "u2", Track: "sprint"})

			So(err, ShouldBeNil)
			So(key, ShouldResemble, cohort.GlobalKey)
		})

		Convey("Re-assigning a placed member is a no-op", func() {
			first, err := svc.AssignCohort(ctx, scored("u3", 7.0, 30, 60))
			So(err, ShouldBeNil)

			again, err := svc.AssignCohort(ctx, scored("u3", 9.0, 30, 60))
			So(err, ShouldBeNil)
			So(again, ShouldResemble, first)

			mvs, err := svc.Movements(ctx, "u3")
			So(err, ShouldBeNil)
			So(mvs, ShouldHaveLength, 1)
		})
	})
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestSubmitProgress(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service with a placed member", t, func() {
		svc := service.New(service.WithProgressWorkers(2))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)

		_, err := svc.AssignCohort(ctx, scored("u1", 7.0, 30, 60))
		So(err, ShouldBeNil)

		Convey("An update is applied asynchronously", func() {
			err := svc.SubmitProgress(ctx, progress.Update{
				EventID:         "evt-1",
				UserID:          "u1",
				TasksCompleted:  75,
				PracticeMinutes: 410,
				WeeklyTasks:     15,
				DaysActive:      37,
				StreakDays:      6,
			})
			So(err, ShouldBeNil)

			applied := waitFor(func() bool {
				data, err := svc.GhostData(ctx, "u1")
				return err == nil && data.UserStats.TasksCompleted == 75
			})
			So(applied, ShouldBeTrue)

			data, err := svc.GhostData(ctx, "u1")
			So(err, ShouldBeNil)
			So(data.UserStats.StreakDays, ShouldEqual, 6)
		})

		Convey("A duplicate event id is rejected", func() {
			So(svc.SubmitProgress(ctx, progress.Update{EventID: "evt-2", UserID: "u1", TasksCompleted: 61}), ShouldBeNil)

			err := svc.SubmitProgress(ctx, progress.Update{EventID: "evt-2", UserID: "u1", TasksCompleted: 62})
			So(err, ShouldWrap, service.ErrDuplicateEvent)
		})

		Convey("A stale counter does not regress the roster", func() {
			So(svc.SubmitProgress(ctx, progress.Update{EventID: "evt-3", UserID: "u1", TasksCompleted: 80, DaysActive: 40}), ShouldBeNil)
			So(waitFor(func() bool {
				data, err := svc.GhostData(ctx, "u1")
				return err == nil && data.UserStats.TasksCompleted == 80
			}), ShouldBeTrue)

			So(svc.SubmitProgress(ctx, progress.Update{EventID: "evt-4", UserID: "u1", TasksCompleted: 70, DaysActive: 35, StreakDays: 3}), ShouldBeNil)
			So(waitFor(func() bool {
				data, err := svc.GhostData(ctx, "u1")
				return err == nil && data.UserStats.StreakDays == 3
			}), ShouldBeTrue)

			data, err := svc.GhostData(ctx, "u1")
			So(err, ShouldBeNil)
			So(data.UserStats.TasksCompleted, ShouldEqual, 80)
		})
	})

	Convey("Given a service that was never started", t, func() {
		svc := service.New()

		Convey("Submission is refused", func() {
			err := svc.SubmitProgress(ctx, progress.Update{EventID: "evt-1", UserID: "u1"})
			So(err, ShouldWrap, service.ErrNotStarted)
		})
	})
}

func TestCohortStats(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service with one placed member", t, func() {
		svc := service.New(service.WithClock(func() time.Time {
			return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		}))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)

		_, err := svc.AssignCohort(ctx, scored("u1", 7.0, 30, 60))
		So(err, ShouldBeNil)

		Convey("Stats are unavailable before the first aggregation", func() {
			_, err := svc.CohortStats(ctx, "u1")

			So(err, ShouldWrap, service.ErrNoSnapshot)
		})

		Convey("Stats appear after an aggregation cycle", func() {
			So(svc.RunAggregation(ctx), ShouldBeNil)

			snap, err := svc.CohortStats(ctx, "u1")
			So(err, ShouldBeNil)
			So(snap.Count, ShouldEqual, 1)
			So(snap.TasksCompleted.Mean, ShouldEqual, 60)
		})

		Convey("Stats resolve by cohort key as well", func() {
			So(svc.RunAggregation(ctx), ShouldBeNil)

			snap, err := svc.CohortStatsByKey(ctx, cohort.NewKey(7.0, cohort.VelocityMedium, "sprint"))
			So(err, ShouldBeNil)
			So(snap.Count, ShouldEqual, 1)

			_, err = svc.CohortStatsByKey(ctx, cohort.NewKey(4.0, cohort.VelocitySlow, "sprint"))
			So(err, ShouldWrap, service.ErrNoSnapshot)
		})

		Convey("Unknown users are rejected", func() {
			_, err := svc.CohortStats(ctx, "nobody")

			So(err, ShouldNotBeNil)
		})
	})
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service with members", t, func() {
		svc := service.New()
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)

		_, err := svc.AssignCohort(ctx, scored("u1", 7.0, 30, 60))
		So(err, ShouldBeNil)
		_, err = svc.AssignCohort(ctx, cohort.Member{ID: "u2"})
		So(err, ShouldBeNil)

		Convey("The stats map reflects partition shape", func() {
			out := svc.GetStats(ctx)

			So(out["started"], ShouldBeTrue)
			So(out["cohorts"], ShouldEqual, 1)
			So(out["members"], ShouldEqual, 2)
			So(out["globalBucket"], ShouldEqual, 1)
		})
	})
}
