package stats_test

import (
	"context"
	"testing"
	"time"

	"github.com/momenta/cohortd/internal/domain/cohort"
	"github.com/momenta/cohortd/internal/domain/stats"
	"github.com/momenta/cohortd/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fakePartition struct {
	members map[cohort.Key][]string
}

func (f *fakePartition) Keys(_ context.Context) ([]cohort.Key, error) {
	keys := make([]cohort.Key, 0, len(f.members))
	for k := range f.members {
		keys = append(keys, k)
	}
	return keys, nil
}

func (f *fakePartition) Members(_ context.Context, key cohort.Key) ([]string, error) {
	return f.members[key], nil
}

type fakeMembers struct {
	byID map[string]cohort.Member
}

func (f *fakeMembers) Get(_ context.Context, id string) (cohort.Member, bool, error) {
	m, ok := f.byID[id]
	return m, ok, nil
}

func TestPercentile(t *testing.T) {
	Convey("Given the nearest-rank percentile", t, func() {
		values := []float64{5, 8, 12, 15, 18, 22, 25, 28, 30, 35}

		Convey("P90 of the ten canonical values is 30", func() {
			So(stats.Percentile(values, 90), ShouldEqual, 30)
		})

		Convey("P75 of the ten canonical values is 25", func() {
			So(stats.Percentile(values, 75), ShouldEqual, 25)
		})

		Convey("P50 picks the lower middle value", func() {
			So(stats.Percentile(values, 50), ShouldEqual, 18)
		})

		Convey("A single value is every percentile", func() {
			one := []float64{7}
			So(stats.Percentile(one, 10), ShouldEqual, 7)
			So(stats.Percentile(one, 90), ShouldEqual, 7)
		})

		Convey("An empty slice yields zero", func() {
			So(stats.Percentile(nil, 90), ShouldEqual, 0)
		})
	})
}

func TestAggregatorRun(t *testing.T) {
	ctx := context.Background()
	key := cohort.NewKey(6.5, cohort.VelocityMedium, "sprint")

	Convey("Given a cohort of five members", t, func() {
		part := &fakePartition{members: map[cohort.Key][]string{
			key: {"a", "b", "c", "d", "e"},
		}}
		members := &fakeMembers{byID: map[string]cohort.Member{
			"a": {ID: "a", TasksCompleted: 10, WeeklyTasks: 5, PracticeMinutes: 100, StreakDays: 1},
			"b": {ID: "b", TasksCompleted: 20, WeeklyTasks: 10, PracticeMinutes: 200, StreakDays: 2},
			"c": {ID: "c", TasksCompleted: 30, WeeklyTasks: 15, PracticeMinutes: 300, StreakDays: 3},
			"d": {ID: "d", TasksCompleted: 40, WeeklyTasks: 20, PracticeMinutes: 400, StreakDays: 4},
			"e": {ID: "e", TasksCompleted: 50, WeeklyTasks: 25, PracticeMinutes: 500, StreakDays: 5},
		}}
		taken := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
		agg := stats.NewAggregator(part, members, stats.WithClock(func() time.Time { return taken }))

		Convey("Run produces one snapshot with correct aggregates", func() {
			So(agg.Run(ctx), ShouldBeNil)

			snap, ok := agg.Snapshot(key)
			So(ok, ShouldBeTrue)
			So(snap.Count, ShouldEqual, 5)
			So(snap.TakenAt, ShouldEqual, taken)
			So(snap.TasksCompleted.Mean, ShouldEqual, 30)
			So(snap.TasksCompleted.Median, ShouldEqual, 30)
			So(snap.TasksCompleted.P75, ShouldEqual, 40)
			So(snap.TasksCompleted.P90, ShouldEqual, 50)
			So(snap.PracticeMinutes.Mean, ShouldEqual, 300)
		})

		Convey("Excluded members are dropped from aggregates", func() {
			m := members.byID["e"]
			m.Excluded = true
			members.byID["e"] = m

			So(agg.Run(ctx), ShouldBeNil)

			snap, ok := agg.Snapshot(key)
			So(ok, ShouldBeTrue)
			So(snap.Count, ShouldEqual, 4)
			So(snap.TasksCompleted.Mean, ShouldEqual, 25)
		})

		Convey("Unresolved member IDs are skipped, not fatal", func() {
			part.members[key] = append(part.members[key], "phantom")

			So(agg.Run(ctx), ShouldBeNil)

			snap, ok := agg.Snapshot(key)
			So(ok, ShouldBeTrue)
			So(snap.Count, ShouldEqual, 5)
		})

		Convey("The snapshot set is replaced wholesale", func() {
			So(agg.Run(ctx), ShouldBeNil)

			// The cohort empties; its snapshot must disappear.
			part.members[key] = nil
			So(agg.Run(ctx), ShouldBeNil)

			_, ok := agg.Snapshot(key)
			So(ok, ShouldBeFalse)
		})
	})

	Convey("An empty cohort yields a null snapshot, not an error", t, func() {
		part := &fakePartition{members: map[cohort.Key][]string{key: {}}}
		agg := stats.NewAggregator(part, &fakeMembers{byID: map[string]cohort.Member{}})

		So(agg.Run(ctx), ShouldBeNil)

		_, ok := agg.Snapshot(key)
		So(ok, ShouldBeFalse)
	})
}
