package roster_test

import (
	"context"
	"testing"
	"time"

	"github.com/momenta/cohortd/internal/adapters/roster"
	"github.com/momenta/cohortd/internal/domain/cohort"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryRoster(t *testing.T) {
	ctx := context.Background()

	Convey("Given an in-memory roster", t, func() {
		r := roster.NewMemoryRoster()
		score := 6.5
		m := cohort.Member{ID: "u1", DiagnosticScore: &score, Track: "sprint", TasksCompleted: 12}

		Convey("Get on an unknown member fails", func() {
			_, err := r.Get(ctx, "u1")
			So(err, ShouldWrap, roster.ErrMemberNotFound)
		})

		Convey("Upsert then Get round-trips", func() {
			So(r.Upsert(ctx, m), ShouldBeNil)

			got, err := r.Get(ctx, "u1")
			So(err, ShouldBeNil)
			So(got.Track, ShouldEqual, "sprint")
			So(*got.DiagnosticScore, ShouldEqual, 6.5)
		})

		Convey("All returns members sorted by ID", func() {
			So(r.Upsert(ctx, cohort.Member{ID: "b"}), ShouldBeNil)
			So(r.Upsert(ctx, cohort.Member{ID: "a"}), ShouldBeNil)

			all, err := r.All(ctx)
			So(err, ShouldBeNil)
			So(all, ShouldHaveLength, 2)
			So(all[0].ID, ShouldEqual, "a")
			So(all[1].ID, ShouldEqual, "b")
		})

		Convey("SetPlacement updates only placement fields", func() {
			So(r.Upsert(ctx, m), ShouldBeNil)

			key := cohort.NewKey(6.5, cohort.VelocityMedium, "sprint")
			at := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
			So(r.SetPlacement(ctx, "u1", key, at, 6.5), ShouldBeNil)

			got, err := r.Get(ctx, "u1")
			So(err, ShouldBeNil)
			So(got.Key, ShouldResemble, key)
			So(got.JoinedAt, ShouldEqual, at)
			So(got.JoinedSkillTier, ShouldEqual, 6.5)
			So(got.TasksCompleted, ShouldEqual, 12)
		})

		Convey("SetPlacement on an unknown member fails", func() {
			err := r.SetPlacement(ctx, "nope", cohort.GlobalKey, time.Now(), 0)
			So(err, ShouldWrap, roster.ErrMemberNotFound)
		})
	})
}
