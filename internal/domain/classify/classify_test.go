package classify_test

import (
	"math"
	"testing"

	"github.com/momenta/cohortd/internal/domain/classify"
	"github.com/momenta/cohortd/internal/domain/cohort"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSkillTier(t *testing.T) {
	Convey("Given diagnostic scores", t, func() {
		Convey("Scores bucket to the nearest 0.5", func() {
			So(classify.SkillTier(6.8), ShouldEqual, 7.0)
			So(classify.SkillTier(6.7), ShouldEqual, 6.5)
			So(classify.SkillTier(6.25), ShouldEqual, 6.5)
			So(classify.SkillTier(5.0), ShouldEqual, 5.0)
		})

		Convey("Tiers clamp to [4.0, 9.0]", func() {
			So(classify.SkillTier(1.2), ShouldEqual, 4.0)
			So(classify.SkillTier(9.9), ShouldEqual, 9.0)
		})

		Convey("Every tier over a sweep of scores is a 0.5 multiple within bounds", func() {
			for score := 0.0; score <= 12.0; score += 0.1 {
				tier := classify.SkillTier(score)
				So(tier, ShouldBeGreaterThanOrEqualTo, 4.0)
				So(tier, ShouldBeLessThanOrEqualTo, 9.0)
				So(math.Mod(tier*2, 1), ShouldEqual, 0)
			}
		})
	})
}

func TestVelocityTier(t *testing.T) {
	Convey("Given activity history", t, func() {
		Convey("Under a week of history defaults to medium", func() {
			So(classify.VelocityTier(3, 50), ShouldEqual, cohort.VelocityMedium)
			So(classify.VelocityTier(6, 0), ShouldEqual, cohort.VelocityMedium)
		})

		Convey("Throughput thresholds split slow/medium/fast", func() {
			// 14 days active = 2 weeks of history.
			So(classify.VelocityTier(14, 18), ShouldEqual, cohort.VelocitySlow)   // 9/wk
			So(classify.VelocityTier(14, 20), ShouldEqual, cohort.VelocityMedium) // 10/wk
			So(classify.VelocityTier(14, 39), ShouldEqual, cohort.VelocityMedium) // 19.5/wk
			So(classify.VelocityTier(14, 40), ShouldEqual, cohort.VelocityFast)   // 20/wk
		})

		Convey("A partial week above 7 days counts as one week", func() {
			// 10 days is less than two weeks; divisor stays at max(1, 10/7).
			So(classify.VelocityTier(10, 30), ShouldEqual, cohort.VelocityFast)
		})
	})
}

func TestKey(t *testing.T) {
	Convey("Given a member", t, func() {
		score := 6.8
		m := cohort.Member{
			ID:              "u1",
			DiagnosticScore: &score,
			Track:           "sprint",
			TasksCompleted:  107, // ~25 tasks/week over 30 days
			DaysActive:      30,
		}

		Convey("The key combines skill, velocity, and track", func() {
			k, err := classify.Key(m)
			So(err, ShouldBeNil)
			So(k, ShouldResemble, cohort.NewKey(7.0, cohort.VelocityFast, "sprint"))
		})

		Convey("A missing diagnostic fails with ErrMissingDiagnostic", func() {
			m.DiagnosticScore = nil
			_, err := classify.Key(m)
			So(err, ShouldEqual, classify.ErrMissingDiagnostic)
		})

		Convey("A track with a reserved separator fails with ErrInvalidTrack", func() {
			for _, track := range []string{"a/b", "a!b", ""} {
				m.Track = track
				_, err := classify.Key(m)
				So(err, ShouldEqual, classify.ErrInvalidTrack)
			}
		})
	})
}
