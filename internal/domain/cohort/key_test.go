package cohort_test

import (
	"testing"

	"github.com/momenta/cohortd/internal/domain/cohort"
	. "github.com/smartystreets/goconvey/convey"
)

func TestKeySerialization(t *testing.T) {
	Convey("Given cohort keys", t, func() {
		Convey("A regular key serializes to its canonical form", func() {
			k := cohort.NewKey(7.0, cohort.VelocityFast, "sprint")
			So(k.String(), ShouldEqual, "7.0/fast/sprint")
		})

		Convey("A split key carries its index as a suffix", func() {
			k := cohort.NewKey(6.5, cohort.VelocityMedium, "steady").WithSplit(2)
			So(k.String(), ShouldEqual, "6.5/medium/steady/2")
		})

		Convey("The global sentinel serializes to 'global'", func() {
			So(cohort.GlobalKey.String(), ShouldEqual, "global")
		})

		Convey("The zero key serializes empty and reports IsZero", func() {
			var k cohort.Key
			So(k.String(), ShouldEqual, "")
			So(k.IsZero(), ShouldBeTrue)
		})

		Convey("ParseKey round-trips every form", func() {
			for _, k := range []cohort.Key{
				cohort.NewKey(4.0, cohort.VelocitySlow, "foundation"),
				cohort.NewKey(9.0, cohort.VelocityFast, "sprint").WithSplit(3),
				cohort.GlobalKey,
			} {
				parsed, err := cohort.ParseKey(k.String())
				So(err, ShouldBeNil)
				So(parsed, ShouldResemble, k)
			}
		})

		Convey("ParseKey rejects malformed input", func() {
			for _, s := range []string{"x/fast/sprint", "7.0/warp/sprint", "7.0/fast", "7.0/fast/sprint/0", "7.0/fast/sprint/x"} {
				_, err := cohort.ParseKey(s)
				So(err, ShouldNotBeNil)
			}
		})

		Convey("Tracks carrying reserved separators never round-trip", func() {
			// A slashed track would serialize ambiguously and a '!'
			// would collide with store key prefixes; ValidTrack is the
			// gate that keeps such keys from ever being built.
			So(cohort.ValidTrack("sprint"), ShouldBeTrue)
			So(cohort.ValidTrack("exam-week"), ShouldBeTrue)
			So(cohort.ValidTrack(""), ShouldBeFalse)
			So(cohort.ValidTrack("a/b"), ShouldBeFalse)
			So(cohort.ValidTrack("a!b"), ShouldBeFalse)

			hostile := cohort.NewKey(7.0, cohort.VelocityFast, "a/b")
			_, err := cohort.ParseKey(hostile.String())
			So(err, ShouldNotBeNil)
		})

		Convey("Base strips the split index", func() {
			k := cohort.NewKey(7.0, cohort.VelocityFast, "sprint").WithSplit(4)
			So(k.Base(), ShouldResemble, cohort.NewKey(7.0, cohort.VelocityFast, "sprint"))
		})
	})
}

func TestVelocityValid(t *testing.T) {
	Convey("Known velocity tiers are valid, others are not", t, func() {
		So(cohort.VelocitySlow.Valid(), ShouldBeTrue)
		So(cohort.VelocityMedium.Valid(), ShouldBeTrue)
		So(cohort.VelocityFast.Valid(), ShouldBeTrue)
		So(cohort.Velocity("warp").Valid(), ShouldBeFalse)
	})
}
