package dedupe

import (
	"context"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSeenAndRecord(t *testing.T) {
	Convey("Given an unbounded deduper", t, func() {
		ctx := context.Background()
		d := NewInMemoryDeduper(WithMaxSize(0))

		Convey("When recording a fresh ID", func() {
			seen := d.SeenAndRecord(ctx, "evt-1")

			Convey("Then it reports newly recorded", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And the same ID is seen on the second attempt", func() {
				So(d.SeenAndRecord(ctx, "evt-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And a different ID is still fresh", func() {
				So(d.SeenAndRecord(ctx, "evt-2"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 2)
			})
		})
	})
}

func TestUnrecord(t *testing.T) {
	Convey("Given a deduper with a recorded ID", t, func() {
		ctx := context.Background()
		d := NewInMemoryDeduper()
		So(d.SeenAndRecord(ctx, "evt-1"), ShouldBeFalse)

		Convey("When unrecording it", func() {
			d.Unrecord(ctx, "evt-1")

			Convey("Then it can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "evt-1"), ShouldBeFalse)
			})
		})

		Convey("When unrecording an unknown ID", func() {
			d.Unrecord(ctx, "evt-nope")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 1)
				So(d.SeenAndRecord(ctx, "evt-1"), ShouldBeTrue)
			})
		})
	})
}

func TestBoundedEviction(t *testing.T) {
	Convey("Given a deduper bounded to 3 entries", t, func() {
		ctx := context.Background()
		d := NewInMemoryDeduper(WithMaxSize(3))

		for i := 0; i < 3; i++ {
			So(d.SeenAndRecord(ctx, fmt.Sprintf("evt-%d", i)), ShouldBeFalse)
		}
		So(d.Size(), ShouldEqual, 3)

		Convey("When a fourth ID arrives", func() {
			So(d.SeenAndRecord(ctx, "evt-3"), ShouldBeFalse)

			Convey("Then the oldest ID was evicted and the size is capped", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "evt-0"), ShouldBeFalse)
			})

			Convey("And the newer IDs are still tracked", func() {
				So(d.SeenAndRecord(ctx, "evt-2"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "evt-3"), ShouldBeTrue)
			})
		})

		Convey("When an entry is unrecorded before the ring wraps", func() {
			d.Unrecord(ctx, "evt-1")

			Convey("Then eviction still works for the remaining entries", func() {
				So(d.SeenAndRecord(ctx, "evt-3"), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, "evt-4"), ShouldBeFalse)
				So(d.Size(), ShouldBeLessThanOrEqualTo, 3)
			})
		})
	})
}
