package benchmark_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/momenta/cohortd/internal/adapters/benchmark"
	. "github.com/smartystreets/goconvey/convey"
)

func entry(band, skill float64, day, pct, sample int, tasks float64) benchmark.Entry {
	return benchmark.Entry{
		TargetBand:         band,
		StartingSkill:      skill,
		DayNumber:          day,
		Percentile:         pct,
		AvgTasksCompleted:  tasks,
		AvgPracticeMinutes: tasks * 12,
		SampleSize:         sample,
	}
}

func TestRepository(t *testing.T) {
	Convey("Given a benchmark repository", t, func() {
		repo := benchmark.NewRepository()

		Convey("The empty repository misses every lookup", func() {
			_, ok := repo.Get(7.5, 6.0, 30, 25)
			So(ok, ShouldBeFalse)
			So(repo.Version(), ShouldEqual, "empty")
		})

		Convey("After a swap, qualifying entries are served", func() {
			snap := benchmark.NewSnapshot("2026-08", []benchmark.Entry{
				entry(7.5, 6.0, 30, 25, 120, 85),
				entry(7.5, 6.0, 30, 50, 120, 60),
			})
			repo.Swap(snap)

			e, ok := repo.Get(7.5, 6.0, 30, 25)
			So(ok, ShouldBeTrue)
			So(e.AvgTasksCompleted, ShouldEqual, 85)
			So(repo.Version(), ShouldEqual, "2026-08")
		})

		Convey("Entries below the minimum sample size do not exist", func() {
			repo.Swap(benchmark.NewSnapshot("thin", []benchmark.Entry{
				entry(7.5, 6.0, 30, 25, 49, 85),
			}))

			_, ok := repo.Get(7.5, 6.0, 30, 25)
			So(ok, ShouldBeFalse)
		})

		Convey("Entries with unknown percentiles or day numbers are dropped", func() {
			repo.Swap(benchmark.NewSnapshot("bad", []benchmark.Entry{
				entry(7.5, 6.0, 30, 33, 120, 85),
				entry(7.5, 6.0, 0, 25, 120, 85),
				entry(7.5, 6.0, 91, 25, 120, 85),
			}))

			So(repo.Version(), ShouldEqual, "bad")
			_, ok := repo.Get(7.5, 6.0, 30, 33)
			So(ok, ShouldBeFalse)
		})

		Convey("A nil swap keeps the active snapshot", func() {
			repo.Swap(benchmark.NewSnapshot("v1", nil))
			repo.Swap(nil)
			So(repo.Version(), ShouldEqual, "v1")
		})
	})
}

func TestLoadFile(t *testing.T) {
	Convey("Given a benchmark seed file", t, func() {
		dir := t.TempDir()

		Convey("A valid seed loads with sub-sample rows dropped", func() {
			path := filepath.Join(dir, "seed.yaml")
			seed := `version: "2026-08"
entries:
  - target_band: 7.5
    starting_skill: 6.0
    day_number: 30
    percentile: 25
    avg_tasks_completed: 85
    avg_practice_minutes: 1020
    sample_size: 120
  - target_band: 7.5
    starting_skill: 6.5
    day_number: 30
    percentile: 25
    avg_tasks_completed: 70
    avg_practice_minutes: 900
    sample_size: 12
`
			So(os.WriteFile(path, []byte(seed), 0o600), ShouldBeNil)

			snap, err := benchmark.LoadFile(path)
			So(err, ShouldBeNil)
			So(snap.Version(), ShouldEqual, "2026-08")
			So(snap.Len(), ShouldEqual, 1)
		})

		Convey("A seed without a version fails", func() {
			path := filepath.Join(dir, "nover.yaml")
			So(os.WriteFile(path, []byte("entries: []\n"), 0o600), ShouldBeNil)

			_, err := benchmark.LoadFile(path)
			So(err, ShouldWrap, benchmark.ErrMissingVersion)
		})

		Convey("A missing file fails", func() {
			_, err := benchmark.LoadFile(filepath.Join(dir, "absent.yaml"))
			So(err, ShouldNotBeNil)
		})
	})
}
