package loadsim

import (
	"context"
	"fmt"
	"log"
	"sort"
)

// Cohort size bounds enforced by the service for regular cohorts.
const (
	minCohortSize = 15
	maxCohortSize = 30
)

// verifyResults checks partition shape and ghost payload consistency.
func verifyResults(ctx context.Context, config *Config, members []Member, placements []Placement, ghosts []*GhostPayload, serviceStats map[string]interface{}, stats *Stats) error {
	log.Println("🔍 Verifying results...")

	if len(placements) == 0 {
		return fmt.Errorf("no placements to verify")
	}

	if err := verifyPlacements(members, placements); err != nil {
		log.Printf("⚠️  Placement warning: %v", err)
	} else {
		log.Println("✅ Placement consistency verified")
	}

	if err := verifyCohortBounds(placements); err != nil {
		log.Printf("⚠️  Cohort bounds warning: %v", err)
	} else {
		log.Println("✅ Cohort bounds verified")
	}

	if err := verifyGhostPayloads(members, ghosts); err != nil {
		log.Printf("⚠️  Ghost payload warning: %v", err)
	} else {
		log.Println("✅ Ghost payloads verified")
	}

	if err := verifyServiceStats(serviceStats, stats); err != nil {
		log.Printf("⚠️  Service stats warning: %v", err)
	} else {
		log.Println("✅ Service stats verified")
	}

	displayCohortDistribution(placements, config.Verbose)

	log.Println("✅ Result verification completed")
	return nil
}

// verifyPlacements checks that every placed member has a cohort key and
// that unscored members landed in the global bucket.
func verifyPlacements(members []Member, placements []Placement) error {
	for i, p := range placements {
		if p.UserID == "" {
			continue // enrollment failed, already counted
		}
		if p.CohortKey == "" {
			return fmt.Errorf("member %s placed without a cohort key", p.UserID)
		}
		if members[i].DiagnosticScore == nil && p.CohortKey != "global" {
			return fmt.Errorf("unscored member %s placed in %s instead of the global bucket",
				p.UserID, p.CohortKey)
		}
	}
	return nil
}

// verifyCohortBounds checks that no regular cohort exceeds the maximum
// size. Undersized cohorts are expected at intake; the rebalance cycle
// merges them later, so only the upper bound is a hard check here.
func verifyCohortBounds(placements []Placement) error {
	sizes := cohortSizes(placements)
	for key, size := range sizes {
		if key == "global" {
			continue // the fallback bucket has no size bound
		}
		if size > maxCohortSize {
			return fmt.Errorf("cohort %s has %d members, above the %d cap", key, size, maxCohortSize)
		}
	}
	return nil
}

// verifyGhostPayloads checks that retrieved payloads reflect the
// submitted progress: lifetime counters never sit below intake values.
func verifyGhostPayloads(members []Member, ghosts []*GhostPayload) error {
	for i, g := range ghosts {
		if g == nil {
			continue // retrieval failed, already counted
		}
		if g.UserStats.TasksCompleted < members[i].TasksCompleted {
			return fmt.Errorf("member %s reports %d tasks completed, below the %d submitted at intake",
				members[i].UserID, g.UserStats.TasksCompleted, members[i].TasksCompleted)
		}
		if g.UserStats.DayNumber < 1 {
			return fmt.Errorf("member %s has day number %d, expected at least 1",
				members[i].UserID, g.UserStats.DayNumber)
		}
	}
	return nil
}

// verifyServiceStats cross-checks the service-wide snapshot against the
// simulation's own counters.
func verifyServiceStats(serviceStats map[string]interface{}, stats *Stats) error {
	if serviceStats == nil {
		return fmt.Errorf("no service stats snapshot")
	}
	if stats.MembersReported < stats.MembersPlaced {
		return fmt.Errorf("service reports %d members but %d were placed",
			stats.MembersReported, stats.MembersPlaced)
	}
	return nil
}

// cohortSizes groups placements by cohort key.
func cohortSizes(placements []Placement) map[string]int {
	sizes := make(map[string]int)
	for _, p := range placements {
		if p.CohortKey == "" {
			continue
		}
		sizes[p.CohortKey]++
	}
	return sizes
}

// displayCohortDistribution shows the largest cohorts and, in verbose
// mode, size statistics across the whole partition.
func displayCohortDistribution(placements []Placement, verbose bool) {
	sizes := cohortSizes(placements)

	type cohortEntry struct {
		key  string
		size int
	}
	entries := make([]cohortEntry, 0, len(sizes))
	for key, size := range sizes {
		entries = append(entries, cohortEntry{key: key, size: size})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].size > entries[j].size
	})

	topN := 10
	if len(entries) < topN {
		topN = len(entries)
	}

	log.Printf("🏘️  Largest %d cohorts of %d:", topN, len(entries))
	for i := 0; i < topN; i++ {
		log.Printf("   %d. %s - %d members", i+1, entries[i].key, entries[i].size)
	}

	if verbose && len(entries) > 0 {
		total := 0
		for _, e := range entries {
			total += e.size
		}
		avgSize := float64(total) / float64(len(entries))
		maxSize := entries[0].size
		minSize := entries[len(entries)-1].size

		log.Printf(`📊 Cohort size statistics:
   Average: %.1f
   Maximum: %d
   Minimum: %d
`, avgSize, maxSize, minSize)
	}
}
