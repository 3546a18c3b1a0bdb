package loadsim

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/momenta/cohortd/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	profileDivisor     = 8
)

// Constants for diagnostic score generation ranges.
const (
	midBandMin     = 5.5
	midBandRange   = 1.5
	highBandMin    = 7.0
	highBandRange  = 1.5
	lowBandMin     = 4.0
	lowBandRange   = 1.5
	eliteBandMin   = 8.5
	eliteBandRange = 0.5
	fullBandMin    = 4.0
	fullBandRange  = 5.0
)

// Constants for activity generation ranges.
const (
	maxDaysActive      = 90
	slowWeeklyMax      = 10
	mediumWeeklyMin    = 10
	mediumWeeklyRange  = 10
	fastWeeklyMin      = 20
	fastWeeklyRange    = 20
	streakDaysMax      = 30
	minutesPerTaskMin  = 8
	minutesPerTaskSpan = 12
)

// Constants for learner profile cases.
const (
	caseMidBand     = 0
	caseHighBand    = 1
	caseLowBand     = 2
	caseEliteBand   = 3
	caseUnscored    = 4
	caseMidBandSlow = 5
	caseLowBandFast = 6
	caseFullBand    = 7
)

// Track identifiers used by the simulated cohort.
var tracks = []string{"sprint", "standard", "intensive"}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// getRandomInt returns a random int in [0, max) using crypto/rand.
func getRandomInt(max int64) int {
	n, _ := rand.Int(rand.Reader, big.NewInt(max))
	return int(n.Int64())
}

// generateMembers creates the specified number of members with unique user IDs.
func generateMembers(ctx context.Context, config *Config, stats *Stats) ([]Member, error) {
	logger.Get().Info(ctx, "generating members with unique user IDs", logger.Int("numMembers", config.NumMembers))

	members := make([]Member, config.NumMembers)

	// Pre-allocate user IDs to ensure uniqueness
	userIDs := make([]string, config.NumMembers)
	for i := 0; i < config.NumMembers; i++ {
		userIDs[i] = uuid.New().String()
	}

	// Generate members concurrently
	type memberResult struct {
		index  int
		member Member
		err    error
	}

	resultChan := make(chan memberResult, config.NumMembers)

	// Use worker pool for member generation
	workerCount := minInt(config.Workers, config.NumMembers)
	membersPerWorker := config.NumMembers / workerCount

	for worker := 0; worker < workerCount; worker++ {
		start := worker * membersPerWorker
		end := start + membersPerWorker
		if worker == workerCount-1 {
			end = config.NumMembers // Last worker gets remaining members
		}

		go func(start, end int) {
			for i := start; i < end; i++ {
				select {
				case <-ctx.Done():
					resultChan <- memberResult{index: i, err: ctx.Err()}
					return
				default:
					member := generateSingleMember(userIDs[i])
					resultChan <- memberResult{index: i, member: member, err: nil}
				}
			}
		}(start, end)
	}

	// Collect results
	for i := 0; i < config.NumMembers; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during member generation: %w", ctx.Err())
		case result := <-resultChan:
			if result.err != nil {
				return nil, fmt.Errorf("failed to generate member %d: %w", result.index, result.err)
			}
			members[result.index] = result.member
		}
	}

	stats.MembersGenerated = len(members)
	logger.Get().Info(ctx, "generated members successfully", logger.Int("count", len(members)))

	return members, nil
}

// generateSingleMember creates a single member with the given user ID,
// drawn from a varied learner-profile distribution.
func generateSingleMember(userID string) Member {
	score, weeklyTasks := generateLearnerProfile()

	daysActive := 1 + getRandomInt(maxDaysActive)
	tasksCompleted := weeklyTasks * (daysActive/7 + 1)
	minutesPerTask := minutesPerTaskMin + getRandomInt(minutesPerTaskSpan)
	streak := getRandomInt(streakDaysMax)
	if streak > daysActive {
		streak = daysActive
	}

	return Member{
		UserID:          userID,
		DiagnosticScore: score,
		Track:           tracks[getRandomInt(int64(len(tracks)))],
		TasksCompleted:  tasksCompleted,
		PracticeMinutes: tasksCompleted * minutesPerTask,
		WeeklyTasks:     weeklyTasks,
		DaysActive:      daysActive,
		StreakDays:      streak,
	}
}

// generateLearnerProfile returns a diagnostic score (nil for unscored
// members, who land in the global bucket) and a weekly task count.
func generateLearnerProfile() (*float64, int) {
	randNum, _ := rand.Int(rand.Reader, big.NewInt(profileDivisor))
	switch randNum.Int64() {
	case caseMidBand:
		// Mid-band learners (5.5 - 7.0) - most common
		return scoreOf(midBandMin + getRandomFloat()*midBandRange), mediumWeekly()
	case caseHighBand:
		// High-band learners (7.0 - 8.5)
		return scoreOf(highBandMin + getRandomFloat()*highBandRange), fastWeekly()
	case caseLowBand:
		// Low-band learners (4.0 - 5.5)
		return scoreOf(lowBandMin + getRandomFloat()*lowBandRange), slowWeekly()
	case caseEliteBand:
		// Near-ceiling learners (8.5 - 9.0) - rare
		return scoreOf(eliteBandMin + getRandomFloat()*eliteBandRange), fastWeekly()
	case caseUnscored:
		// No diagnostic yet - rare, routed to the global bucket
		return nil, slowWeekly()
	case caseMidBandSlow:
		// Mid-band but low activity
		return scoreOf(midBandMin + getRandomFloat()*midBandRange), slowWeekly()
	case caseLowBandFast:
		// Low-band but high activity
		return scoreOf(lowBandMin + getRandomFloat()*lowBandRange), fastWeekly()
	case caseFullBand:
		// Random across full range (4.0 - 9.0)
		return scoreOf(fullBandMin + getRandomFloat()*fullBandRange), mediumWeekly()
	default:
		return scoreOf(fullBandMin + getRandomFloat()*fullBandRange), mediumWeekly()
	}
}

func scoreOf(v float64) *float64 { return &v }

func slowWeekly() int   { return getRandomInt(slowWeeklyMax) }
func mediumWeekly() int { return mediumWeeklyMin + getRandomInt(mediumWeeklyRange) }
func fastWeekly() int   { return fastWeeklyMin + getRandomInt(fastWeeklyRange) }

// minInt returns the minimum of two integers.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
