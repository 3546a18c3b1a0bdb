package loadsim

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/momenta/cohortd/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run executes the complete load simulation.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting cohortd load simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("members", config.NumMembers),
		logger.Int("rounds", config.ProgressRounds),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.String("logFile", config.LogFile),
		logger.Any("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate members
	members, err := generateMembers(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("member generation failed: %w", err)
	}

	// Step 3: Enroll members concurrently
	placements, err := enrollMembers(ctx, config, members, stats)
	if err != nil {
		return fmt.Errorf("member enrollment failed: %w", err)
	}

	// Step 4: Stream progress updates
	if err := submitProgress(ctx, config, members, stats); err != nil {
		return fmt.Errorf("progress submission failed: %w", err)
	}

	// Step 5: Wait for the ingest queue to drain
	logger.Get().Info(ctx, "waiting for progress updates to be applied")
	time.Sleep(IngestSettleDelay)

	// Step 6: Retrieve ghost payloads concurrently
	ghosts, err := retrieveGhosts(ctx, config, members, stats)
	if err != nil {
		return fmt.Errorf("ghost retrieval failed: %w", err)
	}

	// Step 7: Get service stats
	serviceStats, err := retrieveServiceStats(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("stats retrieval failed: %w", err)
	}

	// Step 8: Verify results
	if err := verifyResults(ctx, config, members, placements, ghosts, serviceStats, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Step 9: Save members to file
	if err := saveMembersToFile(ctx, config, members); err != nil {
		logger.Get().Warn(ctx, "failed to save members to file", logger.Error(err))
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/healthz"

	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveMembersToFile saves the generated members to a JSON file.
func saveMembersToFile(ctx context.Context, config *Config, members []Member) error {
	if len(members) == 0 {
		return fmt.Errorf("no members to save")
	}

	// Determine output filename
	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "generated_members_" + timestamp + ".json"
	}

	// Ensure the directory exists
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Write members to file
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close file", logger.Error(err))
		}
	}()

	// Write JSON array
	if _, err := file.WriteString("[\n"); err != nil {
		return fmt.Errorf("failed to write opening bracket: %w", err)
	}

	for i, member := range members {
		jsonData, err := marshalJSON(member)
		if err != nil {
			return fmt.Errorf("failed to marshal member %d: %w", i, err)
		}

		if _, err := file.Write(jsonData); err != nil {
			return fmt.Errorf("failed to write member %d: %w", i, err)
		}

		// Add comma except for last member
		if i < len(members)-1 {
			if _, err := file.WriteString(","); err != nil {
				return fmt.Errorf("failed to write comma: %w", err)
			}
		}
		_, _ = file.WriteString("\n")
	}

	if _, err := file.WriteString("]\n"); err != nil {
		return fmt.Errorf("failed to write closing bracket: %w", err)
	}

	logger.Get().Info(ctx, "members saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final simulation statistics.
func displayFinalStats(stats *Stats) {
	var queuedRate, updatesPerSecond float64

	if stats.UpdatesSubmitted > 0 {
		queuedRate = float64(stats.UpdatesQueued) / float64(stats.UpdatesSubmitted) * PercentageMultiplier
	}

	if stats.Duration > 0 {
		updatesPerSecond = float64(stats.UpdatesSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("membersGenerated", stats.MembersGenerated),
		logger.Int("membersPlaced", stats.MembersPlaced),
		logger.Int("placementsGlobal", stats.PlacementsGlobal),
		logger.Int("placementsFailed", stats.PlacementsFailed),
		logger.Int("updatesSubmitted", stats.UpdatesSubmitted),
		logger.Int("updatesQueued", stats.UpdatesQueued),
		logger.Int("updatesDuplicate", stats.UpdatesDuplicate),
		logger.Int("updatesFailed", stats.UpdatesFailed),
		logger.Int("ghostsRetrieved", stats.GhostsRetrieved),
		logger.Int("cohortsReported", stats.CohortsReported),
		logger.Int("membersReported", stats.MembersReported),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("queuedRate", queuedRate),
		logger.Float64("updatesPerSecond", updatesPerSecond))
}
