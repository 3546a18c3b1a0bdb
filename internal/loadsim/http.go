package loadsim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	jsonData, err := marshalJSON(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// marshalJSON marshals a struct to JSON
func marshalJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// unmarshalJSON unmarshals JSON to a struct
func unmarshalJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// enrollMembers submits member intake requests concurrently using worker pools.
// Returned placements are indexed like members; a failed enrollment leaves a
// zero Placement at its index.
func enrollMembers(ctx context.Context, config *Config, members []Member, stats *Stats) ([]Placement, error) {
	log.Printf("📤 Enrolling %d members with %d workers...", len(members), config.Workers)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/members"

	placements := make([]Placement, len(members))

	// Counters for statistics
	var (
		placed    int64
		global    int64
		failed    int64
		submitted int64
	)

	// Progress reporting
	var lastReport time.Time
	reportInterval := 1 * time.Second

	// Create worker pool
	memberChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for index := range memberChan {
				select {
				case <-ctx.Done():
					return
				default:
					placement, err := enrollSingleMember(ctx, client, url, members[index])

					atomic.AddInt64(&submitted, 1)
					if err != nil {
						atomic.AddInt64(&failed, 1)
						if config.Verbose {
							log.Printf("⚠️  Failed to enroll %s: %v", members[index].UserID, err)
						}
					} else {
						placements[index] = placement
						atomic.AddInt64(&placed, 1)
						if placement.CohortKey == "global" {
							atomic.AddInt64(&global, 1)
						}
					}

					// Progress reporting
					if time.Since(lastReport) >= reportInterval {
						lastReport = time.Now()
						total := atomic.LoadInt64(&submitted)
						ok := atomic.LoadInt64(&placed)
						fail := atomic.LoadInt64(&failed)

						if config.Verbose {
							log.Printf("📊 Progress: %d/%d enrolled (placed: %d, failed: %d)",
								total, len(members), ok, fail)
						} else {
							fmt.Printf("\r📤 Enrolled: %d/%d (placed: %d, failed: %d)",
								total, len(members), ok, fail)
						}
					}
				}
			}
		}()
	}

	// Send member indices to workers
	go func() {
		defer close(memberChan)
		for i := range members {
			select {
			case <-ctx.Done():
				return
			case memberChan <- i:
			}
		}
	}()

	// Wait for all workers to complete
	wg.Wait()

	// Final progress report
	if !config.Verbose {
		fmt.Println() // New line after progress indicator
	}

	// Update stats
	stats.MembersPlaced = int(atomic.LoadInt64(&placed))
	stats.PlacementsGlobal = int(atomic.LoadInt64(&global))
	stats.PlacementsFailed = int(atomic.LoadInt64(&failed))

	log.Printf(`✅ Member enrollment completed:
   Placed: %d
   Global bucket: %d
   Failed: %d
`, stats.MembersPlaced, stats.PlacementsGlobal, stats.PlacementsFailed)

	return placements, nil
}

// enrollSingleMember submits a single member and returns the placement.
func enrollSingleMember(ctx context.Context, client *HTTPClient, url string, member Member) (Placement, error) {
	resp, err := client.Post(ctx, url, member)
	if err != nil {
		return Placement{}, err
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return Placement{}, err
	}

	if resp.StatusCode != StatusAccepted {
		return Placement{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var placement Placement
	if err := unmarshalJSON(body, &placement); err != nil {
		return Placement{}, fmt.Errorf("failed to parse placement: %w", err)
	}
	return placement, nil
}

// submitProgress streams progress updates concurrently. Each member gets
// config.ProgressRounds updates with growing counters, and every round
// re-sends its event once to exercise dedupe on the service side.
func submitProgress(ctx context.Context, config *Config, members []Member, stats *Stats) error {
	total := len(members) * config.ProgressRounds * 2
	log.Printf("📤 Submitting %d progress updates with %d workers...", total, config.Workers)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/progress"

	// Counters for statistics
	var (
		queued    int64
		duplicate int64
		failed    int64
		submitted int64
	)

	// Progress reporting
	var lastReport time.Time
	reportInterval := 1 * time.Second

	// Create worker pool
	updateChan := make(chan ProgressUpdate, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for update := range updateChan {
				select {
				case <-ctx.Done():
					return
				default:
					result := submitSingleUpdate(ctx, client, url, update)

					atomic.AddInt64(&submitted, 1)
					switch result {
					case "queued":
						atomic.AddInt64(&queued, 1)
					case "duplicate":
						atomic.AddInt64(&duplicate, 1)
					case "failed":
						atomic.AddInt64(&failed, 1)
					}

					// Progress reporting
					if time.Since(lastReport) >= reportInterval {
						lastReport = time.Now()
						sent := atomic.LoadInt64(&submitted)
						q := atomic.LoadInt64(&queued)
						dup := atomic.LoadInt64(&duplicate)
						fail := atomic.LoadInt64(&failed)

						if config.Verbose {
							log.Printf("📊 Progress: %d/%d submitted (queued: %d, duplicate: %d, failed: %d)",
								sent, total, q, dup, fail)
						} else {
							fmt.Printf("\r📤 Submitted: %d/%d (queued: %d, duplicate: %d, failed: %d)",
								sent, total, q, dup, fail)
						}
					}
				}
			}
		}()
	}

	// Generate and send updates to workers: each round re-sends the same
	// event ID once, which the service must answer with a conflict.
	go func() {
		defer close(updateChan)
		for round := 1; round <= config.ProgressRounds; round++ {
			for _, member := range members {
				update := nextUpdate(member, round)
				for attempt := 0; attempt < 2; attempt++ {
					select {
					case <-ctx.Done():
						return
					case updateChan <- update:
					}
				}
			}
		}
	}()

	// Wait for all workers to complete
	wg.Wait()

	// Final progress report
	if !config.Verbose {
		fmt.Println() // New line after progress indicator
	}

	// Update stats
	stats.UpdatesSubmitted = int(atomic.LoadInt64(&submitted))
	stats.UpdatesQueued = int(atomic.LoadInt64(&queued))
	stats.UpdatesDuplicate = int(atomic.LoadInt64(&duplicate))
	stats.UpdatesFailed = int(atomic.LoadInt64(&failed))

	log.Printf(`✅ Progress submission completed:
   Queued: %d
   Duplicate: %d
   Failed: %d
`, stats.UpdatesQueued, stats.UpdatesDuplicate, stats.UpdatesFailed)

	return nil
}

// nextUpdate derives the round-th progress update for a member. Counters
// grow monotonically so the service's lifetime totals keep advancing.
func nextUpdate(member Member, round int) ProgressUpdate {
	return ProgressUpdate{
		EventID:         uuid.New().String(),
		UserID:          member.UserID,
		TasksCompleted:  member.TasksCompleted + round,
		PracticeMinutes: member.PracticeMinutes + round*minutesPerTaskMin,
		WeeklyTasks:     member.WeeklyTasks,
		DaysActive:      minInt(member.DaysActive+round, maxDaysActive),
		StreakDays:      member.StreakDays + round,
	}
}

// submitSingleUpdate submits a single progress update and returns the result.
func submitSingleUpdate(ctx context.Context, client *HTTPClient, url string, update ProgressUpdate) string {
	resp, err := client.Post(ctx, url, update)
	if err != nil {
		return "failed"
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case StatusAccepted:
		return "queued"
	case StatusConflict:
		return "duplicate"
	default:
		return "failed"
	}
}
