package loadsim

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// retrieveGhosts retrieves ghost payloads for all members concurrently.
// The returned slice is indexed like members; a failed retrieval leaves
// a nil entry at its index.
func retrieveGhosts(ctx context.Context, config *Config, members []Member, stats *Stats) ([]*GhostPayload, error) {
	log.Printf("👻 Retrieving ghost data for %d members with %d workers...", len(members), config.Workers)

	client := newHTTPClient(config.Timeout)

	ghosts := make([]*GhostPayload, len(members))
	var (
		retrieved int64
		failed    int64
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
					userID := members[index].UserID
					payload, err := retrieveSingleGhost(ctx, client, config.BaseURL, userID)

					if err != nil {
						atomic.AddInt64(&failed, 1)
						if config.Verbose {
							log.Printf("⚠️  Failed to get ghost data for %s: %v", userID, err)
						}
					} else {
						ghosts[index] = payload
						atomic.AddInt64(&retrieved, 1)
					}

					// Progress reporting
					if time.Since(lastReport) >= reportInterval {
						lastReport = time.Now()
						total := atomic.LoadInt64(&retrieved) + atomic.LoadInt64(&failed)
						ret := atomic.LoadInt64(&retrieved)
						fail := atomic.LoadInt64(&failed)

						if config.Verbose {
							log.Printf("📊 Ghost progress: %d/%d retrieved (success: %d, failed: %d)",
								total, len(members), ret, fail)
						} else {
							log.Printf("\r👻 Ghosts: %d/%d retrieved (success: %d, failed: %d)",
								total, len(members), ret, fail)
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

	stats.GhostsRetrieved = int(atomic.LoadInt64(&retrieved))
	stats.GhostsFailed = int(atomic.LoadInt64(&failed))

	log.Printf(`✅ Ghost retrieval completed:
   Retrieved: %d
   Failed: %d
`, stats.GhostsRetrieved, stats.GhostsFailed)

	return ghosts, nil
}

// retrieveSingleGhost fetches one member's ghost payload.
func retrieveSingleGhost(ctx context.Context, client *HTTPClient, baseURL, userID string) (*GhostPayload, error) {
	resp, err := client.Get(ctx, baseURL+"/ghost/"+userID)
	if err != nil {
		return nil, err
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var payload GhostPayload
	if err := unmarshalJSON(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse ghost payload: %w", err)
	}
	return &payload, nil
}

// retrieveServiceStats fetches the service-wide stats snapshot.
func retrieveServiceStats(ctx context.Context, config *Config, stats *Stats) (map[string]interface{}, error) {
	client := newHTTPClient(config.Timeout)

	resp, err := client.Get(ctx, config.BaseURL+"/stats")
	if err != nil {
		return nil, err
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var snapshot map[string]interface{}
	if err := unmarshalJSON(body, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse stats: %w", err)
	}

	if cohorts, ok := snapshot["cohorts"].(float64); ok {
		stats.CohortsReported = int(cohorts)
	}
	if members, ok := snapshot["members"].(float64); ok {
		stats.MembersReported = int(members)
	}
	return snapshot, nil
}
