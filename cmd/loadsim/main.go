package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/momenta/cohortd/internal/loadsim"
)

// Default configuration constants.
const (
	defaultNumMembers     = 1000
	defaultProgressRounds = 3
	defaultWorkers        = 2 // multiplier for runtime.NumCPU()
	defaultTimeout        = 30 * time.Second
	defaultRunTimeout     = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numMembers = flag.Int("members", defaultNumMembers, "Number of members to generate and enroll")
		rounds     = flag.Int("rounds", defaultProgressRounds, "Progress updates submitted per member")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Output file for generated members (default: generated_members_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Log file for simulation output (default: loadsim_log_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadsim.ShowHelp()
		return
	}

	// Setup logging
	if err := loadsim.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	// Create simulation configuration
	config := &loadsim.Config{
		BaseURL:        *baseURL,
		NumMembers:     *numMembers,
		ProgressRounds: *rounds,
		Workers:        *workers,
		Timeout:        *timeout,
		OutputFile:     *outputFile,
		LogFile:        *logFile,
		Verbose:        *verbose,
	}

	// Run the simulation
	if err := loadsim.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return
	}
}
