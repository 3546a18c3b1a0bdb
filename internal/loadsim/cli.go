package loadsim

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/momenta/cohortd/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	// Initialize the logger first
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "loadsim_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the load simulation tool.
func ShowHelp() {
	os.Stdout.WriteString(`Cohortd Load Simulator
======================

A concurrent tool for exercising the cohortd partitioning service:
it enrolls synthetic members, streams progress updates (including
deliberate duplicates), then reads back ghost payloads and verifies
consistency.

Usage:
  go run cmd/loadsim/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -members int
        Number of members to generate and enroll (default 1000)
  -rounds int
        Progress updates submitted per member (default 3)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Output file for generated members (default: generated_members_TIMESTAMP.json)
  -log string
        Log file for simulation output (default: loadsim_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Simulate with default settings
  go run cmd/loadsim/main.go

  # Simulate with custom parameters
  go run cmd/loadsim/main.go -members 5000 -workers 16 -url http://localhost:8080

  # Simulate with verbose output
  go run cmd/loadsim/main.go -verbose -members 1000

  # Simulate with custom log file
  go run cmd/loadsim/main.go -members 5000 -log my_run.log
`)
}
