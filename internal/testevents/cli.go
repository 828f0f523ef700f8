package testevents

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/padmap/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0o600
)

// SetupLogging configures logging to the console and, when logFile is set,
// to that file as well.
func SetupLogging(logFile string, verbose bool) error {
	w := io.Writer(os.Stdout)
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
	}
	if err := logger.Init(logger.WithWriter(w)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the test events tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`padmap Event Test Tool
======================

Posts synthetic button and axis events to a running padmap service and
reports how many the engine processed.

Usage:
  go run ./cmd/test-events [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -events int
        Number of events to generate and submit (default 10000)
  -devices int
        Number of simulated devices (default 4)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -settle duration
        Wait before reading engine stats (default 2s)
  -output string
        Output file for generated events
  -log string
        Log file for test output
  -verbose
        Enable verbose logging
  -help
        Show this help message
`)
}
