package testevents

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/padmap/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o644
)

// Run executes the complete event test.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting padmap event test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("events", cfg.NumEvents),
		logger.Int("devices", cfg.Devices),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout))

	client := newHTTPClient(cfg.Timeout)

	if err := checkServiceHealth(ctx, client, cfg); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	seed := uint64(time.Now().UnixNano())
	events, err := generateEvents(ctx, cfg, stats, rand.New(rand.NewPCG(seed, seed>>1)))
	if err != nil {
		return nil, fmt.Errorf("event generation failed: %w", err)
	}

	if err := submitEvents(ctx, cfg, events, stats); err != nil {
		return nil, fmt.Errorf("event submission failed: %w", err)
	}

	if cfg.Settle > 0 {
		logger.Get().Info(ctx, "waiting for events to be processed", logger.Duration("settle", cfg.Settle))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.Settle):
		}
	}

	var served struct {
		Engine EngineStats `json:"engine"`
	}
	if err := client.getJSON(ctx, cfg.BaseURL+"/stats", &served); err != nil {
		return nil, fmt.Errorf("stats retrieval failed: %w", err)
	}
	stats.Engine = served.Engine
	if stats.Engine.Processed < uint64(stats.EventsSuccessful) {
		logger.Get().Warn(ctx, "engine has not processed every accepted event yet",
			logger.Uint64("processed", stats.Engine.Processed),
			logger.Int("accepted", stats.EventsSuccessful))
	}

	if cfg.OutputFile != "" {
		if err := saveEventsToFile(ctx, cfg.OutputFile, events); err != nil {
			logger.Get().Warn(ctx, "failed to save events to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient, cfg *Config) error {
	var health struct {
		Status        string `json:"status"`
		ActiveProfile string `json:"active_profile"`
	}
	if err := client.getJSON(ctx, cfg.BaseURL+"/healthz", &health); err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if health.Status != "ok" {
		return fmt.Errorf("service reports status %q", health.Status)
	}
	logger.Get().Info(ctx, "service is healthy", logger.String("active_profile", health.ActiveProfile))
	return nil
}

// saveEventsToFile saves the generated events to a JSON file.
func saveEventsToFile(ctx context.Context, filename string, events []Event) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write events: %w", err)
	}
	logger.Get().Info(ctx, "events saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final test statistics.
func displayFinalStats(stats *Stats) {
	var successRate, eventsPerSecond float64
	if stats.EventsSubmitted > 0 {
		successRate = float64(stats.EventsSuccessful) / float64(stats.EventsSubmitted) * 100
	}
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("eventsGenerated", stats.EventsGenerated),
		logger.Int("eventsSubmitted", stats.EventsSubmitted),
		logger.Int("eventsSuccessful", stats.EventsSuccessful),
		logger.Int("eventsDuplicate", stats.EventsDuplicate),
		logger.Int("eventsFailed", stats.EventsFailed),
		logger.String("engineState", stats.Engine.State),
		logger.Uint64("engineProcessed", stats.Engine.Processed),
		logger.Uint64("engineMatched", stats.Engine.Matched),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
