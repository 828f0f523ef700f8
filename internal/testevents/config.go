package testevents

import "time"

// Config holds configuration for the event test
type Config struct {
	BaseURL    string        // Base URL of the service
	NumEvents  int           // Number of events to generate
	Devices    int           // Number of simulated devices
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	Settle     time.Duration // Wait before reading stats
	OutputFile string        // Output file for events
	Verbose    bool          // Enable verbose logging
}

// Event is the body posted to /events.
type Event struct {
	EventID string `json:"event_id"`
	Device  string `json:"device"`
	Kind    string `json:"kind"`
	ID      uint16 `json:"id"`
	Pressed *bool  `json:"pressed,omitempty"`
	Value   *int   `json:"value,omitempty"`
	TS      string `json:"ts"`
}

// AckResponse represents the response from event submission
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// EngineStats is the engine section of GET /stats.
type EngineStats struct {
	State          string `json:"state"`
	Version        uint64 `json:"version"`
	ActiveRules    int    `json:"active_rules"`
	Processed      uint64 `json:"processed"`
	Matched        uint64 `json:"matched"`
	Unmatched      uint64 `json:"unmatched"`
	ActionsIssued  uint64 `json:"actions_issued"`
	ActionFailures uint64 `json:"action_failures"`
}

// Stats holds test statistics
type Stats struct {
	EventsGenerated  int
	EventsSubmitted  int
	EventsSuccessful int
	EventsDuplicate  int
	EventsFailed     int
	Engine           EngineStats
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
