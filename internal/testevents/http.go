package testevents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/padmap/pkg/logger"
)

// Submission outcomes.
const (
	resultSuccess   = "success"
	resultDuplicate = "duplicate"
	resultFailed    = "failed"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// getJSON fetches url and decodes the body into v.
func (c *HTTPClient) getJSON(ctx context.Context, url string, v any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// submitEvents submits events concurrently using worker pools. Events of
// one device go through one worker so their order is kept.
func submitEvents(ctx context.Context, cfg *Config, events []Event, stats *Stats) error {
	logger.Get().Info(ctx, "submitting events", logger.Int("events", len(events)), logger.Int("workers", cfg.Workers))

	client := newHTTPClient(cfg.Timeout)
	url := cfg.BaseURL + "/events"

	var successful, duplicate, failed, submitted atomic.Int64

	workers := max(cfg.Workers, 1)
	chans := make([]chan Event, workers)
	var wg sync.WaitGroup
	for i := range chans {
		chans[i] = make(chan Event, workers*2)
		wg.Add(1)
		go func(in <-chan Event) {
			defer wg.Done()
			for event := range in {
				if ctx.Err() != nil {
					continue
				}
				submitted.Add(1)
				switch submitSingleEvent(ctx, client, url, event) {
				case resultSuccess:
					successful.Add(1)
				case resultDuplicate:
					duplicate.Add(1)
				default:
					failed.Add(1)
				}
				if cfg.Verbose {
					logger.Get().Debug(ctx, "event submitted", logger.String("event_id", event.EventID))
				}
			}
		}(chans[i])
	}

	lanes := make(map[string]int)
	for _, event := range events {
		lane, ok := lanes[event.Device]
		if !ok {
			lane = len(lanes) % workers
			lanes[event.Device] = lane
		}
		chans[lane] <- event
	}
	for _, ch := range chans {
		close(ch)
	}
	wg.Wait()

	stats.EventsSubmitted = int(submitted.Load())
	stats.EventsSuccessful = int(successful.Load())
	stats.EventsDuplicate = int(duplicate.Load())
	stats.EventsFailed = int(failed.Load())

	logger.Get().Info(ctx, "event submission completed",
		logger.Int("successful", stats.EventsSuccessful),
		logger.Int("duplicate", stats.EventsDuplicate),
		logger.Int("failed", stats.EventsFailed))
	return ctx.Err()
}

// submitSingleEvent submits a single event and returns the result
func submitSingleEvent(ctx context.Context, client *HTTPClient, url string, event Event) string {
	resp, err := client.Post(ctx, url, event)
	if err != nil {
		return resultFailed
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resultFailed
	}

	var ack AckResponse
	switch resp.StatusCode {
	case http.StatusAccepted:
		return resultSuccess
	case http.StatusOK:
		if err := json.Unmarshal(body, &ack); err == nil && ack.Duplicate {
			return resultDuplicate
		}
		return resultSuccess
	default:
		return resultFailed
	}
}
