package testevents

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/padmap/pkg/logger"
)

// Ranges of the generated controls.
const (
	maxButtonID = 16
	maxAxisID   = 6
	axisMin     = -32768
	axisSpan    = 65536
)

// generateEvents creates cfg.NumEvents events spread over cfg.Devices
// devices. Roughly a third are axis events.
func generateEvents(ctx context.Context, cfg *Config, stats *Stats, rng *rand.Rand) ([]Event, error) {
	logger.Get().Info(ctx, "generating events", logger.Int("numEvents", cfg.NumEvents), logger.Int("devices", cfg.Devices))

	devices := make([]string, max(cfg.Devices, 1))
	for i := range devices {
		devices[i] = "device-" + strconv.Itoa(i)
	}

	events := make([]Event, cfg.NumEvents)
	for i := range events {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during event generation: %w", err)
		}
		events[i] = generateSingleEvent(devices[rng.IntN(len(devices))], rng)
	}

	stats.EventsGenerated = len(events)
	logger.Get().Info(ctx, "generated events successfully", logger.Int("count", len(events)))
	return events, nil
}

// generateSingleEvent creates one button or axis event for device.
func generateSingleEvent(device string, rng *rand.Rand) Event {
	ev := Event{
		EventID: uuid.NewString(),
		Device:  device,
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
	}
	if rng.IntN(3) == 0 {
		value := axisMin + rng.IntN(axisSpan)
		ev.Kind = "axis"
		ev.ID = uint16(rng.IntN(maxAxisID))
		ev.Value = &value
		return ev
	}
	pressed := rng.IntN(2) == 0
	ev.Kind = "button"
	ev.ID = uint16(rng.IntN(maxButtonID))
	ev.Pressed = &pressed
	return ev
}
