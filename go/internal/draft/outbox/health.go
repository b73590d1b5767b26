package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
)

const highPendingThreshold = 1000

type HealthStatus struct {
	Healthy           bool      `json:"healthy"`
	EventsProcessed   uint64    `json:"events_processed"`
	LastEventTime     time.Time `json:"last_event_time"`
	PendingEvents     int       `json:"pending_events"`
	DatabaseConnected bool      `json:"database_connected"`
	NATSConnected     bool      `json:"nats_connected"`
	ListenerActive    bool      `json:"listener_active"`
	Errors            []string  `json:"errors"`
}

// Probes are the dependencies the health checker inspects.
type Probes struct {
	Ping           func(ctx context.Context) error
	CountPending   func(ctx context.Context) (int, error)
	NATSConnected  func() bool
	ListenerActive func() bool
}

type HealthChecker struct {
	relay     *Relay
	probes    Probes
	clock     clockwork.Clock
	threshold time.Duration
}

// NewHealthChecker reports unhealthy when events are pending and nothing has been relayed
// for longer than threshold.
func NewHealthChecker(relay *Relay, probes Probes, clock clockwork.Clock, threshold time.Duration) *HealthChecker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &HealthChecker{relay: relay, probes: probes, clock: clock, threshold: threshold}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{Healthy: true, Errors: []string{}}
	status.EventsProcessed, status.LastEventTime = h.relay.Stats()

	if err := h.probes.Ping(ctx); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
	} else {
		status.DatabaseConnected = true
	}

	if h.probes.NATSConnected != nil {
		status.NATSConnected = h.probes.NATSConnected()
		if !status.NATSConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	if h.probes.ListenerActive != nil {
		status.ListenerActive = h.probes.ListenerActive()
		if !status.ListenerActive {
			status.Healthy = false
			status.Errors = append(status.Errors, "listener not active")
		}
	}

	if status.DatabaseConnected {
		pending, err := h.probes.CountPending(ctx)
		if err != nil {
			status.Errors = append(status.Errors, fmt.Sprintf("failed to count pending events: %v", err))
		} else {
			status.PendingEvents = pending
			if pending > highPendingThreshold {
				status.Errors = append(status.Errors, fmt.Sprintf("high pending event count: %d", pending))
			}
		}
	}

	if status.PendingEvents > 0 && !status.LastEventTime.IsZero() {
		if since := h.clock.Since(status.LastEventTime); since > h.threshold {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("no events processed for %s", since))
		}
	}
	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)
	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}
