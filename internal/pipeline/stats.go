package pipeline

import (
	"sync"
	"time"
)

// State is the pipeline's run phase.
type State string

const (
	StateIdle       State = "idle"
	StateScanning   State = "scanning-historical"
	StateMonitoring State = "monitoring-live"
	StateStopped    State = "stopped"
)

// stats tracks running counters. All access goes through methods; Snapshot
// is the only way out.
type stats struct {
	mu sync.Mutex

	state     State
	startedAt time.Time

	scanned     int64
	matched     int64
	forwarded   int64
	rateLimited int64
	errors      int64
}

// Snapshot is a read-only view of the run statistics for the control
// surface.
type Snapshot struct {
	State         State     `json:"state"`
	StartedAt     time.Time `json:"started_at"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Uptime        string    `json:"uptime"`
	Scanned       int64     `json:"scanned"`
	Matched       int64     `json:"matched"`
	Forwarded     int64     `json:"forwarded"`
	RateLimited   int64     `json:"rate_limited"`
	Errors        int64     `json:"errors"`
}

func (s *stats) start(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startedAt = now
	s.scanned, s.matched, s.forwarded, s.rateLimited, s.errors = 0, 0, 0, 0, 0
}

func (s *stats) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *stats) addScanned()     { s.mu.Lock(); s.scanned++; s.mu.Unlock() }
func (s *stats) addMatched()     { s.mu.Lock(); s.matched++; s.mu.Unlock() }
func (s *stats) addForwarded()   { s.mu.Lock(); s.forwarded++; s.mu.Unlock() }
func (s *stats) addRateLimited() { s.mu.Lock(); s.rateLimited++; s.mu.Unlock() }
func (s *stats) addError()       { s.mu.Lock(); s.errors++; s.mu.Unlock() }

func (s *stats) snapshot(now time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.state
	if state == "" {
		state = StateIdle
	}

	var uptime time.Duration
	if !s.startedAt.IsZero() {
		uptime = now.Sub(s.startedAt)
	}

	return Snapshot{
		State:         state,
		StartedAt:     s.startedAt,
		UptimeSeconds: uptime.Seconds(),
		Uptime:        FormatDuration(uptime),
		Scanned:       s.scanned,
		Matched:       s.matched,
		Forwarded:     s.forwarded,
		RateLimited:   s.rateLimited,
		Errors:        s.errors,
	}
}
