// Package ratelimit implements the hourly forward budget: a rolling-window
// counter kept globally and per channel.
//
// This limiter gates how many matched messages may be forwarded; it is
// unrelated to the Telegram API request limiter in internal/telegram.
package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// Limiter tracks forward timestamps in a trailing window, globally and per
// channel. Forward attempts are expected to be serialized by the caller (the
// pipeline's send path); the internal mutex exists because status snapshots
// may be read concurrently from the control API.
type Limiter struct {
	mu sync.Mutex

	maxGlobal     int
	maxPerChannel int
	window        time.Duration

	global     []time.Time
	perChannel map[int64][]time.Time

	now func() time.Time
}

// New creates a limiter. Both limits must be positive and the window must be
// a positive duration.
func New(maxGlobal, maxPerChannel int, window time.Duration) (*Limiter, error) {
	if maxGlobal < 1 || maxPerChannel < 1 {
		return nil, errors.New("ratelimit: limits must be positive")
	}
	if window <= 0 {
		return nil, errors.New("ratelimit: window must be positive")
	}
	return &Limiter{
		maxGlobal:     maxGlobal,
		maxPerChannel: maxPerChannel,
		window:        window,
		perChannel:    make(map[int64][]time.Time),
		now:           time.Now,
	}, nil
}

// SetClock overrides the time source. Intended for tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Allow reports whether a forward on the given channel fits within both the
// global and the per-channel budget. When it does, the attempt is recorded
// in both scopes; when it does not, nothing is recorded.
func (l *Limiter) Allow(channelID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.global = prune(l.global, now, l.window)
	l.perChannel[channelID] = prune(l.perChannel[channelID], now, l.window)

	if len(l.global) >= l.maxGlobal {
		return false
	}
	if len(l.perChannel[channelID]) >= l.maxPerChannel {
		return false
	}

	l.global = append(l.global, now)
	l.perChannel[channelID] = append(l.perChannel[channelID], now)
	return true
}

// prune drops timestamps older than the window. Timestamps are appended in
// order, so the slice stays sorted and a prefix cut suffices.
func prune(stamps []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}

// Status is a point-in-time view of the limiter for the control surface.
type Status struct {
	GlobalUsed      int   `json:"global_used"`
	GlobalLimit     int   `json:"global_limit"`
	GlobalRemaining int   `json:"global_remaining"`
	PerChannelLimit int   `json:"per_channel_limit"`
	ChannelsTracked int   `json:"channels_tracked"`
	WindowSeconds   int64 `json:"window_seconds"`
}

// Status prunes both scopes and returns current usage.
func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.global = prune(l.global, now, l.window)
	for id, stamps := range l.perChannel {
		stamps = prune(stamps, now, l.window)
		if len(stamps) == 0 {
			delete(l.perChannel, id)
			continue
		}
		l.perChannel[id] = stamps
	}

	remaining := l.maxGlobal - len(l.global)
	if remaining < 0 {
		remaining = 0
	}

	return Status{
		GlobalUsed:      len(l.global),
		GlobalLimit:     l.maxGlobal,
		GlobalRemaining: remaining,
		PerChannelLimit: l.maxPerChannel,
		ChannelsTracked: len(l.perChannel),
		WindowSeconds:   int64(l.window / time.Second),
	}
}
