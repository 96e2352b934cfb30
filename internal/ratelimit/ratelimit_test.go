package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when told to.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, maxGlobal, maxPerChannel int, window time.Duration) (*Limiter, *fakeClock) {
	t.Helper()
	l, err := New(maxGlobal, maxPerChannel, window)
	require.NoError(t, err)
	clock := &fakeClock{t: time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)}
	l.SetClock(clock.now)
	return l, clock
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name          string
		maxGlobal     int
		maxPerChannel int
		window        time.Duration
		wantErr       bool
	}{
		{"valid", 60, 20, time.Hour, false},
		{"zero global", 0, 20, time.Hour, true},
		{"zero per channel", 60, 0, time.Hour, true},
		{"negative global", -1, 20, time.Hour, true},
		{"zero window", 60, 20, 0, true},
		{"negative window", 60, 20, -time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.maxGlobal, tt.maxPerChannel, tt.window)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLimiter_GlobalLimit(t *testing.T) {
	l, _ := newTestLimiter(t, 2, 10, time.Hour)

	assert.True(t, l.Allow(1))
	assert.True(t, l.Allow(2))
	assert.False(t, l.Allow(3), "third forward exceeds the global budget")
}

func TestLimiter_PerChannelLimit(t *testing.T) {
	l, _ := newTestLimiter(t, 100, 1, time.Hour)

	assert.True(t, l.Allow(1))
	assert.False(t, l.Allow(1), "second forward on the same channel denied")
	assert.True(t, l.Allow(2), "other channels keep their own budget")
}

func TestLimiter_WindowExpiry(t *testing.T) {
	l, clock := newTestLimiter(t, 2, 2, time.Hour)

	assert.True(t, l.Allow(1))
	assert.True(t, l.Allow(1))
	assert.False(t, l.Allow(1))

	clock.advance(30 * time.Minute)
	assert.False(t, l.Allow(1), "forwards still inside the window")

	clock.advance(31 * time.Minute)
	assert.True(t, l.Allow(1), "window rolled past the old forwards")
}

func TestLimiter_DeniedAttemptNotRecorded(t *testing.T) {
	l, clock := newTestLimiter(t, 100, 1, time.Hour)

	assert.True(t, l.Allow(1))
	for i := 0; i < 5; i++ {
		assert.False(t, l.Allow(1))
	}

	// only the single granted forward should age out
	clock.advance(time.Hour + time.Second)
	assert.True(t, l.Allow(1))

	st := l.Status()
	assert.Equal(t, 1, st.GlobalUsed, "denied attempts must not consume budget")
}

func TestLimiter_Status(t *testing.T) {
	l, clock := newTestLimiter(t, 10, 5, time.Hour)

	require.True(t, l.Allow(1))
	require.True(t, l.Allow(1))
	require.True(t, l.Allow(2))

	st := l.Status()
	assert.Equal(t, 3, st.GlobalUsed)
	assert.Equal(t, 10, st.GlobalLimit)
	assert.Equal(t, 7, st.GlobalRemaining)
	assert.Equal(t, 5, st.PerChannelLimit)
	assert.Equal(t, 2, st.ChannelsTracked)
	assert.Equal(t, int64(3600), st.WindowSeconds)

	clock.advance(2 * time.Hour)
	st = l.Status()
	assert.Equal(t, 0, st.GlobalUsed)
	assert.Equal(t, 10, st.GlobalRemaining)
	assert.Equal(t, 0, st.ChannelsTracked, "idle channels are dropped")
}
