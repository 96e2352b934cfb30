package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/telescout/telescout/internal/telegram"
)

func TestFormatTime(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"regular day", time.Date(2025, 8, 5, 17, 59, 0, 0, time.UTC), "5th August 2025 5:59PM"},
		{"first", time.Date(2025, 3, 1, 9, 5, 0, 0, time.UTC), "1st March 2025 9:05AM"},
		{"second", time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), "2nd March 2025 12:00AM"},
		{"third", time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC), "3rd March 2025 12:00PM"},
		{"eleventh", time.Date(2025, 3, 11, 10, 30, 0, 0, time.UTC), "11th March 2025 10:30AM"},
		{"twelfth", time.Date(2025, 3, 12, 10, 30, 0, 0, time.UTC), "12th March 2025 10:30AM"},
		{"thirteenth", time.Date(2025, 3, 13, 10, 30, 0, 0, time.UTC), "13th March 2025 10:30AM"},
		{"twenty first", time.Date(2025, 3, 21, 10, 30, 0, 0, time.UTC), "21st March 2025 10:30AM"},
		{"twenty second", time.Date(2025, 3, 22, 10, 30, 0, 0, time.UTC), "22nd March 2025 10:30AM"},
		{"thirty first", time.Date(2025, 3, 31, 10, 30, 0, 0, time.UTC), "31st March 2025 10:30AM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTime(tt.t))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"seconds", 30 * time.Second, "30.0 seconds"},
		{"minutes", 90 * time.Second, "1.5 minutes"},
		{"hours", 2 * time.Hour, "2.0 hours"},
		{"half hour", 30 * time.Minute, "30.0 minutes"},
		{"days", 36 * time.Hour, "1.5 days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.d))
		})
	}
}

func TestBuildForward(t *testing.T) {
	msg := telegram.Message{
		ID:        42,
		ChannelID: 100,
		Text:      "breaking: something happened",
		Date:      time.Date(2025, 8, 5, 17, 59, 0, 0, time.UTC),
	}

	out := BuildForward("Tech News", msg, []string{"breaking"}, false, 4000)

	assert.Contains(t, out, "🎯 **TeleScout Match**")
	assert.Contains(t, out, "📺 **Channel:** Tech News")
	assert.Contains(t, out, "⏰ **Time:** 5th August 2025 5:59PM")
	assert.Contains(t, out, "Keyword matched: 'breaking'")
	assert.NotContains(t, out, "Historical")
	assert.True(t, strings.HasSuffix(out, msg.Text))
}

func TestBuildForward_HistoricalTag(t *testing.T) {
	msg := telegram.Message{Text: "hi", Date: time.Unix(0, 0)}
	out := BuildForward("c", msg, []string{"hi"}, true, 4000)
	assert.Contains(t, out, "📚 **Historical message**")
}

func TestBuildForward_Truncation(t *testing.T) {
	msg := telegram.Message{
		Text: strings.Repeat("a", 5000),
		Date: time.Unix(0, 0),
	}

	out := BuildForward("c", msg, []string{"a"}, false, 1000)

	assert.LessOrEqual(t, len(out), 1000)
	assert.Contains(t, out, "[Message truncated]")
}

func TestBuildForward_TruncationRuneBoundary(t *testing.T) {
	msg := telegram.Message{
		Text: strings.Repeat("п", 3000), // 2-byte runes
		Date: time.Unix(0, 0),
	}

	out := BuildForward("c", msg, []string{"п"}, false, 1000)

	assert.True(t, strings.HasSuffix(out, "[Message truncated]"))
	assert.True(t, len(out) <= 1000)
	for _, r := range out {
		assert.NotEqual(t, '�', r, "truncation must not split a rune")
	}
}

func TestBuildForward_NoRoomHidesContent(t *testing.T) {
	msg := telegram.Message{
		Text: strings.Repeat("a", 500),
		Date: time.Unix(0, 0),
	}

	out := BuildForward("some channel", msg, []string{"a"}, false, 150)
	assert.Contains(t, out, "[Message too long, content hidden]")
	assert.NotContains(t, out, strings.Repeat("a", 20))
}
