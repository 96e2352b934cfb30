package pipeline

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/telescout/telescout/internal/matcher"
	"github.com/telescout/telescout/internal/telegram"
)

const headerRule = "=================================================="

// FormatTime renders a timestamp like "5th August 2025 5:59PM".
func FormatTime(t time.Time) string {
	day := t.Day()
	suffix := "th"
	if day < 10 || day > 13 {
		switch day % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s %s %d %s", day, suffix, t.Month(), t.Year(), t.Format("3:04PM"))
}

// FormatDuration renders a duration in the largest sensible unit.
func FormatDuration(d time.Duration) string {
	seconds := d.Seconds()
	switch {
	case seconds < 60:
		return fmt.Sprintf("%.1f seconds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%.1f minutes", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%.1f hours", seconds/3600)
	default:
		return fmt.Sprintf("%.1f days", seconds/86400)
	}
}

// BuildForward formats the message sent to the recipient: a metadata header
// (channel, time, matched keywords) followed by the original text, truncated
// so the whole payload stays within maxLen.
func BuildForward(title string, msg telegram.Message, matched []string, historical bool, maxLen int) string {
	var b strings.Builder
	b.WriteString("🎯 **TeleScout Match**\n")
	b.WriteString("📺 **Channel:** " + title + "\n")
	b.WriteString("⏰ **Time:** " + FormatTime(msg.Date) + "\n")
	b.WriteString("🔍 **" + matcher.Summary(matched) + "**\n")
	if historical {
		b.WriteString("📚 **Historical message**\n")
	}
	b.WriteString(headerRule + "\n\n")

	header := b.String()
	text := msg.Text
	if len(header)+len(text) > maxLen {
		// leave room for the truncation notice
		room := maxLen - len(header) - 100
		if room > 0 {
			// back up to a rune boundary before cutting
			for room > 0 && !utf8.RuneStart(text[room]) {
				room--
			}
			text = text[:room] + "\n\n[Message truncated]"
		} else {
			text = "[Message too long, content hidden]"
		}
	}

	return header + text
}
