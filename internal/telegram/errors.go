package telegram

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrUnauthorized is returned when no Telegram session is available.
var ErrUnauthorized = errors.New("telegram client not authorized")

// FloodWaitError is Telegram's throttling response. It is always retryable
// after the indicated wait.
type FloodWaitError struct {
	Seconds int
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("telegram flood wait: %d seconds", e.Seconds)
}

// floodWaitSeconds extracts the wait time from a FLOOD_WAIT_N rpc error.
// Returns 0 if the error is not a flood wait.
// gotd wraps rpc errors, so string inspection is the stable way to detect
// this without coupling to the wrapped error chain.
func floodWaitSeconds(err error) int {
	if err == nil {
		return 0
	}
	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw.Seconds
	}

	str := err.Error()
	if !strings.Contains(str, "FLOOD_WAIT_") {
		return 0
	}
	parts := strings.Split(str, "FLOOD_WAIT_")
	var seconds int
	_, _ = fmt.Sscanf(strings.TrimSpace(parts[1]), "%d", &seconds)
	return seconds
}

// fatalMarkers are rpc error codes that no retry can fix: the target is
// gone, blocked, or the session itself is invalid.
var fatalMarkers = []string{
	"PEER_ID_INVALID",
	"USER_IS_BLOCKED",
	"USER_DEACTIVATED",
	"CHAT_WRITE_FORBIDDEN",
	"CHANNEL_PRIVATE",
	"CHANNEL_INVALID",
	"INPUT_USER_DEACTIVATED",
	"AUTH_KEY",
	"SESSION_REVOKED",
}

// IsRetryable reports whether a send/fetch failure is transient: flood
// waits, network timeouts, and server-side unavailability.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsFatal(err) {
		return false
	}
	if floodWaitSeconds(err) > 0 {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	str := err.Error()
	for _, marker := range []string{"TIMEOUT", "connection dead", "engine was closed", "-503", "RPC_CALL_FAIL"} {
		if strings.Contains(str, marker) {
			return true
		}
	}
	return false
}

// IsFatal reports whether an error makes further attempts pointless.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnauthorized) {
		return true
	}
	str := err.Error()
	for _, marker := range fatalMarkers {
		if strings.Contains(str, marker) {
			return true
		}
	}
	return false
}
