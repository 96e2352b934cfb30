package telegram

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloodWaitSeconds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain error", errors.New("something broke"), 0},
		{"rpc flood wait", errors.New("rpc error code 420: FLOOD_WAIT_30"), 30},
		{"wrapped flood wait", fmt.Errorf("send: %w", errors.New("FLOOD_WAIT_5 (caused by messages.SendMessage)")), 5},
		{"typed flood wait", &FloodWaitError{Seconds: 42}, 42},
		{"wrapped typed", fmt.Errorf("forward: %w", &FloodWaitError{Seconds: 7}), 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, floodWaitSeconds(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"flood wait", errors.New("FLOOD_WAIT_10"), true},
		{"typed flood wait", &FloodWaitError{Seconds: 3}, true},
		{"timeout marker", errors.New("rpc error code 500: TIMEOUT"), true},
		{"connection dead", errors.New("connection dead, reconnecting"), true},
		{"engine closed", errors.New("engine was closed"), true},
		{"server unavailable", errors.New("rpc error code -503"), true},
		{"rpc call fail", errors.New("RPC_CALL_FAIL"), true},
		{"peer invalid", errors.New("rpc error code 400: PEER_ID_INVALID"), false},
		{"user blocked", errors.New("USER_IS_BLOCKED"), false},
		{"auth key dead", errors.New("AUTH_KEY_UNREGISTERED"), false},
		{"unknown error", errors.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unauthorized sentinel", ErrUnauthorized, true},
		{"wrapped unauthorized", fmt.Errorf("init: %w", ErrUnauthorized), true},
		{"session revoked", errors.New("SESSION_REVOKED"), true},
		{"channel private", errors.New("rpc error code 400: CHANNEL_PRIVATE"), true},
		{"write forbidden", errors.New("CHAT_WRITE_FORBIDDEN"), true},
		{"flood wait", errors.New("FLOOD_WAIT_30"), false},
		{"timeout", errors.New("TIMEOUT"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestFloodWaitError_Message(t *testing.T) {
	err := &FloodWaitError{Seconds: 30}
	assert.Equal(t, "telegram flood wait: 30 seconds", err.Error())
}
