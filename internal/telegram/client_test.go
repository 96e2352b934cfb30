package telegram

import (
	"context"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeChannelID(t *testing.T) {
	tests := []struct {
		name string
		id   int64
		want int64
	}{
		{"positive id", 1234567890, 1234567890},
		{"bot api supergroup form", -1001234567890, 1234567890},
		{"plain negative", -123456, 123456},
		{"boundary", -1_000_000_000_000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeChannelID(tt.id))
		})
	}
}

func TestExtractMessages(t *testing.T) {
	resp := &tg.MessagesChannelMessages{
		Messages: []tg.MessageClass{
			&tg.Message{ID: 3, Message: "newest", Date: 300},
			&tg.Message{ID: 2, Message: "middle", Date: 200, Media: &tg.MessageMediaPhoto{}},
			&tg.MessageService{ID: 1, Date: 100}, // joins, pins, etc.
			&tg.MessageEmpty{ID: 0},
		},
	}

	out := extractMessages(resp, 42)
	require.Len(t, out, 2, "service and empty messages dropped")

	assert.Equal(t, 3, out[0].ID)
	assert.Equal(t, "newest", out[0].Text)
	assert.Equal(t, int64(42), out[0].ChannelID)
	assert.Equal(t, time.Unix(300, 0).UTC(), out[0].Date)
	assert.False(t, out[0].HasMedia)

	assert.Equal(t, 2, out[1].ID)
	assert.True(t, out[1].HasMedia)
}

func TestExtractMessages_ResponseShapes(t *testing.T) {
	msgs := []tg.MessageClass{&tg.Message{ID: 1, Message: "hi", Date: 100}}

	tests := []struct {
		name string
		resp tg.MessagesMessagesClass
		want int
	}{
		{"channel messages", &tg.MessagesChannelMessages{Messages: msgs}, 1},
		{"plain messages", &tg.MessagesMessages{Messages: msgs}, 1},
		{"slice", &tg.MessagesMessagesSlice{Messages: msgs}, 1},
		{"not modified", &tg.MessagesMessagesNotModified{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, extractMessages(tt.resp, 1), tt.want)
		})
	}
}

func TestClient_ForwardWithoutRecipient(t *testing.T) {
	c := NewClient(NewManager(Credentials{}, nil))

	err := c.Forward(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recipient not resolved")
}
