package telegram

import (
	"time"
)

// Channel is a resolved monitored channel.
type Channel struct {
	ID         int64  // channel id (positive MTProto form)
	AccessHash int64  // access hash for api calls
	Username   string // username without @, empty for id-only channels
	Title      string // channel title
}

// Message is a read-only view of a channel message. The pipeline never
// mutates it.
type Message struct {
	ID        int       // message id (unique within channel)
	ChannelID int64     // owning channel id
	Text      string    // message text or media caption
	Date      time.Time // message creation timestamp
	HasMedia  bool      // message carries media
}

// Status represents the Telegram client lifecycle state.
type Status string

const (
	StatusInitializing Status = "INITIALIZING"
	StatusReady        Status = "READY"
	StatusUnauthorized Status = "UNAUTHORIZED"
	StatusError        Status = "ERROR"
)
