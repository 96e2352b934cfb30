package telegram

import (
	"fmt"

	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/sessionMaker"
	"gorm.io/gorm"
)

// NewPersistentClient creates a client whose session lives in the database.
// Auth key refreshes are persisted back automatically, so a session survives
// restarts the way the original .session file did.
func NewPersistentClient(creds Credentials, db *gorm.DB) (*gotgproto.Client, error) {
	client, err := gotgproto.NewClient(
		creds.APIID,
		creds.APIHash,
		gotgproto.ClientTypePhone(""), // empty: use stored session
		&gotgproto.ClientOpts{
			Session:          sessionMaker.SqlSession(db.Dialector),
			DisableCopyright: true,
			InMemory:         false,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("create persistent telegram client: %w", err)
	}
	return client, nil
}

// NewStringSessionClient creates a client from an exported session string.
// Used to seed a fresh database from TG_SESSION_STRING.
func NewStringSessionClient(creds Credentials, _ *gorm.DB) (*gotgproto.Client, error) {
	client, err := gotgproto.NewClient(
		creds.APIID,
		creds.APIHash,
		gotgproto.ClientTypePhone(""),
		&gotgproto.ClientOpts{
			Session:          sessionMaker.StringSession(creds.SessionString),
			DisableCopyright: true,
			InMemory:         true,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("create string-session telegram client: %w", err)
	}
	return client, nil
}
