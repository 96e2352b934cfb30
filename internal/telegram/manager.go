package telegram

import (
	"context"
	"sync"

	"github.com/celestix/gotgproto"
	"gorm.io/gorm"

	"github.com/telescout/telescout/internal/logger"
)

// Credentials holds what is needed to build an MTProto client.
type Credentials struct {
	APIID         int
	APIHash       string
	SessionString string // optional seed when the database has no session
}

// ClientFactory creates the underlying protocol client. Replaceable for
// tests.
type ClientFactory func(creds Credentials, db *gorm.DB) (*gotgproto.Client, error)

// Manager owns the protocol client lifecycle: session restore on startup,
// status reporting, shutdown.
type Manager struct {
	creds Credentials
	db    *gorm.DB
	log   *logger.Logger

	client *gotgproto.Client
	status Status
	mu     sync.RWMutex

	persistentFactory ClientFactory
	stringFactory     ClientFactory
}

// NewManager creates a manager backed by the given session database.
func NewManager(creds Credentials, db *gorm.DB) *Manager {
	return &Manager{
		creds:             creds,
		db:                db,
		log:               logger.Get(),
		status:            StatusInitializing,
		persistentFactory: NewPersistentClient,
		stringFactory:     NewStringSessionClient,
	}
}

// SetFactories overrides client construction. Intended for tests.
func (m *Manager) SetFactories(persistent, str ClientFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if persistent != nil {
		m.persistentFactory = persistent
	}
	if str != nil {
		m.stringFactory = str
	}
}

// Status returns the current client status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Client returns the underlying protocol client, or nil when not ready.
func (m *Manager) Client() *gotgproto.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client
}

// Init restores a session: from the database when one exists, otherwise
// from the TG_SESSION_STRING seed. Without either the manager stays
// UNAUTHORIZED and the caller decides whether that is fatal.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	m.status = StatusInitializing
	m.mu.Unlock()

	var count int64
	if err := m.db.Table("sessions").Count(&count).Error; err != nil {
		// table does not exist on first run
		count = 0
	}

	var factory ClientFactory
	switch {
	case count > 0:
		factory = m.persistentFactory
	case m.creds.SessionString != "":
		m.log.Info().Msg("telegram: seeding session from TG_SESSION_STRING")
		factory = m.stringFactory
	default:
		m.log.Warn().Msg("telegram: no session found, run tg-auth first")
		m.mu.Lock()
		m.status = StatusUnauthorized
		m.mu.Unlock()
		return nil
	}

	client, err := factory(m.creds, m.db)
	if err != nil {
		m.log.Error().Err(err).Msg("telegram: client initialization failed")
		m.mu.Lock()
		m.status = StatusError
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.client = client
	m.status = StatusReady
	m.mu.Unlock()

	m.log.Info().Str("user", client.Self.Username).Msg("telegram: client is ready")
	return nil
}

// Stop shuts down the protocol client.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		m.client.Stop()
	}
}
