package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/devchat/devchat-service/internal/config"
	"github.com/devchat/devchat-service/internal/middleware"
	"github.com/devchat/devchat-service/internal/models"
	"github.com/sirupsen/logrus"
)

// Store defines the durable chatbot and session directory. Lookups for
// records that do not exist return (nil, nil) rather than an error.
type Store interface {
	// Chatbot operations
	CreateChatbot(ctx context.Context, bot *models.Chatbot) error
	ListChatbots(ctx context.Context, ownerID string) ([]models.Chatbot, error)
	GetChatbot(ctx context.Context, ownerID, chatbotID string) (*models.Chatbot, error)
	UpdateContextData(ctx context.Context, ownerID, chatbotID string, data models.ContextData) (*models.Chatbot, error)
	SetEmbedLink(ctx context.Context, ownerID, chatbotID, link string) error
	DeleteChatbot(ctx context.Context, ownerID, chatbotID string) error

	// Session operations
	CreateSession(ctx context.Context, session *models.Session) error
	ListSessions(ctx context.Context, ownerID, chatbotID string) ([]models.Session, error)
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)

	Close(ctx context.Context) error
}

// Manager fronts the configured store backend and records operation metrics
type Manager struct {
	store   Store
	metrics *middleware.Metrics
	logger  *logrus.Logger
}

// NewManager creates a new directory manager
func NewManager(cfg *config.Config, metrics *middleware.Metrics, logger *logrus.Logger) (*Manager, error) {
	var store Store
	var err error

	switch cfg.Storage.Type {
	case "mongo":
		store, err = NewMongoStore(cfg, logger)
		if err != nil {
			return nil, err
		}
	case "memory":
		store = NewMemoryStore(logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	return &Manager{store: store, metrics: metrics, logger: logger}, nil
}

// NewManagerWithStore wraps an existing store, used by tests
func NewManagerWithStore(store Store, metrics *middleware.Metrics, logger *logrus.Logger) *Manager {
	return &Manager{store: store, metrics: metrics, logger: logger}
}

func (m *Manager) observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	if m.metrics != nil {
		m.metrics.RecordDirectoryOperation(operation, status, time.Since(start))
	}
}

func (m *Manager) CreateChatbot(ctx context.Context, bot *models.Chatbot) error {
	start := time.Now()
	err := m.store.CreateChatbot(ctx, bot)
	m.observe("create_chatbot", start, err)
	return err
}

func (m *Manager) ListChatbots(ctx context.Context, ownerID string) ([]models.Chatbot, error) {
	start := time.Now()
	bots, err := m.store.ListChatbots(ctx, ownerID)
	m.observe("list_chatbots", start, err)
	return bots, err
}

func (m *Manager) GetChatbot(ctx context.Context, ownerID, chatbotID string) (*models.Chatbot, error) {
	start := time.Now()
	bot, err := m.store.GetChatbot(ctx, ownerID, chatbotID)
	m.observe("get_chatbot", start, err)
	return bot, err
}

func (m *Manager) UpdateContextData(ctx context.Context, ownerID, chatbotID string, data models.ContextData) (*models.Chatbot, error) {
	start := time.Now()
	bot, err := m.store.UpdateContextData(ctx, ownerID, chatbotID, data)
	m.observe("update_context", start, err)
	return bot, err
}

func (m *Manager) SetEmbedLink(ctx context.Context, ownerID, chatbotID, link string) error {
	start := time.Now()
	err := m.store.SetEmbedLink(ctx, ownerID, chatbotID, link)
	m.observe("set_embed_link", start, err)
	return err
}

func (m *Manager) DeleteChatbot(ctx context.Context, ownerID, chatbotID string) error {
	start := time.Now()
	err := m.store.DeleteChatbot(ctx, ownerID, chatbotID)
	m.observe("delete_chatbot", start, err)
	return err
}

func (m *Manager) CreateSession(ctx context.Context, session *models.Session) error {
	start := time.Now()
	err := m.store.CreateSession(ctx, session)
	m.observe("create_session", start, err)
	return err
}

func (m *Manager) ListSessions(ctx context.Context, ownerID, chatbotID string) ([]models.Session, error) {
	start := time.Now()
	sessions, err := m.store.ListSessions(ctx, ownerID, chatbotID)
	m.observe("list_sessions", start, err)
	return sessions, err
}

func (m *Manager) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	start := time.Now()
	session, err := m.store.GetSession(ctx, sessionID)
	m.observe("get_session", start, err)
	return session, err
}

func (m *Manager) Close(ctx context.Context) error {
	return m.store.Close(ctx)
}
