package directory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/devchat/devchat-service/internal/models"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// MemoryStore implements the directory in process memory, used for local
// development and tests
type MemoryStore struct {
	chatbots *gocache.Cache
	sessions *gocache.Cache
	logger   *logrus.Logger
}

func NewMemoryStore(logger *logrus.Logger) *MemoryStore {
	return &MemoryStore{
		chatbots: gocache.New(gocache.NoExpiration, gocache.NoExpiration),
		sessions: gocache.New(gocache.NoExpiration, gocache.NoExpiration),
		logger:   logger,
	}
}

func chatbotKey(ownerID, chatbotID string) string {
	return fmt.Sprintf("%s:%s", ownerID, chatbotID)
}

func (m *MemoryStore) CreateChatbot(ctx context.Context, bot *models.Chatbot) error {
	now := time.Now().UTC()
	if bot.CreatedAt.IsZero() {
		bot.CreatedAt = now
	}
	bot.UpdatedAt = now

	stored := *bot
	m.chatbots.Set(chatbotKey(bot.OwnerID, bot.ID), &stored, gocache.NoExpiration)
	return nil
}

func (m *MemoryStore) ListChatbots(ctx context.Context, ownerID string) ([]models.Chatbot, error) {
	var bots []models.Chatbot
	for _, item := range m.chatbots.Items() {
		bot := item.Object.(*models.Chatbot)
		if bot.OwnerID == ownerID {
			bots = append(bots, *bot)
		}
	}
	sort.Slice(bots, func(i, j int) bool {
		return bots[i].CreatedAt.After(bots[j].CreatedAt)
	})
	return bots, nil
}

func (m *MemoryStore) GetChatbot(ctx context.Context, ownerID, chatbotID string) (*models.Chatbot, error) {
	if val, found := m.chatbots.Get(chatbotKey(ownerID, chatbotID)); found {
		bot := *val.(*models.Chatbot)
		return &bot, nil
	}
	return nil, nil
}

func (m *MemoryStore) UpdateContextData(ctx context.Context, ownerID, chatbotID string, data models.ContextData) (*models.Chatbot, error) {
	val, found := m.chatbots.Get(chatbotKey(ownerID, chatbotID))
	if !found {
		return nil, nil
	}

	bot := *val.(*models.Chatbot)
	bot.ContextData = data
	bot.UpdatedAt = time.Now().UTC()
	m.chatbots.Set(chatbotKey(ownerID, chatbotID), &bot, gocache.NoExpiration)

	updated := bot
	return &updated, nil
}

func (m *MemoryStore) SetEmbedLink(ctx context.Context, ownerID, chatbotID, link string) error {
	val, found := m.chatbots.Get(chatbotKey(ownerID, chatbotID))
	if !found {
		return fmt.Errorf("chatbot not found: %s", chatbotID)
	}

	bot := *val.(*models.Chatbot)
	bot.EmbedLink = link
	bot.UpdatedAt = time.Now().UTC()
	m.chatbots.Set(chatbotKey(ownerID, chatbotID), &bot, gocache.NoExpiration)
	return nil
}

func (m *MemoryStore) DeleteChatbot(ctx context.Context, ownerID, chatbotID string) error {
	m.chatbots.Delete(chatbotKey(ownerID, chatbotID))
	return nil
}

func (m *MemoryStore) CreateSession(ctx context.Context, session *models.Session) error {
	if session.SessionStart.IsZero() {
		session.SessionStart = time.Now().UTC()
	}
	stored := *session
	m.sessions.Set(session.SessionID, &stored, gocache.NoExpiration)
	return nil
}

func (m *MemoryStore) ListSessions(ctx context.Context, ownerID, chatbotID string) ([]models.Session, error) {
	var sessions []models.Session
	for _, item := range m.sessions.Items() {
		session := item.Object.(*models.Session)
		if session.OwnerID == ownerID && session.ChatbotID == chatbotID {
			sessions = append(sessions, *session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].SessionStart.After(sessions[j].SessionStart)
	})
	return sessions, nil
}

func (m *MemoryStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	if val, found := m.sessions.Get(sessionID); found {
		session := *val.(*models.Session)
		return &session, nil
	}
	return nil, nil
}

func (m *MemoryStore) Close(ctx context.Context) error {
	return nil
}
