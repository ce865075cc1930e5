package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/devchat/devchat-service/internal/config"
	"github.com/devchat/devchat-service/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	chatbotsCollection = "chatbots"
	sessionsCollection = "sessions"
)

// MongoStore implements the directory on MongoDB
type MongoStore struct {
	client   *mongo.Client
	chatbots *mongo.Collection
	sessions *mongo.Collection
	logger   *logrus.Logger
}

func NewMongoStore(cfg *config.Config, logger *logrus.Logger) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Storage.Mongo.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Storage.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(cfg.Storage.Mongo.Database)

	return &MongoStore{
		client:   client,
		chatbots: db.Collection(chatbotsCollection),
		sessions: db.Collection(sessionsCollection),
		logger:   logger,
	}, nil
}

func (s *MongoStore) CreateChatbot(ctx context.Context, bot *models.Chatbot) error {
	now := time.Now().UTC()
	if bot.CreatedAt.IsZero() {
		bot.CreatedAt = now
	}
	bot.UpdatedAt = now

	if _, err := s.chatbots.InsertOne(ctx, bot); err != nil {
		return fmt.Errorf("failed to insert chatbot: %w", err)
	}
	return nil
}

func (s *MongoStore) ListChatbots(ctx context.Context, ownerID string) ([]models.Chatbot, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.chatbots.Find(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list chatbots: %w", err)
	}
	defer cursor.Close(ctx)

	var bots []models.Chatbot
	if err := cursor.All(ctx, &bots); err != nil {
		return nil, fmt.Errorf("failed to decode chatbots: %w", err)
	}
	return bots, nil
}

func (s *MongoStore) GetChatbot(ctx context.Context, ownerID, chatbotID string) (*models.Chatbot, error) {
	var bot models.Chatbot
	err := s.chatbots.FindOne(ctx, bson.M{"_id": chatbotID, "ownerId": ownerID}).Decode(&bot)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chatbot: %w", err)
	}
	return &bot, nil
}

func (s *MongoStore) UpdateContextData(ctx context.Context, ownerID, chatbotID string, data models.ContextData) (*models.Chatbot, error) {
	update := bson.M{"$set": bson.M{
		"contextData": data,
		"updatedAt":   time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var bot models.Chatbot
	err := s.chatbots.FindOneAndUpdate(ctx, bson.M{"_id": chatbotID, "ownerId": ownerID}, update, opts).Decode(&bot)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update context data: %w", err)
	}
	return &bot, nil
}

func (s *MongoStore) SetEmbedLink(ctx context.Context, ownerID, chatbotID, link string) error {
	update := bson.M{"$set": bson.M{
		"embedLink": link,
		"updatedAt": time.Now().UTC(),
	}}
	res, err := s.chatbots.UpdateOne(ctx, bson.M{"_id": chatbotID, "ownerId": ownerID}, update)
	if err != nil {
		return fmt.Errorf("failed to set embed link: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("chatbot not found: %s", chatbotID)
	}
	return nil
}

func (s *MongoStore) DeleteChatbot(ctx context.Context, ownerID, chatbotID string) error {
	if _, err := s.chatbots.DeleteOne(ctx, bson.M{"_id": chatbotID, "ownerId": ownerID}); err != nil {
		return fmt.Errorf("failed to delete chatbot: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateSession(ctx context.Context, session *models.Session) error {
	if session.SessionStart.IsZero() {
		session.SessionStart = time.Now().UTC()
	}
	if _, err := s.sessions.InsertOne(ctx, session); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (s *MongoStore) ListSessions(ctx context.Context, ownerID, chatbotID string) ([]models.Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "sessionStart", Value: -1}})
	cursor, err := s.sessions.Find(ctx, bson.M{"ownerId": ownerID, "chatbotId": chatbotID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []models.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}
	return sessions, nil
}

func (s *MongoStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var session models.Session
	err := s.sessions.FindOne(ctx, bson.M{"sessionId": sessionID}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}
	return &session, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
