package chat

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/devchat/devchat-service/internal/config"
	"github.com/devchat/devchat-service/internal/middleware"
	"github.com/devchat/devchat-service/internal/models"
	"github.com/devchat/devchat-service/internal/services/cache"
	"github.com/devchat/devchat-service/internal/services/directory"
	"github.com/devchat/devchat-service/internal/services/engine"
	"github.com/devchat/devchat-service/pkg/logger"
	"github.com/sirupsen/logrus"
)

// defaultStarters are the fixed engagement phrases appended to every
// successful reply
var defaultStarters = []string{
	"Is there anything else you'd like to know?",
	"What do you think about that?",
	"Pretty interesting, right?",
	"Does that help? Let me know if you need more details!",
}

// Request carries one inbound chat message through the pipeline. History
// entries alternate user/assistant, starting with the user.
type Request struct {
	OwnerID   string
	ChatbotID string
	Message   string
	History   []string
}

// Pipeline orchestrates a chat request: resolve the chatbot context
// (cache-first), get or create the conversation engine, invoke the model and
// post-process the reply.
type Pipeline struct {
	directory *directory.Manager
	cache     cache.Service
	engines   *engine.Registry

	contextTTL      time.Duration
	maxMessageBytes int
	starters        []string

	metrics *middleware.Metrics
	logger  *logrus.Logger
}

// NewPipeline creates a new chat pipeline
func NewPipeline(
	cfg *config.Config,
	dir *directory.Manager,
	cacheService cache.Service,
	engines *engine.Registry,
	metrics *middleware.Metrics,
	logger *logrus.Logger,
) *Pipeline {
	starters := cfg.Chat.Starters
	if len(starters) == 0 {
		starters = defaultStarters
	}

	return &Pipeline{
		directory:       dir,
		cache:           cacheService,
		engines:         engines,
		contextTTL:      cfg.Cache.ContextTTL,
		maxMessageBytes: cfg.Chat.MaxMessageBytes,
		starters:        starters,
		metrics:         metrics,
		logger:          logger,
	}
}

// Handle runs the full pipeline for one admitted request and returns the
// post-processed reply.
func (p *Pipeline) Handle(ctx context.Context, req Request) (string, error) {
	if req.OwnerID == "" || req.ChatbotID == "" {
		return "", newError(CodeBadRequest, "missing_parameters", nil)
	}
	if req.Message == "" {
		return "", newError(CodeBadRequest, "message_required", nil)
	}
	if p.maxMessageBytes > 0 && len(req.Message) > p.maxMessageBytes {
		return "", newError(CodeBadRequest, "message_too_long", nil)
	}

	instruction, err := p.ResolveContext(ctx, req.OwnerID, req.ChatbotID)
	if err != nil {
		return "", err
	}

	eng := p.engines.GetOrCreate(req.ChatbotID, instruction, historyMessages(req.History))

	reply, err := eng.Reply(ctx, req.Message)
	if err != nil {
		return "", newError(CodeModelUnavailable, "model_call_failed", err)
	}

	return reply + " " + p.starters[rand.Intn(len(p.starters))], nil
}

// ResolveContext returns the normalized instruction for a chatbot,
// consulting the cache before the directory. On a miss the raw
// (pre-normalization) context value is written back with the configured TTL;
// concurrent misses may each read the directory and each write the cache,
// with last write winning.
func (p *Pipeline) ResolveContext(ctx context.Context, ownerID, chatbotID string) (string, error) {
	key := cache.ContextKey(ownerID, chatbotID)

	if raw, found := p.cache.Get(ctx, key); found {
		if p.metrics != nil {
			p.metrics.RecordCacheHit("context")
		}
		var data models.ContextData
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return "", newError(CodeInvalidContext, "cached_context_malformed", err)
		}
		if data.IsEmpty() {
			return "", newError(CodeNotFound, "no_context_data", nil)
		}
		return data.Instruction(), nil
	}
	if p.metrics != nil {
		p.metrics.RecordCacheMiss("context")
	}

	bot, err := p.directory.GetChatbot(ctx, ownerID, chatbotID)
	if err != nil {
		if errors.Is(err, models.ErrInvalidShape) {
			return "", newError(CodeInvalidContext, "invalid_context_data", err)
		}
		return "", newError(CodeInternal, "directory_read_failed", err)
	}
	if bot == nil {
		return "", newError(CodeNotFound, "chatbot_not_found", nil)
	}
	if bot.ContextData.IsEmpty() {
		return "", newError(CodeNotFound, "no_context_data", nil)
	}

	raw, err := json.Marshal(bot.ContextData)
	if err != nil {
		return "", newError(CodeInternal, "context_marshal_failed", err)
	}
	if err := p.cache.Set(ctx, key, string(raw), p.contextTTL); err != nil {
		// A failed cache write only costs the next request a directory read
		logger.WithChatbot(p.logger, ownerID, chatbotID).WithError(err).
			Warn("Failed to populate context cache")
	}

	return bot.ContextData.Instruction(), nil
}

// historyMessages converts the wire history (alternating user/assistant
// lines) into conversation messages
func historyMessages(history []string) []models.Message {
	if len(history) == 0 {
		return nil
	}
	messages := make([]models.Message, 0, len(history))
	for i, line := range history {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		messages = append(messages, models.Message{Role: role, Content: line})
	}
	return messages
}
