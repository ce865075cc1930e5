package engine

import (
	"sync"

	"github.com/devchat/devchat-service/internal/config"
	"github.com/devchat/devchat-service/internal/middleware"
	"github.com/devchat/devchat-service/internal/models"
	"github.com/devchat/devchat-service/internal/services/ai"
	"github.com/sirupsen/logrus"
)

// Registry maps chatbot id to its live engine. Lookups and inserts share one
// mutex so concurrent first requests for the same chatbot converge on a
// single instance.
type Registry struct {
	mu      sync.Mutex
	engines map[string]*Engine

	ai       ai.Service
	persona  string
	maxTurns int
	metrics  *middleware.Metrics
	logger   *logrus.Logger
}

// NewRegistry creates a new engine registry
func NewRegistry(cfg *config.ChatConfig, aiService ai.Service, metrics *middleware.Metrics, logger *logrus.Logger) *Registry {
	persona := cfg.Persona
	if persona == "" {
		persona = DefaultPersona
	}

	return &Registry{
		engines:  make(map[string]*Engine),
		ai:       aiService,
		persona:  persona,
		maxTurns: cfg.MaxHistoryTurns,
		metrics:  metrics,
		logger:   logger,
	}
}

// GetOrCreate returns the existing engine for the chatbot, or constructs one
// bound to the given instruction and seeded with the given history. The
// instruction and history arguments are ignored when an engine already
// exists; a context update must go through Invalidate to take effect.
func (r *Registry) GetOrCreate(chatbotID, instruction string, history []models.Message) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, exists := r.engines[chatbotID]; exists {
		return e
	}

	seeded := make([]models.Message, len(history))
	copy(seeded, history)

	e := &Engine{
		chatbotID:   chatbotID,
		instruction: instruction,
		persona:     r.persona,
		maxTurns:    r.maxTurns,
		ai:          r.ai,
		logger:      r.logger,
		history:     seeded,
	}
	r.engines[chatbotID] = e

	r.logger.WithField("chatbot_id", chatbotID).Debug("Conversation engine created")
	if r.metrics != nil {
		r.metrics.SetActiveEngines(float64(len(r.engines)))
	}

	return e
}

// Invalidate drops the engine for a chatbot so the next request rebuilds it
// from fresh context. Called synchronously by the context update and delete
// paths.
func (r *Registry) Invalidate(chatbotID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.engines[chatbotID]; !exists {
		return
	}
	delete(r.engines, chatbotID)

	r.logger.WithField("chatbot_id", chatbotID).Debug("Conversation engine invalidated")
	if r.metrics != nil {
		r.metrics.SetActiveEngines(float64(len(r.engines)))
	}
}

// Len returns the number of live engines
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}
