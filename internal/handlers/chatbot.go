package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/devchat/devchat-service/internal/config"
	"github.com/devchat/devchat-service/internal/middleware"
	"github.com/devchat/devchat-service/internal/models"
	"github.com/devchat/devchat-service/internal/services/cache"
	"github.com/devchat/devchat-service/internal/services/directory"
	"github.com/devchat/devchat-service/internal/services/engine"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// CreateChatbotBody is the chatbot creation payload
type CreateChatbotBody struct {
	OwnerID     string             `json:"ownerId"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	ContextData models.ContextData `json:"contextData"`
}

// UpdateContextBody is the context update payload
type UpdateContextBody struct {
	ContextData models.ContextData `json:"contextData"`
}

// ChatbotHandler serves the owner-facing chatbot management endpoints
type ChatbotHandler struct {
	cfg       *config.Config
	directory *directory.Manager
	cache     cache.Service
	engines   *engine.Registry
	metrics   *middleware.Metrics
	logger    *logrus.Logger
}

// NewChatbotHandler creates a new chatbot handler
func NewChatbotHandler(
	cfg *config.Config,
	dir *directory.Manager,
	cacheService cache.Service,
	engines *engine.Registry,
	metrics *middleware.Metrics,
	logger *logrus.Logger,
) *ChatbotHandler {
	return &ChatbotHandler{
		cfg:       cfg,
		directory: dir,
		cache:     cacheService,
		engines:   engines,
		metrics:   metrics,
		logger:    logger,
	}
}

// Create processes POST /chatbots
func (h *ChatbotHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body CreateChatbotBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if body.OwnerID == "" || body.Name == "" || body.Description == "" || body.ContextData.IsEmpty() {
		writeError(w, http.StatusBadRequest, "All fields are necessary!")
		return
	}

	bot := &models.Chatbot{
		ID:          uuid.NewString(),
		OwnerID:     body.OwnerID,
		Name:        body.Name,
		Description: body.Description,
		ContextData: body.ContextData,
	}

	if err := h.directory.CreateChatbot(r.Context(), bot); err != nil {
		h.logger.WithError(err).Error("Failed to create chatbot")
		writeError(w, http.StatusInternalServerError, "Failed to create chatbot")
		return
	}

	h.refreshListingCache(r.Context(), body.OwnerID)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Chatbot successfully created",
		"id":      bot.ID,
	})
}

// List processes GET /chatbots/{ownerId}
func (h *ChatbotHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := mux.Vars(r)["ownerId"]
	ctx := r.Context()

	if raw, found := h.cache.Get(ctx, cache.ListingKey(ownerID)); found {
		h.metrics.RecordCacheHit("listing")
		writeJSON(w, http.StatusOK, map[string]interface{}{"chatbots": json.RawMessage(raw)})
		return
	}
	h.metrics.RecordCacheMiss("listing")

	bots, err := h.directory.ListChatbots(ctx, ownerID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list chatbots")
		writeError(w, http.StatusInternalServerError, "Failed to fetch chatbots")
		return
	}
	if bots == nil {
		bots = []models.Chatbot{}
	}

	if raw, err := json.Marshal(bots); err == nil {
		if err := h.cache.Set(ctx, cache.ListingKey(ownerID), string(raw), h.cfg.Cache.ListingTTL); err != nil {
			h.logger.WithError(err).Warn("Failed to cache chatbot listing")
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"chatbots": bots})
}

// Get processes GET /chatbots/{ownerId}/{chatbotId}
func (h *ChatbotHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ownerID, chatbotID := vars["ownerId"], vars["chatbotId"]
	ctx := r.Context()

	if raw, found := h.cache.Get(ctx, cache.ChatbotKey(ownerID, chatbotID)); found {
		h.metrics.RecordCacheHit("chatbot")
		writeJSON(w, http.StatusOK, map[string]interface{}{"chatbot": json.RawMessage(raw)})
		return
	}
	h.metrics.RecordCacheMiss("chatbot")

	bot, err := h.directory.GetChatbot(ctx, ownerID, chatbotID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch chatbot")
		writeError(w, http.StatusInternalServerError, "Failed to fetch chatbot")
		return
	}
	if bot == nil {
		writeError(w, http.StatusNotFound, "Chatbot not found")
		return
	}

	if raw, err := json.Marshal(bot); err == nil {
		if err := h.cache.Set(ctx, cache.ChatbotKey(ownerID, chatbotID), string(raw), h.cfg.Cache.ListingTTL); err != nil {
			h.logger.WithError(err).Warn("Failed to cache chatbot")
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"chatbot": bot})
}

// UpdateContext processes PATCH /chatbots/{ownerId}/{chatbotId}. The context
// cache entry and the live engine are dropped in the same request, so the
// next chat rebuilds from the new context rather than riding out the TTL.
func (h *ChatbotHandler) UpdateContext(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ownerID, chatbotID := vars["ownerId"], vars["chatbotId"]
	ctx := r.Context()

	var body UpdateContextBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Context data must be a string or a string-keyed mapping")
		return
	}
	if body.ContextData.IsEmpty() {
		writeError(w, http.StatusBadRequest, "Context data must not be empty")
		return
	}

	bot, err := h.directory.UpdateContextData(ctx, ownerID, chatbotID, body.ContextData)
	if err != nil {
		h.logger.WithError(err).Error("Failed to update context data")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if bot == nil {
		writeError(w, http.StatusNotFound, "Chatbot not found")
		return
	}

	h.invalidate(ctx, ownerID, chatbotID)
	h.refreshListingCache(ctx, ownerID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Context data updated successfully",
		"data":    bot,
	})
}

// Delete processes DELETE /chatbots/{ownerId}/{chatbotId}
func (h *ChatbotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ownerID, chatbotID := vars["ownerId"], vars["chatbotId"]
	ctx := r.Context()

	bot, err := h.directory.GetChatbot(ctx, ownerID, chatbotID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch chatbot")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if bot == nil {
		writeError(w, http.StatusNotFound, "Chatbot not found")
		return
	}

	if err := h.directory.DeleteChatbot(ctx, ownerID, chatbotID); err != nil {
		h.logger.WithError(err).Error("Failed to delete chatbot")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.invalidate(ctx, ownerID, chatbotID)
	h.refreshListingCache(ctx, ownerID)

	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Chatbot deleted"})
}

// GenerateLink processes POST /chatbots/{ownerId}/{chatbotId}/link
func (h *ChatbotHandler) GenerateLink(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ownerID, chatbotID := vars["ownerId"], vars["chatbotId"]
	ctx := r.Context()

	bot, err := h.directory.GetChatbot(ctx, ownerID, chatbotID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch chatbot")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if bot == nil {
		writeError(w, http.StatusNotFound, "Chatbot not found")
		return
	}

	link := fmt.Sprintf("%s/chat/%s/%s", strings.TrimSuffix(h.cfg.Server.BaseURL, "/"), ownerID, chatbotID)
	if err := h.directory.SetEmbedLink(ctx, ownerID, chatbotID, link); err != nil {
		h.logger.WithError(err).Error("Failed to store embed link")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := h.cache.Delete(ctx, cache.ChatbotKey(ownerID, chatbotID)); err != nil {
		h.logger.WithError(err).Warn("Failed to evict chatbot cache entry")
	}
	h.refreshListingCache(ctx, ownerID)

	writeJSON(w, http.StatusOK, map[string]interface{}{"link": link})
}

// invalidate evicts every cached view of one chatbot and drops its engine
func (h *ChatbotHandler) invalidate(ctx context.Context, ownerID, chatbotID string) {
	for _, key := range []string{
		cache.ContextKey(ownerID, chatbotID),
		cache.ChatbotKey(ownerID, chatbotID),
	} {
		if err := h.cache.Delete(ctx, key); err != nil {
			h.logger.WithError(err).WithField("key", key).Warn("Failed to evict cache entry")
		}
	}
	h.engines.Invalidate(chatbotID)
}

func (h *ChatbotHandler) refreshListingCache(ctx context.Context, ownerID string) {
	bots, err := h.directory.ListChatbots(ctx, ownerID)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to refresh chatbot listing cache")
		return
	}
	raw, err := json.Marshal(bots)
	if err != nil {
		return
	}
	if err := h.cache.Set(ctx, cache.ListingKey(ownerID), string(raw), h.cfg.Cache.ListingTTL); err != nil {
		h.logger.WithError(err).Warn("Failed to refresh chatbot listing cache")
	}
}
