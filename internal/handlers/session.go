package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/devchat/devchat-service/internal/config"
	"github.com/devchat/devchat-service/internal/i18n"
	"github.com/devchat/devchat-service/internal/middleware"
	"github.com/devchat/devchat-service/internal/models"
	"github.com/devchat/devchat-service/internal/services/cache"
	"github.com/devchat/devchat-service/internal/services/directory"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// CreateSessionBody is the analytics session payload
type CreateSessionBody struct {
	SessionID       string     `json:"sessionId"`
	OwnerID         string     `json:"ownerId"`
	ChatbotID       string     `json:"chatbotId"`
	UserAction      string     `json:"userAction"`
	SessionStart    *time.Time `json:"sessionStart,omitempty"`
	SessionEnd      *time.Time `json:"sessionEnd,omitempty"`
	Duration        int64      `json:"duration,omitempty"`
	Location        string     `json:"location,omitempty"`
	InteractionData string     `json:"interactionData,omitempty"`
}

// SessionHandler serves the session analytics endpoints
type SessionHandler struct {
	cfg       *config.Config
	directory *directory.Manager
	cache     cache.Service
	localizer *i18n.Localizer
	metrics   *middleware.Metrics
	logger    *logrus.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(
	cfg *config.Config,
	dir *directory.Manager,
	cacheService cache.Service,
	localizer *i18n.Localizer,
	metrics *middleware.Metrics,
	logger *logrus.Logger,
) *SessionHandler {
	return &SessionHandler{
		cfg:       cfg,
		directory: dir,
		cache:     cacheService,
		localizer: localizer,
		metrics:   metrics,
		logger:    logger,
	}
}

// Create processes POST /sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body CreateSessionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if body.OwnerID == "" || body.ChatbotID == "" || body.UserAction == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	session := &models.Session{
		SessionID:       body.SessionID,
		OwnerID:         body.OwnerID,
		ChatbotID:       body.ChatbotID,
		UserAction:      body.UserAction,
		SessionEnd:      body.SessionEnd,
		Duration:        body.Duration,
		IPAddress:       middleware.ClientIP(r),
		Location:        body.Location,
		InteractionData: body.InteractionData,
	}
	if session.SessionID == "" {
		session.SessionID = uuid.NewString()
	}
	if body.SessionStart != nil {
		session.SessionStart = *body.SessionStart
	}

	if err := h.directory.CreateSession(r.Context(), session); err != nil {
		h.logger.WithError(err).Error("Failed to store session")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	// The cached session list for this chatbot is now stale
	if err := h.cache.Delete(r.Context(), cache.SessionListKey(body.OwnerID, body.ChatbotID)); err != nil {
		h.logger.WithError(err).Warn("Failed to evict session list cache")
	}

	h.metrics.RecordSession(body.UserAction)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": session,
		"message": "Session stored successfully",
	})
}

// List processes GET /sessions/{ownerId}/{chatbotId}
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ownerID, chatbotID := vars["ownerId"], vars["chatbotId"]
	ctx := r.Context()

	if raw, found := h.cache.Get(ctx, cache.SessionListKey(ownerID, chatbotID)); found {
		h.metrics.RecordCacheHit("sessions")
		writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": json.RawMessage(raw)})
		return
	}
	h.metrics.RecordCacheMiss("sessions")

	sessions, err := h.directory.ListSessions(ctx, ownerID, chatbotID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list sessions")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if len(sessions) == 0 {
		lang := h.localizer.MatchLanguage(r.Header.Get("Accept-Language"))
		writeError(w, http.StatusNotFound, h.localizer.Get(lang, i18n.MsgNoSessions, nil))
		return
	}

	if raw, err := json.Marshal(sessions); err == nil {
		if err := h.cache.Set(ctx, cache.SessionListKey(ownerID, chatbotID), string(raw), h.cfg.Cache.SessionTTL); err != nil {
			h.logger.WithError(err).Warn("Failed to cache session list")
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// Detail processes GET /sessions/detail/{sessionId}
func (h *SessionHandler) Detail(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]
	ctx := r.Context()

	if raw, found := h.cache.Get(ctx, cache.SessionKey(sessionID)); found {
		h.metrics.RecordCacheHit("session_detail")
		writeJSON(w, http.StatusOK, map[string]interface{}{"session": json.RawMessage(raw)})
		return
	}
	h.metrics.RecordCacheMiss("session_detail")

	session, err := h.directory.GetSession(ctx, sessionID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch session")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if session == nil {
		lang := h.localizer.MatchLanguage(r.Header.Get("Accept-Language"))
		writeError(w, http.StatusNotFound, h.localizer.Get(lang, i18n.MsgSessionNotFound, nil))
		return
	}

	if raw, err := json.Marshal(session); err == nil {
		if err := h.cache.Set(ctx, cache.SessionKey(sessionID), string(raw), h.cfg.Cache.SessionTTL); err != nil {
			h.logger.WithError(err).Warn("Failed to cache session details")
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

// Analytics processes GET /analytics/{ownerId}/{chatbotId}
func (h *SessionHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ownerID, chatbotID := vars["ownerId"], vars["chatbotId"]

	sessions, err := h.directory.ListSessions(r.Context(), ownerID, chatbotID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list sessions")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	analytics := models.ChatbotAnalytics{
		OwnerID:       ownerID,
		ChatbotID:     chatbotID,
		TotalSessions: len(sessions),
		ActionCounts:  make(map[string]int),
	}
	for _, s := range sessions {
		analytics.TotalDuration += s.Duration
		analytics.ActionCounts[s.UserAction]++
	}
	if analytics.TotalSessions > 0 {
		analytics.AverageDuration = float64(analytics.TotalDuration) / float64(analytics.TotalSessions)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"analytics": analytics})
}
