package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/devchat/devchat-service/internal/i18n"
	"github.com/devchat/devchat-service/internal/middleware"
	"github.com/devchat/devchat-service/internal/services/chat"
	"github.com/devchat/devchat-service/pkg/markdown"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// ChatRequestBody is the inbound chat message payload
type ChatRequestBody struct {
	Message string   `json:"message"`
	History []string `json:"history,omitempty"`
}

// ChatResponseBody is the successful chat reply payload
type ChatResponseBody struct {
	Response string `json:"response"`
	HTML     string `json:"html,omitempty"`
}

// ChatHandler serves the public chat endpoint
type ChatHandler struct {
	pipeline    *chat.Pipeline
	rateLimiter middleware.RateLimiter
	localizer   *i18n.Localizer
	metrics     *middleware.Metrics
	logger      *logrus.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(
	pipeline *chat.Pipeline,
	rateLimiter middleware.RateLimiter,
	localizer *i18n.Localizer,
	metrics *middleware.Metrics,
	logger *logrus.Logger,
) *ChatHandler {
	return &ChatHandler{
		pipeline:    pipeline,
		rateLimiter: rateLimiter,
		localizer:   localizer,
		metrics:     metrics,
		logger:      logger,
	}
}

// HandleChat processes POST /chat/{ownerId}/{chatbotId}
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	vars := mux.Vars(r)
	ownerID := vars["ownerId"]
	chatbotID := vars["chatbotId"]
	lang := h.localizer.MatchLanguage(r.Header.Get("Accept-Language"))

	identity := middleware.ClientIP(r)
	if !h.rateLimiter.Allow(identity) {
		h.metrics.RecordRateLimitRejection()
		h.metrics.RecordChatRequest("rate_limited", time.Since(start))
		writeError(w, http.StatusTooManyRequests, h.localizer.Get(lang, i18n.MsgRateLimitExceeded, nil))
		return
	}

	var body ChatRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.metrics.RecordChatRequest("bad_request", time.Since(start))
		writeError(w, http.StatusBadRequest, h.localizer.Get(lang, i18n.MsgInvalidRequest, nil))
		return
	}

	response, err := h.pipeline.Handle(r.Context(), chat.Request{
		OwnerID:   ownerID,
		ChatbotID: chatbotID,
		Message:   body.Message,
		History:   body.History,
	})
	if err != nil {
		h.respondError(w, r, lang, err, start)
		return
	}

	h.metrics.RecordChatRequest("success", time.Since(start))

	resp := ChatResponseBody{Response: response}
	if r.URL.Query().Get("format") == "html" {
		resp.HTML = markdown.ToWidgetHTML(response)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ChatHandler) respondError(w http.ResponseWriter, r *http.Request, lang string, err error, start time.Time) {
	var cerr *chat.Error
	reason := ""
	if errors.As(err, &cerr) {
		reason = cerr.Reason
	}

	code := chat.CodeOf(err)
	h.logger.WithError(err).WithFields(logrus.Fields{
		"code":   code,
		"reason": reason,
		"path":   r.URL.Path,
	}).Warn("Chat request failed")

	var status int
	var message string

	switch code {
	case chat.CodeBadRequest:
		status = http.StatusBadRequest
		if reason == "missing_parameters" {
			message = h.localizer.Get(lang, i18n.MsgInvalidRequest, nil)
		} else {
			message = h.localizer.Get(lang, i18n.MsgMessageRequired, nil)
		}
	case chat.CodeNotFound:
		status = http.StatusNotFound
		if reason == "no_context_data" {
			message = h.localizer.Get(lang, i18n.MsgNoContextData, nil)
		} else {
			message = h.localizer.Get(lang, i18n.MsgChatbotNotFound, nil)
		}
	case chat.CodeInvalidContext:
		status = http.StatusBadRequest
		message = h.localizer.Get(lang, i18n.MsgInvalidContext, nil)
	case chat.CodeModelUnavailable:
		status = http.StatusInternalServerError
		details := ""
		if cerr != nil && cerr.Err != nil {
			details = cerr.Err.Error()
		}
		message = h.localizer.Get(lang, i18n.MsgModelTrouble, map[string]interface{}{"Details": details})
	default:
		status = http.StatusInternalServerError
		message = h.localizer.Get(lang, i18n.MsgInternalError, nil)
	}

	h.metrics.RecordChatRequest(statusLabel(code), time.Since(start))
	writeError(w, status, message)
}

func statusLabel(code chat.Code) string {
	switch code {
	case chat.CodeBadRequest:
		return "bad_request"
	case chat.CodeNotFound:
		return "not_found"
	case chat.CodeInvalidContext:
		return "invalid_context"
	case chat.CodeModelUnavailable:
		return "model_unavailable"
	default:
		return "internal_error"
	}
}
