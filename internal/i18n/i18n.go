package i18n

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/devchat/devchat-service/internal/config"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// Localizer manages internationalization of user-facing messages
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	localizers      map[string]*i18n.Localizer
	matcher         language.Matcher
	tags            []language.Tag
}

// NewLocalizer creates a new localizer
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	localizers := make(map[string]*i18n.Localizer)
	tags := make([]language.Tag, 0, len(cfg.Languages))
	for _, lang := range cfg.Languages {
		path := filepath.Join(cfg.Directory, lang+".json")
		if _, err := bundle.LoadMessageFile(path); err != nil {
			return nil, fmt.Errorf("failed to load language file %s: %w", path, err)
		}
		localizers[lang] = i18n.NewLocalizer(bundle, lang)

		tag, err := language.Parse(lang)
		if err != nil {
			return nil, fmt.Errorf("invalid language %q: %w", lang, err)
		}
		tags = append(tags, tag)
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: cfg.DefaultLanguage,
		localizers:      localizers,
		matcher:         language.NewMatcher(tags),
		tags:            tags,
	}, nil
}

// Get returns a localized message
func (l *Localizer) Get(lang, messageID string, data map[string]interface{}) string {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID // Fallback to message ID
	}

	return msg
}

// MatchLanguage picks the best configured language for an Accept-Language
// header value
func (l *Localizer) MatchLanguage(acceptLanguage string) string {
	if acceptLanguage == "" {
		return l.defaultLanguage
	}
	desired, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(desired) == 0 {
		return l.defaultLanguage
	}
	_, idx, conf := l.matcher.Match(desired...)
	if conf == language.No {
		return l.defaultLanguage
	}
	base, _ := l.tags[idx].Base()
	return base.String()
}

// Message IDs
const (
	MsgRateLimitExceeded = "rate_limit_exceeded"
	MsgInvalidRequest    = "invalid_request"
	MsgMessageRequired   = "message_required"
	MsgChatbotNotFound   = "chatbot_not_found"
	MsgInvalidContext    = "invalid_context_data"
	MsgModelTrouble      = "model_trouble"
	MsgInternalError     = "internal_error"
	MsgNoContextData     = "no_context_data"
	MsgSessionNotFound   = "session_not_found"
	MsgNoSessions        = "no_sessions"
)
