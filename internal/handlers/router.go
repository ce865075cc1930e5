package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires all endpoints onto a mux router
func NewRouter(chat *ChatHandler, chatbots *ChatbotHandler, sessions *SessionHandler) *mux.Router {
	r := mux.NewRouter()

	// Public chat endpoint
	r.HandleFunc("/chat/{ownerId}/{chatbotId}", chat.HandleChat).Methods(http.MethodPost)

	// Owner-facing chatbot management
	r.HandleFunc("/chatbots", chatbots.Create).Methods(http.MethodPost)
	r.HandleFunc("/chatbots/{ownerId}", chatbots.List).Methods(http.MethodGet)
	r.HandleFunc("/chatbots/{ownerId}/{chatbotId}", chatbots.Get).Methods(http.MethodGet)
	r.HandleFunc("/chatbots/{ownerId}/{chatbotId}", chatbots.UpdateContext).Methods(http.MethodPatch)
	r.HandleFunc("/chatbots/{ownerId}/{chatbotId}", chatbots.Delete).Methods(http.MethodDelete)
	r.HandleFunc("/chatbots/{ownerId}/{chatbotId}/link", chatbots.GenerateLink).Methods(http.MethodPost)

	// Session analytics; the detail route must win over the list route
	r.HandleFunc("/sessions", sessions.Create).Methods(http.MethodPost)
	r.HandleFunc("/sessions/detail/{sessionId}", sessions.Detail).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{ownerId}/{chatbotId}", sessions.List).Methods(http.MethodGet)
	r.HandleFunc("/analytics/{ownerId}/{chatbotId}", sessions.Analytics).Methods(http.MethodGet)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
