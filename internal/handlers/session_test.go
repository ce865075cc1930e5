package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/devchat/devchat-service/internal/models"
	"github.com/stretchr/testify/require"
)

func createSession(t *testing.T, srv *testServer, body CreateSessionBody) models.Session {
	t.Helper()
	rec := srv.post(t, "/sessions", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Session models.Session `json:"session"`
		Message string         `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Session stored successfully", resp.Message)
	return resp.Session
}

func TestCreateSession(t *testing.T) {
	srv := newTestServer(t, &mockModel{reply: "ok"}, 0)

	start := time.Now().UTC().Truncate(time.Second)
	session := createSession(t, srv, CreateSessionBody{
		OwnerID:      "owner-1",
		ChatbotID:    "bot-1",
		UserAction:   "widget_opened",
		SessionStart: &start,
		Duration:     42,
	})
	require.NotEmpty(t, session.SessionID)
	require.NotEmpty(t, session.IPAddress)
	require.Equal(t, int64(42), session.Duration)
}

func TestCreateSessionMissingFields(t *testing.T) {
	srv := newTestServer(t, &mockModel{reply: "ok"}, 0)

	rec := srv.post(t, "/sessions", CreateSessionBody{OwnerID: "owner-1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Missing required fields", decodeBody(t, rec)["error"])
}

func TestListSessions(t *testing.T) {
	srv := newTestServer(t, &mockModel{reply: "ok"}, 0)

	createSession(t, srv, CreateSessionBody{
		OwnerID: "owner-1", ChatbotID: "bot-1", UserAction: "widget_opened",
	})
	createSession(t, srv, CreateSessionBody{
		OwnerID: "owner-1", ChatbotID: "bot-1", UserAction: "message_sent",
	})

	rec := srv.get(t, "/sessions/owner-1/bot-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Sessions []models.Session `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Sessions, 2)

	// Cached listing matches the stored one
	rec2 := srv.get(t, "/sessions/owner-1/bot-1")
	require.Equal(t, http.StatusOK, rec2.Code)
	require.JSONEq(t, rec.Body.String(), rec2.Body.String())
}

func TestListSessionsEmpty(t *testing.T) {
	srv := newTestServer(t, &mockModel{reply: "ok"}, 0)

	rec := srv.get(t, "/sessions/owner-1/bot-1")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "No sessions found for this chatbot", decodeBody(t, rec)["error"])
}

func TestSessionNotFoundIsLocalized(t *testing.T) {
	srv := newTestServer(t, &mockModel{reply: "ok"}, 0)

	req := httptest.NewRequest(http.MethodGet, "/sessions/owner-1/bot-1", nil)
	req.Header.Set("Accept-Language", "es")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "No se encontraron sesiones para este chatbot", decodeBody(t, rec)["error"])

	req = httptest.NewRequest(http.MethodGet, "/sessions/detail/unknown", nil)
	req.Header.Set("Accept-Language", "es")
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Sesión no encontrada", decodeBody(t, rec)["error"])
}

func TestSessionDetail(t *testing.T) {
	srv := newTestServer(t, &mockModel{reply: "ok"}, 0)

	session := createSession(t, srv, CreateSessionBody{
		OwnerID: "owner-1", ChatbotID: "bot-1", UserAction: "widget_opened",
	})

	rec := srv.get(t, "/sessions/detail/"+session.SessionID)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Session models.Session `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, session.SessionID, resp.Session.SessionID)

	rec = srv.get(t, "/sessions/detail/unknown")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Session not found", decodeBody(t, rec)["error"])
}

func TestChatbotAnalytics(t *testing.T) {
	srv := newTestServer(t, &mockModel{reply: "ok"}, 0)

	createSession(t, srv, CreateSessionBody{
		OwnerID: "owner-1", ChatbotID: "bot-1", UserAction: "widget_opened", Duration: 30,
	})
	createSession(t, srv, CreateSessionBody{
		OwnerID: "owner-1", ChatbotID: "bot-1", UserAction: "widget_opened", Duration: 60,
	})
	createSession(t, srv, CreateSessionBody{
		OwnerID: "owner-1", ChatbotID: "bot-1", UserAction: "message_sent", Duration: 90,
	})

	rec := srv.get(t, "/analytics/owner-1/bot-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Analytics models.ChatbotAnalytics `json:"analytics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 3, resp.Analytics.TotalSessions)
	require.Equal(t, int64(180), resp.Analytics.TotalDuration)
	require.InDelta(t, 60.0, resp.Analytics.AverageDuration, 0.01)
	require.Equal(t, 2, resp.Analytics.ActionCounts["widget_opened"])
	require.Equal(t, 1, resp.Analytics.ActionCounts["message_sent"])
}
