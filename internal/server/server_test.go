package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForexSentinel/internal/model"
	"ForexSentinel/internal/scheduler"
)

var testModels = []string{"gpt-4-turbo-preview", "gpt-4", "gpt-3.5-turbo"}

type fakePipeline struct {
	store      *scheduler.Store
	updated    []model.Settings
	refreshed  int
	retryAllow bool
}

func (f *fakePipeline) UpdateSettings(s model.Settings) error {
	f.updated = append(f.updated, s)
	f.store.SetSettings(s)
	return nil
}

func (f *fakePipeline) RefreshNews() bool {
	f.refreshed++
	return f.refreshed == 1
}

func (f *fakePipeline) RetryAnalysis() bool { return f.retryAllow }

func newTestServer(t *testing.T) (*Server, *fakePipeline) {
	t.Helper()
	store := scheduler.NewStore(model.Settings{Model: testModels[0]})
	p := &fakePipeline{store: store}
	s := New(Options{ListenAddr: "127.0.0.1:0"}, store, p, testModels)
	gin.SetMode(gin.TestMode)
	return s, p
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Engine.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestPutSettings_NeverEchoesKey(t *testing.T) {
	s, p := newTestServer(t)

	w := do(t, s, http.MethodPut, "/api/v1/settings", `{"apiKey":"  sk-secret  ","model":"gpt-4"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "sk-secret")

	var resp settingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "gpt-4", resp.Model)
	assert.True(t, resp.HasAPIKey)
	assert.Equal(t, testModels, resp.Models)

	require.Len(t, p.updated, 1)
	assert.Equal(t, "sk-secret", p.updated[0].APIKey, "key should be trimmed")

	for _, path := range []string{"/api/v1/settings", "/api/v1/state"} {
		w = do(t, s, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "sk-secret", path)
	}
}

func TestPutSettings_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"model":`},
		{"missing model", `{"apiKey":"k"}`},
		{"unknown model", `{"apiKey":"k","model":"gpt-99"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, p := newTestServer(t)
			w := do(t, s, http.MethodPut, "/api/v1/settings", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, p.updated)
		})
	}
}

func TestGetAnalysis_EmptyListsNotNull(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodGet, "/api/v1/analysis", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []any{}, body["strengths"])
	assert.Equal(t, []any{}, body["correlations"])
	assert.Equal(t, false, body["enabled"])
}

func TestGetNews_ReflectsStore(t *testing.T) {
	s, p := newTestServer(t)
	p.store.SetNews([]model.NewsItem{{Title: "ECB holds", Link: "https://x/1"}}, time.Now())

	w := do(t, s, http.MethodGet, "/api/v1/news", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ECB holds")
	assert.Contains(t, w.Body.String(), `"loading":false`)
}

func TestRefreshAndRetry(t *testing.T) {
	s, p := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/news/refresh", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"started":true`)
	w = do(t, s, http.MethodPost, "/api/v1/news/refresh", "")
	assert.Contains(t, w.Body.String(), `"started":false`)

	w = do(t, s, http.MethodPost, "/api/v1/analysis/retry", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	p.retryAllow = true
	w = do(t, s, http.MethodPost, "/api/v1/analysis/retry", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestCors(t *testing.T) {
	store := scheduler.NewStore(model.Settings{Model: testModels[0]})
	s := New(Options{AllowedOrigins: []string{"http://dash.local"}}, store, &fakePipeline{store: store}, testModels)
	gin.SetMode(gin.TestMode)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/settings", nil)
	req.Header.Set("Origin", "http://dash.local")
	w := httptest.NewRecorder()
	s.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://dash.local", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.local")
	w = httptest.NewRecorder()
	s.Engine.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebSocket_InitialStateAndBroadcast(t *testing.T) {
	s, p := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Hub.Run(ctx)

	srv := httptest.NewServer(s.Engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() Message {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	first := read()
	assert.Equal(t, MessageTypeState, first.Type)
	assert.NotZero(t, first.Timestamp)

	require.Eventually(t, func() bool { return s.Hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	p.store.SetNews([]model.NewsItem{{Title: "BoJ intervenes", Link: "https://x/2"}}, time.Now())

	next := read()
	assert.Equal(t, MessageTypeState, next.Type)
	raw, err := json.Marshal(next.Data)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "BoJ intervenes")
}

func TestHub_BroadcastKeepsNewestFrame(t *testing.T) {
	hub := NewHub(nil, nil)
	for i := 0; i < 100; i++ {
		hub.Broadcast(MessageTypeState, i)
	}
	hub.Broadcast("notice", "hello")

	frames := map[string]any{}
	for _, raw := range hub.takePending() {
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		frames[msg.Type] = msg.Data
	}
	assert.Equal(t, map[string]any{MessageTypeState: float64(99), "notice": "hello"}, frames)
	assert.Empty(t, hub.takePending())
}
