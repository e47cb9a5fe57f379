package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikan/convo/pkg/agent"
	"github.com/mikan/convo/pkg/coretools"
	"github.com/mikan/convo/pkg/history"
	"github.com/mikan/convo/pkg/provider"
	"github.com/mikan/convo/pkg/session"
	"github.com/mikan/convo/pkg/tool"
)

type stubProvider struct {
	mu      sync.Mutex
	reply   string
	blockCh chan struct{}
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	return p.Stream(ctx, req, nil)
}

func (p *stubProvider) Stream(ctx context.Context, req provider.Request, onDelta func(string)) (*provider.Response, error) {
	p.mu.Lock()
	blockCh := p.blockCh
	reply := p.reply
	p.mu.Unlock()

	if blockCh != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-blockCh:
		}
	}
	if onDelta != nil {
		onDelta(reply)
	}
	return &provider.Response{Content: reply}, nil
}

func setupTestServer(t *testing.T, p provider.Provider) (*httptest.Server, *session.Manager, history.Store) {
	t.Helper()

	registry := tool.NewRegistry()
	require.NoError(t, coretools.RegisterAll(registry))

	store := history.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	logger := zerolog.Nop()

	loop, err := agent.New(agent.Options{
		Provider: p,
		Registry: registry,
		Executor: tool.NewExecutor(registry, time.Second, logger),
		Store:    store,
		Config:   agent.Config{Model: "test-model", RetryBackoff: time.Millisecond},
		Logger:   logger,
	})
	require.NoError(t, err)

	manager, err := session.NewManager(session.Options{
		Loop:   loop,
		Store:  store,
		Logger: logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	srv, err := New(Options{}, manager, logger)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return ts, manager, store
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHandleChat(t *testing.T) {
	t.Run("should answer a prompt and mint a session", func(t *testing.T) {
		ts, _, _ := setupTestServer(t, &stubProvider{reply: "hello there"})

		resp := postJSON(t, ts.URL+"/v1/chat", ChatRequest{Prompt: "hi"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var chat ChatResponse
		decodeJSON(t, resp, &chat)
		assert.NotEmpty(t, chat.SessionID)
		require.NotNil(t, chat.Result)
		assert.Equal(t, "hello there", chat.Result.Content)
		assert.Equal(t, 1, chat.Result.Rounds)
	})

	t.Run("should reuse an explicit session", func(t *testing.T) {
		ts, _, store := setupTestServer(t, &stubProvider{reply: "again"})

		resp := postJSON(t, ts.URL+"/v1/chat", ChatRequest{SessionID: "mine", Prompt: "one"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp = postJSON(t, ts.URL+"/v1/chat", ChatRequest{SessionID: "mine", Prompt: "two"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		msgs, err := store.History(context.Background(), "mine")
		require.NoError(t, err)
		assert.Len(t, msgs, 4)
	})

	t.Run("should reject an empty prompt", func(t *testing.T) {
		ts, _, _ := setupTestServer(t, &stubProvider{reply: "hello"})

		resp := postJSON(t, ts.URL+"/v1/chat", ChatRequest{Prompt: ""})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("should reject a malformed body", func(t *testing.T) {
		ts, _, _ := setupTestServer(t, &stubProvider{reply: "hello"})

		resp, err := http.Post(ts.URL+"/v1/chat", "application/json", bytes.NewReader([]byte("{not json")))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("should answer 409 while the session is busy", func(t *testing.T) {
		p := &stubProvider{reply: "slow", blockCh: make(chan struct{})}
		ts, manager, _ := setupTestServer(t, p)

		events, err := manager.StartTurn(context.Background(), "busy", "first")
		require.NoError(t, err)

		resp := postJSON(t, ts.URL+"/v1/chat", ChatRequest{SessionID: "busy", Prompt: "second"})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		resp.Body.Close()

		close(p.blockCh)
		for range events {
		}
	})

	t.Run("should stream events over SSE", func(t *testing.T) {
		ts, _, _ := setupTestServer(t, &stubProvider{reply: "streamed"})

		body, err := json.Marshal(ChatRequest{SessionID: "sse", Prompt: "hi", Stream: true})
		require.NoError(t, err)

		req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/chat", bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Accept", "text/event-stream")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		text := string(raw)
		assert.Contains(t, text, "event: content_delta")
		assert.Contains(t, text, "streamed")
		assert.Contains(t, text, "event: turn_complete")
	})
}

func TestSessionEndpoints(t *testing.T) {
	t.Run("should list sessions", func(t *testing.T) {
		ts, _, _ := setupTestServer(t, &stubProvider{reply: "hello"})

		resp := postJSON(t, ts.URL+"/v1/chat", ChatRequest{SessionID: "s1", Prompt: "hi"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp, err := http.Get(ts.URL + "/v1/sessions")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var listing struct {
			Sessions []session.Info `json:"sessions"`
			Count    int            `json:"count"`
		}
		decodeJSON(t, resp, &listing)
		require.Equal(t, 1, listing.Count)
		assert.Equal(t, "s1", listing.Sessions[0].ID)
	})

	t.Run("should return session history", func(t *testing.T) {
		ts, _, _ := setupTestServer(t, &stubProvider{reply: "hello"})

		resp := postJSON(t, ts.URL+"/v1/chat", ChatRequest{SessionID: "s1", Prompt: "hi"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp, err := http.Get(ts.URL + "/v1/sessions/s1/history")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var hist struct {
			SessionID string            `json:"session_id"`
			Messages  []history.Message `json:"messages"`
		}
		decodeJSON(t, resp, &hist)
		assert.Equal(t, "s1", hist.SessionID)
		require.Len(t, hist.Messages, 2)
		assert.Equal(t, history.RoleUser, hist.Messages[0].Role)
	})

	t.Run("should answer 404 for unknown history", func(t *testing.T) {
		ts, _, _ := setupTestServer(t, &stubProvider{reply: "hello"})

		resp, err := http.Get(ts.URL + "/v1/sessions/nope/history")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("should delete a session", func(t *testing.T) {
		ts, _, store := setupTestServer(t, &stubProvider{reply: "hello"})

		resp := postJSON(t, ts.URL+"/v1/chat", ChatRequest{SessionID: "gone", Prompt: "hi"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		req, err := http.NewRequest(http.MethodDelete, ts.URL+"/v1/sessions/gone", nil)
		require.NoError(t, err)
		resp, err = http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		msgs, err := store.History(context.Background(), "gone")
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("should abort a running turn", func(t *testing.T) {
		p := &stubProvider{reply: "never", blockCh: make(chan struct{})}
		ts, manager, _ := setupTestServer(t, p)

		events, err := manager.StartTurn(context.Background(), "s1", "hang")
		require.NoError(t, err)

		resp, err := http.Post(ts.URL+"/v1/sessions/s1/abort", "application/json", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		var last agent.Event
		for ev := range events {
			last = ev
		}
		assert.Equal(t, agent.EventCancelled, last.Type)
	})
}

func TestOperationalEndpoints(t *testing.T) {
	t.Run("should report health", func(t *testing.T) {
		ts, _, _ := setupTestServer(t, &stubProvider{reply: "hello"})

		resp, err := http.Get(ts.URL + "/health")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var health map[string]any
		decodeJSON(t, resp, &health)
		assert.Equal(t, "ok", health["status"])
	})

	t.Run("should expose prometheus metrics", func(t *testing.T) {
		ts, _, _ := setupTestServer(t, &stubProvider{reply: "hello"})

		resp, err := http.Get(ts.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(raw), "convo_")
	})
}
