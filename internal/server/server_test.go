package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/agentd/internal/agent"
	"github.com/dotcommander/agentd/internal/config"
	"github.com/dotcommander/agentd/internal/proto"
	"github.com/dotcommander/agentd/internal/stream"
)

// stubStream replays canned content and then ends.
type stubStream struct {
	chunks []string
	pos    int
}

func (s *stubStream) Next() bool {
	if s.pos < len(s.chunks) {
		s.pos++
		return true
	}
	return false
}

func (s *stubStream) Current() (proto.Chunk, error) {
	return proto.Chunk{Content: s.chunks[s.pos-1]}, nil
}

func (s *stubStream) Close() error { return nil }

func (s *stubStream) Err() error { return nil }

func (s *stubStream) Messages() []proto.Message { return nil }

func (s *stubStream) CallTools() []stream.ToolCallStatus { return nil }

// stubClient records requests and answers each with a fresh stubStream.
type stubClient struct {
	content  []string
	requests []proto.Request
}

func (c *stubClient) Request(_ context.Context, request proto.Request) stream.Stream {
	c.requests = append(c.requests, request)
	return &stubStream{chunks: c.content}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.BaseURL = "https://proxy.example.com/v1"
	cfg.ModelAuthToken = "token"
	return &cfg
}

func testServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

// stubbedServer routes to agents whose model client is replaced by client.
func stubbedServer(t *testing.T, client *stubClient) *Server {
	t.Helper()
	cfg := testConfig()
	search, err := agent.NewSearch(cfg)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWithAgents(cfg, logger,
		agent.NewChat(cfg).WithClient(client),
		search.WithClient(client),
	)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestRoot(t *testing.T) {
	rec := do(t, testServer(t), http.MethodGet, "/api/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"message":"Hello World"}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	rec := do(t, testServer(t), http.MethodGet, "/api/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCapabilities(t *testing.T) {
	rec := do(t, testServer(t), http.MethodGet, "/api/agents/capabilities", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Agents []struct {
			Type                  string `json:"type"`
			ToolsEnabledByDefault bool   `json:"toolsEnabledByDefault"`
		} `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	types := map[string]bool{}
	for _, a := range body.Agents {
		types[a.Type] = a.ToolsEnabledByDefault
	}
	require.Contains(t, types, "chat")
	require.Contains(t, types, "search")
	require.False(t, types["chat"])
	require.True(t, types["search"])
}

func TestChatBadRequests(t *testing.T) {
	s := testServer(t)

	t.Run("undecodable body", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/api/chat", "{not json")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown agent type", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/api/chat", `{"message":"hi","agentType":"oracle"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "oracle")
	})
}

func TestChatEmptyMessage(t *testing.T) {
	// Validation failures are execution results, not transport errors.
	for _, agentType := range []string{"", "chat", "search"} {
		rec := do(t, testServer(t), http.MethodPost, "/api/chat", `{"message":"  ","agentType":"`+agentType+`"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp chatResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.False(t, resp.Success)
		require.NotEmpty(t, resp.Error)
		require.Empty(t, resp.Category)
	}
}

func TestChatSuccess(t *testing.T) {
	client := &stubClient{content: []string{"Hello", " there."}}
	s := stubbedServer(t, client)

	rec := do(t, s, http.MethodPost, "/api/chat", `{"message":"say hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"success":true,"response":"Hello there."}`, rec.Body.String())

	require.Len(t, client.requests, 1)
	require.Equal(t, "say hello", client.requests[0].Messages[1].Content)
}

func TestSearchSuccess(t *testing.T) {
	client := &stubClient{content: []string{"Go 1.25 is the latest release."}}
	s := stubbedServer(t, client)

	rec := do(t, s, http.MethodPost, "/api/search", `{"query":"latest go release"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"success":true,"summary":"Go 1.25 is the latest release."}`, rec.Body.String())

	require.Len(t, client.requests, 1)
	prompt := client.requests[0].Messages[1].Content
	require.Contains(t, prompt, "latest go release")
	require.Contains(t, prompt, "up to 5")
}

func TestSearchBadRequest(t *testing.T) {
	rec := do(t, testServer(t), http.MethodPost, "/api/search", `[1,2]`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchEmptyQuery(t *testing.T) {
	rec := do(t, testServer(t), http.MethodPost, "/api/search", `{"query":""}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.NotEmpty(t, resp.Error)
}
