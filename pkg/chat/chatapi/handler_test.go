package chatapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/converse/pkg/ai/llm"
	"github.com/Abraxas-365/converse/pkg/ai/llm/agentx"
	"github.com/Abraxas-365/converse/pkg/chat"
	"github.com/Abraxas-365/converse/pkg/chat/chatsrv"
	"github.com/Abraxas-365/converse/pkg/chat/memstore"
	"github.com/Abraxas-365/converse/pkg/errx"
)

type stubGenerator struct {
	reply  string
	chunks []string
}

func (g *stubGenerator) Run(ctx context.Context, messages []llm.Message) (string, error) {
	return g.reply, nil
}

func (g *stubGenerator) StreamStates(ctx context.Context, messages []llm.Message) (agentx.StateStream, int, error) {
	states := make([]agentx.State, 0, len(g.chunks))
	for _, text := range g.chunks {
		snapshot := make([]llm.Message, 0, len(messages)+1)
		snapshot = append(snapshot, messages...)
		snapshot = append(snapshot, llm.NewAssistantMessage(text))
		states = append(states, agentx.State{Messages: snapshot})
	}
	return &stubStream{states: states}, len(messages), nil
}

type stubStream struct {
	states []agentx.State
	idx    int
}

func (s *stubStream) Next() (agentx.State, error) {
	if s.idx >= len(s.states) {
		return agentx.State{}, io.EOF
	}
	state := s.states[s.idx]
	s.idx++
	return state, nil
}

func (s *stubStream) Close() error { return nil }

func newTestApp(t *testing.T, gen chatsrv.Generator) *fiber.App {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := memstore.New(client, 2000, memstore.EstimateCounter{})
	service := chatsrv.NewChatService(store, gen)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var xerr *errx.Error
			if errors.As(err, &xerr) {
				return c.Status(xerr.HTTPStatus).JSON(xerr)
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})
	NewChatHandlers(service).RegisterRoutes(app.Group("/api/v1"))
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func TestInvokeChat(t *testing.T) {
	app := newTestApp(t, &stubGenerator{reply: "hello there"})

	resp, body := doJSON(t, app, fiber.MethodPost, "/api/v1/agent/invoke",
		`{"message":"hi","chat_id":"c1"}`)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", body["message"])
	assert.Equal(t, "hello there", body["ai_reply"])
	assert.Equal(t, "c1", body["chat_id"])
}

func TestInvokeChatValidation(t *testing.T) {
	app := newTestApp(t, &stubGenerator{reply: "ok"})

	resp, _ := doJSON(t, app, fiber.MethodPost, "/api/v1/agent/invoke",
		`{"message":"  ","chat_id":"c1"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/agent/invoke",
		`{"message":"hi"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestInvokeChatAgentUnavailable(t *testing.T) {
	app := newTestApp(t, nil)

	resp, _ := doJSON(t, app, fiber.MethodPost, "/api/v1/agent/invoke",
		`{"message":"hi","chat_id":"c1"}`)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestStreamChat(t *testing.T) {
	app := newTestApp(t, &stubGenerator{chunks: []string{"Hi", "Hi there!"}})

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/agent/stream",
		strings.NewReader(`{"message":"greet me","chat_id":"c1"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "text/event-stream", resp.Header.Get(fiber.HeaderContentType))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var chunks []chat.StreamChunk
	for _, frame := range strings.Split(string(raw), "\n\n") {
		payload, ok := strings.CutPrefix(frame, "data: ")
		if !ok {
			continue
		}
		var chunk chat.StreamChunk
		require.NoError(t, json.Unmarshal([]byte(payload), &chunk))
		chunks = append(chunks, chunk)
	}

	require.Len(t, chunks, 3)
	assert.Equal(t, "streaming", chunks[0].Message)
	assert.Equal(t, "Hi", chunks[0].Data["content"])
	assert.Equal(t, " there!", chunks[1].Data["content"])
	assert.Equal(t, "done", chunks[2].Message)
	assert.Equal(t, "c1", chunks[2].Data["chat_id"])
}

func TestStreamChatValidationEvent(t *testing.T) {
	app := newTestApp(t, &stubGenerator{chunks: []string{"Hi"}})

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/agent/stream",
		strings.NewReader(`{"message":"","chat_id":"c1"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	// validation failures still arrive as a well-formed event
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	payload, ok := strings.CutPrefix(strings.TrimSpace(string(raw)), "data: ")
	require.True(t, ok)

	var chunk chat.StreamChunk
	require.NoError(t, json.Unmarshal([]byte(payload), &chunk))
	assert.Equal(t, fiber.StatusBadRequest, chunk.Code)
}

func TestChatListAndHistory(t *testing.T) {
	app := newTestApp(t, &stubGenerator{reply: "hello there"})

	_, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/agent/invoke",
		`{"message":"hi","chat_id":"c1"}`)

	resp, body := doJSON(t, app, fiber.MethodGet, "/api/v1/agent/chats", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	previews, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, previews, 1)

	resp, body = doJSON(t, app, fiber.MethodGet, "/api/v1/agent/chats/c1", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, "c1", data["chat_id"])
	assert.Len(t, data["messages"], 2)

	// unknown conversation yields an empty history, not an error
	resp, body = doJSON(t, app, fiber.MethodGet, "/api/v1/agent/chats/ghost", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, body["data"].(map[string]any)["messages"])
}

func TestDeleteChatEndpoint(t *testing.T) {
	app := newTestApp(t, &stubGenerator{reply: "hello there"})

	_, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/agent/invoke",
		`{"message":"hi","chat_id":"c1"}`)

	resp, _ := doJSON(t, app, fiber.MethodDelete, "/api/v1/agent/chats/c1", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	_, body := doJSON(t, app, fiber.MethodGet, "/api/v1/agent/chats", "")
	assert.Empty(t, body["data"])
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t, &stubGenerator{reply: "ok"})

	resp, body := doJSON(t, app, fiber.MethodGet, "/api/v1/agent/health", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["agent_available"])
	assert.Equal(t, true, body["memory_available"])
}
