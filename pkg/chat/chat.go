package chat

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Abraxas-365/converse/pkg/ai/llm"
	"github.com/Abraxas-365/converse/pkg/errx"
)

// Role tags who produced a message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is one immutable turn of a conversation. Order within a
// conversation is insertion order and is significant.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ParseMessages decodes a stored conversation log, validating every role at
// the boundary. Any malformed record rejects the whole log.
func ParseMessages(data []byte) ([]Message, error) {
	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("malformed conversation log: %w", err)
	}
	for i, msg := range messages {
		if !msg.Role.Valid() {
			return nil, fmt.Errorf("malformed conversation log: invalid role %q at index %d", msg.Role, i)
		}
	}
	return messages, nil
}

// ToLLM converts a conversation log to the model wire representation
func ToLLM(messages []Message) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, msg := range messages {
		out = append(out, llm.Message{Role: string(msg.Role), Content: msg.Content})
	}
	return out
}

// Preview summarizes one conversation for listing
type Preview struct {
	ChatID       string `json:"chat_id"`
	Preview      string `json:"preview"`
	MessageCount int    `json:"message_count"`
}

// ChatRequest is the body of the invoke and stream endpoints
type ChatRequest struct {
	Message string `json:"message"`
	ChatID  string `json:"chat_id"`
}

// ChatResponse is the one-shot reply envelope
type ChatResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	AIReply string `json:"ai_reply,omitempty"`
	ChatID  string `json:"chat_id,omitempty"`
}

// StreamChunk is one server-push event of the streaming endpoint
type StreamChunk struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("CHAT")

var (
	CodeEmptyMessage     = ErrRegistry.Register("EMPTY_MESSAGE", errx.TypeValidation, http.StatusBadRequest, "Message must not be empty")
	CodeMissingChatID    = ErrRegistry.Register("MISSING_CHAT_ID", errx.TypeValidation, http.StatusBadRequest, "chat_id is required")
	CodeAgentUnavailable = ErrRegistry.Register("AGENT_UNAVAILABLE", errx.TypeUnavailable, http.StatusServiceUnavailable, "Agent service is not available, check configuration")
	CodeGenerationFailed = ErrRegistry.Register("GENERATION_FAILED", errx.TypeExternal, http.StatusInternalServerError, "Generation failed")
	CodeChatNotFound     = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Conversation not found")
)

func ErrEmptyMessage() *errx.Error {
	return ErrRegistry.New(CodeEmptyMessage)
}

func ErrMissingChatID() *errx.Error {
	return ErrRegistry.New(CodeMissingChatID)
}

func ErrAgentUnavailable() *errx.Error {
	return ErrRegistry.New(CodeAgentUnavailable)
}

func ErrGenerationFailed() *errx.Error {
	return ErrRegistry.New(CodeGenerationFailed)
}

func ErrChatNotFound() *errx.Error {
	return ErrRegistry.New(CodeChatNotFound)
}
