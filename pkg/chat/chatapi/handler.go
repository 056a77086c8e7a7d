package chatapi

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Abraxas-365/converse/pkg/chat"
	"github.com/Abraxas-365/converse/pkg/chat/chatsrv"
	"github.com/Abraxas-365/converse/pkg/errx"
	"github.com/Abraxas-365/converse/pkg/iam/identity"
	"github.com/Abraxas-365/converse/pkg/logx"
)

type ChatHandlers struct {
	service *chatsrv.ChatService
}

func NewChatHandlers(service *chatsrv.ChatService) *ChatHandlers {
	return &ChatHandlers{service: service}
}

func (h *ChatHandlers) RegisterRoutes(router fiber.Router) {
	agent := router.Group("/agent")

	agent.Post("/invoke", h.InvokeChat)
	agent.Post("/stream", h.StreamChat)
	agent.Get("/chats", h.GetChatList)
	agent.Get("/chats/:id", h.GetChatMessages)
	agent.Delete("/chats/:id", h.DeleteChat)
	agent.Get("/health", h.Health)
}

// InvokeChat runs one chat turn and returns the complete reply
func (h *ChatHandlers) InvokeChat(c *fiber.Ctx) error {
	var req chat.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return chat.ErrEmptyMessage().WithDetail("parse_error", err.Error())
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return chat.ErrEmptyMessage()
	}
	if req.ChatID == "" {
		return chat.ErrMissingChatID()
	}

	userID := identity.UserID(c.Get(fiber.HeaderAuthorization))

	reply, err := h.service.Invoke(c.Context(), userID, req.ChatID, message)
	if err != nil {
		return err
	}

	return c.JSON(chat.ChatResponse{
		Code:    fiber.StatusOK,
		Message: "success",
		AIReply: reply,
		ChatID:  req.ChatID,
	})
}

// StreamChat runs one chat turn and delivers it as server-sent events: one
// "streaming" event per delta, then a terminal "done" event carrying the
// conversation id. Every failure, including validation, arrives as a
// well-formed error event rather than a broken transport.
func (h *ChatHandlers) StreamChat(c *fiber.Ctx) error {
	var req chat.ChatRequest
	parseErr := c.BodyParser(&req)
	message := strings.TrimSpace(req.Message)

	userID := identity.UserID(c.Get(fiber.HeaderAuthorization))
	service := h.service

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		switch {
		case parseErr != nil, message == "":
			writeEvent(w, errorChunk(chat.ErrEmptyMessage()))
			return
		case req.ChatID == "":
			writeEvent(w, errorChunk(chat.ErrMissingChatID()))
			return
		case !service.AgentAvailable():
			writeEvent(w, errorChunk(chat.ErrAgentUnavailable()))
			return
		}

		// canceled as soon as a write fails, which is how a client
		// disconnect shows up here; generation must stop with it
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		_, err := service.Stream(ctx, userID, req.ChatID, message, func(delta string) {
			ok := writeEvent(w, chat.StreamChunk{
				Code:    fiber.StatusOK,
				Message: "streaming",
				Data:    map[string]any{"content": delta},
			})
			if !ok {
				cancel()
			}
		})

		if err != nil {
			writeEvent(w, errorChunk(err))
			return
		}

		writeEvent(w, chat.StreamChunk{
			Code:    fiber.StatusOK,
			Message: "done",
			Data:    map[string]any{"chat_id": req.ChatID},
		})
	})

	return nil
}

// writeEvent writes one SSE frame and flushes it immediately so the client
// sees deltas as they are produced. Returns false once the connection is gone.
func writeEvent(w *bufio.Writer, chunk chat.StreamChunk) bool {
	payload, err := json.Marshal(chunk)
	if err != nil {
		logx.Errorf("failed to encode stream chunk: %v", err)
		return false
	}
	if _, err := w.WriteString("data: " + string(payload) + "\n\n"); err != nil {
		return false
	}
	return w.Flush() == nil
}

func errorChunk(err error) chat.StreamChunk {
	if e, ok := err.(*errx.Error); ok {
		return chat.StreamChunk{
			Code:    e.HTTPStatus,
			Message: e.Message,
			Data:    nil,
		}
	}
	return chat.StreamChunk{
		Code:    fiber.StatusInternalServerError,
		Message: "generation failed: " + err.Error(),
		Data:    nil,
	}
}

// GetChatList lists the caller's conversations, newest first
func (h *ChatHandlers) GetChatList(c *fiber.Ctx) error {
	userID := identity.UserID(c.Get(fiber.HeaderAuthorization))

	previews := h.service.ListChats(c.Context(), userID)

	return c.JSON(fiber.Map{
		"code":    fiber.StatusOK,
		"message": "success",
		"data":    previews,
	})
}

// GetChatMessages returns the full stored history of one conversation
func (h *ChatHandlers) GetChatMessages(c *fiber.Ctx) error {
	userID := identity.UserID(c.Get(fiber.HeaderAuthorization))
	chatID := c.Params("id")

	messages := h.service.History(c.Context(), userID, chatID)
	if messages == nil {
		messages = []chat.Message{}
	}

	return c.JSON(fiber.Map{
		"code":    fiber.StatusOK,
		"message": "success",
		"data": fiber.Map{
			"chat_id":  chatID,
			"messages": messages,
		},
	})
}

// DeleteChat removes a conversation and its index entry
func (h *ChatHandlers) DeleteChat(c *fiber.Ctx) error {
	userID := identity.UserID(c.Get(fiber.HeaderAuthorization))
	chatID := c.Params("id")

	h.service.DeleteChat(c.Context(), userID, chatID)

	return c.JSON(fiber.Map{
		"code":    fiber.StatusOK,
		"message": "conversation deleted",
	})
}

// Health reports the availability of the agent and the memory backend
func (h *ChatHandlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"agent_available":  h.service.AgentAvailable(),
		"memory_available": h.service.MemoryAvailable(),
	})
}
