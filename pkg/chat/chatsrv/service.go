package chatsrv

import (
	"context"

	"github.com/Abraxas-365/converse/pkg/ai/llm"
	"github.com/Abraxas-365/converse/pkg/ai/llm/agentx"
	"github.com/Abraxas-365/converse/pkg/ai/llm/streamx"
	"github.com/Abraxas-365/converse/pkg/chat"
	"github.com/Abraxas-365/converse/pkg/chat/memstore"
	"github.com/Abraxas-365/converse/pkg/logx"
)

// Generator is the external agent engine at its interface boundary: either a
// one-shot reply or a finite sequence of cumulative conversation snapshots.
type Generator interface {
	Run(ctx context.Context, messages []llm.Message) (string, error)
	StreamStates(ctx context.Context, messages []llm.Message) (agentx.StateStream, int, error)
}

// ChatService composes conversation memory and the generator into the
// request flow: fetch history, append the user turn, generate, append the
// assistant turn, persist, register the conversation id.
type ChatService struct {
	store     *memstore.Store
	generator Generator
	locks     *keyMutex

	// previewLimit caps how many conversations a listing expands
	previewLimit int
}

// NewChatService creates the service. A nil generator is allowed and makes
// every chat operation report unavailability; listing and deletion still work.
func NewChatService(store *memstore.Store, generator Generator) *ChatService {
	return &ChatService{
		store:        store,
		generator:    generator,
		locks:        newKeyMutex(),
		previewLimit: 20,
	}
}

// AgentAvailable reports whether the generator was configured at startup
func (s *ChatService) AgentAvailable() bool {
	return s.generator != nil
}

// MemoryAvailable reports whether the conversation store reached its backend
func (s *ChatService) MemoryAvailable() bool {
	return s.store.Available()
}

func conversationKey(userID, chatID string) string {
	return userID + ":" + chatID
}

// Invoke runs one full chat turn and returns the assistant reply
func (s *ChatService) Invoke(ctx context.Context, userID, chatID, message string) (string, error) {
	if s.generator == nil {
		return "", chat.ErrAgentUnavailable()
	}

	unlock := s.locks.Lock(conversationKey(userID, chatID))
	defer unlock()

	history := s.store.Records(ctx, userID, chatID)
	history = append(history, chat.Message{Role: chat.RoleUser, Content: message})

	reply, err := s.generator.Run(ctx, chat.ToLLM(history))
	if err != nil {
		// the failing turn is not persisted; the log stays as it was
		return "", chat.ErrGenerationFailed().WithError(err)
	}

	history = append(history, chat.Message{Role: chat.RoleAssistant, Content: reply})
	s.store.SaveRecords(ctx, userID, chatID, history)
	s.store.AddConversationID(ctx, userID, chatID)

	return reply, nil
}

// Stream runs one chat turn in streaming mode, invoking emit for every
// incremental delta as it is produced. It returns the final reply text.
//
// On mid-stream failure or client cancellation the text already emitted is
// persisted as the assistant turn, so what the client saw and what the log
// holds stay consistent. If nothing was emitted, nothing is persisted.
func (s *ChatService) Stream(ctx context.Context, userID, chatID, message string, emit func(delta string)) (string, error) {
	if s.generator == nil {
		return "", chat.ErrAgentUnavailable()
	}

	unlock := s.locks.Lock(conversationKey(userID, chatID))
	defer unlock()

	history := s.store.Records(ctx, userID, chatID)
	history = append(history, chat.Message{Role: chat.RoleUser, Content: message})

	states, inputCount, err := s.generator.StreamStates(ctx, chat.ToLLM(history))
	if err != nil {
		return "", chat.ErrGenerationFailed().WithError(err)
	}

	agg := streamx.NewAggregator(inputCount)
	relayErr := agg.Relay(ctx, states, emit)
	final := agg.Final()

	if relayErr == nil || final != "" {
		// persistence must survive a canceled request context
		persistCtx := context.WithoutCancel(ctx)
		history = append(history, chat.Message{Role: chat.RoleAssistant, Content: final})
		s.store.SaveRecords(persistCtx, userID, chatID, history)
		s.store.AddConversationID(persistCtx, userID, chatID)
	}

	if relayErr != nil {
		logx.WithFields(logx.Fields{"user_id": userID, "chat_id": chatID}).
			Errorf("streaming generation failed after %d bytes: %v", len(final), relayErr)
		return final, chat.ErrGenerationFailed().WithError(relayErr)
	}

	return final, nil
}

// ListChats returns previews for the user's most recent conversations
func (s *ChatService) ListChats(ctx context.Context, userID string) []chat.Preview {
	ids := s.store.ConversationIDs(ctx, userID)
	if len(ids) > s.previewLimit {
		ids = ids[:s.previewLimit]
	}

	previews := make([]chat.Preview, 0, len(ids))
	for _, id := range ids {
		if p := s.store.Preview(ctx, userID, id); p != nil {
			previews = append(previews, *p)
		}
	}
	return previews
}

// History returns the full stored message history of one conversation
func (s *ChatService) History(ctx context.Context, userID, chatID string) []chat.Message {
	return s.store.Records(ctx, userID, chatID)
}

// DeleteChat removes a conversation and its index entry
func (s *ChatService) DeleteChat(ctx context.Context, userID, chatID string) {
	unlock := s.locks.Lock(conversationKey(userID, chatID))
	defer unlock()

	s.store.DeleteConversation(ctx, userID, chatID)
}
