// Package memstore owns the durable, token-bounded conversation log and the
// per-user conversation index, both in Redis. Every public operation is
// best-effort: backend or parse failures are logged and the safe default is
// returned, never an error. Memory for this service is a feature, not a
// dependency the request path may die on.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Abraxas-365/converse/pkg/chat"
	"github.com/Abraxas-365/converse/pkg/logx"
)

const (
	logKeyFormat   = "conversation-log:%s:%s"
	indexKeyFormat = "conversation-index:%s"

	// previewLength is how much of the first user message a listing shows
	previewLength = 50
	// previewPlaceholder is shown when a conversation has no user turn yet
	previewPlaceholder = "New conversation"

	probeTimeout = 2 * time.Second
)

// Store is the Redis-backed conversation memory
type Store struct {
	client    *redis.Client
	counter   TokenCounter
	maxTokens int
	available bool
}

// New creates a Store over an existing Redis client. Availability is probed
// once here; a dead backend degrades every operation to its safe default
// instead of failing construction.
func New(client *redis.Client, maxTokens int, counter TokenCounter) *Store {
	s := &Store{
		client:    client,
		counter:   counter,
		maxTokens: maxTokens,
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logx.Warnf("Redis unreachable, conversation memory will not persist: %v", err)
		return s
	}

	s.available = true
	return s
}

// Available reports whether the backend connection was established at
// construction time. It is not re-checked per call.
func (s *Store) Available() bool {
	return s.available
}

func logKey(userID, chatID string) string {
	return fmt.Sprintf(logKeyFormat, userID, chatID)
}

func indexKey(userID string) string {
	return fmt.Sprintf(indexKeyFormat, userID)
}

// load reads and validates a stored log, surfacing failures so tests can
// distinguish "empty" from "unavailable". Public callers go through Records.
func (s *Store) load(ctx context.Context, userID, chatID string) ([]chat.Message, error) {
	value, err := s.client.Get(ctx, logKey(userID, chatID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return chat.ParseMessages([]byte(value))
}

// Records returns the conversation log in stored order. An absent key, an
// unreachable backend and a malformed stored value all yield an empty log.
func (s *Store) Records(ctx context.Context, userID, chatID string) []chat.Message {
	if !s.available {
		return nil
	}

	messages, err := s.load(ctx, userID, chatID)
	if err != nil {
		logx.WithFields(logx.Fields{"user_id": userID, "chat_id": chatID}).
			Errorf("failed to load conversation log: %v", err)
		return nil
	}
	return messages
}

// SaveRecords truncates the log to the token budget and overwrites the key
// in a single write. Registering the conversation id is the caller's job.
func (s *Store) SaveRecords(ctx context.Context, userID, chatID string, messages []chat.Message) {
	if !s.available {
		return
	}

	truncated := s.truncate(messages)
	value, err := json.Marshal(truncated)
	if err != nil {
		logx.WithFields(logx.Fields{"user_id": userID, "chat_id": chatID}).
			Errorf("failed to encode conversation log: %v", err)
		return
	}

	if err := s.client.Set(ctx, logKey(userID, chatID), value, 0).Err(); err != nil {
		logx.WithFields(logx.Fields{"user_id": userID, "chat_id": chatID}).
			Errorf("failed to save conversation log: %v", err)
		return
	}

	logx.Debugf("conversation log saved: %s:%s, %d messages", userID, chatID, len(truncated))
}

// DeleteRecords removes the stored log; deleting an absent key is a no-op
func (s *Store) DeleteRecords(ctx context.Context, userID, chatID string) {
	if !s.available {
		return
	}

	if err := s.client.Del(ctx, logKey(userID, chatID)).Err(); err != nil {
		logx.WithFields(logx.Fields{"user_id": userID, "chat_id": chatID}).
			Errorf("failed to delete conversation log: %v", err)
	}
}

// AddConversationID registers a conversation in the per-user index
func (s *Store) AddConversationID(ctx context.Context, userID, chatID string) {
	if !s.available {
		return
	}

	if err := s.client.SAdd(ctx, indexKey(userID), chatID).Err(); err != nil {
		logx.WithFields(logx.Fields{"user_id": userID, "chat_id": chatID}).
			Errorf("failed to register conversation id: %v", err)
	}
}

// ConversationIDs lists a user's conversations most-recent-first. Ids are
// assumed monotonically sortable (time-derived), so reverse lexicographic
// order is recency order.
func (s *Store) ConversationIDs(ctx context.Context, userID string) []string {
	if !s.available {
		return nil
	}

	ids, err := s.client.SMembers(ctx, indexKey(userID)).Result()
	if err != nil {
		logx.WithFields(logx.Fields{"user_id": userID}).
			Errorf("failed to list conversation ids: %v", err)
		return nil
	}

	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids
}

// DeleteConversation removes a conversation id from the index together with
// its log
func (s *Store) DeleteConversation(ctx context.Context, userID, chatID string) {
	if !s.available {
		return
	}

	if err := s.client.SRem(ctx, indexKey(userID), chatID).Err(); err != nil {
		logx.WithFields(logx.Fields{"user_id": userID, "chat_id": chatID}).
			Errorf("failed to remove conversation id: %v", err)
	}
	s.DeleteRecords(ctx, userID, chatID)
}

// Preview returns a listing summary for one conversation: the first 50
// characters of its first user message (or a placeholder when it has none)
// and the message count. Nil when the log is empty.
func (s *Store) Preview(ctx context.Context, userID, chatID string) *chat.Preview {
	messages := s.Records(ctx, userID, chatID)
	if len(messages) == 0 {
		return nil
	}

	preview := ""
	for _, msg := range messages {
		if msg.Role == chat.RoleUser {
			// character-based, not byte-based, so multi-byte text is not split
			if runes := []rune(msg.Content); len(runes) > previewLength {
				preview = string(runes[:previewLength])
			} else {
				preview = msg.Content
			}
			break
		}
	}
	if preview == "" {
		preview = previewPlaceholder
	}

	return &chat.Preview{
		ChatID:       chatID,
		Preview:      preview,
		MessageCount: len(messages),
	}
}
