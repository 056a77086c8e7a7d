package memstore

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/Abraxas-365/converse/pkg/chat"
	"github.com/Abraxas-365/converse/pkg/logx"
)

// perMessageOverhead approximates the wire/formatting cost of one message
// on top of its role and content tokens.
const perMessageOverhead = 5

// TokenCounter measures the token weight of a piece of text. The counter is
// fixed at store construction; mixing counters over the lifetime of a log
// would make previously saved logs drift around the budget.
type TokenCounter interface {
	Count(text string) int
}

// EstimateCounter approximates tokens as len/4. It is the fallback when no
// exact encoding can be initialized, and costs nothing per call.
type EstimateCounter struct{}

func (EstimateCounter) Count(text string) int {
	return len(text) / 4
}

type encodingCounter struct {
	enc *tiktoken.Tiktoken
}

// NewEncodingCounter returns an exact counter for a tiktoken encoding name
// such as "cl100k_base".
func NewEncodingCounter(encoding string) (TokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &encodingCounter{enc: enc}, nil
}

func (c *encodingCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

func (s *Store) messageWeight(msg chat.Message) int {
	return s.counter.Count(string(msg.Role)) + s.counter.Count(msg.Content) + perMessageOverhead
}

// logWeight is the total accounted weight of a conversation log
func (s *Store) logWeight(messages []chat.Message) int {
	total := 0
	for _, msg := range messages {
		total += s.messageWeight(msg)
	}
	return total
}

// truncate evicts whole messages oldest-first until the log fits the budget.
// Surviving messages keep their order and content. A single message whose own
// weight exceeds the budget empties the log entirely; see the store tests
// before changing that.
func (s *Store) truncate(messages []chat.Message) []chat.Message {
	if len(messages) == 0 {
		return messages
	}

	weights := make([]int, len(messages))
	total := 0
	for i, msg := range messages {
		weights[i] = s.messageWeight(msg)
		total += weights[i]
	}

	if total <= s.maxTokens {
		return messages
	}

	start := 0
	for start < len(messages) && total > s.maxTokens {
		total -= weights[start]
		start++
	}

	logx.Debugf("conversation log truncated: %d -> %d messages", len(messages), len(messages)-start)
	return messages[start:]
}
