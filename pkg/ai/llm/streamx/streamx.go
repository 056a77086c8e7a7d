// Package streamx turns the cumulative snapshots produced by a streaming
// agent into non-overlapping text deltas suitable for wire delivery, and
// recovers the final assistant reply for persistence.
package streamx

import (
	"context"
	"errors"
	"io"

	"github.com/Abraxas-365/converse/pkg/ai/llm"
	"github.com/Abraxas-365/converse/pkg/ai/llm/agentx"
)

// Aggregator tracks how much assistant text has already been emitted.
// It only looks at messages past the input offset, so pre-existing history
// never leaks into the delta stream.
type Aggregator struct {
	inputCount int
	emitted    string
}

// NewAggregator creates an aggregator for a stream whose snapshots start
// from inputCount pre-existing messages.
func NewAggregator(inputCount int) *Aggregator {
	return &Aggregator{inputCount: inputCount}
}

// assistantText returns the text of the newest assistant message introduced
// after the input offset, or "" when the snapshot has none.
func (a *Aggregator) assistantText(state agentx.State) string {
	if len(state.Messages) <= a.inputCount {
		return ""
	}
	fresh := state.Messages[a.inputCount:]
	for i := len(fresh) - 1; i >= 0; i-- {
		if fresh[i].Role == llm.RoleAssistant && fresh[i].Content != "" {
			return fresh[i].Content
		}
	}
	return ""
}

// Delta consumes one snapshot and returns the newly grown suffix of the
// assistant text. A snapshot that does not grow the text (including the
// pathological shrink case) yields ("", false).
func (a *Aggregator) Delta(state agentx.State) (string, bool) {
	full := a.assistantText(state)
	if len(full) <= len(a.emitted) {
		return "", false
	}
	delta := full[len(a.emitted):]
	a.emitted = full
	return delta, true
}

// Final returns the accumulated assistant reply emitted so far. After the
// stream is exhausted this is the complete reply to persist.
func (a *Aggregator) Final() string {
	return a.emitted
}

// Relay drives the stream to exhaustion, invoking fn for every non-empty
// delta. It returns nil on clean exhaustion, the context error on
// cancellation, and the stream error otherwise. Relay never persists
// anything; the caller decides what to do with Final().
func (a *Aggregator) Relay(ctx context.Context, states agentx.StateStream, fn func(delta string)) error {
	defer states.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		state, err := states.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if delta, ok := a.Delta(state); ok {
			fn(delta)
		}
	}
}
