package streamx

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/converse/pkg/ai/llm"
	"github.com/Abraxas-365/converse/pkg/ai/llm/agentx"
)

// fakeStateStream replays canned snapshots, then the terminal error.
type fakeStateStream struct {
	states   []agentx.State
	terminal error
	idx      int
	closed   bool
}

func (f *fakeStateStream) Next() (agentx.State, error) {
	if f.idx >= len(f.states) {
		if f.terminal != nil {
			return agentx.State{}, f.terminal
		}
		return agentx.State{}, io.EOF
	}
	state := f.states[f.idx]
	f.idx++
	return state, nil
}

func (f *fakeStateStream) Close() error {
	f.closed = true
	return nil
}

// snapshots builds cumulative states: the fixed input turns plus one
// assistant message per element of texts.
func snapshots(input []llm.Message, texts ...string) []agentx.State {
	states := make([]agentx.State, 0, len(texts))
	for _, text := range texts {
		messages := make([]llm.Message, 0, len(input)+1)
		messages = append(messages, input...)
		messages = append(messages, llm.NewAssistantMessage(text))
		states = append(states, agentx.State{Messages: messages})
	}
	return states
}

func TestDeltasFromGrowingSnapshots(t *testing.T) {
	input := []llm.Message{llm.NewUserMessage("greet me")}
	agg := NewAggregator(len(input))

	var deltas []string
	for _, state := range snapshots(input, "Hi", "Hi there", "Hi there!") {
		delta, ok := agg.Delta(state)
		require.True(t, ok)
		deltas = append(deltas, delta)
	}

	assert.Equal(t, []string{"Hi", " there", "!"}, deltas)
	assert.Equal(t, "Hi there!", agg.Final())
	assert.Equal(t, agg.Final(), strings.Join(deltas, ""))
}

func TestNoDeltaWithoutGrowth(t *testing.T) {
	input := []llm.Message{llm.NewUserMessage("greet me")}
	agg := NewAggregator(len(input))

	states := snapshots(input, "Hi there", "Hi there", "Hi")

	_, ok := agg.Delta(states[0])
	require.True(t, ok)

	// repeat
	_, ok = agg.Delta(states[1])
	assert.False(t, ok)

	// shrink
	_, ok = agg.Delta(states[2])
	assert.False(t, ok)

	assert.Equal(t, "Hi there", agg.Final())
}

func TestInputHistoryDoesNotLeak(t *testing.T) {
	// the prior assistant turn sits before the input offset and must not
	// be replayed as output
	input := []llm.Message{
		llm.NewUserMessage("first question"),
		llm.NewAssistantMessage("old answer"),
		llm.NewUserMessage("second question"),
	}
	agg := NewAggregator(len(input))

	_, ok := agg.Delta(agentx.State{Messages: input})
	assert.False(t, ok)
	assert.Equal(t, "", agg.Final())

	delta, ok := agg.Delta(snapshots(input, "new answer")[0])
	require.True(t, ok)
	assert.Equal(t, "new answer", delta)
}

func TestRelayCleanExhaustion(t *testing.T) {
	input := []llm.Message{llm.NewUserMessage("greet me")}
	stream := &fakeStateStream{states: snapshots(input, "Hi", "Hi there!")}
	agg := NewAggregator(len(input))

	var deltas []string
	err := agg.Relay(context.Background(), stream, func(delta string) {
		deltas = append(deltas, delta)
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Hi", " there!"}, deltas)
	assert.Equal(t, "Hi there!", agg.Final())
	assert.True(t, stream.closed)
}

func TestRelayMidStreamFailure(t *testing.T) {
	input := []llm.Message{llm.NewUserMessage("greet me")}
	boom := errors.New("upstream gone")
	stream := &fakeStateStream{states: snapshots(input, "Hi"), terminal: boom}
	agg := NewAggregator(len(input))

	var deltas []string
	err := agg.Relay(context.Background(), stream, func(delta string) {
		deltas = append(deltas, delta)
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"Hi"}, deltas)
	// partial text stays recoverable for the caller
	assert.Equal(t, "Hi", agg.Final())
	assert.True(t, stream.closed)
}

func TestRelayCancellation(t *testing.T) {
	input := []llm.Message{llm.NewUserMessage("greet me")}
	stream := &fakeStateStream{states: snapshots(input, "Hi", "Hi there")}
	agg := NewAggregator(len(input))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := agg.Relay(ctx, stream, func(string) {
		t.Fatal("no delta should be emitted after cancellation")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, stream.closed)
}
