package agentx

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Abraxas-365/converse/pkg/ai/llm"
	"github.com/Abraxas-365/converse/pkg/ai/llm/toolx"
)

// Agent wraps an LLM client with an optional system prompt and tool loop.
// It holds no conversation state; callers pass the full history per call.
type Agent struct {
	client             *llm.Client
	tools              *toolx.ToolxClient
	systemPrompt       string
	options            []llm.Option
	maxAutoIterations  int // Max iterations with "auto" tool choice
	maxTotalIterations int // Hard limit to prevent infinite loops
}

// AgentOption configures an Agent
type AgentOption func(*Agent)

// WithOptions adds LLM options to the agent
func WithOptions(options ...llm.Option) AgentOption {
	return func(a *Agent) {
		a.options = append(a.options, options...)
	}
}

// WithTools adds tools to the agent
func WithTools(tools *toolx.ToolxClient) AgentOption {
	return func(a *Agent) {
		a.tools = tools
	}
}

// WithSystemPrompt sets a prompt that is prepended whenever the caller's
// history does not already start with a system message
func WithSystemPrompt(prompt string) AgentOption {
	return func(a *Agent) {
		a.systemPrompt = prompt
	}
}

// WithMaxAutoIterations sets the maximum number of "auto" tool choice iterations
func WithMaxAutoIterations(max int) AgentOption {
	return func(a *Agent) {
		a.maxAutoIterations = max
	}
}

// WithMaxTotalIterations sets the hard limit for total iterations
func WithMaxTotalIterations(max int) AgentOption {
	return func(a *Agent) {
		a.maxTotalIterations = max
	}
}

// New creates a new agent
func New(client llm.Client, opts ...AgentOption) *Agent {
	agent := &Agent{
		client:             &client,
		maxAutoIterations:  3,
		maxTotalIterations: 10,
	}

	for _, opt := range opts {
		opt(agent)
	}

	return agent
}

// prepare prepends the system prompt when the history carries none
func (a *Agent) prepare(messages []llm.Message) []llm.Message {
	hasSystem := false
	for _, msg := range messages {
		if msg.Role == llm.RoleSystem {
			hasSystem = true
			break
		}
	}

	prepared := make([]llm.Message, 0, len(messages)+1)
	if !hasSystem && a.systemPrompt != "" {
		prepared = append(prepared, llm.NewSystemMessage(a.systemPrompt))
	}
	return append(prepared, messages...)
}

func (a *Agent) chatOptions(iteration int) []llm.Option {
	options := a.options
	if a.tools == nil {
		return options
	}
	toolList := a.tools.GetTools()
	if len(toolList) == 0 {
		return options
	}

	options = append(options, llm.WithTools(toolList))
	if iteration == 0 {
		return options
	}
	// After the first round: "auto" while under the budget, then force
	// "none" so the model must answer
	if iteration <= a.maxAutoIterations {
		options = append(options, llm.WithToolChoice("auto"))
	} else {
		options = append(options, llm.WithToolChoice("none"))
	}
	return options
}

// Run processes the conversation in one shot, resolving tool calls until the
// model produces a final answer.
func (a *Agent) Run(ctx context.Context, messages []llm.Message) (string, error) {
	msgs := a.prepare(messages)

	for iteration := 0; ; iteration++ {
		if iteration >= a.maxTotalIterations {
			return "", fmt.Errorf("maximum total iterations (%d) exceeded", a.maxTotalIterations)
		}

		response, err := a.client.Chat(ctx, msgs, a.chatOptions(iteration)...)
		if err != nil {
			return "", fmt.Errorf("LLM error: %w", err)
		}

		msgs = append(msgs, response.Message)

		if len(response.Message.ToolCalls) == 0 || a.tools == nil {
			return response.Message.Content, nil
		}

		for _, tc := range response.Message.ToolCalls {
			toolResponse, err := a.tools.Call(ctx, tc)
			if err != nil {
				return "", fmt.Errorf("tool execution error: %w", err)
			}
			msgs = append(msgs, toolResponse)
		}
	}
}

// State is one cumulative snapshot of the conversation during streaming:
// the prepared input, any intermediate assistant/tool turns, and the
// assistant message accumulated so far.
type State struct {
	Messages []llm.Message
}

// StateStream is a finite, non-restartable sequence of snapshots.
// Next returns io.EOF once generation is complete.
type StateStream interface {
	Next() (State, error)
	Close() error
}

// StreamStates starts streaming generation and returns the snapshot
// sequence plus the number of input messages it starts from (callers need
// that offset to tell new assistant content from pre-existing turns).
func (a *Agent) StreamStates(ctx context.Context, messages []llm.Message) (StateStream, int, error) {
	msgs := a.prepare(messages)

	stream, err := a.client.ChatStream(ctx, msgs, a.chatOptions(0)...)
	if err != nil {
		return nil, 0, fmt.Errorf("LLM error: %w", err)
	}

	return &stateStream{
		ctx:   ctx,
		agent: a,
		base:  msgs,
		cur:   stream,
	}, len(msgs), nil
}

type stateStream struct {
	ctx       context.Context
	agent     *Agent
	base      []llm.Message // prepared input plus completed turns
	cur       llm.Stream
	last      llm.Message // assistant message accumulated by the current round
	iteration int
	err       error
}

func (s *stateStream) Next() (State, error) {
	if s.err != nil {
		return State{}, s.err
	}

	for {
		msg, err := s.cur.Next()
		if err == nil {
			if msg.Role != "" {
				s.last = msg
			}
			return s.snapshot(), nil
		}

		if !errors.Is(err, io.EOF) {
			s.err = err
			return State{}, err
		}

		// Round finished: commit the accumulated message, then either run
		// requested tools and open the next round, or end the sequence.
		_ = s.cur.Close()
		finished := s.last
		s.last = llm.Message{}
		if finished.Role != "" {
			s.base = append(s.base, finished)
		}

		if len(finished.ToolCalls) == 0 || s.agent.tools == nil {
			s.err = io.EOF
			return State{}, io.EOF
		}

		s.iteration++
		if s.iteration >= s.agent.maxTotalIterations {
			s.err = fmt.Errorf("maximum total iterations (%d) exceeded", s.agent.maxTotalIterations)
			return State{}, s.err
		}

		for _, tc := range finished.ToolCalls {
			toolResponse, err := s.agent.tools.Call(s.ctx, tc)
			if err != nil {
				s.err = fmt.Errorf("tool execution error: %w", err)
				return State{}, s.err
			}
			s.base = append(s.base, toolResponse)
		}

		next, err := s.agent.client.ChatStream(s.ctx, s.base, s.agent.chatOptions(s.iteration)...)
		if err != nil {
			s.err = fmt.Errorf("LLM error: %w", err)
			return State{}, s.err
		}
		s.cur = next
	}
}

func (s *stateStream) snapshot() State {
	msgs := make([]llm.Message, 0, len(s.base)+1)
	msgs = append(msgs, s.base...)
	if s.last.Role != "" {
		msgs = append(msgs, s.last)
	}
	return State{Messages: msgs}
}

func (s *stateStream) Close() error {
	if s.cur != nil {
		return s.cur.Close()
	}
	return nil
}
