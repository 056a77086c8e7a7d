package toolx

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Abraxas-365/converse/pkg/ai/llm"
)

// Toolx is a tool callable by the agent
type Toolx interface {
	Call(ctx context.Context, inputs string) (any, error)
	GetTool() llm.Tool
	Name() string
}

// ToolxClient dispatches tool calls by name
type ToolxClient struct {
	tools map[string]Toolx
}

func FromToolx(tools ...Toolx) *ToolxClient {
	toolMap := make(map[string]Toolx)
	for _, tool := range tools {
		toolMap[tool.Name()] = tool
	}
	return &ToolxClient{tools: toolMap}
}

func (t *ToolxClient) GetTools() []llm.Tool {
	tools := make([]llm.Tool, 0, len(t.tools))
	for _, tool := range t.tools {
		tools = append(tools, tool.GetTool())
	}
	return tools
}

// Call executes the requested tool and wraps the result as a tool message.
// Tool failures are reported back to the model as content, never as errors:
// the model can recover from a failed tool, the conversation cannot recover
// from an aborted turn.
func (t *ToolxClient) Call(ctx context.Context, tc llm.ToolCall) (llm.Message, error) {
	tool, ok := t.tools[tc.Function.Name]
	if !ok {
		return llm.NewToolMessage(tc.ID, "unknown tool: "+tc.Function.Name), nil
	}

	result, err := tool.Call(ctx, tc.Function.Arguments)
	if err != nil {
		return llm.NewToolMessage(tc.ID, "tool error: "+err.Error()), nil
	}

	var resultStr string
	switch v := result.(type) {
	case string:
		resultStr = v
	case []byte:
		resultStr = string(v)
	case int:
		resultStr = strconv.Itoa(v)
	case float64:
		resultStr = strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		resultStr = strconv.FormatBool(v)
	case fmt.Stringer:
		resultStr = v.String()
	default:
		jsonBytes, jsonErr := json.Marshal(result)
		if jsonErr != nil {
			return llm.NewToolMessage(tc.ID, "tool error: unencodable result: "+jsonErr.Error()), nil
		}
		resultStr = string(jsonBytes)
	}
	return llm.NewToolMessage(tc.ID, resultStr), nil
}
