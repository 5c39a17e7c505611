package protocol

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/relayforge/relayforge/llm"
)

// anthropicRequest is the wire shape of POST /v1/messages.
type anthropicRequest struct {
	Model       string              `json:"model"`
	System      string              `json:"system,omitempty"`
	Messages    []anthropicMessage  `json:"messages"`
	MaxTokens   int                 `json:"max_tokens"`
	Temperature float32             `json:"temperature,omitempty"`
	TopP        float32             `json:"top_p,omitempty"`
	Stream      bool                `json:"stream,omitempty"`
	Tools       []anthropicToolSpec `json:"tools,omitempty"`
	StopSeqs    []string            `json:"stop_sequences,omitempty"`
}

type anthropicMessage struct {
	Role    string              `json:"role"`
	Content []anthropicContent `json:"content"`
}

// anthropicContent is a content block. Exactly one of Text/ToolUse/ToolResult
// fields is populated, selected by Type.
type anthropicContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`         // tool_use
	Name      string          `json:"name,omitempty"`       // tool_use
	Input     json.RawMessage `json:"input,omitempty"`      // tool_use
	ToolUseID string          `json:"tool_use_id,omitempty"` // tool_result
	Content   string          `json:"content,omitempty"`     // tool_result
}

type anthropicToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Role       string             `json:"role"`
	Model      string             `json:"model"`
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason,omitempty"`
	Usage      anthropicUsage     `json:"usage"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// finishToStopReason maps OpenAI's finish_reason to Anthropic's stop_reason.
var finishToStopReason = map[string]string{
	"stop":       "end_turn",
	"length":     "max_tokens",
	"tool_calls": "tool_use",
}

// AnthropicTransformer is the bundled Anthropic <-> canonical (OpenAI-shaped)
// transformer. It performs system message extraction/injection, content
// block <-> flat string conversion, tool_use/tool_result <-> tool_calls/tool
// role conversion, and stop_reason <-> finish_reason mapping.
type AnthropicTransformer struct {
	priority int
}

// NewAnthropicTransformer creates the bundled transformer at the given
// priority (higher wins when multiple transformers claim the same pair).
func NewAnthropicTransformer(priority int) *AnthropicTransformer {
	return &AnthropicTransformer{priority: priority}
}

func (t *AnthropicTransformer) Priority() int { return t.priority }

func (t *AnthropicTransformer) Supports(from, to Dialect) bool {
	return (from == DialectAnthropic && to == DialectOpenAI) ||
		(from == DialectOpenAI && to == DialectAnthropic)
}

func (t *AnthropicTransformer) ValidateInput(body []byte) error {
	var req anthropicRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return fmt.Errorf("malformed anthropic request: %w", err)
	}
	if req.Model == "" {
		return fmt.Errorf("anthropic request missing model")
	}
	if len(req.Messages) == 0 {
		return fmt.Errorf("anthropic request has no messages")
	}
	return nil
}

func (t *AnthropicTransformer) ValidateOutput(body []byte) error {
	var resp anthropicResponse
	return json.Unmarshal(body, &resp)
}

// ToCanonical converts an Anthropic request into llm.ChatRequest.
func (t *AnthropicTransformer) ToCanonical(ctx context.Context, body []byte) (*llm.ChatRequest, error) {
	var req anthropicRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("protocol: invalid anthropic request body: %w", err)
	}

	messages := make([]llm.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, llm.NewSystemMessage(req.System))
	}

	for _, m := range req.Messages {
		role := llm.Role(m.Role)
		text, toolCalls, toolResultFor := flattenContent(m.Content)

		if toolResultFor != "" {
			messages = append(messages, llm.NewToolMessage(toolResultFor, "", text))
			continue
		}

		msg := llm.NewMessage(role, text)
		if len(toolCalls) > 0 {
			msg = msg.WithToolCalls(toolCalls)
		}
		messages = append(messages, msg)
	}

	canonical := &llm.ChatRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.StopSeqs,
	}

	for _, tool := range req.Tools {
		canonical.Tools = append(canonical.Tools, llm.ToolSchema{
			Name:        tool.Name,
			Description: tool.Description,
		})
	}

	return canonical, nil
}

// flattenContent reduces Anthropic content blocks to a flat string plus any
// tool_use calls, per the round-trip law's documented lossy fields (multiple
// text blocks concatenate; non-text/tool_use/tool_result blocks are dropped).
// When content is entirely a single tool_result block, toolResultFor carries
// its tool_use_id and the other returns are the tool's result text.
func flattenContent(blocks []anthropicContent) (text string, toolCalls []llm.ToolCall, toolResultFor string) {
	for _, b := range blocks {
		switch b.Type {
		case "text":
			text += b.Text
		case "tool_use":
			toolCalls = append(toolCalls, llm.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: b.Input,
			})
		case "tool_result":
			toolResultFor = b.ToolUseID
			text = b.Content
		}
	}
	return text, toolCalls, toolResultFor
}

// FromCanonical converts llm.ChatResponse into an Anthropic response body.
func (t *AnthropicTransformer) FromCanonical(ctx context.Context, resp *llm.ChatResponse) ([]byte, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("protocol: canonical response has no choices")
	}
	choice := resp.Choices[0]

	content := []anthropicContent{}
	if choice.Message.Content != "" {
		content = append(content, anthropicContent{Type: "text", Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		content = append(content, anthropicContent{
			Type:  "tool_use",
			ID:    tc.ID,
			Name:  tc.Name,
			Input: tc.Arguments,
		})
	}

	stopReason := finishToStopReason[choice.FinishReason]
	if stopReason == "" {
		stopReason = "end_turn"
	}

	out := anthropicResponse{
		ID:         resp.ID,
		Type:       "message",
		Role:       "assistant",
		Model:      resp.Model,
		Content:    content,
		StopReason: stopReason,
		Usage: anthropicUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	return json.Marshal(out)
}
