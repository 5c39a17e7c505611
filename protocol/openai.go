package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/relayforge/relayforge/llm"
)

// passthroughRequest decodes an OpenAI-dialect body directly into the
// canonical shape: the OpenAI chat-completions JSON shape already matches
// llm.ChatRequest field-for-field, so there is nothing to transform.
func passthroughRequest(body []byte) (*llm.ChatRequest, error) {
	var req llm.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("protocol: invalid openai request body: %w", err)
	}
	return &req, nil
}

// passthroughResponse encodes a canonical response as OpenAI-dialect JSON.
func passthroughResponse(resp *llm.ChatResponse) ([]byte, error) {
	return json.Marshal(resp)
}
