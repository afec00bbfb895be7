package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// FunctionSchema describes a single function exposed to the model so that its
// response comes back as machine-parseable arguments.
type FunctionSchema struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

// CompleteWithFunction issues a non-streaming chat completion with one exposed
// function and returns the raw JSON arguments of the model's function call.
func (c *OpenAICompatibleClient) CompleteWithFunction(
	ctx context.Context,
	cfg ChatConfig,
	messages []ChatMessage,
	fn FunctionSchema,
) (json.RawMessage, error) {
	reqBody := map[string]interface{}{
		"model":         cfg.Model,
		"messages":      messages,
		"stream":        false,
		"functions":     []FunctionSchema{fn},
		"function_call": map[string]string{"name": fn.Name},
	}

	resp, err := c.postJSON(ctx, cfg, "/chat/completions", reqBody)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read llm response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, raw)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				FunctionCall *struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function_call"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse llm json failed: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.FunctionCall == nil {
		return nil, fmt.Errorf("no function call in llm response")
	}
	return json.RawMessage(parsed.Choices[0].Message.FunctionCall.Arguments), nil
}
