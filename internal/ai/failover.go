package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
)

// codeContextLengthExceeded is the OpenAI error code returned when the input
// exceeds the model's context window. It must never trigger a failover.
const codeContextLengthExceeded = "context_length_exceeded"

// ErrAllBackendsFailed means every configured backend was tried and failed.
var ErrAllBackendsFailed = errors.New("all llm backends failed")

// IsTokenLimit reports whether err is an input-too-long backend error.
func IsTokenLimit(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == codeContextLengthExceeded
}

// Failover drives chat completions against an ordered list of backend
// configurations, trying each in sequence. A token-limit error from any
// backend propagates immediately without trying the next one.
type Failover struct {
	client  *OpenAICompatibleClient
	configs []ChatConfig
}

func NewFailover(client *OpenAICompatibleClient, configs ...ChatConfig) *Failover {
	return &Failover{client: client, configs: configs}
}

// StreamComplete streams from the first backend that accepts the request.
// Failover only happens before the first token is forwarded; once a backend
// has started streaming, its error is final.
func (f *Failover) StreamComplete(
	ctx context.Context,
	messages []ChatMessage,
	onChunk func(chunk string) error,
) (string, error) {
	var lastErr error
	for i, cfg := range f.configs {
		started := false
		full, err := f.client.StreamComplete(ctx, cfg, messages, func(chunk string) error {
			started = true
			return onChunk(chunk)
		})
		if err == nil {
			return full, nil
		}
		if IsTokenLimit(err) || started || ctx.Err() != nil {
			return "", err
		}
		log.Printf("llm backend %d (%s) failed, trying next: %v", i, cfg.Model, err)
		lastErr = err
	}
	if lastErr == nil {
		return "", fmt.Errorf("%w: no backends configured", ErrAllBackendsFailed)
	}
	return "", fmt.Errorf("%w: %v", ErrAllBackendsFailed, lastErr)
}

// Complete runs a non-streaming completion with the same failover policy.
func (f *Failover) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	var lastErr error
	for i, cfg := range f.configs {
		full, err := f.client.Complete(ctx, cfg, messages)
		if err == nil {
			return full, nil
		}
		if IsTokenLimit(err) || ctx.Err() != nil {
			return "", err
		}
		log.Printf("llm backend %d (%s) failed, trying next: %v", i, cfg.Model, err)
		lastErr = err
	}
	if lastErr == nil {
		return "", fmt.Errorf("%w: no backends configured", ErrAllBackendsFailed)
	}
	return "", fmt.Errorf("%w: %v", ErrAllBackendsFailed, lastErr)
}

// CompleteWithFunction runs a function-calling completion with the same
// failover policy.
func (f *Failover) CompleteWithFunction(
	ctx context.Context,
	messages []ChatMessage,
	fn FunctionSchema,
) (json.RawMessage, error) {
	var lastErr error
	for i, cfg := range f.configs {
		args, err := f.client.CompleteWithFunction(ctx, cfg, messages, fn)
		if err == nil {
			return args, nil
		}
		if IsTokenLimit(err) || ctx.Err() != nil {
			return nil, err
		}
		log.Printf("llm backend %d (%s) failed, trying next: %v", i, cfg.Model, err)
		lastErr = err
	}
	if lastErr == nil {
		return nil, fmt.Errorf("%w: no backends configured", ErrAllBackendsFailed)
	}
	return nil, fmt.Errorf("%w: %v", ErrAllBackendsFailed, lastErr)
}
