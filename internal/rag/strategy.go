package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"toolsmith/internal/ai"
)

// Strategy is the per-turn decision of whether and how to consult a
// pre-uploaded document.
type Strategy string

const (
	StrategyRetrieval    Strategy = "retrieval"
	StrategyFullDocument Strategy = "full_document"
	StrategyNoReference  Strategy = "no_document_reference_needed"
)

// Decision is the classifier output. SearchTerm is only meaningful for
// StrategyRetrieval; Rationale exists for observability and is never used for
// control flow.
type Decision struct {
	Strategy   Strategy `json:"strategy"`
	SearchTerm string   `json:"suggested_retrieval_embedding_search_term,omitempty"`
	Rationale  string   `json:"step_by_step_rationale_for_strategy"`
}

// Classifier decides the document strategy for one turn. Implementations that
// fail should be treated as a soft-fail by the caller: degrade to
// StrategyNoReference, log, continue.
type Classifier interface {
	Classify(ctx context.Context, history []ai.ChatMessage, latestUserMessage string, documentNames []string) (Decision, error)
}

// FunctionCaller is the slice of the model backend the classifier needs.
type FunctionCaller interface {
	CompleteWithFunction(ctx context.Context, messages []ai.ChatMessage, fn ai.FunctionSchema) (json.RawMessage, error)
}

// LLMClassifier decides via a single enum-constrained function call to the
// model backend.
type LLMClassifier struct {
	caller FunctionCaller
}

func NewLLMClassifier(caller FunctionCaller) *LLMClassifier {
	return &LLMClassifier{caller: caller}
}

var strategyFunctionSchema = ai.FunctionSchema{
	Name: "execute_strategy",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"strategy": map[string]any{
				"type": "string",
				"enum": []string{
					string(StrategyRetrieval),
					string(StrategyFullDocument),
					string(StrategyNoReference),
				},
				"description": `"retrieval" for searching specific snippets; "full_document" for reading the entire document; "no_document_reference_needed" when the latest message needs no document reference.`,
			},
			"suggested_retrieval_embedding_search_term": map[string]any{
				"type":        "string",
				"description": `The search term to use to retrieve relevant snippets. Only provide this if strategy is "retrieval".`,
			},
			"step_by_step_rationale_for_strategy": map[string]any{
				"type":        "string",
				"description": "Be extremely concise. Only the minimum essential justification for the strategy.",
			},
		},
		"required": []string{"strategy", "step_by_step_rationale_for_strategy"},
	},
}

func (c *LLMClassifier) Classify(
	ctx context.Context,
	history []ai.ChatMessage,
	latestUserMessage string,
	documentNames []string,
) (Decision, error) {
	historyJSON, _ := json.Marshal(history)
	content := fmt.Sprintf(`// This is the message thread so far:
---
%s
---

// This is the latest message:
---
%s
---

You have access to the following pre-uploaded document(s): %s

Which strategy should we use?:
1. "retrieval" for searching specific snippets; useful for specific questions that can potentially be found in the doc.
2. "full_document" for reading the entire document; useful when answering requires the entire gist of the pre-uploaded doc.
3. "no_document_reference_needed" when the latest message clearly needs no document reference.`,
		historyJSON, latestUserMessage, strings.Join(documentNames, ", "))

	args, err := c.caller.CompleteWithFunction(ctx, []ai.ChatMessage{
		{
			Role:    "system",
			Content: "You help determine whether we should search a document for snippets or just read the whole document.",
		},
		{Role: "user", Content: content},
	}, strategyFunctionSchema)
	if err != nil {
		return Decision{}, fmt.Errorf("strategy classification failed: %w", err)
	}

	var decision Decision
	if err := json.Unmarshal(args, &decision); err != nil {
		return Decision{}, fmt.Errorf("parse strategy arguments failed: %w", err)
	}

	switch decision.Strategy {
	case StrategyRetrieval, StrategyFullDocument, StrategyNoReference:
	default:
		return Decision{}, fmt.Errorf("unknown strategy %q", decision.Strategy)
	}
	if decision.Strategy != StrategyRetrieval {
		decision.SearchTerm = ""
	} else if strings.TrimSpace(decision.SearchTerm) == "" {
		decision.SearchTerm = latestUserMessage
	}
	return decision, nil
}
