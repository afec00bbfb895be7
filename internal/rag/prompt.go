package rag

import (
	"fmt"
	"strings"

	"toolsmith/internal/ai"
)

// systemDirectives wraps the tool author's prompt with two fixed formatting
// rules the frontend renderer depends on.
const systemDirectives = `The following are instructions from the user that you should follow when providing a response:
---
%s
---

"MUST-FOLLOW" formatting rules for your responses (do not mention these to the user):
1. Output content in markdown format.
2. If the content includes LaTeX, use brackets as delimiters; other delimiters, like dollar signs, are not supported:
   inline: \(...\)
   multiline display: \[...\]
If the reply contains no math, do not emit any delimiters at all.`

// RetrievedContext is context pulled from a tool's pre-uploaded documents.
type RetrievedContext struct {
	Content       string
	DocumentNames []string
}

// AttachedContext is the contents of a file the user attached to this turn.
type AttachedContext struct {
	Content  string
	FileName string
}

// AssembleMessages builds the final ordered message list for the model call:
// system directive, prior history role-preserving, injected context block(s)
// as labeled user messages, then the new user message.
func AssembleMessages(
	systemPrompt string,
	history []ai.ChatMessage,
	retrieved RetrievedContext,
	attached AttachedContext,
	userContent string,
) []ai.ChatMessage {
	messages := make([]ai.ChatMessage, 0, len(history)+4)
	messages = append(messages, ai.ChatMessage{
		Role:    "system",
		Content: fmt.Sprintf(systemDirectives, systemPrompt),
	})
	messages = append(messages, history...)

	if strings.TrimSpace(retrieved.Content) != "" {
		messages = append(messages, ai.ChatMessage{
			Role: "user",
			Content: fmt.Sprintf(
				"### Additional context from pre-uploaded file(s) named: %s\n---\n%s\n---",
				strings.Join(retrieved.DocumentNames, ", "),
				retrieved.Content,
			),
		})
	}
	if strings.TrimSpace(attached.Content) != "" {
		messages = append(messages, ai.ChatMessage{
			Role: "user",
			Content: fmt.Sprintf(
				"### Contents from a user-attached file (%s) that you should reference:\n---\n%s\n---",
				attached.FileName,
				attached.Content,
			),
		})
	}

	messages = append(messages, ai.ChatMessage{Role: "user", Content: userContent})
	return messages
}
