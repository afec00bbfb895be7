package rag

import (
	"strings"
	"testing"

	"toolsmith/internal/ai"
)

func TestAssembleMessagesOrder(t *testing.T) {
	history := []ai.ChatMessage{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}
	messages := AssembleMessages(
		"You are a tax advisor.",
		history,
		RetrievedContext{Content: "retrieved snippet", DocumentNames: []string{"taxcode.pdf"}},
		AttachedContext{Content: "attached text", FileName: "w2.pdf"},
		"final question",
	)

	if messages[0].Role != "system" {
		t.Fatalf("first message role = %q, want system", messages[0].Role)
	}
	if !strings.Contains(messages[0].Content, "You are a tax advisor.") {
		t.Errorf("system message missing tool prompt")
	}
	if !strings.Contains(messages[0].Content, "markdown") || !strings.Contains(messages[0].Content, `\(...\)`) {
		t.Errorf("system message missing formatting directives:\n%s", messages[0].Content)
	}

	last := messages[len(messages)-1]
	if last.Role != "user" || last.Content != "final question" {
		t.Errorf("last message = %+v, want the new user message", last)
	}

	// history → retrieved → attached → user
	idxHistory := indexOfContent(messages, "earlier answer")
	idxRetrieved := indexOfContent(messages, "retrieved snippet")
	idxAttached := indexOfContent(messages, "attached text")
	if !(idxHistory < idxRetrieved && idxRetrieved < idxAttached && idxAttached < len(messages)-1) {
		t.Errorf("message order wrong: history=%d retrieved=%d attached=%d total=%d",
			idxHistory, idxRetrieved, idxAttached, len(messages))
	}
	if messages[idxRetrieved].Role != "user" || messages[idxAttached].Role != "user" {
		t.Errorf("injected context blocks must be user-role messages")
	}
	if !strings.Contains(messages[idxRetrieved].Content, "pre-uploaded file(s) named: taxcode.pdf") {
		t.Errorf("retrieved context not labeled:\n%s", messages[idxRetrieved].Content)
	}
	if !strings.Contains(messages[idxAttached].Content, "user-attached file (w2.pdf)") {
		t.Errorf("attached context not labeled:\n%s", messages[idxAttached].Content)
	}
}

func TestAssembleMessagesNoContext(t *testing.T) {
	history := []ai.ChatMessage{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}}
	messages := AssembleMessages("prompt", history, RetrievedContext{}, AttachedContext{}, "how are you?")

	if len(messages) != 4 {
		t.Fatalf("len(messages) = %d, want 4 (no injected context blocks)", len(messages))
	}
	for _, m := range messages {
		if strings.Contains(m.Content, "Additional context") || strings.Contains(m.Content, "user-attached file") {
			t.Errorf("unexpected injected context block: %q", m.Content)
		}
	}
}

func indexOfContent(messages []ai.ChatMessage, substr string) int {
	for i, m := range messages {
		if strings.Contains(m.Content, substr) {
			return i
		}
	}
	return -1
}
