package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"toolsmith/internal/app"
	"toolsmith/internal/transport/http/response"
)

type GenerateHandler struct {
	generateService *app.GenerateService
}

type GenerateRequest struct {
	ToolID             uint   `json:"tool_id" binding:"required,gt=0"`
	ThreadID           uint   `json:"thread_id"`
	Content            string `json:"content" binding:"required"`
	AttachedDocumentID uint   `json:"attached_document_id"`
}

func NewGenerateHandler(generateService *app.GenerateService) *GenerateHandler {
	return &GenerateHandler{generateService: generateService}
}

// Stream runs one turn over SSE. Event order: threadId once, data per token
// batch, messageId once on success. Errors after headers are sent go out as
// an error event; a closed connection just cancels the turn.
func (h *GenerateHandler) Stream(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	writeEvent := func(event, data string) error {
		if _, err := c.Writer.Write(encodeSSE(event, data)); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err := h.generateService.Generate(c.Request.Context(), app.TurnInput{
		UserID:             userID,
		ToolID:             req.ToolID,
		ThreadID:           req.ThreadID,
		Content:            req.Content,
		AttachedDocumentID: req.AttachedDocumentID,
	}, app.TurnEvents{
		OnThreadResolved: func(threadID uint) error {
			return writeEvent("threadId", fmt.Sprintf("%d", threadID))
		},
		OnToken: func(chunk string) error {
			return writeEvent("", chunk)
		},
		OnCompleted: func(messageID uint) error {
			return writeEvent("messageId", fmt.Sprintf("%d", messageID))
		},
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			_ = writeEvent("error", "invalid input")
		case errors.Is(err, app.ErrToolNotFound), errors.Is(err, app.ErrThreadNotFound):
			_ = writeEvent("error", err.Error())
		default:
			_ = writeEvent("error", err.Error())
		}
	}
}

// encodeSSE frames one server-sent event. Multi-line data becomes one data:
// line per line, so a standard EventSource decoder reassembles the payload
// byte for byte, newlines included.
func encodeSSE(event, data string) []byte {
	var b strings.Builder
	if event != "" {
		b.WriteString("event: ")
		b.WriteString(event)
		b.WriteByte('\n')
	}
	data = strings.ReplaceAll(data, "\r\n", "\n")
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return []byte(b.String())
}
