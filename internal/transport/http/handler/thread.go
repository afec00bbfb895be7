package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"toolsmith/internal/app"
	"toolsmith/internal/transport/http/response"
)

type ThreadHandler struct {
	convoService *app.ConversationService
}

type SubmitFeedbackRequest struct {
	MessageID uint   `json:"message_id" binding:"required,gt=0"`
	Rating    int    `json:"rating" binding:"required,min=1,max=5"`
	Comment   string `json:"comment" binding:"max=2000"`
}

func NewThreadHandler(convoService *app.ConversationService) *ThreadHandler {
	return &ThreadHandler{convoService: convoService}
}

func (h *ThreadHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	toolID64, err := strconv.ParseUint(c.Query("tool_id"), 10, 64)
	if err != nil || toolID64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid tool_id")
		return
	}

	threads, err := h.convoService.ListThreads(uint(toolID64), userID)
	if err != nil {
		respondThreadError(c, err, "list threads failed")
		return
	}
	response.OK(c, threads)
}

// Messages returns a page of the thread's history, newest first.
func (h *ThreadHandler) Messages(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	threadID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	messages, err := h.convoService.ListMessages(c.Request.Context(), userID, threadID, limit, offset)
	if err != nil {
		respondThreadError(c, err, "list messages failed")
		return
	}
	response.OK(c, messages)
}

func (h *ThreadHandler) Delete(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	threadID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.convoService.DeleteThread(c.Request.Context(), threadID, userID); err != nil {
		respondThreadError(c, err, "delete thread failed")
		return
	}
	response.OK(c, gin.H{"deleted_thread_id": threadID})
}

func (h *ThreadHandler) SubmitFeedback(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	fb, err := h.convoService.SubmitFeedback(c.Request.Context(), app.SubmitFeedbackInput{
		UserID:    userID,
		MessageID: req.MessageID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrMessageNotFound):
			response.Error(c, http.StatusNotFound, response.CodeMessageNotFound, err.Error())
		default:
			respondThreadError(c, err, "submit feedback failed")
		}
		return
	}
	response.OK(c, fb)
}

func respondThreadError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrThreadNotFound):
		response.Error(c, http.StatusNotFound, response.CodeThreadNotFound, err.Error())
	case errors.Is(err, app.ErrPermissionDenied):
		response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
