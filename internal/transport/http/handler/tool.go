package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"toolsmith/internal/app"
	"toolsmith/internal/transport/http/response"
)

type ToolHandler struct {
	toolService *app.ToolService
}

type CreateToolRequest struct {
	Title               string `json:"title" binding:"required,max=256"`
	SystemPrompt        string `json:"system_prompt" binding:"required"`
	ConversationStarter string `json:"conversation_starter"`
	AllowFileUpload     bool   `json:"allow_file_upload"`
}

type UpdateToolRequest struct {
	Title               string `json:"title" binding:"max=256"`
	SystemPrompt        string `json:"system_prompt"`
	ConversationStarter string `json:"conversation_starter"`
	AllowFileUpload     *bool  `json:"allow_file_upload"`
	Status              string `json:"status"`
}

type AttachDocumentRequest struct {
	DocumentID uint `json:"document_id" binding:"required,gt=0"`
}

func NewToolHandler(toolService *app.ToolService) *ToolHandler {
	return &ToolHandler{toolService: toolService}
}

func (h *ToolHandler) Create(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req CreateToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	tool, err := h.toolService.CreateTool(app.CreateToolInput{
		AuthorID:            userID,
		Title:               req.Title,
		SystemPrompt:        req.SystemPrompt,
		ConversationStarter: req.ConversationStarter,
		AllowFileUpload:     req.AllowFileUpload,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create tool failed")
		}
		return
	}

	response.OK(c, tool)
}

func (h *ToolHandler) Get(c *gin.Context) {
	toolID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	tool, err := h.toolService.GetTool(toolID)
	if err != nil {
		respondToolError(c, err, "get tool failed")
		return
	}
	response.OK(c, tool)
}

func (h *ToolHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	tools, err := h.toolService.ListTools(userID)
	if err != nil {
		respondToolError(c, err, "list tools failed")
		return
	}
	response.OK(c, tools)
}

func (h *ToolHandler) Update(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	toolID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	tool, err := h.toolService.UpdateTool(app.UpdateToolInput{
		AuthorID:            userID,
		ToolID:              toolID,
		Title:               req.Title,
		SystemPrompt:        req.SystemPrompt,
		ConversationStarter: req.ConversationStarter,
		AllowFileUpload:     req.AllowFileUpload,
		Status:              req.Status,
	})
	if err != nil {
		respondToolError(c, err, "update tool failed")
		return
	}
	response.OK(c, tool)
}

func (h *ToolHandler) Delete(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	toolID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.toolService.DeleteTool(userID, toolID); err != nil {
		respondToolError(c, err, "delete tool failed")
		return
	}
	response.OK(c, gin.H{"deleted_tool_id": toolID})
}

func (h *ToolHandler) AttachDocument(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	toolID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req AttachDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	if err := h.toolService.AttachDocument(userID, toolID, req.DocumentID); err != nil {
		respondToolError(c, err, "attach document failed")
		return
	}
	response.OK(c, gin.H{"tool_id": toolID, "document_id": req.DocumentID})
}

func (h *ToolHandler) DetachDocument(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	toolID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	docID, ok := parseIDParam(c, "doc_id")
	if !ok {
		return
	}

	if err := h.toolService.DetachDocument(userID, toolID, docID); err != nil {
		respondToolError(c, err, "detach document failed")
		return
	}
	response.OK(c, gin.H{"tool_id": toolID, "document_id": docID})
}

func (h *ToolHandler) ListDocuments(c *gin.Context) {
	toolID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	docs, err := h.toolService.ListToolDocuments(toolID)
	if err != nil {
		respondToolError(c, err, "list tool documents failed")
		return
	}
	response.OK(c, docs)
}

func respondToolError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrToolNotFound):
		response.Error(c, http.StatusNotFound, response.CodeToolNotFound, err.Error())
	case errors.Is(err, app.ErrDocumentNotFound):
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
	case errors.Is(err, app.ErrNotToolAuthor):
		response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id64, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(id64), true
}
