package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"toolsmith/internal/app"
	"toolsmith/internal/transport/http/response"
)

type DocumentHandler struct {
	docService  *app.DocumentService
	maxSizeByte int64
}

func NewDocumentHandler(docService *app.DocumentService, maxSizeByte int64) *DocumentHandler {
	return &DocumentHandler{docService: docService, maxSizeByte: maxSizeByte}
}

// Upload accepts a multipart file, chunks it, and kicks off async embedding.
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if h.maxSizeByte > 0 && fileHeader.Size > h.maxSizeByte {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "unreadable file")
		return
	}
	defer file.Close()

	doc, err := h.docService.Upload(c.Request.Context(), app.UploadInput{
		UploaderID: userID,
		FileName:   fileHeader.Filename,
		Reader:     file,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrUnsupportedFileType), errors.Is(err, app.ErrEmptyDocument):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "upload document failed")
		}
		return
	}

	response.OK(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	docs, err := h.docService.ListDocuments(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	docID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	doc, err := h.docService.GetDocument(docID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get document failed")
		}
		return
	}
	response.OK(c, doc)
}

// Summarize returns a one-off model-written summary of the document.
func (h *DocumentHandler) Summarize(c *gin.Context) {
	docID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	summary, err := h.docService.Summarize(c.Request.Context(), docID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		case errors.Is(err, app.ErrDocumentProcessing):
			response.Error(c, http.StatusConflict, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrEmptyDocument):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "summarize document failed")
		}
		return
	}
	response.OK(c, gin.H{"summary": summary})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	docID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.docService.DeleteDocument(userID, docID); err != nil {
		switch {
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		case errors.Is(err, app.ErrPermissionDenied):
			response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete document failed")
		}
		return
	}
	response.OK(c, gin.H{"deleted_document_id": docID})
}
