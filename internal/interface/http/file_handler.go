package http

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/ai-helloworld/internal/domain/rag"
)

type uploadFilePayload struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
	Content     string `json:"content" binding:"required"` // base64
}

// UploadFile implements POST /files/upload: accepts a single base64-encoded
// file and triggers background ingestion.
func (h *Handler) UploadFile(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	var req uploadFilePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "content is not valid base64", err))
		return
	}

	file, err := h.ingestion.Upload(c.Request.Context(), userIDString(claims), req.Filename, req.ContentType, data)
	if err != nil {
		status := http.StatusInternalServerError
		code := "upload_failed"
		if errors.Is(err, rag.ErrUnsupportedFormat) {
			status = http.StatusBadRequest
			code = "unsupported_content_type"
		}
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusAccepted, file)
}

// DeleteFile implements DELETE /files/{id}: deletes the file and its
// indexed chunks.
func (h *Handler) DeleteFile(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	id := c.Param("id")

	file, found, err := h.ingestion.GetFile(c.Request.Context(), userIDString(claims), id)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "fetch_failed", errMessage(err), err))
		return
	}
	if !found {
		abortWithError(c, NewHTTPError(http.StatusNotFound, "not_found", "file not found", nil))
		return
	}

	if err := h.ingestion.DeleteFile(c.Request.Context(), file.ID); err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "delete_failed", errMessage(err), err))
		return
	}
	c.Status(http.StatusNoContent)
}
