package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/ai-helloworld/internal/domain/auth"
	"github.com/yanqian/ai-helloworld/internal/domain/formpipeline"
)

func userIDString(claims auth.Claims) string {
	return strconv.FormatInt(claims.UserID, 10)
}

// AnalyzeForm implements POST /form/analyze/async: schedules a new pipeline
// run and returns immediately with the pending request. Returns 409 if the
// user already has an active request.
func (h *Handler) AnalyzeForm(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}

	var in formpipeline.AnalyzeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	if !formpipeline.ValidQuality(in.Quality) {
		in.Quality = formpipeline.DefaultQuality
	}
	if in.Mode == "" {
		in.Mode = formpipeline.ModeBasic
	}

	userID := userIDString(claims)
	req, err := h.formManager.Schedule(c.Request.Context(), userID, func(runCtx context.Context, scheduled formpipeline.FormRequest) {
		h.orchestrator.Run(runCtx, scheduled, in)
	})
	if err != nil {
		if errors.Is(err, formpipeline.ErrActiveRequestExists) {
			abortWithError(c, NewHTTPError(http.StatusConflict, "admission_conflict", err.Error(), err))
			return
		}
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "schedule_failed", errMessage(err), err))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"request_id": req.ID, "status": req.Status})
}

// FormRequestStatus implements GET /form/request/{id}/status.
func (h *Handler) FormRequestStatus(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	id := c.Param("id")

	req, found, err := h.requestRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "fetch_failed", errMessage(err), err))
		return
	}
	if !found || req.UserID != userIDString(claims) {
		abortWithError(c, NewHTTPError(http.StatusNotFound, "not_found", "request not found", nil))
		return
	}

	events, err := h.progressRepo.List(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "fetch_failed", errMessage(err), err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":              req.ID,
		"status":          req.Status,
		"fields_detected": req.FieldsDetected,
		"error_message":   req.ErrorMessage,
		"created_at":      req.CreatedAt,
		"started_at":      req.StartedAt,
		"completed_at":    req.CompletedAt,
		"progress":        events,
	})
}

// FormRequestActions implements GET /form/request/{id}/actions.
func (h *Handler) FormRequestActions(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	id := c.Param("id")

	req, found, err := h.requestRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "fetch_failed", errMessage(err), err))
		return
	}
	if !found || req.UserID != userIDString(claims) {
		abortWithError(c, NewHTTPError(http.StatusNotFound, "not_found", "request not found", nil))
		return
	}

	var actions []formpipeline.FormAction
	if req.Status == formpipeline.StatusCompleted {
		actions, err = h.actionRepo.GetByRequest(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, NewHTTPError(http.StatusInternalServerError, "fetch_failed", errMessage(err), err))
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": req.Status, "actions": actions})
}

// CancelFormRequest implements DELETE /form/request/{id}: cancels the
// running pipeline (if any), then deletes the request (cascade removes
// progress and actions).
func (h *Handler) CancelFormRequest(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	id := c.Param("id")

	req, found, err := h.requestRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "fetch_failed", errMessage(err), err))
		return
	}
	if !found || req.UserID != userIDString(claims) {
		abortWithError(c, NewHTTPError(http.StatusNotFound, "not_found", "request not found", nil))
		return
	}

	h.formManager.Cancel(c.Request.Context(), id)
	if err := h.requestRepo.Delete(c.Request.Context(), id); err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "delete_failed", errMessage(err), err))
		return
	}
	c.Status(http.StatusNoContent)
}
