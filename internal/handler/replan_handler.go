package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/study-replan-api/internal/dto"
	"github.com/noah-isme/study-replan-api/internal/models"
	"github.com/noah-isme/study-replan-api/internal/service"
	appErrors "github.com/noah-isme/study-replan-api/pkg/errors"
	"github.com/noah-isme/study-replan-api/pkg/response"
)

type replanner interface {
	Execute(ctx context.Context, req dto.ReplanRequest) (*dto.ReplanExecution, error)
	Preview(ctx context.Context, req dto.ReplanRequest) (*dto.ReplanPreview, error)
	CheckOverdue(ctx context.Context, req dto.ReplanRequest) (*dto.OverdueCheck, error)
	ListRuns(ctx context.Context, req dto.ReplanRunListRequest) ([]models.ReplanRun, *models.Pagination, error)
	ExportRun(ctx context.Context, req dto.ReplanRunExportRequest) (*dto.ExportFile, error)
}

// ReplanHandler exposes replanning endpoints for the authenticated user's plans.
type ReplanHandler struct {
	service replanner
}

// NewReplanHandler constructs the handler.
func NewReplanHandler(svc *service.ReplanService) *ReplanHandler {
	return &ReplanHandler{service: svc}
}

func (h *ReplanHandler) planRequest(c *gin.Context) (dto.ReplanRequest, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return dto.ReplanRequest{}, false
	}
	planID, err := planIDParam(c)
	if err != nil {
		response.Error(c, err)
		return dto.ReplanRequest{}, false
	}
	return dto.ReplanRequest{PlanID: planID, UserID: claims.UserID}, true
}

// CheckOverdue godoc
// @Summary Count overdue sessions of a plan
// @Tags Replan
// @Produce json
// @Param planId path int true "Study plan ID"
// @Success 200 {object} response.Envelope
// @Router /plans/{planId}/overdue-check [get]
func (h *ReplanHandler) CheckOverdue(c *gin.Context) {
	req, ok := h.planRequest(c)
	if !ok {
		return
	}
	check, err := h.service.CheckOverdue(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, check, nil)
}

// Preview godoc
// @Summary Preview a replanning run without saving it
// @Tags Replan
// @Produce json
// @Param planId path int true "Study plan ID"
// @Success 200 {object} response.Envelope
// @Router /plans/{planId}/replan-preview [get]
func (h *ReplanHandler) Preview(c *gin.Context) {
	req, ok := h.planRequest(c)
	if !ok {
		return
	}
	preview, err := h.service.Preview(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview, nil)
}

// Execute godoc
// @Summary Reschedule overdue sessions of a plan
// @Description Moves every overdue pending session it can onto a future date before the exam. Sessions that do not fit keep their date.
// @Tags Replan
// @Produce json
// @Param planId path int true "Study plan ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /plans/{planId}/replan [post]
func (h *ReplanHandler) Execute(c *gin.Context) {
	req, ok := h.planRequest(c)
	if !ok {
		return
	}
	execution, err := h.service.Execute(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{
		"executionTimeMs": execution.ExecutionTimeMs,
		"algorithm":       execution.Algorithm,
		"examDate":        execution.ExamDate,
	}
	if execution.RunID != "" {
		meta["runId"] = execution.RunID
	}
	response.JSON(c, http.StatusOK, execution.Response, nil, meta)
}

// ListRuns godoc
// @Summary List replanning runs of a plan
// @Tags Replan
// @Produce json
// @Param planId path int true "Study plan ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /plans/{planId}/replan-runs [get]
func (h *ReplanHandler) ListRuns(c *gin.Context) {
	base, ok := h.planRequest(c)
	if !ok {
		return
	}
	req := dto.ReplanRunListRequest{PlanID: base.PlanID, UserID: base.UserID}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		req.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		req.PageSize = size
	}

	runs, pagination, err := h.service.ListRuns(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, pagination)
}

// ExportRun godoc
// @Summary Download a replanning run
// @Tags Replan
// @Produce octet-stream
// @Param planId path int true "Study plan ID"
// @Param runId path string true "Run ID"
// @Param format query string false "csv, pdf, xlsx or ics"
// @Success 200 {file} file
// @Router /plans/{planId}/replan-runs/{runId}/export [get]
func (h *ReplanHandler) ExportRun(c *gin.Context) {
	base, ok := h.planRequest(c)
	if !ok {
		return
	}
	file, err := h.service.ExportRun(c.Request.Context(), dto.ReplanRunExportRequest{
		PlanID: base.PlanID,
		UserID: base.UserID,
		RunID:  c.Param("runId"),
		Format: c.Query("format"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Body)
}
