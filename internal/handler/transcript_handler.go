package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thutoworks/thuto-api/internal/service"
	appErrors "github.com/thutoworks/thuto-api/pkg/errors"
	"github.com/thutoworks/thuto-api/pkg/response"
)

// TranscriptHandler exposes grading and report card endpoints.
type TranscriptHandler struct {
	transcripts *service.TranscriptService
}

// NewTranscriptHandler constructs TranscriptHandler.
func NewTranscriptHandler(transcripts *service.TranscriptService) *TranscriptHandler {
	return &TranscriptHandler{transcripts: transcripts}
}

// Grade godoc
// @Summary Grade a submission
// @Description Scores or re-scores a student's submission for an assessment
// @Tags Transcripts
// @Accept json
// @Produce json
// @Param payload body service.GradeTranscriptRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /transcripts/grade [post]
func (h *TranscriptHandler) Grade(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.GradeTranscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grade payload"))
		return
	}

	transcript, err := h.transcripts.Grade(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transcript)
}

// ReportCard godoc
// @Summary View a term report card
// @Tags Transcripts
// @Produce json
// @Param studentId path string true "Student ID"
// @Param termId path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{studentId}/terms/{termId}/report-card [get]
func (h *TranscriptHandler) ReportCard(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	rows, err := h.transcripts.ReportCard(c.Request.Context(), actor, c.Param("studentId"), c.Param("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows)
}

// ExportReportCard godoc
// @Summary Export a term report card
// @Description Renders the report card as CSV or PDF
// @Tags Transcripts
// @Produce text/csv
// @Produce application/pdf
// @Param studentId path string true "Student ID"
// @Param termId path string true "Term ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{studentId}/terms/{termId}/report-card/export [get]
func (h *TranscriptHandler) ExportReportCard(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	studentID := c.Param("studentId")
	termID := c.Param("termId")
	format := c.DefaultQuery("format", "csv")

	payload, contentType, err := h.transcripts.ExportReportCard(c.Request.Context(), actor, studentID, termID, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("report-card-%s-%s.%s", studentID, termID, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
