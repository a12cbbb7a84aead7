package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thutoworks/thuto-api/internal/service"
	appErrors "github.com/thutoworks/thuto-api/pkg/errors"
	"github.com/thutoworks/thuto-api/pkg/response"
)

// SubmissionHandler exposes submission endpoints.
type SubmissionHandler struct {
	submissions *service.SubmissionService
}

// NewSubmissionHandler constructs SubmissionHandler.
func NewSubmissionHandler(submissions *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions}
}

// Create godoc
// @Summary Record a submission
// @Description Records that a student turned in work; the status is classified at creation
// @Tags Submissions
// @Accept json
// @Produce json
// @Param payload body service.CreateSubmissionRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /submissions [post]
func (h *SubmissionHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}

	submission, err := h.submissions.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// Excuse godoc
// @Summary Excuse a submission
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /submissions/{id}/excuse [post]
func (h *SubmissionHandler) Excuse(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	submission, err := h.submissions.Excuse(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission)
}

// ListByAssessment godoc
// @Summary List submissions for an assessment
// @Tags Submissions
// @Produce json
// @Param id path string true "Assessment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /assessments/{id}/submissions [get]
func (h *SubmissionHandler) ListByAssessment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	submissions, err := h.submissions.ListByAssessment(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions)
}
