package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thutoworks/thuto-api/internal/service"
	appErrors "github.com/thutoworks/thuto-api/pkg/errors"
	"github.com/thutoworks/thuto-api/pkg/response"
)

// AssessmentHandler exposes assessment lifecycle endpoints.
type AssessmentHandler struct {
	assessments *service.AssessmentService
}

// NewAssessmentHandler constructs AssessmentHandler.
func NewAssessmentHandler(assessments *service.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{assessments: assessments}
}

// Create godoc
// @Summary Create an assessment
// @Tags Assessments
// @Accept json
// @Produce json
// @Param payload body service.CreateAssessmentRequest true "Assessment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /assessments [post]
func (h *AssessmentHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assessment payload"))
		return
	}

	assessment, err := h.assessments.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assessment)
}

// Get godoc
// @Summary View an assessment
// @Tags Assessments
// @Produce json
// @Param id path string true "Assessment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /assessments/{id} [get]
func (h *AssessmentHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	assessment, err := h.assessments.Find(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assessment)
}

// Collect godoc
// @Summary Collect an assessment
// @Description Moves the assessment to COLLECTED and backfills missing submissions
// @Tags Assessments
// @Produce json
// @Param id path string true "Assessment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /assessments/{id}/collect [post]
func (h *AssessmentHandler) Collect(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	assessment, err := h.assessments.Collect(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assessment)
}

// ReleaseGrades godoc
// @Summary Release assessment grades
// @Description Starts the grades release once every submission is scored
// @Tags Assessments
// @Produce json
// @Param id path string true "Assessment ID"
// @Success 202 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /assessments/{id}/release-grades [post]
func (h *AssessmentHandler) ReleaseGrades(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	assessment, err := h.assessments.ReleaseGrades(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, assessment)
}
