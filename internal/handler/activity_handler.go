package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thutoworks/thuto-api/internal/service"
	appErrors "github.com/thutoworks/thuto-api/pkg/errors"
	"github.com/thutoworks/thuto-api/pkg/response"
)

// ActivityHandler exposes activity endpoints.
type ActivityHandler struct {
	activities *service.ActivityService
}

// NewActivityHandler constructs ActivityHandler.
func NewActivityHandler(activities *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{activities: activities}
}

// Log godoc
// @Summary Log an activity
// @Tags Activities
// @Accept json
// @Produce json
// @Param payload body service.LogActivityRequest true "Activity payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /activities [post]
func (h *ActivityHandler) Log(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.LogActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid activity payload"))
		return
	}

	activity, err := h.activities.Log(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, activity)
}

// Get godoc
// @Summary View an activity
// @Tags Activities
// @Produce json
// @Param id path string true "Activity ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /activities/{id} [get]
func (h *ActivityHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	activity, err := h.activities.View(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, activity)
}
