package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thutoworks/thuto-api/internal/service"
	appErrors "github.com/thutoworks/thuto-api/pkg/errors"
	"github.com/thutoworks/thuto-api/pkg/response"
)

// TimetableHandler exposes group timetable endpoints.
type TimetableHandler struct {
	timetables *service.TimetableService
}

// NewTimetableHandler constructs TimetableHandler.
func NewTimetableHandler(timetables *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{timetables: timetables}
}

// Get godoc
// @Summary View a group timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	timetable, err := h.timetables.View(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable)
}
