package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thutoworks/thuto-api/internal/service"
	appErrors "github.com/thutoworks/thuto-api/pkg/errors"
	"github.com/thutoworks/thuto-api/pkg/response"
)

// ClassroomHandler exposes classroom endpoints.
type ClassroomHandler struct {
	classrooms *service.ClassroomService
}

// NewClassroomHandler constructs ClassroomHandler.
func NewClassroomHandler(classrooms *service.ClassroomService) *ClassroomHandler {
	return &ClassroomHandler{classrooms: classrooms}
}

// Get godoc
// @Summary View a classroom
// @Tags Classrooms
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /classrooms/{id} [get]
func (h *ClassroomHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	classroom, err := h.classrooms.View(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classroom)
}

// Roster godoc
// @Summary List classroom students
// @Tags Classrooms
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /classrooms/{id}/students [get]
func (h *ClassroomHandler) Roster(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	students, err := h.classrooms.Roster(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students)
}
