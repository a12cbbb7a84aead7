package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/thutoworks/thuto-api/pkg/errors"
	"github.com/thutoworks/thuto-api/pkg/middleware/requestid"
)

// Envelope is the body shape of every API response. RequestID echoes the
// X-Request-ID of the failed request so a client report can be joined to
// server logs and audit facts.
type Envelope struct {
	Data      interface{}      `json:"data,omitempty"`
	Error     *appErrors.Error `json:"error,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
}

func write(c *gin.Context, status int, envelope Envelope) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, envelope)
}

// JSON sends a success envelope.
func JSON(c *gin.Context, status int, data interface{}) {
	write(c, status, Envelope{Data: data})
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data)
}

// Error maps the error onto the envelope's error shape, writing the
// status the domain error carries.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	write(c, appErr.Status, Envelope{Error: appErr, RequestID: requestid.Value(c)})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
