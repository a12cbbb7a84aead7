package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thutoworks/thuto-api/internal/service"
	appErrors "github.com/thutoworks/thuto-api/pkg/errors"
	"github.com/thutoworks/thuto-api/pkg/response"
)

// AccountHandler exposes account endpoints.
type AccountHandler struct {
	accounts *service.AccountService
}

// NewAccountHandler constructs AccountHandler.
func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// Get godoc
// @Summary View an account
// @Description Returns the account profile when the actor's relationship permits it
// @Tags Accounts
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /accounts/{id} [get]
func (h *AccountHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	account, err := h.accounts.View(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, account)
}

// Update godoc
// @Summary Update an account
// @Description Updates profile fields; only principals and admins qualify
// @Tags Accounts
// @Accept json
// @Produce json
// @Param id path string true "Account ID"
// @Param payload body service.UpdateAccountRequest true "Account payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /accounts/{id} [put]
func (h *AccountHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid account payload"))
		return
	}

	account, err := h.accounts.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, account)
}

// CanMessage godoc
// @Summary Check messaging permission
// @Description Reports whether the actor may open a message thread with the target account
// @Tags Accounts
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /accounts/{id}/can-message [get]
func (h *AccountHandler) CanMessage(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	decision, err := h.accounts.CanMessage(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decision)
}
