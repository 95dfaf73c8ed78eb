package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gymflow/gymflow-api/internal/service"
	appErrors "github.com/gymflow/gymflow-api/pkg/errors"
	"github.com/gymflow/gymflow-api/pkg/response"
)

// FreeTrainingHandler manages ad-hoc single training sessions.
type FreeTrainingHandler struct {
	bookings *service.BookingService
}

// NewFreeTrainingHandler creates a new handler.
func NewFreeTrainingHandler(bookings *service.BookingService) *FreeTrainingHandler {
	return &FreeTrainingHandler{bookings: bookings}
}

// Reserve godoc
// @Summary Book a free training session
// @Description Reserves a personal training slot at an arbitrary future date and time
// @Tags FreeTraining
// @Accept json
// @Produce json
// @Param payload body service.FreeTrainingRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /free-trainings [post]
func (h *FreeTrainingHandler) Reserve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.FreeTrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	booking, err := h.bookings.ReserveFreeSession(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// Cancel godoc
// @Summary Cancel a free training session
// @Description Cancels a free training booking and removes its slot
// @Tags FreeTraining
// @Accept json
// @Produce json
// @Param payload body service.CancelRequest true "Cancellation payload"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /free-trainings/cancel [post]
func (h *FreeTrainingHandler) Cancel(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.bookings.CancelFreeSession(c.Request.Context(), actor, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
