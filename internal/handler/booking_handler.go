package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gymflow/gymflow-api/internal/service"
	appErrors "github.com/gymflow/gymflow-api/pkg/errors"
	"github.com/gymflow/gymflow-api/pkg/response"
)

// BookingHandler wires the booking ledger to HTTP.
type BookingHandler struct {
	bookings *service.BookingService
	quota    *service.QuotaService
}

// NewBookingHandler creates a new handler.
func NewBookingHandler(bookings *service.BookingService, quota *service.QuotaService) *BookingHandler {
	return &BookingHandler{bookings: bookings, quota: quota}
}

// Reserve godoc
// @Summary Book a class instance
// @Description Books a spot on a class, confirmed while capacity remains and waitlisted afterwards
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.ReserveRequest true "Reservation payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Reserve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	booking, err := h.bookings.Reserve(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// Cancel godoc
// @Summary Cancel a booking
// @Description Cancels a booking; freed confirmed spots promote the waitlist head
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.CancelRequest true "Cancellation payload"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
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

	if err := h.bookings.Cancel(c.Request.Context(), actor, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListMine godoc
// @Summary List my bookings
// @Description Returns the caller's bookings from today onward
// @Tags Bookings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /bookings/me [get]
func (h *BookingHandler) ListMine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	bookings, err := h.bookings.ListMine(c.Request.Context(), actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, nil)
}

// Status godoc
// @Summary Get my booking for a class instance
// @Description Returns the caller's booking on the given instance, including waitlist position
// @Tags Bookings
// @Produce json
// @Param template_id query string true "Template ID"
// @Param class_date query string true "Class date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bookings/status [get]
func (h *BookingHandler) Status(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	templateID := c.Query("template_id")
	classDate := c.Query("class_date")
	if templateID == "" || classDate == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "template_id and class_date are required"))
		return
	}

	booking, err := h.bookings.Status(c.Request.Context(), actor.UserID, templateID, classDate)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Quota godoc
// @Summary Get booking quota
// @Description Returns the caller's remaining monthly booking allowance. Admins may pass user_id to inspect another member.
// @Tags Bookings
// @Produce json
// @Param user_id query string false "Target user (admin only)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /quota [get]
func (h *BookingHandler) Quota(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	targetID := c.Query("user_id")
	if targetID == "" {
		targetID = actor.UserID
	}
	if targetID != actor.UserID && !actor.IsAdmin() {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	quota, err := h.quota.Remaining(c.Request.Context(), targetID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quota, nil)
}
