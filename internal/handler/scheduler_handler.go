package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gymflow/gymflow-api/internal/service"
	"github.com/gymflow/gymflow-api/pkg/response"
)

// SchedulerHandler lets administrators trigger maintenance passes manually.
type SchedulerHandler struct {
	service *service.RollforwardService
}

// NewSchedulerHandler creates a new handler.
func NewSchedulerHandler(svc *service.RollforwardService) *SchedulerHandler {
	return &SchedulerHandler{service: svc}
}

// Run godoc
// @Summary Run the maintenance pass
// @Description Duplicates templates into the next period, expires stale bookings and sends reminders
// @Tags Scheduler
// @Produce json
// @Success 202 {object} response.Envelope
// @Router /admin/scheduler/run [post]
func (h *SchedulerHandler) Run(c *gin.Context) {
	h.service.Run(c.Request.Context())
	response.JSON(c, http.StatusAccepted, gin.H{"status": "completed"}, nil)
}

// RollForward godoc
// @Summary Duplicate templates into the next period
// @Tags Scheduler
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/scheduler/roll-forward [post]
func (h *SchedulerHandler) RollForward(c *gin.Context) {
	copied, err := h.service.DuplicateTemplatesForNextPeriod(c.Request.Context(), time.Now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"copied": copied}, nil)
}

// SendReminders godoc
// @Summary Send due class reminders
// @Tags Scheduler
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/scheduler/reminders [post]
func (h *SchedulerHandler) SendReminders(c *gin.Context) {
	sent, err := h.service.SendUpcomingReminders(c.Request.Context(), time.Now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"sent": sent}, nil)
}
