package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gymflow/gymflow-api/internal/service"
	appErrors "github.com/gymflow/gymflow-api/pkg/errors"
	"github.com/gymflow/gymflow-api/pkg/response"
)

// ExportHandler serves roster downloads.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler creates a new handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Roster godoc
// @Summary Export a class roster
// @Description Downloads the attendee list of one class instance as CSV or PDF
// @Tags Exports
// @Produce octet-stream
// @Param id path string true "Template ID"
// @Param date query string true "Class date (YYYY-MM-DD)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /templates/{id}/roster [get]
func (h *ExportHandler) Roster(c *gin.Context) {
	classDate, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must use the YYYY-MM-DD format"))
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))

	result, err := h.service.Roster(c.Request.Context(), c.Param("id"), classDate, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
