package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gymflow/gymflow-api/internal/models"
	"github.com/gymflow/gymflow-api/internal/service"
	appErrors "github.com/gymflow/gymflow-api/pkg/errors"
	"github.com/gymflow/gymflow-api/pkg/response"
)

// TemplateHandler manages the administrative schedule catalog endpoints.
type TemplateHandler struct {
	service *service.TemplateService
}

// NewTemplateHandler creates a new handler.
func NewTemplateHandler(svc *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{service: svc}
}

// List godoc
// @Summary List schedule templates
// @Tags Templates
// @Produce json
// @Param class_type_id query string false "Filter by class type"
// @Param day_of_week query int false "Filter by day of week (0=Sunday)"
// @Param period query string false "Filter by period anchor (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /templates [get]
func (h *TemplateHandler) List(c *gin.Context) {
	var filter models.TemplateFilter
	filter.ClassTypeID = c.Query("class_type_id")
	if raw := c.Query("day_of_week"); raw != "" {
		if day, err := strconv.Atoi(raw); err == nil {
			filter.DayOfWeek = &day
		}
	}
	if raw := c.Query("period"); raw != "" {
		anchor, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "period must use the YYYY-MM-DD format"))
			return
		}
		start := models.PeriodStart(anchor)
		filter.PeriodAnchor = &start
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	templates, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, templates, pagination)
}

// Get godoc
// @Summary Get a schedule template
// @Tags Templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /templates/{id} [get]
func (h *TemplateHandler) Get(c *gin.Context) {
	tpl, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tpl, nil)
}

// Create godoc
// @Summary Create a schedule template
// @Tags Templates
// @Accept json
// @Produce json
// @Param payload body service.TemplateRequest true "Template payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /templates [post]
func (h *TemplateHandler) Create(c *gin.Context) {
	var req service.TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	tpl, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tpl)
}

// Update godoc
// @Summary Update a schedule template
// @Tags Templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param payload body service.TemplateRequest true "Template payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /templates/{id} [put]
func (h *TemplateHandler) Update(c *gin.Context) {
	var req service.TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	tpl, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tpl, nil)
}

// Delete godoc
// @Summary Delete a schedule template
// @Tags Templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /templates/{id} [delete]
func (h *TemplateHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
