package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gymflow/gymflow-api/internal/service"
	appErrors "github.com/gymflow/gymflow-api/pkg/errors"
	"github.com/gymflow/gymflow-api/pkg/response"
)

// ClassHandler exposes the class catalog and the projected schedule.
type ClassHandler struct {
	templates *service.TemplateService
	projector *service.ProjectorService
}

// NewClassHandler creates a new handler.
func NewClassHandler(templates *service.TemplateService, projector *service.ProjectorService) *ClassHandler {
	return &ClassHandler{templates: templates, projector: projector}
}

// ListClassTypes godoc
// @Summary List class types
// @Description Returns the active class catalog
// @Tags Classes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) ListClassTypes(c *gin.Context) {
	classTypes, err := h.templates.ListClassTypes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classTypes, nil)
}

// CreateClassType godoc
// @Summary Create a class type
// @Description Adds a class type to the catalog (admin only)
// @Tags Classes
// @Accept json
// @Produce json
// @Param request body service.ClassTypeRequest true "Class type payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /classes [post]
func (h *ClassHandler) CreateClassType(c *gin.Context) {
	var req service.ClassTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	classType, err := h.templates.CreateClassType(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, classType)
}

// UpdateClassType godoc
// @Summary Update a class type
// @Description Rewrites a class type (admin only)
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class type ID"
// @Param request body service.ClassTypeRequest true "Class type payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{id} [put]
func (h *ClassHandler) UpdateClassType(c *gin.Context) {
	var req service.ClassTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	classType, err := h.templates.UpdateClassType(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classType, nil)
}

// DeleteClassType godoc
// @Summary Delete a class type
// @Description Removes a class type and its templates (admin only)
// @Tags Classes
// @Produce json
// @Param id path string true "Class type ID"
// @Success 204 "No Content"
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{id} [delete]
func (h *ClassHandler) DeleteClassType(c *gin.Context) {
	if err := h.templates.DeleteClassType(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Instances godoc
// @Summary List upcoming class instances
// @Description Projects the weekly templates of a class type into dated, bookable instances
// @Tags Classes
// @Produce json
// @Param id path string true "Class type ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/instances [get]
func (h *ClassHandler) Instances(c *gin.Context) {
	instances, err := h.projector.UpcomingForClassType(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instances, nil)
}
