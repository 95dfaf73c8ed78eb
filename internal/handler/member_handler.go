package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gymflow/gymflow-api/internal/models"
	"github.com/gymflow/gymflow-api/internal/service"
	appErrors "github.com/gymflow/gymflow-api/pkg/errors"
	"github.com/gymflow/gymflow-api/pkg/response"
)

// MemberHandler exposes the administrative member endpoints.
type MemberHandler struct {
	service *service.MemberService
}

// NewMemberHandler creates a new handler.
func NewMemberHandler(svc *service.MemberService) *MemberHandler {
	return &MemberHandler{service: svc}
}

type setBlockedRequest struct {
	Blocked *bool `json:"blocked" binding:"required"`
}

// List godoc
// @Summary List members
// @Tags Members
// @Produce json
// @Param role query string false "Filter by role"
// @Param blocked query bool false "Filter by blocked flag"
// @Param search query string false "Search by name or email"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /members [get]
func (h *MemberHandler) List(c *gin.Context) {
	var filter models.UserFilter
	if raw := c.Query("role"); raw != "" {
		role := models.UserRole(raw)
		filter.Role = &role
	}
	if raw := c.Query("blocked"); raw != "" {
		if blocked, err := strconv.ParseBool(raw); err == nil {
			filter.Blocked = &blocked
		}
	}
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	users, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, pagination)
}

// Get godoc
// @Summary Get a member
// @Tags Members
// @Produce json
// @Param id path string true "Member ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /members/{id} [get]
func (h *MemberHandler) Get(c *gin.Context) {
	user, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// SetBlocked godoc
// @Summary Block or unblock a member
// @Description Blocked members cannot make bookings until unblocked
// @Tags Members
// @Accept json
// @Produce json
// @Param id path string true "Member ID"
// @Param request body setBlockedRequest true "Blocked flag"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /members/{id}/blocked [put]
func (h *MemberHandler) SetBlocked(c *gin.Context) {
	var req setBlockedRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Blocked == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "blocked flag is required"))
		return
	}
	if err := h.service.SetBlocked(c.Request.Context(), c.Param("id"), *req.Blocked); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"blocked": *req.Blocked}, nil)
}
