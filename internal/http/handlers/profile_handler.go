package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/workhub/backend/internal/dto"
	"github.com/workhub/backend/internal/http/handlers/common"
	"github.com/workhub/backend/internal/service"
)

// ProfileHandler обслуживает маршруты профилей.
type ProfileHandler struct {
	profiles *service.ProfileService
}

// NewProfileHandler создаёт хэндлер.
func NewProfileHandler(profiles *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// GetClientProfile GET /users/:id/client-profile
func (h *ProfileHandler) GetClientProfile(c *gin.Context) {
	userID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	profile, err := h.profiles.GetClientProfile(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// GetFreelancerProfile GET /users/:id/freelancer-profile
func (h *ProfileHandler) GetFreelancerProfile(c *gin.Context) {
	userID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	profile, err := h.profiles.GetFreelancerProfile(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UpdateClientProfile PUT /profile/client
func (h *ProfileHandler) UpdateClientProfile(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.UpdateClientProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	profile, err := h.profiles.UpdateClientProfile(c.Request.Context(), userID, service.ClientProfileInput{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		CompanyName: req.CompanyName,
		Location:    req.Location,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UpdateFreelancerProfile PUT /profile/freelancer
func (h *ProfileHandler) UpdateFreelancerProfile(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.UpdateFreelancerProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	profile, err := h.profiles.UpdateFreelancerProfile(c.Request.Context(), userID, service.FreelancerProfileInput{
		DisplayName:     req.DisplayName,
		Bio:             req.Bio,
		HourlyRate:      req.HourlyRate,
		ExperienceLevel: req.ExperienceLevel,
		Skills:          req.Skills,
		Location:        req.Location,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// ListFreelancers GET /freelancers — каталог исполнителей.
func (h *ProfileHandler) ListFreelancers(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	var skills []string
	if raw := c.Query("skills"); raw != "" {
		skills = strings.Split(raw, ",")
	}

	var minRating *float64
	if raw := c.Query("min_rating"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			minRating = &parsed
		}
	}

	freelancers, err := h.profiles.ListFreelancers(c.Request.Context(), skills, minRating, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"freelancers": freelancers})
}
