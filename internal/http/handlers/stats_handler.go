package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/workhub/backend/internal/http/handlers/common"
	"github.com/workhub/backend/internal/models"
	"github.com/workhub/backend/internal/service"
)

// StatsHandler обслуживает личные кабинеты и пересчёт агрегатов.
type StatsHandler struct {
	stats *service.StatsService
}

// NewStatsHandler создаёт хэндлер.
func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Dashboard GET /dashboard — сводка под роль пользователя.
func (h *StatsHandler) Dashboard(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, err := common.CurrentUserRole(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	switch role {
	case models.RoleClient:
		dashboard, err := h.stats.GetClientDashboard(c.Request.Context(), userID)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, dashboard)
	case models.RoleFreelancer:
		dashboard, err := h.stats.GetFreelancerDashboard(c.Request.Context(), userID)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, dashboard)
	default:
		common.RespondForbidden(c, "сводка доступна клиентам и фрилансерам")
	}
}

// ReconcileStats POST /stats/reconcile — пересчёт статистики профиля
// из первичных данных. Безопасно вызывать повторно.
func (h *StatsHandler) ReconcileStats(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, err := common.CurrentUserRole(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	stats, err := h.stats.ReconcileStats(c.Request.Context(), userID, role)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// ReconcileRating POST /stats/reconcile-rating — пересчёт рейтинга из отзывов.
func (h *StatsHandler) ReconcileRating(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	rating, err := h.stats.ReconcileRating(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rating": rating})
}
