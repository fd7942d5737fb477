package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/workhub/backend/internal/config"
	"github.com/workhub/backend/internal/http/handlers"
	"github.com/workhub/backend/internal/http/middleware"
	"github.com/workhub/backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	profileHandler *handlers.ProfileHandler,
	projectHandler *handlers.ProjectHandler,
	paymentHandler *handlers.PaymentHandler,
	reviewHandler *handlers.ReviewHandler,
	notificationHandler *handlers.NotificationHandler,
	statsHandler *handlers.StatsHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authRateLimit := middleware.RateLimitMiddleware(5, cfg.RateLimitPeriod)
	authGroup.Use(authRateLimit)
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
	}

	protectedAuth := api.Group("/auth")
	protectedAuth.Use(middleware.AuthMiddleware(tokenManager))
	{
		protectedAuth.GET("/sessions", authHandler.ListSessions)
		protectedAuth.DELETE("/sessions/:id", authHandler.DeleteSession)
		protectedAuth.DELETE("/sessions", authHandler.DeleteAllSessionsExcept)
	}

	// Публичные маршруты
	api.GET("/ws", wsHandler.Handle)
	api.GET("/freelancers", profileHandler.ListFreelancers)
	api.GET("/users/:id/client-profile", middleware.UUIDValidator("id"), profileHandler.GetClientProfile)
	api.GET("/users/:id/freelancer-profile", middleware.UUIDValidator("id"), profileHandler.GetFreelancerProfile)
	api.GET("/users/:id/reviews", middleware.UUIDValidator("id"), reviewHandler.ListUserReviews)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.PUT("/profile/client", profileHandler.UpdateClientProfile)
		protected.PUT("/profile/freelancer", profileHandler.UpdateFreelancerProfile)

		protected.GET("/dashboard", statsHandler.Dashboard)
		protected.POST("/stats/reconcile", statsHandler.ReconcileStats)
		protected.POST("/stats/reconcile-rating", statsHandler.ReconcileRating)

		// Проекты: каталог требует авторизации, черновики видит только владелец.
		protected.GET("/projects", projectHandler.ListProjects)
		protected.POST("/projects", projectHandler.CreateProject)
		protected.GET("/projects/my", projectHandler.ListMyProjects)
		protected.GET("/projects/assigned", projectHandler.ListAssignedProjects)
		protected.GET("/projects/:id", middleware.UUIDValidator("id"), projectHandler.GetProject)
		protected.PUT("/projects/:id", middleware.UUIDValidator("id"), projectHandler.UpdateProject)
		protected.DELETE("/projects/:id", middleware.UUIDValidator("id"), projectHandler.DeleteProject)
		protected.POST("/projects/:id/publish", middleware.UUIDValidator("id"), projectHandler.PublishProject)
		protected.PATCH("/projects/:id/status", middleware.UUIDValidator("id"), projectHandler.ChangeStatus)

		// Предложения
		protected.POST("/projects/:id/proposals", middleware.UUIDValidator("id"), projectHandler.SubmitProposal)
		protected.PATCH("/projects/:id/proposals/:proposalId", middleware.UUIDValidator("id"), middleware.UUIDValidator("proposalId"), projectHandler.DecideProposal)
		protected.DELETE("/projects/:id/proposals/:proposalId", middleware.UUIDValidator("id"), middleware.UUIDValidator("proposalId"), projectHandler.WithdrawProposal)
		protected.GET("/proposals/my", projectHandler.ListMyProposals)

		// Этапы
		protected.POST("/projects/:id/milestones", middleware.UUIDValidator("id"), projectHandler.CreateMilestone)
		protected.GET("/projects/:id/milestones", middleware.UUIDValidator("id"), projectHandler.ListMilestones)
		protected.PATCH("/projects/:id/milestones/:milestoneId/status", middleware.UUIDValidator("id"), middleware.UUIDValidator("milestoneId"), projectHandler.ChangeMilestoneStatus)

		// Отзывы
		protected.POST("/projects/:id/reviews", middleware.UUIDValidator("id"), reviewHandler.CreateReview)
		protected.GET("/projects/:id/reviews", middleware.UUIDValidator("id"), reviewHandler.ListProjectReviews)
		protected.PUT("/reviews/:id", middleware.UUIDValidator("id"), reviewHandler.UpdateReview)
		protected.DELETE("/reviews/:id", middleware.UUIDValidator("id"), reviewHandler.DeleteReview)

		// Платежи и escrow
		protected.GET("/payments/balance", paymentHandler.GetBalance)
		protected.POST("/payments/deposit", paymentHandler.Deposit)
		protected.GET("/payments/escrow/:milestoneId", middleware.UUIDValidator("milestoneId"), paymentHandler.GetEscrow)
		protected.GET("/payments/transactions", paymentHandler.ListTransactions)

		// Уведомления
		protected.GET("/notifications", notificationHandler.ListNotifications)
		protected.GET("/notifications/unread/count", notificationHandler.CountUnread)
		protected.GET("/notifications/:id", notificationHandler.GetNotification)
		protected.PUT("/notifications/:id/read", notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.DELETE("/notifications/:id", notificationHandler.DeleteNotification)
	}

	return r
}
