package api

import (
	"net/http"

	"famcal-backend/internal/auth/delivery"
	authUsecase "famcal-backend/internal/auth/usecase"
	calDelivery "famcal-backend/internal/calendar/delivery"
	calUsecase "famcal-backend/internal/calendar/usecase"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUsecase authUsecase.AuthUsecase, calendarUsecase calUsecase.CalendarUsecase) {
	authHandler := delivery.NewAuthHandler(authUsecase)
	calendarHandler := calDelivery.NewCalendarHandler(calendarUsecase)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/register", authHandler.Register)
			auth.POST("/google", authHandler.GoogleSignIn)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", delivery.AuthMiddleware(authUsecase), authHandler.Me)

			// Google Calendar linking for mirror sync. The callback is hit
			// by Google's redirect and authenticates via the state token.
			auth.GET("/google/connect", delivery.AuthMiddleware(authUsecase), authHandler.CalendarAuthURL)
			auth.GET("/google/callback", authHandler.CalendarCallback)
			auth.DELETE("/google/link", delivery.AuthMiddleware(authUsecase), authHandler.UnlinkCalendar)
		}

		// Settings routes (protected)
		settings := api.Group("/settings")
		settings.Use(delivery.AuthMiddleware(authUsecase))
		{
			settings.PUT("", authHandler.UpdateSettings)
		}

		// FCM routes (protected)
		fcm := api.Group("/fcm")
		fcm.Use(delivery.AuthMiddleware(authUsecase))
		{
			fcm.POST("/register", authHandler.RegisterDevice)
			fcm.DELETE("/:token", authHandler.UnregisterDevice)
		}

		// Calendar routes (protected)
		calendars := api.Group("/calendars")
		calendars.Use(delivery.AuthMiddleware(authUsecase))
		{
			calendars.POST("", calendarHandler.CreateCalendar)
			calendars.GET("", calendarHandler.ListCalendars)
			calendars.GET("/:id", calendarHandler.GetCalendar)
			calendars.DELETE("/:id", calendarHandler.DeleteCalendar)

			calendars.POST("/:id/members", calendarHandler.AddMember)
			calendars.GET("/:id/members", calendarHandler.ListMembers)
			calendars.DELETE("/:id/members/:userId", calendarHandler.RemoveMember)
			calendars.PUT("/:id/supplemental-visibility", calendarHandler.SetKeepSupplemental)

			calendars.GET("/:id/events", calendarHandler.ListEvents)
			calendars.POST("/:id/reconcile", calendarHandler.Reconcile)
			calendars.POST("/reconcile-all", calendarHandler.ReconcileAll)
		}

		// Event routes (protected)
		events := api.Group("/events")
		events.Use(delivery.AuthMiddleware(authUsecase))
		{
			events.GET("/:id", calendarHandler.GetEvent)
			events.PUT("/:id/assignment", calendarHandler.Assign)
			events.GET("/:id/conflicts", calendarHandler.CheckConflicts)
			events.GET("/:id/supplemental", calendarHandler.ListSupplemental)
			events.POST("/:id/supplemental/regenerate", calendarHandler.RegenerateSupplemental)
		}
	}
}
