package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ltg-uic/beaconsync/internal/handlers"
	"github.com/ltg-uic/beaconsync/internal/logger"
	"github.com/ltg-uic/beaconsync/internal/middleware"
)

type RouterConfig struct {
	Log                *logger.Logger
	RuntimeHandler     *handlers.RuntimeHandler
	ObservationHandler *handlers.ObservationHandler
	SyncHandler        *handlers.SyncHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLog(cfg.Log))

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.GET("/session", cfg.SyncHandler.GetSession)
		api.PUT("/session/mode", cfg.SyncHandler.SetMode)

		stores := api.Group("/stores/:store")
		{
			stores.GET("/runtime", cfg.RuntimeHandler.Get)
			stores.PUT("/runtime", cfg.RuntimeHandler.Update)

			stores.GET("/observations", cfg.ObservationHandler.List)
			stores.DELETE("/observations", cfg.ObservationHandler.DeleteAll)
			stores.DELETE("/channels", cfg.ObservationHandler.DeleteChannels)
			stores.DELETE("/userdata", cfg.ObservationHandler.DeleteUserData)
			stores.POST("/observations/:speciesIndex/relationships", cfg.ObservationHandler.AddRelationship)
			stores.DELETE("/observations/:speciesIndex/relationships", cfg.ObservationHandler.DeleteRelationship)
			stores.POST("/observations/:speciesIndex/preferences", cfg.ObservationHandler.AddPreference)
			stores.DELETE("/observations/:speciesIndex/preferences", cfg.ObservationHandler.DeletePreference)
		}

		api.POST("/sync/observation", cfg.SyncHandler.SyncObservation)
		api.POST("/sync/force", cfg.SyncHandler.ForceSync)
		api.POST("/sync/refresh/group", cfg.SyncHandler.RefreshGroupNotes)
		api.POST("/sync/refresh/species", cfg.SyncHandler.RefreshSpeciesNotes)

		api.POST("/terminal/enter", cfg.SyncHandler.EnterTerminal)
		api.POST("/terminal/clear", cfg.SyncHandler.ClearTerminal)

		api.GET("/experiments", cfg.SyncHandler.ListExperiments)
		api.PUT("/experiments", cfg.SyncHandler.SaveExperiment)
		api.DELETE("/experiments", cfg.SyncHandler.DeleteExperiments)
		api.POST("/experiments/refresh", cfg.SyncHandler.RefreshExperiments)
	}

	return router
}
