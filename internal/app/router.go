package app

import (
	"coder_edu_analytics/docs"
	"coder_edu_analytics/internal/config"
	"coder_edu_analytics/internal/middleware"
	"coder_edu_analytics/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 需要授权的分析接口
	analytics := router.Group("/api/analytics")
	analytics.Use(middleware.AuthMiddleware(cfg))
	{
		analytics.GET("/patterns", c.analytics.GetPatterns)

		predictions := analytics.Group("/predictions")
		{
			predictions.GET("/performance", c.prediction.GetPerformanceForecast)
			predictions.POST("/forecast", c.prediction.ForecastTimeSeries)
			predictions.GET("/engagement", c.prediction.GetEngagementForecast)
			predictions.POST("/completion", c.prediction.PredictCompletion)
			predictions.GET("/next-module", c.prediction.GetNextModule)
		}
	}
}
