package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-points-api/internal/handler"
	"github.com/noah-isme/lms-points-api/internal/middleware"
	"github.com/noah-isme/lms-points-api/internal/models"
	"github.com/noah-isme/lms-points-api/internal/service"
	"github.com/noah-isme/lms-points-api/pkg/config"
	"github.com/noah-isme/lms-points-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lms-points-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lms-points-api/pkg/middleware/requestid"
)

type routerDeps struct {
	auth        middleware.TokenValidator
	metrics     *service.MetricsService
	login       *handler.AuthHandler
	scores      *handler.ScoreHandler
	claims      *handler.ClaimHandler
	students    *handler.StudentHandler
	leaderboard *handler.LeaderboardHandler
	shop        *handler.ShopHandler
	probes      *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(deps.metrics, "/metrics", "/health", "/ready"))

	r.GET("/health", deps.probes.Health)
	r.GET("/ready", deps.probes.Ready)
	r.GET("/metrics", deps.probes.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())
	api.POST("/auth/login", deps.login.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.auth))

	staff := middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin)
	admin := middleware.RequireRoles(models.RoleAdmin)
	staffOrSelf := middleware.RequireRolesOrSelf(models.RoleTeacher, models.RoleAdmin)

	secured.POST("/lessons/:id/scores", staff, deps.scores.Submit)
	secured.GET("/lessons/:id/scores", staff, deps.scores.ListByLesson)

	secured.GET("/students/:id/scores", staffOrSelf, deps.scores.ListByStudent)
	secured.GET("/students/:id/standing", staffOrSelf, deps.students.Standing)
	secured.POST("/students/:id/recompute", admin, deps.students.Recompute)

	secured.GET("/leaderboard", deps.leaderboard.Get)
	secured.GET("/leaderboard/export", staff, deps.leaderboard.Export)

	secured.GET("/shop/settings", deps.shop.Get)
	secured.PUT("/shop/settings", admin, deps.shop.Update)

	secured.GET("/claims", middleware.RequireRoles(models.RoleAdmin, models.RoleStudent), deps.claims.List)
	secured.POST("/claims", middleware.RequireRoles(models.RoleStudent), deps.claims.Submit)
	secured.POST("/claims/:id/approve", admin, deps.claims.Approve)
	secured.POST("/claims/:id/reject", admin, deps.claims.Reject)

	return r
}
