package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/rackbook-api/internal/handler"
	"github.com/noah-isme/rackbook-api/internal/middleware"
	"github.com/noah-isme/rackbook-api/internal/service"
	"github.com/noah-isme/rackbook-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/rackbook-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/rackbook-api/pkg/middleware/requestid"
)

// Options holds everything the HTTP surface needs.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Logger         *zap.Logger
	Metrics        *service.MetricsService
	Auth           middleware.TokenValidator

	Bookings  *handler.BookingHandler
	Cutoff    *handler.CutoffHandler
	Schedules *handler.CapacityScheduleHandler
	Exports   *handler.ExportHandler
	Health    *handler.MetricsHandler
}

// New registers every route on a fresh gin engine.
func New(opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))

	r.GET("/health", opts.Health.Health)
	r.GET("/ready", opts.Health.Ready)
	r.GET("/metrics", opts.Health.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)
	api.Use(middleware.JWT(opts.Auth))
	admin := middleware.RequireAdmin()

	api.GET("/cutoff", opts.Cutoff.Get)

	bookings := api.Group("/bookings")
	bookings.POST("", opts.Bookings.Create)
	bookings.POST("/check/conflicts", opts.Bookings.CheckConflicts)
	bookings.POST("/check/capacity", opts.Bookings.CheckCapacity)
	bookings.POST("/process", admin, opts.Bookings.Process)
	bookings.POST("/:id/extend", opts.Bookings.Extend)
	bookings.PATCH("/:id/instances", opts.Bookings.EditInstances)
	bookings.POST("/:id/cancel", opts.Bookings.Cancel)

	sides := api.Group("/sides/:id")
	sides.GET("/schedules", opts.Schedules.List)
	sides.PUT("/schedules", admin, opts.Schedules.Upsert)
	sides.GET("/sheet", opts.Exports.WeeklySheet)

	api.DELETE("/schedules/:id", admin, opts.Schedules.Delete)

	return r
}
