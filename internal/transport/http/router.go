package httptransport

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"

	"github.com/ErlanBelekov/journey-engine/internal/transport/http/handler"
	"github.com/ErlanBelekov/journey-engine/internal/transport/http/middleware"
)

type Handlers struct {
	Templates *handler.TemplateHandler
	Employees *handler.EmployeeHandler
	Instances *handler.InstanceHandler
	Jobs      *handler.JobHandler
}

func NewRouter(logger *slog.Logger, h Handlers, jwtKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	authMW := middleware.Auth(jwtKey)

	journeys := r.Group("/journeys", authMW)
	journeys.POST("", h.Templates.Create)
	journeys.GET("", h.Templates.List)
	journeys.GET("/:id", h.Templates.GetByID)

	employees := r.Group("/employees", authMW)
	employees.POST("", h.Employees.Create)
	employees.GET("", h.Employees.List)
	employees.GET("/:id", h.Employees.GetByID)
	employees.GET("/:id/journeys", h.Employees.Journeys)
	employees.POST("/:id/journeys", h.Employees.Enroll)

	instances := r.Group("/employee-journeys", authMW)
	instances.POST("", h.Instances.Create)
	instances.GET("/:id", h.Instances.GetByID)

	jobs := r.Group("/jobs", authMW)
	jobs.GET("", h.Jobs.List)
	jobs.DELETE("", h.Jobs.Clear)
	jobs.GET("/:id", h.Jobs.GetByID)
	jobs.DELETE("/:id", h.Jobs.Remove)
	jobs.GET("/:id/attempts", h.Jobs.Attempts)

	r.GET("/queues", authMW, h.Jobs.Stats)

	return r
}
