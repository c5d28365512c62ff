package api

import (
	"detour-route-service/internal/api/handlers"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Planner        handlers.Planner
	Health         *handlers.HealthHandler
	RequestTimeout time.Duration
	Log            *zap.Logger
}

// NewRouter wires HTTP handlers with their dependencies.
// Handlers stay unaware of concrete adapters.
func NewRouter(deps RouterDeps) *gin.Engine {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), logging(log.Named("http")))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Content-Type", requestIDHeader}
	corsCfg.ExposeHeaders = []string{requestIDHeader}
	r.Use(cors.New(corsCfg))

	health := deps.Health
	if health == nil {
		health = &handlers.HealthHandler{}
	}
	routes := &handlers.RoutesHandler{Planner: deps.Planner, Timeout: deps.RequestTimeout, Log: log}

	r.GET("/health", health.Health)
	v1 := r.Group("/v1")
	{
		v1.POST("/routes", routes.Plan)
	}

	return r
}
