package bootstrap

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httpapi "github.com/casegen/casegen-backend/internal/api/http"
	"github.com/casegen/casegen-backend/internal/api/http/middleware"
	"github.com/casegen/casegen-backend/internal/generation/draftstore"
	genhttp "github.com/casegen/casegen-backend/internal/generation/http"
	"github.com/casegen/casegen-backend/internal/metrics"
	projhttp "github.com/casegen/casegen-backend/internal/projects/http"
)

type RouterDeps struct {
	ServiceName    string
	Version        string
	AllowedOrigins []string
	Logger         *zap.Logger

	DB    *pgxpool.Pool
	Redis *redis.Client

	Projects  projhttp.Service
	Workflows genhttp.Workflows
	Titles    genhttp.Titles
	Details   genhttp.Details
	// Watcher is set when the draft store can push change notifications.
	Watcher draftstore.Watcher
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware(dep.Logger))
	r.Use(cors.New(corsConfig(dep.AllowedOrigins)))

	var db, cache httpapi.Pinger
	if dep.DB != nil {
		db = dep.DB
	}
	if dep.Redis != nil {
		cache = httpapi.PingFunc(func(ctx context.Context) error { return dep.Redis.Ping(ctx).Err() })
	}
	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, db, cache)
	healthHandler.RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api/v1")

	projectsHandler := projhttp.New(dep.Projects, dep.Logger)
	projectsHandler.Register(api.Group("/projects"))

	genHandler := genhttp.New(dep.Workflows, dep.Titles, dep.Details, dep.Watcher, dep.Logger)
	genHandler.RegisterAI(api.Group("/ai"))
	genHandler.RegisterWorkflows(api.Group("/workflows"))

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) > 0 {
		cfg.AllowOrigins = origins
	} else {
		cfg.AllowOrigins = []string{"http://localhost:3000"}
	}
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.HeaderRequestID}
	cfg.ExposeHeaders = []string{"Content-Disposition", middleware.HeaderRequestID}
	cfg.MaxAge = 12 * time.Hour
	return cfg
}
