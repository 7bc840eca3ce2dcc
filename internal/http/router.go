package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/querydesk/backend/internal/config"
	"github.com/querydesk/backend/internal/http/handlers"
	"github.com/querydesk/backend/internal/http/middleware"

	_ "github.com/querydesk/backend/docs"
)

type Deps struct {
	Store     handlers.Store
	Pipeline  handlers.Ingester
	Assistant handlers.ReplyGenerator
	// Limiter is optional; nil disables rate limiting.
	Limiter middleware.Limiter
}

func Router(cfg config.Config, deps Deps, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" || cfg.CORSAllowed == "" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:               deps.Store,
		Pipeline:            deps.Pipeline,
		Assistant:           deps.Assistant,
		Validator:           validator.New(),
		Logger:              logger,
		JWTSecret:           cfg.JWTSecret,
		JWTTTL:              cfg.JWTTTL,
		WhatsAppVerifyToken: cfg.WhatsAppVerifyToken,
	}

	r.GET("/_health", h.Liveness)
	r.GET("/healthz", h.Healthz)

	webhook := r.Group("/webhook")
	{
		webhook.GET("/whatsapp", h.VerifyWhatsApp)
		webhook.POST("/whatsapp", h.ReceiveWhatsApp)
	}

	api := r.Group("/api")
	if deps.Limiter != nil {
		api.Use(middleware.RateLimit(deps.Limiter, logger))
	}
	{
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)
	}

	authed := api.Group("")
	authed.Use(middleware.Auth(cfg.JWTSecret, deps.Store))
	{
		authed.GET("/auth/me", h.Me)

		authed.POST("/queries", h.CreateQuery)
		authed.GET("/queries", h.ListQueries)
		authed.GET("/queries/:id", h.GetQuery)
		authed.PATCH("/queries/:id", h.UpdateQuery)
		authed.DELETE("/queries/:id", h.DeleteQuery)

		authed.POST("/notes", h.CreateNote)
		authed.GET("/notes", h.ListNotes)

		authed.GET("/users", h.ListUsers)
		authed.PATCH("/users/:id", h.UpdateUser)

		authed.POST("/ai/generate", h.GenerateReply)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
