// Package server wires the HTTP surface: the three stateless SMS endpoints,
// the campaign wizard session API, the tool registry, and health.
package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/padalahq/padala/internal/campaign"
	"github.com/padalahq/padala/internal/health"
	"github.com/padalahq/padala/internal/tools"
)

// Server holds the handler dependencies.
type Server struct {
	env        string
	logger     *slog.Logger
	generator  campaign.Generator
	classifier campaign.Classifier
	sender     campaign.Sender
	store      *campaign.Store
	registry   *tools.Registry
}

// New creates the HTTP server.
func New(env string, logger *slog.Logger, generator campaign.Generator, classifier campaign.Classifier, sender campaign.Sender, store *campaign.Store, registry *tools.Registry) *Server {
	return &Server{
		env:        env,
		logger:     logger,
		generator:  generator,
		classifier: classifier,
		sender:     sender,
		store:      store,
		registry:   registry,
	}
}

// Routes builds the gin engine.
func (s *Server) Routes() *gin.Engine {
	if s.env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/health", gin.WrapF(health.Handler))

	api := r.Group("/api")
	{
		api.POST("/sms_generate", s.handleGenerate)
		api.POST("/sms_classify", s.handleClassify)
		api.POST("/sms_send", s.handleSend)

		api.GET("/tools", s.handleToolList)
		api.POST("/tools/:name", s.handleToolInvoke)

		campaigns := api.Group("/campaigns")
		{
			campaigns.POST("", s.handleCampaignCreate)
			campaigns.GET("/:id", s.handleCampaignGet)
			campaigns.POST("/:id/persona", s.handleCampaignPersona)
			campaigns.POST("/:id/type", s.handleCampaignType)
			campaigns.POST("/:id/generate", s.handleCampaignGenerate)
			campaigns.PATCH("/:id/message", s.handleCampaignEdit)
			campaigns.POST("/:id/message/reset", s.handleCampaignReset)
			campaigns.POST("/:id/recipient", s.handleCampaignRecipient)
			campaigns.POST("/:id/back", s.handleCampaignBack)
			campaigns.POST("/:id/send", s.handleCampaignSend)
		}
	}
	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("Request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
