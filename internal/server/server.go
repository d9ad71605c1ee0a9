package server

import (
	"net/http"
	"time"

	"paylink/internal/config"
	"paylink/internal/database"
	"paylink/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Server struct {
	engine *gin.Engine
	port   string
}

func New(cfg *config.Config, svc service.PaymentLinkService, health database.Service) *Server {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	engine.Use(cors.New(corsCfg))
	engine.Use(ContentSecurityPolicy())
	engine.Use(RateLimit(NewFixedWindowCounter(cfg.RateLimitWindow, cfg.RateLimitMax)))

	h := &handler{
		svc:             svc,
		health:          health,
		stripePublicKey: cfg.StripePublicKey,
	}

	engine.POST("/create_payment_link", h.createPaymentLink)
	engine.GET("/pay/:token", h.payPage)
	engine.POST("/create_checkout_session", h.createCheckoutSession)
	engine.GET("/payment_success", h.paymentSuccess)
	engine.GET("/payment_cancelled", h.paymentCancelled)
	engine.GET("/payments", h.listPayments)
	engine.GET("/payments/export", h.exportPayments)
	engine.GET("/health", h.healthCheck)

	return &Server{engine: engine, port: cfg.Port}
}

// HTTPServer wraps the router in an http.Server the caller can run and shut
// down gracefully.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}
