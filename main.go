package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"pickup-service/internal/cache"
	"pickup-service/internal/db"
	"pickup-service/internal/handlers"
	"pickup-service/internal/middleware"
	"pickup-service/internal/negotiation"
	"pickup-service/internal/observability"
	"pickup-service/internal/rabbitmq"
	"pickup-service/internal/repositories"
	"pickup-service/internal/telemetry"
	"pickup-service/internal/ws"
)

const serviceName = "pickup-service"

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	if getEnv("LOG_LEVEL", "info") == "debug" {
		logrus.SetLevel(logrus.DebugLevel)
	}

	ctx := context.Background()

	shutdownTracer, err := telemetry.InitTracer(ctx, serviceName, getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""))
	if err != nil {
		logrus.WithError(err).Fatal("failed to init tracer")
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logrus.WithError(err).Warn("tracer shutdown failed")
		}
	}()

	database, err := db.Connect()
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to db")
	}
	defer database.Close()

	amqpURL := getEnv("AMQP_URL", "")
	exchange := getEnv("AMQP_EXCHANGE", "pickup.events")
	publisher := rabbitmq.NewPublisher(amqpURL, exchange)
	defer publisher.Close()

	if amqpURL != "" {
		if wsPublisher, err := observability.NewAMQPPublisher(amqpURL, getEnv("AMQP_OBS_EXCHANGE", "pickup.observability")); err != nil {
			logrus.WithError(err).Warn("observability publisher disabled")
		} else {
			observability.SetPublisher(wsPublisher)
			defer wsPublisher.Close()
		}
	}

	audit := telemetry.NewAuditEmitter(publisher, getEnv("AUDIT_ROUTING_KEY", "audit.pickup"), serviceName, getEnv("ENVIRONMENT", "development"))

	var snapshotCache negotiation.SnapshotCache
	if addr := getEnv("REDIS_ADDR", ""); addr != "" {
		redisCache, err := cache.NewRedisCache(addr, getEnv("REDIS_PASSWORD", ""), getEnvInt("REDIS_DB", 0))
		if err != nil {
			logrus.WithError(err).Warn("redis disabled")
		} else {
			defer redisCache.Close()
			snapshotCache = redisCache
		}
	}

	userRepo := repositories.NewUserRepo(database)
	requestRepo := repositories.NewRequestRepo(database)
	sessionRepo := repositories.NewSessionRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	ratingRepo := repositories.NewRatingRepo(database)
	notificationRepo := repositories.NewNotificationRepo(database)

	hub := ws.NewHub()

	cfg := negotiation.DefaultConfig()
	cfg.AdGate = time.Duration(getEnvInt("AD_GATE_SECONDS", 5)) * time.Second
	cfg.RatingPromptDelay = time.Duration(getEnvInt("RATING_PROMPT_DELAY_SECONDS", 1)) * time.Second
	cfg.AcceptPolicy = negotiation.AcceptPolicy(getEnv("ACCEPT_POLICY", string(negotiation.AcceptPolicySingle)))

	negotiator := negotiation.NewService(negotiation.Deps{
		Sessions:      sessionRepo,
		Messages:      messageRepo,
		Requests:      requestRepo,
		Users:         userRepo,
		Ratings:       ratingRepo,
		Notifications: notificationRepo,
		Hub:           hub,
		Events:        publisher,
		Cache:         snapshotCache,
	}, cfg)

	jwtSecret := getEnv("JWT_SECRET", "dev-secret")
	tokenTTL := time.Duration(getEnvInt("TOKEN_TTL_HOURS", 72)) * time.Hour

	authHandler := handlers.NewAuthHandler(userRepo, jwtSecret, tokenTTL, audit)
	requestHandler := handlers.NewRequestHandler(requestRepo, negotiator, audit)
	chatHandler := handlers.NewChatHandler(sessionRepo, messageRepo, negotiator)
	negotiationHandler := handlers.NewNegotiationHandler(negotiator)
	notificationHandler := handlers.NewNotificationHandler(notificationRepo)

	sessionWS := ws.NewSessionWebSocketHandler(hub, sessionRepo, jwtSecret)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(jwtSecret)

	router.POST("/auth/register", authHandler.Register)
	router.POST("/auth/login", authHandler.Login)
	router.GET("/users/me", authMiddleware, authHandler.Me)

	router.POST("/requests", authMiddleware, requestHandler.CreateRequest)
	router.GET("/requests", authMiddleware, requestHandler.ListRequests)
	router.GET("/requests/:request_id", authMiddleware, requestHandler.GetRequest)
	router.POST("/requests/:request_id/accept", authMiddleware, requestHandler.AcceptRequest)

	router.GET("/sessions", authMiddleware, chatHandler.ListSessions)
	router.GET("/sessions/:session_id", authMiddleware, chatHandler.GetSession)
	router.GET("/sessions/:session_id/messages", authMiddleware, chatHandler.GetMessages)
	router.POST("/sessions/:session_id/messages", authMiddleware, chatHandler.PostMessage)
	router.POST("/sessions/:session_id/price", authMiddleware, negotiationHandler.ProposePrice)
	router.POST("/sessions/:session_id/agree", authMiddleware, negotiationHandler.Agree)
	router.POST("/sessions/:session_id/ad/skip", authMiddleware, negotiationHandler.SkipAd)
	router.GET("/sessions/:session_id/contact", authMiddleware, negotiationHandler.ContactCard)
	router.POST("/sessions/:session_id/complete", authMiddleware, negotiationHandler.Complete)
	router.POST("/sessions/:session_id/rating", authMiddleware, negotiationHandler.SubmitRating)

	router.GET("/notifications", authMiddleware, notificationHandler.ListNotifications)
	router.POST("/notifications/:notification_id/read", authMiddleware, notificationHandler.MarkRead)

	router.GET("/ws/sessions/:session_id", sessionWS.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, audit, negotiationHandler, authMiddleware, getEnv("DEBUG_ROUTES", "") == "true")

	port := getEnv("PORT", "8080")
	logrus.WithField("port", port).Info("pickup service listening")
	if err := router.Run(":" + port); err != nil {
		logrus.WithError(err).Fatal("server error")
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}
