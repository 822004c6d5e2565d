package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"upnext-service/internal/auth"
	"upnext-service/internal/db"
	"upnext-service/internal/handlers"
	"upnext-service/internal/middleware"
	"upnext-service/internal/notify"
	"upnext-service/internal/observability"
	"upnext-service/internal/rabbitmq"
	"upnext-service/internal/repositories"
	"upnext-service/internal/telemetry"
	"upnext-service/internal/ws"
)

const serviceName = "upnext-service"

func main() {
	ctx := context.Background()

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracing := observability.SetupTracing(ctx, getEnv("OTLP_ENDPOINT", ""), serviceName)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	amqpURL := getEnv("AMQP_URL", "")
	exchange := getEnv("AMQP_EXCHANGE", "upnext.events")

	auditPublisher := rabbitmq.NewPublisher(amqpURL, exchange)
	defer auditPublisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(auditPublisher))

	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, "audit.logs", serviceName, getEnv("ENVIRONMENT", "development"))

	if wsPublisher, err := observability.NewAMQPPublisher(amqpURL, exchange); err != nil {
		log.Printf("ws event publishing disabled: %v", err)
	} else {
		observability.SetPublisher(wsPublisher)
		defer wsPublisher.Close()
	}

	tokens := auth.NewTokenService(mustEnv("JWT_SECRET"), 24*time.Hour)

	userRepo := repositories.NewUserRepo(database)
	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	eventRepo := repositories.NewEventRepo(database)
	venueRepo := repositories.NewVenueRepo(database)

	hub := ws.NewHub()
	notifier := notify.NewHubNotifier(hub, conversationRepo, messageRepo, userRepo)

	authHandler := handlers.NewAuthHandler(userRepo, tokens)
	conversationHandler := handlers.NewConversationHandler(conversationRepo, messageRepo, userRepo, hub, notifier)
	eventHandler := handlers.NewEventHandler(eventRepo, auditEmitter)
	venueHandler := handlers.NewVenueHandler(venueRepo, auditEmitter)

	conversationWS := ws.NewConversationSocketHandler(hub, conversationRepo, messageRepo, userRepo, notifier, tokens)
	inboxWS := ws.NewInboxSocketHandler(hub, conversationRepo, tokens)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, auditEmitter, getEnv("DEBUG_ROUTES", "") == "true")

	router.POST("/auth/register", authHandler.Register)
	router.POST("/auth/login", authHandler.Login)

	authMiddleware := middleware.AuthMiddleware(tokens)

	router.GET("/conversations", authMiddleware, conversationHandler.ListConversations)
	router.POST("/conversations", authMiddleware, conversationHandler.CreateConversation)
	router.POST("/conversations/direct", authMiddleware, conversationHandler.StartDirect)
	router.GET("/conversations/:conversation_id/messages", authMiddleware, conversationHandler.GetMessages)
	router.POST("/conversations/:conversation_id/messages", authMiddleware, conversationHandler.PostMessage)
	router.POST("/messages/:message_id/read", authMiddleware, conversationHandler.MarkMessageRead)
	router.POST("/messages/:message_id/edit", authMiddleware, conversationHandler.EditMessage)
	router.POST("/messages/:message_id/react", authMiddleware, conversationHandler.ReactToMessage)
	router.DELETE("/messages/:message_id/reaction", authMiddleware, conversationHandler.RemoveReaction)

	router.POST("/events", authMiddleware, eventHandler.CreateEvent)
	router.GET("/events/:event_id", authMiddleware, eventHandler.GetEvent)
	router.POST("/events/:event_id/attend", authMiddleware, eventHandler.Attend)
	router.DELETE("/events/:event_id/attend", authMiddleware, eventHandler.CancelAttendance)
	router.GET("/events/:event_id/attendees", authMiddleware, eventHandler.ListAttendees)

	router.POST("/venues", authMiddleware, venueHandler.CreateVenue)
	router.GET("/venues/:venue_id", authMiddleware, venueHandler.GetVenue)
	router.POST("/venues/:venue_id/availability", authMiddleware, venueHandler.AddAvailability)
	router.GET("/venues/:venue_id/availability", authMiddleware, venueHandler.ListAvailability)
	router.POST("/venues/:venue_id/bookings", authMiddleware, venueHandler.CreateBooking)
	router.GET("/venues/:venue_id/bookings", authMiddleware, venueHandler.ListBookings)
	router.DELETE("/bookings/:booking_id", authMiddleware, venueHandler.CancelBooking)
	router.POST("/venues/:venue_id/reviews", authMiddleware, venueHandler.CreateReview)

	router.GET("/ws/conversations/:conversation_id", conversationWS.Handle)
	router.GET("/ws/inbox", inboxWS.Handle)

	port := getEnv("PORT", "8083")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustEnv(key string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		log.Fatalf("missing required env var %s", key)
	}
	return val
}
