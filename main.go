package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/trafficlens/backend/database"
	"github.com/trafficlens/backend/handlers"
	"github.com/trafficlens/backend/natsserver"
	"github.com/trafficlens/backend/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Connect to database
	if err := database.Connect(); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
	defer database.Close()

	// Start embedded NATS server carrying detection batches, telemetry
	// and review lifecycle events
	natsPort := 4233
	if p := os.Getenv("NATS_PORT"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			natsPort = parsed
		}
	}
	natsServer, err := natsserver.New(natsserver.Config{
		Port: natsPort,
	})
	if err != nil {
		log.Fatalf("❌ Failed to start NATS server: %v", err)
	}
	defer natsServer.Shutdown()
	log.Printf("📡 Review event bus started on port %d", natsPort)

	// Connect to NATS for the feed hub
	natsConn, err := nats.Connect(fmt.Sprintf("nats://localhost:%d", natsPort))
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer natsConn.Close()

	// Wire the domain services into the handlers
	handlers.Init(database.DB, natsConn)

	// Consume detection batches and telemetry off the bus
	if err := services.StartConsumers(natsConn, database.DB, services.NewReviewService(database.DB, natsConn)); err != nil {
		log.Fatalf("❌ Failed to start NATS consumers: %v", err)
	}

	// Initialize feed hub for WebSocket streaming of review events
	feedHub := services.NewFeedHub(natsConn)
	go feedHub.Run()
	handlers.SetFeedHub(feedHub)
	log.Println("📺 Feed hub initialized")

	// Ensure the default reviewer account exists
	adminUser := os.Getenv("ADMIN_USER")
	if adminUser == "" {
		adminUser = "admin"
	}
	adminPass := os.Getenv("ADMIN_PASSWORD")
	if adminPass == "" {
		adminPass = "change-me-now"
	}
	handlers.SeedAdminUser(adminUser, adminPass)

	// Setup Gin router
	if os.Getenv("ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.SetupRouter()

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}

	log.Printf("🚀 Server running on http://localhost:%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
