package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"teamchat/internal/config"
	"teamchat/internal/db"
	"teamchat/internal/messaging"
	myMiddleware "teamchat/internal/middleware"
	"teamchat/internal/presence"
	"teamchat/internal/realtime"
	"teamchat/internal/user"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
)

func main() {
	// 1. Config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}

	// 2. Connect to Database (Platform Layer)
	database, err := db.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to DB: %v", err)
	}
	log.Println("✅ Connected to PostgreSQL")

	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Println("✅ Database Schema Initialized")

	// 3. Connect to Redis (best effort — the app must work without it)
	// Short timeouts so a dead broker can't stall a send request.
	var broker presence.Broker = presence.Noop{}
	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	redisUp := false
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Printf("⚠️  Redis unreachable (%v) — live updates and presence disabled", err)
	} else {
		broker = presence.NewRedis(redisClient)
		redisUp = true
		log.Println("✅ Connected to Redis")
	}

	// 4. Initialize User Feature
	userRepo := user.NewRepository(database.Conn)
	userService := user.NewService(userRepo, cfg.JWTSecret)
	userHandler := user.NewHandler(userService)

	// 5. Initialize Messaging Feature
	msgRepo := messaging.NewRepository(database.Conn)
	msgService := messaging.NewService(msgRepo, userRepo, broker)
	msgHandler := messaging.NewHandler(msgService)

	// 6. Initialize Realtime Gateway (only when the broker is up)
	var hub *realtime.Hub
	if redisUp {
		hub = realtime.NewHub(redisClient, broker)
		go hub.Run()
		go hub.SubscribeToRedis(context.Background())
	}

	authMiddleware := myMiddleware.NewAuthMiddleware(userService)

	// 7. Define Routes
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	// Public Routes
	r.Post("/register", userHandler.Register)
	r.Post("/login", userHandler.Login)

	// Protected Routes (Require JWT)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)

		r.Get("/api/users/search", msgHandler.SearchUsers)

		r.Get("/api/conversations", msgHandler.ListConversations)
		r.Post("/api/conversations", msgHandler.StartConversation)
		r.Get("/api/conversations/{userID}/messages", msgHandler.GetConversation)
		r.Post("/api/conversations/{userID}/read", msgHandler.MarkRead)

		r.Post("/api/messages", msgHandler.Send)
		r.Get("/api/messages/unread-count", msgHandler.UnreadCount)

		// WebSocket (Real-time)
		if hub != nil {
			r.Get("/ws", hub.ServeWs)
		}
	})

	log.Printf("🚀 Server starting on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, r); err != nil {
		log.Fatal(err)
	}
}
