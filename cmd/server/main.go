package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"murmur/internal/chat"
	"murmur/internal/config"
	"murmur/internal/db"
	"murmur/internal/group"
	"murmur/internal/media"
	"murmur/internal/middleware"
	"murmur/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Platform layer.
	database, err := db.NewDatabase(cfg.DatabaseDSN)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.AutoMigrate(); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("database ready")

	go database.RunRetentionSweep(ctx, cfg.SweepInterval, log)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	log.Info("redis ready")

	mediaStore := media.NewHTTPStore(cfg.MediaUploadURL)
	mailer := user.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom, cfg.ClientURL)

	// Identity.
	userRepo := user.NewRepository(database.Conn)
	userService := user.NewService(userRepo, mediaStore, mailer, cfg.JWTSecret, cfg.TokenDuration, log)
	userHandler := user.NewHandler(userService, log)

	// Presence and delivery.
	registry := chat.NewRegistry()
	hub := chat.NewHub(registry, log)
	go hub.Run(ctx)

	// Groups.
	groupRepo := group.NewRepository(database.Conn)
	membershipCache := group.NewRedisCache(redisClient, cfg.MembershipCacheTTL, log)
	groupService := group.NewService(groupRepo, membershipCache, mediaStore, hub, log)
	groupHandler := group.NewHandler(groupService, log)

	// Message lifecycle.
	chatRepo := chat.NewRepository(database.Conn)
	chatService := chat.NewService(chatRepo, userService, groupService, mediaStore, hub, cfg.SeenRetention, log)
	chatHandler := chat.NewHandler(hub, chatService, userService, groupService, log)

	auth := middleware.NewAuth(userService)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", userHandler.Signup)
		r.Post("/login", userHandler.Login)
		r.Post("/logout", userHandler.Logout)
		r.Post("/request-otp", userHandler.RequestOTP)
		r.Post("/reset-password", userHandler.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(auth.Handle)
			r.Get("/check", userHandler.Check)
			r.Put("/update-profile", userHandler.UpdateProfile)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Handle)

		r.Get("/ws", chatHandler.ServeWs)

		r.Route("/api/messages", func(r chi.Router) {
			r.Get("/contacts", chatHandler.GetContacts)
			r.Get("/chats", chatHandler.GetChatPartners)
			r.Get("/{id}", chatHandler.GetConversation)
			r.Post("/send/{id}", chatHandler.SendMessage)
			r.Post("/seen/{id}", chatHandler.MarkSeen)
			r.Post("/delete/{id}", chatHandler.DeleteMessage)
		})

		r.Route("/api/groups", func(r chi.Router) {
			r.Post("/create", groupHandler.Create)
			r.Get("/", groupHandler.MyGroups)
			r.Get("/{groupID}", chatHandler.GetGroupMessages)
			r.Post("/{groupID}/members", groupHandler.AddMembers)
		})
	})

	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Origins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(r)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	}()

	log.Info("server starting", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}
