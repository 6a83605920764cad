package router

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/pulse/backend/internal/handlers"
	"github.com/anonto42/pulse/backend/internal/middleware"
	"github.com/anonto42/pulse/backend/internal/realtime"
	"github.com/anonto42/pulse/backend/internal/services"
	"github.com/anonto42/pulse/backend/pkg/config"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// SetupRoutes configures all application routes and injects dependencies.
// firebaseAuthClient may be nil when Firebase is not configured.
func SetupRoutes(e *echo.Echo, cfg *config.Config, db *config.DB, firebaseAuthClient *auth.Client, reg prometheus.Registerer) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// --- Initialize Repositories ---
	stores, err := NewStores(ctx, cfg, db)
	if err != nil {
		return err
	}

	// --- Initialize Services ---
	logger := slog.Default()
	metrics := services.NewMetrics(reg)

	var publisher realtime.Publisher = realtime.NoopPublisher{}
	if db.Nats != nil {
		publisher = realtime.NewNatsPublisher(db.Nats)
		log.Println("Realtime notifications published over NATS.")
	}

	notificationService := services.NewNotificationService(stores.Notifications, publisher, metrics, logger)
	toggles := services.NewToggleCoordinator(stores.Users, stores.Posts, stores.Likes, stores.Follows, notificationService, metrics, logger)
	postService := services.NewPostService(stores.Posts, stores.Users, stores.Likes, stores.Comments, logger)
	commentService := services.NewCommentService(stores.Comments, stores.Posts, stores.Users, notificationService, logger)
	reconciler := services.NewReconciler(stores.Users, stores.Posts, stores.Likes, stores.Follows, stores.Comments, metrics, logger)

	// Health check - always accessible
	checks := map[string]handlers.Pinger{
		"mongo": func(ctx context.Context) error { return db.Mongo.Ping(ctx, nil) },
	}
	if db.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return db.Redis.Ping(ctx).Err() }
	}
	if db.Nats != nil {
		checks["nats"] = func(context.Context) error {
			if !db.Nats.IsConnected() {
				return fmt.Errorf("nats status %s", db.Nats.Status())
			}
			return nil
		}
	}
	health := handlers.NewHealthHandler(checks)
	e.GET("/health", health.HealthCheck)

	// Token verifier stays a nil interface when Firebase is off
	var verifier middleware.TokenVerifier
	var firebaseFallback echo.MiddlewareFunc
	if firebaseAuthClient != nil {
		verifier = firebaseAuthClient
		firebaseFallback = middleware.FirebaseAuthMiddleware(firebaseAuthClient, stores.Users)
		log.Println("Firebase ID tokens accepted as a fallback to local JWTs.")
	}

	v1 := e.Group("/api/v1")
	v1.Use(middleware.RateLimiter(db.Redis, cfg.RateLimitRequests, cfg.RateLimitWindow))
	log.Printf("Rate limiting /api/v1 to %d requests per %s.", cfg.RateLimitRequests, cfg.RateLimitWindow)

	// --- Unprotected routes for authentication ---
	authGroup := v1.Group("/auth")
	handlers.NewAuthHandler(stores.Users, verifier, cfg.JWTSecret).RegisterAuthRoutes(authGroup)
	log.Println("Auth routes configured.")

	// --- Protected routes ---
	api := v1.Group("")
	api.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret, firebaseFallback))
	log.Println("JWT authentication middleware applied to /api/v1 group.")

	handlers.NewUserHandler(stores.Users).RegisterProfileRoutes(api)
	handlers.NewPostHandler(postService).RegisterPostRoutes(api)
	handlers.NewFeedHandler(postService, stores.Users).RegisterFeedRoutes(api)
	handlers.NewLikeHandler(toggles).RegisterLikeRoutes(api)
	handlers.NewFollowHandler(toggles).RegisterFollowRoutes(api)
	handlers.NewCommentHandler(commentService).RegisterCommentRoutes(api)
	handlers.NewNotificationHandler(notificationService, stores.Users).RegisterNotificationRoutes(api)
	handlers.NewMessageHandler(stores.Messages, stores.Users).RegisterMessageRoutes(api)
	handlers.NewAdminHandler(reconciler).RegisterAdminRoutes(api)

	log.Println("All routes configured.")
	return nil
}

// NewReconciler builds a reconciler over the configured stores for offline use
func NewReconciler(ctx context.Context, cfg *config.Config, db *config.DB) (*services.Reconciler, error) {
	stores, err := NewStores(ctx, cfg, db)
	if err != nil {
		return nil, fmt.Errorf("build stores: %w", err)
	}
	return services.NewReconciler(stores.Users, stores.Posts, stores.Likes, stores.Follows, stores.Comments, services.NewMetrics(nil), slog.Default()), nil
}
