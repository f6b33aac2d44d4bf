package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	api "famcal-backend/cmd/api"
	authdomain "famcal-backend/internal/auth/domain"
	authRepo "famcal-backend/internal/auth/repository"
	authUsecase "famcal-backend/internal/auth/usecase"
	caldomain "famcal-backend/internal/calendar/domain"
	calRepo "famcal-backend/internal/calendar/repository"
	calUsecase "famcal-backend/internal/calendar/usecase"
	mirrordomain "famcal-backend/internal/mirror/domain"
	mirrorRepo "famcal-backend/internal/mirror/repository"
	mirrorUsecase "famcal-backend/internal/mirror/usecase"
	"famcal-backend/internal/notification"
	"famcal-backend/internal/supplemental"
	"famcal-backend/pkg/config"
	"famcal-backend/pkg/crypto"
	"famcal-backend/pkg/database"
	"famcal-backend/pkg/fcm"
	"famcal-backend/pkg/gcal"
	"famcal-backend/pkg/geo"
	"famcal-backend/pkg/icsfeed"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Stored Google tokens are encrypted at rest; refusing to start without
	// a key beats silently writing plaintext credentials.
	cipher, err := crypto.NewCipher(cfg.TokenEncryptionKey)
	if err != nil {
		log.Fatal("Failed to initialize token encryption:", err)
	}

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&authdomain.User{},
		&authdomain.RefreshToken{},
		&authdomain.DeviceToken{},
		&caldomain.Calendar{},
		&caldomain.CalendarMember{},
		&caldomain.Event{},
		&caldomain.SupplementalEvent{},
		&mirrordomain.EventSyncLink{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	userRepo := authRepo.NewUserRepository(db)
	deviceTokenRepo := authRepo.NewDeviceTokenRepository(db)
	calendarRepo := calRepo.NewCalendarRepository(db)
	eventRepo := calRepo.NewEventRepository(db)
	supRepo := calRepo.NewSupplementalRepository(db)
	memberRepo := calRepo.NewMemberRepository(db)
	linkRepo := mirrorRepo.NewLinkRepository(db)

	// Routing backend. Without an API key a fixed estimate keeps assignment
	// working; geocoding-dependent supplementals are skipped with an error.
	var planner geo.Planner
	if cfg.GoogleMapsAPIKey != "" {
		geoClient, err := geo.NewClient(cfg.GoogleMapsAPIKey)
		if err != nil {
			log.Fatal("Failed to initialize maps client:", err)
		}
		planner = geoClient
	} else {
		log.Printf("[WARN] GOOGLE_MAPS_API_KEY not configured, using fixed travel estimates")
		planner = geo.FixedEstimator{Estimate: 45 * time.Minute}
	}

	// Google Calendar mirror provider
	gcalService := gcal.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret)
	synchronizer := mirrorUsecase.NewSynchronizer(linkRepo, userRepo, gcalService, cipher)

	// Supplemental-event generator
	generator := supplemental.NewGenerator(eventRepo, supRepo, userRepo, planner,
		time.Duration(cfg.DefaultComfortBufferMinutes)*time.Minute)

	// Upstream feed fetcher
	feedFetcher := icsfeed.NewFetcher(cfg.FeedFetchTimeout)

	// Initialize Notification Service (Pub/Sub)
	// Only start if project ID is configured
	var notifier calUsecase.Notifier
	if cfg.GoogleProjectID != "" {
		// Extract short topic name from full resource name if necessary
		topicName := cfg.GooglePubSubTopic
		if parts := strings.Split(topicName, "/"); len(parts) > 1 {
			topicName = parts[len(parts)-1]
		}
		if topicName == "" {
			topicName = "famcal-event-updates"
		}

		// FCM client is optional; the publisher side works without it.
		var fcmClient *fcm.Client
		if cfg.FirebaseCredentials != "" {
			fcmClient, err = fcm.NewClient(cfg.FirebaseCredentials)
			if err != nil {
				log.Printf("[WARN] Failed to initialize FCM client (push notifications disabled): %v", err)
			}
		}

		notifService, err := notification.NewService(cfg.GoogleProjectID, topicName, userRepo, deviceTokenRepo, fcmClient, cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize notification service: %v", err)
		} else {
			go notifService.Start(context.Background())
			notifier = notifService
		}
	} else {
		log.Printf("[WARN] GoogleProjectID not configured, notification service disabled")
	}

	// Initialize use cases (dependency injection)
	authUsecaseInstance := authUsecase.NewAuthUsecase(userRepo, deviceTokenRepo, cfg, cipher, planner)
	calendarUsecaseInstance := calUsecase.NewCalendarUsecase(
		calendarRepo, eventRepo, supRepo, memberRepo, userRepo,
		feedFetcher, synchronizer, generator, notifier,
	)

	// Periodic feed reconciliation
	go runReconcileLoop(calendarUsecaseInstance)

	// Initialize HTTP handler
	handler := api.NewHandler(authUsecaseInstance, calendarUsecaseInstance, cfg)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := handler.Start(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

// runReconcileLoop refreshes every calendar from its upstream feed on a
// fixed interval. Per-calendar sync flags make overlapping runs harmless.
func runReconcileLoop(uc calUsecase.CalendarUsecase) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		results := uc.ReconcileAll(context.Background())
		for _, r := range results {
			if len(r.Errors) > 0 {
				log.Printf("[Reconcile] calendar %s finished with %d errors", r.CalendarID, len(r.Errors))
			}
		}
	}
}
