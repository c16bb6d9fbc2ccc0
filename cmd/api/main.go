package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"contactbook_backend/internal/controller"
	"contactbook_backend/internal/middleware"
	"contactbook_backend/internal/model"
	"contactbook_backend/pkg/billing"
	"contactbook_backend/pkg/cache"
	"contactbook_backend/pkg/config"
	"contactbook_backend/pkg/contactbook"
	"contactbook_backend/pkg/cron"
	"contactbook_backend/pkg/database"
	"contactbook_backend/pkg/email"
	"contactbook_backend/pkg/logger"
	"contactbook_backend/pkg/profile"
	"contactbook_backend/pkg/search"
	"contactbook_backend/pkg/seed"
	"contactbook_backend/pkg/social"
	"contactbook_backend/pkg/subscription"
	"contactbook_backend/pkg/utils/cloudflare"
	"contactbook_backend/pkg/utils/jwt"
)

const (
	maxBodySize      = 11 * 1024 * 1024
	contactRateLimit = 100
	contactRateWin   = 15 * time.Minute
	shutdownTimeout  = 10 * time.Second
	cronJobTimeout   = 5 * time.Minute
)

type services struct {
	contacts      *contactbook.Service
	subscriptions *subscription.Service
}

func setupRoutes(app *fiber.App, cfg *config.Config, svc services) {
	api := app.Group("/api")

	// Auth Routes
	auth := api.Group("/auth")
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)

	api.Get("/me", middleware.AuthMiddleware(), controller.GetMe)

	// Contacts, guarded by API key and bearer token
	contacts := api.Group("/contacts",
		limiter.New(limiter.Config{
			Max:          contactRateLimit,
			Expiration:   contactRateWin,
			LimitReached: middleware.RateLimited,
		}),
		middleware.APIKeyAuth(cfg.APIKey),
		middleware.AuthMiddleware(),
	)
	contacts.Get("/", controller.ListContacts)
	contacts.Get("/search", controller.SearchContacts)
	contacts.Get("/:id", controller.GetContact)
	contacts.Post("/", middleware.CheckContactLimit(svc.subscriptions, svc.contacts), controller.CreateContact)
	contacts.Put("/:id", controller.UpdateContact)
	contacts.Delete("/:id", controller.DeleteContact)
	contacts.Post("/:id/image", controller.UploadContactImage)
	contacts.Post("/:id/image/from-url", controller.ImportContactImage)
	contacts.Delete("/:id/image", controller.DeleteContactImage)

	api.Get("/tags", middleware.AuthMiddleware(), controller.ListTags)
	api.Get("/profiles/lookup", middleware.AuthMiddleware(), controller.LookupProfile)

	api.Get("/social-networks", controller.ListSocialNetworks)
	api.Post("/social-networks", middleware.AuthMiddleware(), controller.AddSocialNetwork)

	// Subscription routes
	subscriptions := api.Group("/subscriptions")
	subscriptions.Get("/plans", controller.ListPlans)
	subscriptions.Post("/plans", middleware.AuthMiddleware(), middleware.RequireAdmin(), controller.CreatePlan)

	subProtected := subscriptions.Group("/", middleware.AuthMiddleware())
	subProtected.Post("/create", controller.CreateSubscription)
	subProtected.Get("/my", controller.GetMySubscription)
	subProtected.Post("/:id/cancel", controller.CancelSubscription)
	subProtected.Post("/:id/reactivate", controller.ReactivateSubscription)
	subProtected.Put("/:id", controller.ChangeSubscriptionPlan)

	// Stripe webhook
	api.Post("/webhook", controller.HandleStripeWebhook)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	db := database.InitDB(cfg.Database.URL, log)
	if err := database.MigrateDatabase(db, log, model.All()...); err != nil {
		log.Fatal("Migration failed", "error", err)
	}
	if cfg.SeedPlans {
		if err := seed.SeedSubscriptionPlans(db, log); err != nil {
			log.Fatal("Could not seed subscription plans", "error", err)
		}
	}

	jwt.Init(cfg.JWT.Secret, cfg.JWT.TTL)

	// Email is optional; without it notices are skipped.
	var (
		mailer   controller.WelcomeMailer
		notifier subscription.Notifier
	)
	if cfg.Email.ResendAPIKey != "" {
		emailService, err := email.NewEmailService(email.Config{
			APIKey: cfg.Email.ResendAPIKey,
			From:   cfg.Email.From,
		}, log)
		if err != nil {
			log.Fatal("Could not initialize email service", "error", err)
		}
		mailer = emailService
		notifier = email.NewNotifier(emailService)
	} else {
		log.Warn("RESEND_API_KEY not set, emails disabled")
	}

	var ledger subscription.EventLedger
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Could not connect to redis", "error", err)
		}
		defer rdb.Close()
		ledger = cache.NewEventLedger(rdb, cache.DefaultLedgerTTL)
	}

	subscriptionService := subscription.NewService(
		subscription.NewGormStore(db),
		billing.NewStripeClient(cfg.Stripe.SecretKey, cfg.Timeouts.Upstream),
		log.With("component", "subscription"),
		subscription.Options{
			WebhookSecret: cfg.Stripe.WebhookSecret,
			Currency:      cfg.Stripe.Currency,
			Ledger:        ledger,
			Notifier:      notifier,
		},
	)

	registry := social.NewRegistry(cfg.Social.ExtraNetworks...)
	contactService := contactbook.NewService(db, registry, log.With("component", "contacts"))

	var store cloudflare.ImageStore
	if cfg.StorageEnabled() {
		r2, err := cloudflare.NewR2Store(ctx, cloudflare.Config{
			AccountID:     cfg.Storage.AccountID,
			AccessKey:     cfg.Storage.AccessKey,
			SecretKey:     cfg.Storage.SecretKey,
			Bucket:        cfg.Storage.Bucket,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
		})
		if err != nil {
			log.Fatal("Could not initialize image storage", "error", err)
		}
		store = r2
	} else {
		log.Warn("R2 storage not configured, image uploads disabled")
	}

	controller.InitAuthController(db, mailer, log.With("component", "auth"))
	controller.InitContactController(
		contactService,
		search.NewComposer(db, log.With("component", "search")),
		contactbook.NewImages(store, cfg.Timeouts.Upstream, log.With("component", "images")),
		log.With("component", "contacts"),
	)
	controller.InitProfileController(profile.NewClient(profile.Config{
		APIKey:  cfg.ProfileLookup.APIKey,
		Host:    cfg.ProfileLookup.Host,
		Timeout: cfg.ProfileLookup.Timeout,
	}, log.With("component", "profile")))
	controller.InitSocialController(registry)
	controller.InitSubscriptionController(subscriptionService, log.With("component", "webhook"))

	scheduler, err := cron.InitSubscriptionCron(subscriptionService, log.With("component", "cron"), cronJobTimeout)
	if err != nil {
		log.Fatal("Could not schedule subscription jobs", "error", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(log),
		BodyLimit:    maxBodySize,
	})

	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.Server.AllowOrigins}))

	setupRoutes(app, cfg, services{contacts: contactService, subscriptions: subscriptionService})

	go func() {
		log.Info("Server is running", "port", cfg.Server.Port)
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Error("Server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	<-scheduler.Stop().Done()
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Error("Forced shutdown", "error", err)
	}
}
