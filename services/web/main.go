package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/diagnosis/fitkeeda-web/pkg/config"
	"github.com/diagnosis/fitkeeda-web/pkg/events"
	"github.com/diagnosis/fitkeeda-web/pkg/logger"
	mw "github.com/diagnosis/fitkeeda-web/pkg/middleware"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/api"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/guard"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/handlers"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/notify"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/session"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/views"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	// Session store: Redis when available, in-process otherwise.
	var (
		store       session.Store
		redisClient *redis.Client
	)
	if cfg.Redis.Enabled {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Error("Invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		store = session.NewRedisStore(redisClient, cfg.Session.TTL)
	} else {
		logger.Warn("Redis disabled, sessions are held in memory and lost on restart")
		store = session.NewMemoryStore(cfg.Session.TTL)
	}
	tokens := session.NewTokens(store)

	var publisher events.Publisher = events.Noop{}
	if cfg.NATS.Enabled {
		nc, err := events.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			logger.Warn("NATS unavailable, events disabled", "error", err)
		} else {
			publisher = nc
		}
	}
	defer publisher.Close()

	var mailer notify.Mailer
	if cfg.Email.DevMode || cfg.Email.MailerSendKey == "" {
		mailer = notify.NewDevMailer()
	} else {
		mailer = notify.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.FromEmail)
	}

	renderer, err := views.New()
	if err != nil {
		logger.Error("Failed to load templates", "error", err)
		os.Exit(1)
	}

	backend := api.NewClient(cfg.Backend.URL, cfg.Backend.Timeout)
	verifier := guard.NewAPIVerifier(backend, cfg.Backend.VerifyRetries, cfg.Backend.RetryBackoff)
	guards := handlers.Guards{
		Admin:    guard.New(guard.Admin, tokens, verifier, publisher),
		Coach:    guard.New(guard.Coach, tokens, verifier, publisher),
		Resident: guard.New(guard.Resident, tokens, verifier, publisher),
	}

	h := handlers.New(handlers.Options{
		API:        backend,
		Store:      store,
		Tokens:     tokens,
		Views:      renderer,
		Events:     publisher,
		Notifier:   notify.New(mailer),
		SubmitLock: cfg.Session.SubmitLock,
	})

	var loginLimit func(http.Handler) http.Handler
	if redisClient != nil {
		limiter := mw.NewRateLimiter(mw.NewRedisCounter(redisClient), mw.RateLimitConfig{
			Requests: cfg.RateLimit.LoginAttempts,
			Window:   cfg.RateLimit.Window,
			KeyFunc:  mw.LoginKeyFunc,
		})
		loginLimit = limiter.Middleware()
	}

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("web"))
	r.Use(mw.Logging)
	r.Use(mw.Recover)
	r.Use(mw.Health)
	r.Use(mw.Metrics)
	r.Use(session.Manager{
		CookieName: cfg.Session.CookieName,
		TTL:        cfg.Session.TTL,
		Secure:     cfg.Session.Secure,
	}.Middleware)
	r.Use(mw.CSRF([]byte(cfg.CSRF.AuthKey), cfg.CSRF.Secure, cfg.Server.AllowedOrigins))

	h.Mount(r, handlers.RouteOptions{
		Guards:         guards,
		LoginLimit:     loginLimit,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down web service...")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Web shutdown error", "error", err)
		}
	}()

	logger.Info("Starting web service", "port", cfg.Server.Port, "backend", cfg.Backend.URL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Web server error", "error", err)
		os.Exit(1)
	}
}
