package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"                   // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // Recover and request logging

	"github.com/iliyamo/munon-registry/internal/config"     // Internal config loader
	"github.com/iliyamo/munon-registry/internal/database"   // MySQL connection
	"github.com/iliyamo/munon-registry/internal/handler"    // HTTP handlers
	"github.com/iliyamo/munon-registry/internal/logger"     // slog setup
	"github.com/iliyamo/munon-registry/internal/queue"      // hackathon.created consumer
	"github.com/iliyamo/munon-registry/internal/registry"   // the registry state machine
	"github.com/iliyamo/munon-registry/internal/repository" // account and hackathon stores
	"github.com/iliyamo/munon-registry/internal/router"     // Internal router setup
	"github.com/iliyamo/munon-registry/internal/service"    // RabbitMQ publisher
)

func main() {
	cfg, err := config.Load() // Load environment config
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	log := logger.Setup(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []registry.Option{registry.WithLogger(log)}
	var accounts repository.AccountStore
	var restore func(*registry.Registry) error

	switch cfg.Storage {
	case config.StorageMySQL:
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			log.Error("open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		hackathons := repository.NewHackathonRepo(db)
		accountRepo := repository.NewAccountRepo(db)
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = hackathons.InitSchema(initCtx)
		if err == nil {
			err = accountRepo.InitSchema(initCtx)
		}
		cancel()
		if err != nil {
			log.Error("init schema", "error", err)
			os.Exit(1)
		}
		opts = append(opts, registry.WithJournal(hackathons))
		accounts = accountRepo
		restore = func(r *registry.Registry) error {
			loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			records, balance, err := hackathons.LoadAll(loadCtx)
			if err != nil {
				return err
			}
			return r.Restore(records, balance)
		}
	default:
		accounts = repository.NewMemoryAccountRepo()
	}

	if cfg.AMQPURL != "" {
		opts = append(opts, registry.WithEventSink(service.NewPublisher(cfg.AMQPURL, log)))
		if cfg.EventsConsumer {
			consumer := queue.NewCreationConsumer(cfg.AMQPURL, log)
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("creation consumer stopped", "error", err)
				}
			}()
		}
	}

	reg := registry.New(opts...)
	if restore != nil {
		if err := restore(reg); err != nil {
			log.Error("restore registry", "error", err)
			os.Exit(1)
		}
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Info("redis unavailable, cache and rate limit disabled")
	} else {
		defer rdb.Close()
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				log.Error("request", append(attrs, "error", v.Error)...)
				return nil
			}
			log.Info("request", attrs...)
			return nil
		},
	}))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, accounts), accounts, cfg.JWTSecret)
	router.RegisterRegistry(e, handler.NewRegistryHandler(reg), router.Deps{
		JWTSecret: cfg.JWTSecret,
		Accounts:  accounts,
		Redis:     rdb,
		Cache:     config.LoadCacheConfig(),
		RateLimit: config.LoadRateLimitConfig(),
	})

	addr := ":" + cfg.Port // Address string with port
	log.Info("registry deployed",
		"addr", addr,
		"env", cfg.Env,
		"storage", cfg.Storage,
		"hackathon_count", reg.HackathonCount(),
		"events", cfg.AMQPURL != "",
	)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
	}
}
