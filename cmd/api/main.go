// @title           FairSplit API
// @version         1.0
// @description     Group expense settlement service: log split expenses, derive balances, and finalize them into minimal settlement plans.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT token.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/fairsplit/fairsplit/docs"
	"github.com/fairsplit/fairsplit/internal/auth"
	"github.com/fairsplit/fairsplit/internal/config"
	"github.com/fairsplit/fairsplit/internal/database"
	"github.com/fairsplit/fairsplit/internal/expense"
	"github.com/fairsplit/fairsplit/internal/expense/split"
	"github.com/fairsplit/fairsplit/internal/group"
	"github.com/fairsplit/fairsplit/internal/notification"
	"github.com/fairsplit/fairsplit/internal/scheduler"
	"github.com/fairsplit/fairsplit/internal/settlement"
	"github.com/fairsplit/fairsplit/internal/user"
	"github.com/fairsplit/fairsplit/pkg/logger"
	mw "github.com/fairsplit/fairsplit/pkg/middleware"
)

func main() {
	log := logger.Get()
	defer logger.Close()

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, using environment variables")
	}

	cfg := config.Load()

	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalw("failed to run migrations", "error", err)
	}
	log.Info("database ready")

	tokens := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenDuration)
	splitFactory := split.NewFactory()

	userRepo := user.NewRepository(db)
	userService := user.NewService(userRepo, tokens)
	userHandler := user.NewHandler(userService)

	groupRepo := group.NewRepository(db)
	groupService := group.NewService(groupRepo)
	groupHandler := group.NewHandler(groupService)

	expenseRepo := expense.NewRepository(db)
	expenseService := expense.NewService(expenseRepo, groupRepo, splitFactory)
	expenseHandler := expense.NewHandler(expenseService)

	notificationRepo := notification.NewRepository(db)
	notificationService := notification.NewService(notificationRepo)
	notificationHandler := notification.NewHandler(notificationService)

	settlementRepo := settlement.NewRepository(db)
	settlementService := settlement.NewService(settlementRepo, expenseRepo, groupRepo, notificationService)
	settlementHandler := settlement.NewHandler(settlementService)

	sched := scheduler.New(settlementService, groupRepo, scheduler.Config{
		Interval:      cfg.SchedulerInterval,
		MaxConcurrent: cfg.SchedulerMaxConcurrent,
	})
	sched.Start()
	defer sched.Stop()

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/auth", userHandler.PublicRoutes())

		r.Group(func(r chi.Router) {
			r.Use(mw.Auth(tokens))

			r.Mount("/users", userHandler.Routes())
			r.Mount("/groups", groupHandler.Routes(
				expenseHandler.RegisterGroupRoutes,
				settlementHandler.RegisterGroupRoutes,
			))
			r.Mount("/expenses", expenseHandler.Routes())
			r.Mount("/settlements", settlementHandler.Routes())
			r.Mount("/notifications", notificationHandler.Routes())
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  time.Minute,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Infow("server listening", "port", cfg.Port)
		errChan <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server error", "error", err)
		}
	case sig := <-quit:
		log.Infow("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("graceful shutdown failed", "error", err)
	}
}
