package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"labmaint-cloud/internal/audit"
	"labmaint-cloud/internal/auth"
	instrumentsrepo "labmaint-cloud/internal/instruments/infrastructure/postgres"
	instrumentshttp "labmaint-cloud/internal/instruments/interfaces/http"
	"labmaint-cloud/internal/notify"
	"labmaint-cloud/internal/observability/metrics"
	resultsapp "labmaint-cloud/internal/results/application"
	resultsrepo "labmaint-cloud/internal/results/infrastructure/postgres"
	resultshttp "labmaint-cloud/internal/results/interfaces/http"
	scheduleapp "labmaint-cloud/internal/schedule/application"
	schedulerepo "labmaint-cloud/internal/schedule/infrastructure/postgres"
	templatesrepo "labmaint-cloud/internal/templates/infrastructure/postgres"
	templateshttp "labmaint-cloud/internal/templates/interfaces/http"
	usersapp "labmaint-cloud/internal/users/application"
	usersrepo "labmaint-cloud/internal/users/infrastructure/postgres"
	usershttp "labmaint-cloud/internal/users/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	instrumentRepo := instrumentsrepo.NewInstrumentRepository(db)
	eventRepo := schedulerepo.NewEventRepository(db)
	templateRepo := templatesrepo.NewTemplateRepository(db)
	resultRepo := resultsrepo.NewResultRepository(db)
	userRepo := usersrepo.NewUserRepository(db)

	scheduleService, err := scheduleapp.NewService(eventRepo, instrumentRepo)
	if err != nil {
		logger.Fatalf("schedule service error: %v", err)
	}

	completionStore, err := resultsrepo.NewCompletionStore(db, resultRepo, eventRepo, instrumentRepo)
	if err != nil {
		logger.Fatalf("completion store error: %v", err)
	}
	facade, err := resultsapp.NewFacade(
		instrumentRepo,
		eventRepo,
		completionStore,
		resultRepo,
		scheduleService,
		resultsapp.WithTemplateSource(templateRepo),
	)
	if err != nil {
		logger.Fatalf("results facade error: %v", err)
	}

	userService, err := usersapp.NewService(userRepo)
	if err != nil {
		logger.Fatalf("user service error: %v", err)
	}

	scheduleCfg, err := scheduleapp.LoadConfig()
	if err != nil {
		logger.Fatalf("schedule config error: %v", err)
	}
	var overdueNotifier scheduleapp.OverdueNotifier
	if scheduleCfg.Reminder.WebhookURL != "" {
		channel, err := notify.NewWebhookChannel(scheduleCfg.Reminder.WebhookURL)
		if err != nil {
			logger.Fatalf("reminder webhook error: %v", err)
		}
		tpl, err := notify.NewTemplate(scheduleCfg.Reminder.Template)
		if err != nil {
			logger.Fatalf("reminder template error: %v", err)
		}
		overdueNotifier, err = notify.NewNotifier(channel, tpl,
			notify.WithCooldown(scheduleCfg.ReminderCooldown),
			notify.WithRequestTimeout(scheduleCfg.ReminderTimeout),
			notify.WithLogger(logger),
		)
		if err != nil {
			logger.Fatalf("reminder notifier error: %v", err)
		}
	}
	scheduler := scheduleapp.NewScheduler(scheduleService, overdueNotifier, scheduleCfg.DailyAt, logger)
	go scheduler.Start(context.Background())

	instrumentHandler, err := instrumentshttp.NewHandler(instrumentRepo, scheduleService, auditRepo)
	if err != nil {
		logger.Fatalf("instruments handler error: %v", err)
	}
	templateHandler, err := templateshttp.NewHandler(templateRepo, auditRepo)
	if err != nil {
		logger.Fatalf("templates handler error: %v", err)
	}
	maintenanceHandler, err := resultshttp.NewHandler(facade, scheduleService, auditRepo)
	if err != nil {
		logger.Fatalf("maintenance handler error: %v", err)
	}
	userHandler, err := usershttp.NewHandler(userService, auditRepo)
	if err != nil {
		logger.Fatalf("users handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy, userService)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/instruments", instrumentHandler)
	mux.Handle("/api/v1/instruments/", instrumentHandler)
	mux.Handle("/api/v1/templates", templateHandler)
	mux.Handle("/api/v1/templates/", templateHandler)
	mux.Handle("/api/v1/maintenance/", maintenanceHandler)
	mux.Handle("/api/v1/users", userHandler)
	mux.Handle("/api/v1/users/", userHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL string
	HTTPAddr    string
	JWTSecret   string
}

func loadConfig() config {
	return config{
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:   getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
