package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/iamacowMooMoo/spaops/libs/cachex"
	"github.com/iamacowMooMoo/spaops/libs/config"
	"github.com/iamacowMooMoo/spaops/libs/db"
	"github.com/iamacowMooMoo/spaops/libs/httpx"
	"github.com/iamacowMooMoo/spaops/libs/kafkax"
	otelx "github.com/iamacowMooMoo/spaops/libs/otel"
	"github.com/iamacowMooMoo/spaops/libs/runtime"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/availability"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/booking"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/cache"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/conflict"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/handlers"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/outbox"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/storage"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/visit"
)

func main() {
	service := config.String("SERVICE_NAME", "spa-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	redisAddr := config.String("REDIS_ADDR", "localhost:6379")
	kv := cachex.Open(redisAddr)
	defer func() { _ = kv.Close() }()

	store := storage.New(pool)
	engine := availability.NewEngine(pool)
	checker := conflict.NewChecker()
	cacheTTL := config.DurationSeconds("CACHE_TTL_SECONDS", cache.DefaultTTL)
	dash := cache.NewDashboard(kv, engine, store, cacheTTL, logger)

	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	bookings := booking.NewManager(store, checker, engine, dash, outboxRepo, logger)
	visits := visit.NewManager(store, dash, outboxRepo, logger)
	drafts := booking.NewDraftStore(kv)

	customerHandler := handlers.NewCustomerHandler(store, logger)
	employeeHandler := handlers.NewEmployeeHandler(store, logger)
	catalogHandler := handlers.NewCatalogHandler(store, logger)
	visitHandler := handlers.NewVisitHandler(visits, logger)
	bookingHandler := handlers.NewBookingHandler(bookings, engine, store, logger)
	draftHandler := handlers.NewDraftHandler(drafts, logger)
	dashboardHandler := handlers.NewDashboardHandler(dash, logger)
	maintenanceHandler := handlers.NewMaintenanceHandler(dash, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "redis", Check: cachex.ReadyCheck(kv)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)

	mux.HandleFunc("/api/v1/customers", customerHandler.Create)
	mux.HandleFunc("/api/v1/customers/detail", customerHandler.Detail)
	mux.HandleFunc("/api/v1/customers/search", customerHandler.Search)
	mux.HandleFunc("/api/v1/nation-codes", customerHandler.NationCodes)

	mux.HandleFunc("/api/v1/employees", employeeHandler.Create)
	mux.HandleFunc("/api/v1/employees/update", employeeHandler.Update)
	mux.HandleFunc("/api/v1/employees/detail", employeeHandler.Detail)
	mux.HandleFunc("/api/v1/employees/roles", employeeHandler.AddRole)
	mux.HandleFunc("/api/v1/employees/roles/end", employeeHandler.EndRole)

	mux.HandleFunc("/api/v1/services", catalogHandler.Services)
	mux.HandleFunc("/api/v1/rooms", catalogHandler.Rooms)

	mux.HandleFunc("/api/v1/visits", visitHandler.Open)
	mux.HandleFunc("/api/v1/visits/detail", visitHandler.Detail)
	mux.HandleFunc("/api/v1/visits/payments", visitHandler.RecordPayments)
	mux.HandleFunc("/api/v1/visits/exit", visitHandler.RecordExit)

	mux.HandleFunc("/api/v1/bookings", bookingHandler.Create)
	mux.HandleFunc("/api/v1/bookings/edit", bookingHandler.Edit)
	mux.HandleFunc("/api/v1/bookings/delete", bookingHandler.Delete)
	mux.HandleFunc("/api/v1/bookings/start", bookingHandler.Start)
	mux.HandleFunc("/api/v1/bookings/end", bookingHandler.End)
	mux.HandleFunc("/api/v1/bookings/options", bookingHandler.Options)
	mux.HandleFunc("/api/v1/bookings/edit-options", bookingHandler.EditOptions)

	mux.HandleFunc("/api/v1/booking-drafts", draftHandler.Create)
	mux.HandleFunc("/api/v1/booking-drafts/get", draftHandler.Get)
	mux.HandleFunc("/api/v1/booking-drafts/update", draftHandler.Update)
	mux.HandleFunc("/api/v1/booking-drafts/discard", draftHandler.Discard)

	mux.HandleFunc("/api/v1/dashboard", dashboardHandler.Snapshot)
	mux.HandleFunc("/api/v1/dashboard/active-visits", dashboardHandler.ActiveVisits)
	mux.HandleFunc("/api/v1/dashboard/available-staff", dashboardHandler.AvailableStaff)
	mux.HandleFunc("/api/v1/dashboard/available-rooms", dashboardHandler.AvailableRooms)
	mux.HandleFunc("/api/v1/dashboard/busy", dashboardHandler.Busy)

	// Warm-cache recomputes every dashboard view; keep a tight per-instance
	// limit on the maintenance surface.
	maintenanceLimit := httpx.NewRateLimiter(10, time.Minute).Middleware()
	mux.Handle("/api/v1/maintenance/warm-cache", maintenanceLimit(http.HandlerFunc(maintenanceHandler.WarmCache)))
	mux.Handle("/api/v1/maintenance/cache-debug", maintenanceLimit(http.HandlerFunc(maintenanceHandler.CacheDebug)))

	rateLimiter := httpx.NewRedisRateLimiter(kv.Raw(),
		config.Int("RATE_LIMIT_PER_MINUTE", 300), time.Minute, "spa:rl")
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithTimeout(config.DurationSeconds("REQUEST_TIMEOUT_SECONDS", 30*time.Second)),
		httpx.WithBodyLimit(1<<20),
		rateLimiter.Middleware(logger, true),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(config.String("CORS_ALLOWED_ORIGINS", ""), ","),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         10 * time.Minute,
		}),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "spa")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
