package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/shiva/ticketqueue/config"
	"github.com/shiva/ticketqueue/internal/auth"
	"github.com/shiva/ticketqueue/internal/expiry"
	"github.com/shiva/ticketqueue/internal/handler"
	"github.com/shiva/ticketqueue/internal/ledger"
	"github.com/shiva/ticketqueue/internal/middleware"
	"github.com/shiva/ticketqueue/internal/notify"
	"github.com/shiva/ticketqueue/internal/promotion"
	"github.com/shiva/ticketqueue/internal/service"
	"github.com/shiva/ticketqueue/internal/store"
	"github.com/shiva/ticketqueue/pkg/cache"
	"github.com/shiva/ticketqueue/pkg/db"
)

func main() {
	// ── Load configuration ──────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// ── Connect to PostgreSQL ───────────────────────────
	pgPool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("failed to connect to PostgreSQL: %v", err)
	}
	defer pgPool.Close()
	log.Println("✓ PostgreSQL connected")

	// ── Connect to Redis ────────────────────────────────
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("✓ Redis connected")

	// ── Durable store + seat ledger ─────────────────────
	usersStore := store.NewUsers(pgPool)
	eventsStore := store.NewEvents(pgPool)
	queueEntriesStore := store.NewQueueEntries(pgPool)
	reservationsStore := store.NewReservations(pgPool)

	led := ledger.New(ledger.NewRedisCoordinator(redisClient))

	// ── Notification hub ─────────────────────────────────
	hub := notify.NewHub()

	// ── Promotion engine + expiration pipeline ──────────
	promoEngine := promotion.New(led, queueEntriesStore, reservationsStore, eventsStore, hub, cfg.Queue.ReservationWindow)
	expiryPipeline := expiry.New(led, reservationsStore, queueEntriesStore, eventsStore, promoEngine, hub, cfg.Queue.MaxConcurrentActive)

	// ── Auth + services ──────────────────────────────────
	jwtSvc := auth.NewService(cfg.Queue.JWTSecret, cfg.Queue.JWTTTL, cfg.Queue.JWTIssuer)

	authSvc := service.NewAuthService(usersStore, jwtSvc)
	eventSvc := service.NewEventService(eventsStore, reservationsStore, led)
	queueSvc := service.NewQueueService(led, queueEntriesStore, eventsStore, reservationsStore)
	paymentSvc := service.NewPaymentService(reservationsStore, queueEntriesStore, hub)

	// ── Handlers ─────────────────────────────────────────
	authHandler := handler.NewAuthHandler(authSvc)
	eventHandler := handler.NewEventHandler(eventSvc)
	queueHandler := handler.NewQueueHandler(queueSvc)
	reservationHandler := handler.NewReservationHandler(paymentSvc)
	wsHandler := handler.NewWebSocketHandler(hub, jwtSvc)

	// ── Router ───────────────────────────────────────────
	router := mux.NewRouter()
	router.Use(middleware.RequestLogger)
	router.Use(middleware.Recoverer)

	router.HandleFunc("/health", healthHandler(pgPool, redisClient)).Methods(http.MethodGet)
	router.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)

	router.HandleFunc("/events", eventHandler.ListEvents).Methods(http.MethodGet)
	router.HandleFunc("/events/{id}", eventHandler.GetEvent).Methods(http.MethodGet)

	authed := router.NewRoute().Subrouter()
	authed.Use(middleware.Authenticate(jwtSvc))
	authed.HandleFunc("/events/{id}/queue/join", queueHandler.Join).Methods(http.MethodPost)
	authed.HandleFunc("/events/{id}/queue/me", queueHandler.Status).Methods(http.MethodGet)
	authed.HandleFunc("/reservations/{id}/pay", reservationHandler.Pay).Methods(http.MethodPost)
	authed.HandleFunc("/ws", wsHandler.Serve).Methods(http.MethodGet)

	admin := router.NewRoute().Subrouter()
	admin.Use(middleware.Authenticate(jwtSvc))
	admin.Use(middleware.RequireAdmin)
	admin.HandleFunc("/admin/events", eventHandler.CreateEvent).Methods(http.MethodPost)
	admin.HandleFunc("/admin/events/{id}/stats", eventHandler.Stats).Methods(http.MethodGet)

	// Wrap with CORS so browser clients (including the static demo
	// client) can reach the API.
	rootHandler := middleware.CORS(router)

	// ── Start HTTP server ───────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      rootHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// ── Scheduler: promotion ticker + expiration sweep ──
	schedCtx, stopScheduler := context.WithCancel(context.Background())
	var group errgroup.Group
	group.Go(func() error {
		runPromotionTicker(schedCtx, cfg.Queue.PromotionInterval, cfg.Queue.MaxConcurrentActive, eventsStore, promoEngine)
		return nil
	})
	group.Go(func() error {
		runExpirySweepTicker(schedCtx, cfg.Queue.ExpirySweepInterval, expiryPipeline)
		return nil
	})

	// Start the HTTP server in a goroutine so we can listen for shutdown signals.
	go func() {
		log.Printf("🚀 Server listening on %s", cfg.Server.ServerAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// ── Graceful shutdown ───────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("⏳ Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	stopScheduler()
	_ = group.Wait()

	log.Println("✅ Server gracefully stopped")
}

// runPromotionTicker fires PromoteBatch for every event currently inside
// its sales window, once per tick, until ctx is canceled.
func runPromotionTicker(ctx context.Context, period time.Duration, maxConcurrentActive int, events *store.Events, engine *promotion.Engine) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			all, err := events.List(ctx)
			if err != nil {
				log.Printf("[scheduler] promotion tick: list events: %v", err)
				continue
			}
			now := time.Now().UTC()
			for _, e := range all {
				if !e.InSalesWindow(now) {
					continue
				}
				if _, err := engine.PromoteBatch(ctx, e.ID, maxConcurrentActive); err != nil {
					log.Printf("[scheduler] promotion tick: event %s: %v", e.ID, err)
				}
			}
		}
	}
}

// runExpirySweepTicker scans for PENDING_PAYMENT reservations past their
// deadline and re-delivers them to the expiration pipeline, once per
// tick, until ctx is canceled.
func runExpirySweepTicker(ctx context.Context, period time.Duration, pipeline *expiry.Pipeline) {
	const sweepBatchSize = 100

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := pipeline.Sweep(ctx, sweepBatchSize); err != nil {
				log.Printf("[scheduler] expiry sweep: %v", err)
			} else if n > 0 {
				log.Printf("[scheduler] expiry sweep: expired %d reservation(s)", n)
			}
		}
	}
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// healthHandler returns an HTTP handler that checks PG and Redis connectivity.
func healthHandler(pgPool *pgxpool.Pool, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:   "ok",
			Services: make(map[string]string),
		}

		if err := db.HealthCheck(r.Context(), pgPool); err != nil {
			resp.Status = "degraded"
			resp.Services["postgres"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["postgres"] = "healthy"
		}

		if err := cache.HealthCheck(r.Context(), redisClient); err != nil {
			resp.Status = "degraded"
			resp.Services["redis"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["redis"] = "healthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	}
}
