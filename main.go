package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	apihttp "schoolfees-cloud/internal/api/http"
	"schoolfees-cloud/internal/audit"
	"schoolfees-cloud/internal/auth"
	catalogapp "schoolfees-cloud/internal/catalog/application"
	catalogrepo "schoolfees-cloud/internal/catalog/infrastructure/postgres"
	cataloginterfaces "schoolfees-cloud/internal/catalog/interfaces"
	"schoolfees-cloud/internal/eventing"
	feesapp "schoolfees-cloud/internal/fees/application"
	feesrepo "schoolfees-cloud/internal/fees/infrastructure/postgres"
	feesinterfaces "schoolfees-cloud/internal/fees/interfaces"
	"schoolfees-cloud/internal/notify"
	"schoolfees-cloud/internal/observability/metrics"

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

	structureRepo := catalogrepo.NewFeeStructureRepository(db)
	bursaryRepo := catalogrepo.NewBursaryRepository(db)
	feeRepo := feesrepo.NewStudentFeeRepository(db)
	paymentRepo := feesrepo.NewPaymentRepository(db)

	feesCfg, err := feesapp.LoadConfig()
	if err != nil {
		logger.Fatalf("fees config error: %v", err)
	}

	bus := eventing.NewBus()
	eventing.Subscribe(bus, func(ctx context.Context, evt feesapp.FeeResolved) error {
		if evt.Recalculated {
			logger.Printf("fee recalculated: fee=%s student=%s total=%s", evt.FeeID, evt.StudentID, evt.TotalAmountDue.StringFixed(2))
		} else {
			logger.Printf("fee resolved: fee=%s student=%s total=%s", evt.FeeID, evt.StudentID, evt.TotalAmountDue.StringFixed(2))
		}
		return nil
	})

	resolverService, err := feesapp.NewResolverService(structureRepo, bursaryRepo, feeRepo, paymentRepo, bus, feesCfg, feesapp.SystemClock{})
	if err != nil {
		logger.Fatalf("resolver service error: %v", err)
	}
	ledgerService, err := feesapp.NewLedgerService(feeRepo, paymentRepo, bus, feesapp.SystemClock{})
	if err != nil {
		logger.Fatalf("ledger service error: %v", err)
	}
	catalogService, err := catalogapp.NewCatalogService(structureRepo, bursaryRepo)
	if err != nil {
		logger.Fatalf("catalog service error: %v", err)
	}

	if cfg.NotifyWebhookURL != "" {
		channel, err := notify.NewWebhookChannel(cfg.NotifyWebhookURL)
		if err != nil {
			logger.Fatalf("notify webhook error: %v", err)
		}
		tpl, err := notify.NewTemplate(cfg.NotifyTemplate)
		if err != nil {
			logger.Fatalf("notify template error: %v", err)
		}
		notifier, err := notify.NewNotifier(feeRepo, channel, tpl,
			notify.WithCooldown(cfg.NotifyCooldown),
			notify.WithDedupeWindow(cfg.NotifyDedupeWindow),
		)
		if err != nil {
			logger.Fatalf("notifier error: %v", err)
		}
		notifier.Register(bus)
	}

	feeHandler, err := feesinterfaces.NewFeeHandler(resolverService, ledgerService, auditRepo)
	if err != nil {
		logger.Fatalf("fee handler error: %v", err)
	}
	catalogHandler, err := cataloginterfaces.NewCatalogHandler(catalogService)
	if err != nil {
		logger.Fatalf("catalog handler error: %v", err)
	}
	gatewayHandler, err := feesinterfaces.NewGatewayWebhookHandler(ledgerService, paymentRepo, logger)
	if err != nil {
		logger.Fatalf("gateway webhook handler error: %v", err)
	}

	if len(cfg.SweepSchools) > 0 && cfg.SweepAcademicYear != "" {
		go func() {
			ticker := time.NewTicker(cfg.SweepInterval)
			defer ticker.Stop()
			for range ticker.C {
				for _, schoolID := range cfg.SweepSchools {
					transitioned, err := ledgerService.MarkOverdue(context.Background(), schoolID, cfg.SweepAcademicYear)
					if err != nil {
						logger.Printf("overdue sweep error: school=%s: %v", schoolID, err)
						continue
					}
					if transitioned > 0 {
						logger.Printf("overdue sweep: school=%s transitioned=%d", schoolID, transitioned)
					}
				}
			}
		}()
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/webhooks/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	webhookAuth := auth.NewWebhookAuthMiddleware([]byte(cfg.GatewaySecret), time.Duration(cfg.GatewaySkewSeconds)*time.Second)

	mux := http.NewServeMux()
	mux.Handle("/webhooks/gateway/payments", webhookAuth.Wrap(gatewayHandler))
	mux.Handle("/api/v1/fees", feeHandler)
	mux.Handle("/api/v1/fees/", feeHandler)
	mux.Handle("/api/v1/payments/", feeHandler)
	mux.Handle("/api/v1/catalog/", catalogHandler)
	mux.Handle("/api/v1/stats", apihttp.NewStatsHandler(db))
	mux.Handle("/api/v1/exports/fees.csv", apihttp.NewExportFeesCSVHandler(db))
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
	DatabaseURL        string
	HTTPAddr           string
	JWTSecret          string
	GatewaySecret      string
	GatewaySkewSeconds int
	NotifyWebhookURL   string
	NotifyTemplate     string
	NotifyCooldown     time.Duration
	NotifyDedupeWindow time.Duration
	SweepSchools       []string
	SweepAcademicYear  string
	SweepInterval      time.Duration
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:        getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:           getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:          getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		GatewaySecret:      getenvDefault("GATEWAY_HMAC_SECRET", ""),
		GatewaySkewSeconds: getenvIntDefault("GATEWAY_MAX_SKEW_SECONDS", 300),
		NotifyWebhookURL:   getenvDefault("NOTIFY_WEBHOOK_URL", ""),
		NotifyTemplate:     getenvDefault("NOTIFY_TEMPLATE", ""),
		NotifyCooldown:     getenvDuration("NOTIFY_COOLDOWN", 0),
		NotifyDedupeWindow: getenvDuration("NOTIFY_DEDUP_WINDOW", 0),
		SweepSchools:       splitCSV(getenvDefault("OVERDUE_SWEEP_SCHOOLS", "")),
		SweepAcademicYear:  getenvDefault("OVERDUE_SWEEP_ACADEMIC_YEAR", ""),
		SweepInterval:      getenvDuration("OVERDUE_SWEEP_INTERVAL", time.Hour),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
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
