package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"ncrp/libs/envconfig"
	"ncrp/libs/errtrack"
	"ncrp/libs/mailer"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultPort                = "5000"
	defaultMongoURI            = "mongodb://127.0.0.1:27017/ncrp-portal"
	defaultRateLimitRequests   = 30
	defaultRateLimitWindow     = 5 * time.Minute
	rateLimiterCleanupInterval = time.Minute
	shutdownGracePeriod        = 5 * time.Second
	storeCallTimeout           = 10 * time.Second
	trustedProxyLoopbackIPv4   = "127.0.0.1"
	trustedProxyLoopbackIPv6   = "::1"
	rootBanner                 = "NCRP Portal Backend is running"
)

type Config struct {
	Addr                string
	Env                 string
	StoreDriver         string
	MongoURI            string
	DatabaseURL         string
	CORSAllowedOrigins  []string
	RateLimitRequests   int
	RateLimitWindow     time.Duration
	ResendAPIKey        string
	MailerFromAddresses map[string]string
	ReportAckEmails     bool
	SentryDSN           string
	SentryEnvironment   string
}

type App struct {
	cfg    *Config
	store  Store
	log    *slog.Logger
	mailer *mailer.Mailer
	errors errtrack.Reporter

	passwordCost  int
	dummyHashOnce sync.Once
	dummyHash     []byte

	rateLimiterMu sync.Mutex
	rateBuckets   map[string]rateBucket
}

type rateBucket struct {
	start time.Time
	count int
}

type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string { return e.Message }

func newApp(cfg *Config, store Store, logger *slog.Logger, mailClient *mailer.Mailer, reporter errtrack.Reporter) *App {
	return &App{
		cfg:          cfg,
		store:        store,
		log:          logger,
		mailer:       mailClient,
		errors:       reporter,
		passwordCost: bcrypt.DefaultCost,
		rateBuckets:  make(map[string]rateBucket),
	}
}

func main() {
	if err := envconfig.Load(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	reporter := errtrack.New(errtrack.Options{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		ServerName:  "ncrp-api",
	}, logger)
	defer reporter.Flush(2 * time.Second)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Error("failed to close store", "err", err)
		}
	}()

	var mailProvider mailer.Provider
	if cfg.ResendAPIKey != "" {
		mailProvider = mailer.NewResendProvider(cfg.ResendAPIKey)
		logger.Info("mailer initialized", "provider", "resend")
	} else {
		mailProvider = mailer.NewLogProvider(logger)
		logger.Info("mailer initialized", "provider", "log")
	}
	mailClient := mailer.New(mailProvider, cfg.MailerFromAddresses[mailProvider.Name()])

	app := newApp(cfg, store, logger, mailClient, reporter)

	logger.Info(
		"runtime configuration",
		"env", cfg.Env,
		"addr", cfg.Addr,
		"store_driver", cfg.StoreDriver,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow.String(),
	)

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "upgrade-legacy-passwords":
			upgraded, err := app.upgradeLegacyPasswords(ctx)
			if err != nil {
				logger.Error("legacy password upgrade failed", "err", err)
				os.Exit(1)
			}
			logger.Info("legacy password upgrade completed", "count", upgraded)
			return
		case "migrate":
			if err := store.EnsureSchema(ctx); err != nil {
				logger.Error("schema setup failed", "err", err)
				os.Exit(1)
			}
			logger.Info("schema is up to date", "store_driver", cfg.StoreDriver)
			return
		default:
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
			os.Exit(1)
		}
	}

	if err := store.EnsureSchema(ctx); err != nil {
		panic(err)
	}

	serverCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	app.startRateLimiterCleanup(serverCtx, rateLimiterCleanupInterval)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}

	go func() {
		<-serverCtx.Done()
		logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", "err", err)
		}
	}()

	app.log.Info("starting gin API", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}

func (a *App) routes() *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies([]string{trustedProxyLoopbackIPv4, trustedProxyLoopbackIPv6}); err != nil {
		panic(err)
	}
	r.Use(gin.Recovery())
	r.Use(a.loggingMiddleware())
	r.Use(a.corsMiddleware())

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, rootBanner)
	})
	r.GET("/healthz", a.healthHandler)

	api := r.Group("/api")
	api.Use(a.rateLimitMiddleware())
	{
		api.POST("/register", a.registerHandler)
		api.POST("/login", a.loginHandler)
		api.POST("/submit-form", a.submitFormHandler)
	}

	return r
}

func (a *App) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := a.store.Ping(ctx); err != nil {
		a.log.Error("store ping failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func loadConfig() (*Config, error) {
	env := envconfig.FirstOf("APP_ENV", "GO_ENV")
	if env == "" {
		env = "development"
	}

	port := envconfig.String("PORT", defaultPort)
	if parsed, err := strconv.Atoi(port); err != nil || parsed <= 0 || parsed > 65535 {
		return nil, fmt.Errorf("PORT must be a valid TCP port")
	}

	driver := strings.ToLower(envconfig.String("STORE_DRIVER", storeDriverMongo))
	if !containsString(storeDrivers, driver) {
		return nil, fmt.Errorf("STORE_DRIVER must be one of %s", strings.Join(storeDrivers, ", "))
	}

	databaseURL := envconfig.String("DATABASE_URL", "")
	if databaseURL == "" {
		host := envconfig.FirstOf("PGHOST", "POSTGRES_HOST")
		if host == "" {
			host = "127.0.0.1"
		}
		pgPort := envconfig.FirstOf("PGPORT", "POSTGRES_PORT")
		if pgPort == "" {
			pgPort = "5432"
		}
		dbname := envconfig.FirstOf("PGDATABASE", "POSTGRES_DB")
		user := envconfig.FirstOf("PGUSER", "POSTGRES_USER")
		password := envconfig.FirstOf("PGPASSWORD", "POSTGRES_PASSWORD")
		sslmode := envconfig.FirstOf("PGSSLMODE", "POSTGRES_SSLMODE")
		if sslmode == "" {
			sslmode = "disable"
		}
		if dbname != "" && user != "" {
			databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, pgPort, dbname, sslmode)
		}
	}
	if driver == storeDriverPostgres && databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or PG*/POSTGRES_* variables must be configured for the postgres store")
	}

	rateLimitRequests, err := envconfig.Int("RATE_LIMIT_REQUESTS", defaultRateLimitRequests)
	if err != nil {
		return nil, err
	}
	if rateLimitRequests < 0 {
		return nil, fmt.Errorf("RATE_LIMIT_REQUESTS must be >= 0")
	}
	rateLimitWindow, err := envconfig.Duration("RATE_LIMIT_WINDOW", defaultRateLimitWindow)
	if err != nil {
		return nil, err
	}
	if rateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}

	ackEmails, err := envconfig.Bool("REPORT_ACK_EMAILS", true)
	if err != nil {
		return nil, err
	}

	return &Config{
		Addr:               ":" + port,
		Env:                env,
		StoreDriver:        driver,
		MongoURI:           envconfig.String("MONGO_URI", defaultMongoURI),
		DatabaseURL:        databaseURL,
		CORSAllowedOrigins: envconfig.List("CORS_ALLOWED_ORIGINS"),
		RateLimitRequests:  rateLimitRequests,
		RateLimitWindow:    rateLimitWindow,
		ResendAPIKey:       envconfig.String("RESEND_API_KEY", ""),
		MailerFromAddresses: map[string]string{
			"resend": envconfig.String("MAILER_FROM_ADDRESS_RESEND", "noreply@ncrp-portal.in"),
			"log":    envconfig.String("MAILER_FROM_ADDRESS_LOG", "noreply@ncrp.local"),
		},
		ReportAckEmails:   ackEmails,
		SentryDSN:         envconfig.String("SENTRY_DSN", ""),
		SentryEnvironment: envconfig.String("SENTRY_ENVIRONMENT", env),
	}, nil
}

func (a *App) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		)
	}
}

func (a *App) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := strings.TrimSpace(c.GetHeader("Origin"))
		if a.isAllowedCORSOrigin(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Headers", "Content-Type")
			c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		c.Next()
	}
}

// An empty allow-list accepts every origin.
func (a *App) isAllowedCORSOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	if len(a.cfg.CORSAllowedOrigins) == 0 {
		return true
	}
	return containsString(a.cfg.CORSAllowedOrigins, origin)
}

func (a *App) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.allowRequest(c.ClientIP(), time.Now()) {
			a.writeAPIError(c, &apiError{Status: http.StatusTooManyRequests, Code: "rate_limited", Message: "Too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// writeAPIError renders apiErrors as-is. Anything else is logged, reported
// and answered with a generic 500 so store details never reach clients.
func (a *App) writeAPIError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Code, "message": apiErr.Message})
		return
	}

	a.log.Error("request failed",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"err", err,
	)
	a.errors.CaptureException(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Server error"})
}
