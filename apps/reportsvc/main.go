package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ncrp/libs/envconfig"
	"ncrp/libs/errtrack"

	"github.com/gin-gonic/gin"
)

const (
	defaultReportsvcAddr   = ":8000"
	defaultGeminiModel     = "gemini-2.0-flash"
	defaultArchiveBucket   = "ncrp-reports"
	defaultChatSessionTTL  = 30 * time.Minute
	defaultOutboundTimeout = 15 * time.Second
	chatPruneInterval      = time.Minute
	archiveCallTimeout     = 10 * time.Second
	shutdownGracePeriod    = 5 * time.Second
)

type Config struct {
	Addr              string
	Env               string
	GeminiAPIKey      string
	GeminiModel       string
	Archive           archiveOptions
	ChatSessionTTL    time.Duration
	OutboundTimeout   time.Duration
	SentryDSN         string
	SentryEnvironment string
}

type App struct {
	cfg       *Config
	log       *slog.Logger
	errors    errtrack.Reporter
	responder ChatResponder
	chats     *chatSessions
	archive   reportArchive
	now       func() time.Time
}

func newApp(cfg *Config, logger *slog.Logger, responder ChatResponder, archive reportArchive, reporter errtrack.Reporter) *App {
	return &App{
		cfg:       cfg,
		log:       logger,
		errors:    reporter,
		responder: responder,
		chats:     newChatSessions(cfg.ChatSessionTTL),
		archive:   archive,
		now:       time.Now,
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
	reporter := errtrack.New(errtrack.Options{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		ServerName:  "ncrp-reportsvc",
	}, logger)
	defer reporter.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	responder := newResponder(ctx, cfg, logger)

	var archive reportArchive
	if cfg.Archive.Endpoint != "" {
		bucket, err := newMinioArchive(cfg.Archive)
		if err != nil {
			panic(err)
		}
		ensureCtx, cancel := context.WithTimeout(ctx, archiveCallTimeout)
		if err := bucket.EnsureBucket(ensureCtx); err != nil {
			logger.Error("archive bucket unavailable", "bucket", cfg.Archive.Bucket, "err", err)
		}
		cancel()
		archive = bucket
	}

	app := newApp(cfg, logger, responder, archive, reporter)

	logger.Info(
		"runtime configuration",
		"env", cfg.Env,
		"addr", cfg.Addr,
		"gemini_enabled", cfg.GeminiAPIKey != "",
		"gemini_model", cfg.GeminiModel,
		"archive_enabled", archive != nil,
		"chat_session_ttl", cfg.ChatSessionTTL.String(),
	)

	app.startChatPruner(ctx, chatPruneInterval)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", "err", err)
		}
	}()

	logger.Info("starting report service", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}

// newResponder prefers Gemini when a key is configured and always keeps the
// FAQ responder behind it.
func newResponder(ctx context.Context, cfg *Config, logger *slog.Logger) ChatResponder {
	faq := &FAQResponder{Entries: defaultFAQ}
	if cfg.GeminiAPIKey == "" {
		return faq
	}
	gemini, err := newGeminiResponder(ctx, geminiOptions{
		APIKey:     cfg.GeminiAPIKey,
		Model:      cfg.GeminiModel,
		HTTPClient: &http.Client{Timeout: cfg.OutboundTimeout},
	})
	if err != nil {
		logger.Error("gemini disabled, answering from faq only", "err", err)
		return faq
	}
	return &FallbackResponder{
		Primary:   gemini,
		Secondary: faq,
		OnError: func(err error) {
			logger.Warn("gemini unavailable, answering from faq", "err", err)
		},
	}
}

func (a *App) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(a.loggingMiddleware())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "NCRP report service running"})
	})
	r.POST("/generate-pdf", a.generatePDFHandler)
	r.POST("/chat", a.chatHandler)

	return r
}

func loadConfig() (*Config, error) {
	env := envconfig.FirstOf("APP_ENV", "GO_ENV")
	if env == "" {
		env = "development"
	}

	ttl, err := envconfig.Duration("CHAT_SESSION_TTL", defaultChatSessionTTL)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("CHAT_SESSION_TTL must be positive")
	}

	timeout, err := envconfig.Duration("OUTBOUND_TIMEOUT", defaultOutboundTimeout)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("OUTBOUND_TIMEOUT must be positive")
	}

	useSSL, err := envconfig.Bool("ARCHIVE_USE_SSL", false)
	if err != nil {
		return nil, err
	}

	archive := archiveOptions{
		Endpoint:  envconfig.String("ARCHIVE_ENDPOINT", ""),
		AccessKey: envconfig.String("ARCHIVE_ACCESS_KEY", ""),
		SecretKey: envconfig.String("ARCHIVE_SECRET_KEY", ""),
		Bucket:    envconfig.String("ARCHIVE_BUCKET", defaultArchiveBucket),
		UseSSL:    useSSL,
	}
	if archive.Endpoint != "" && (archive.AccessKey == "" || archive.SecretKey == "") {
		return nil, fmt.Errorf("ARCHIVE_ACCESS_KEY and ARCHIVE_SECRET_KEY are required when ARCHIVE_ENDPOINT is set")
	}

	return &Config{
		Addr:              envconfig.String("REPORTSVC_ADDR", defaultReportsvcAddr),
		Env:               env,
		GeminiAPIKey:      envconfig.String("GEMINI_API_KEY", ""),
		GeminiModel:       envconfig.String("GEMINI_MODEL", defaultGeminiModel),
		Archive:           archive,
		ChatSessionTTL:    ttl,
		OutboundTimeout:   timeout,
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
