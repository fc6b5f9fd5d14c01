package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ncrp/libs/envconfig"

	"github.com/gin-gonic/gin"
)

const (
	defaultPortalAddr       = ":5173"
	defaultAPIBaseURL       = "http://localhost:5000"
	defaultReportServiceURL = "http://localhost:8000"
	defaultOutboundTimeout  = 15 * time.Second
	minSigningSecretLength  = 16
	shutdownGracePeriod     = 5 * time.Second
)

type Config struct {
	Addr             string
	Env              string
	APIBaseURL       string
	ReportServiceURL string
	SigningSecret    string
	OutboundTimeout  time.Duration
	AssetsDir        string
}

type App struct {
	cfg       *Config
	log       *slog.Logger
	api       accountAPI
	reports   reportService
	templates *portalTemplateRenderer
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
	httpClient := &http.Client{Timeout: cfg.OutboundTimeout}

	app := &App{
		cfg:       cfg,
		log:       logger,
		api:       newAPIClient(cfg.APIBaseURL, httpClient),
		reports:   newReportServiceClient(cfg.ReportServiceURL, httpClient),
		templates: newPortalTemplateRenderer(cfg.Env, cfg.AssetsDir),
	}

	logger.Info(
		"runtime configuration",
		"env", cfg.Env,
		"addr", cfg.Addr,
		"api_base_url", cfg.APIBaseURL,
		"report_service_url", cfg.ReportServiceURL,
		"outbound_timeout", cfg.OutboundTimeout.String(),
		"live_templates", app.templates.live,
	)

	router, err := app.routes()
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
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

	logger.Info("starting portal", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}

func (a *App) routes() (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(a.loggingMiddleware())

	staticFS, err := a.templates.staticFileSystem()
	if err != nil {
		return nil, err
	}
	r.StaticFS("/static", staticFS)

	r.GET("/", a.loginPageHandler)
	r.POST("/login", a.loginSubmitHandler)
	r.GET("/register", a.registerPageHandler)
	r.POST("/register", a.registerSubmitHandler)
	r.GET("/home", a.homePageHandler)
	r.POST("/logout", a.logoutHandler)
	r.GET("/form", a.formPageHandler)
	r.POST("/form", a.formActionHandler)

	return r, nil
}

// loadConfig reads the portal settings. In development templates and static
// files are served from disk, looked up under PORTAL_ASSETS_DIR or else from
// the working directory (repo root or apps/portal); without them the embedded
// copies are used.
func loadConfig() (*Config, error) {
	env := envconfig.FirstOf("APP_ENV", "GO_ENV")
	if env == "" {
		env = "development"
	}

	secret := envconfig.String("PORTAL_SIGNING_SECRET", "")
	if len(secret) < minSigningSecretLength {
		return nil, fmt.Errorf("PORTAL_SIGNING_SECRET must be at least %d characters", minSigningSecretLength)
	}

	timeout, err := envconfig.Duration("OUTBOUND_TIMEOUT", defaultOutboundTimeout)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("OUTBOUND_TIMEOUT must be positive")
	}

	return &Config{
		Addr:             envconfig.String("PORTAL_ADDR", defaultPortalAddr),
		Env:              env,
		APIBaseURL:       strings.TrimRight(envconfig.String("API_BASE_URL", defaultAPIBaseURL), "/"),
		ReportServiceURL: strings.TrimRight(envconfig.String("REPORT_SERVICE_URL", defaultReportServiceURL), "/"),
		SigningSecret:    secret,
		OutboundTimeout:  timeout,
		AssetsDir:        envconfig.String("PORTAL_ASSETS_DIR", ""),
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
