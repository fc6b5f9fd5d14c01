// Package errtrack forwards unexpected errors to Sentry. Without a DSN it
// degrades to a no-op reporter so callers never need to check.
package errtrack

import (
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

type Reporter interface {
	CaptureException(err error)
	Flush(timeout time.Duration) bool
}

type Options struct {
	DSN         string
	Environment string
	ServerName  string
}

// New initializes Sentry when opts.DSN is set and returns a Reporter. An
// initialization failure is logged and yields the no-op reporter.
func New(opts Options, logger *slog.Logger) Reporter {
	if opts.DSN == "" {
		logger.Info("error tracking disabled", "reason", "SENTRY_DSN not set")
		return Noop{}
	}

	environment := opts.Environment
	if environment == "" {
		environment = "development"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         opts.DSN,
		Environment: environment,
		ServerName:  opts.ServerName,
	})
	if err != nil {
		logger.Error("sentry initialization failed", "err", err)
		return Noop{}
	}

	logger.Info("error tracking enabled", "provider", "sentry", "environment", environment)
	return sentryReporter{}
}

type sentryReporter struct{}

func (sentryReporter) CaptureException(err error) {
	if err == nil {
		return
	}
	sentry.CaptureException(err)
}

func (sentryReporter) Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

type Noop struct{}

func (Noop) CaptureException(error) {}

func (Noop) Flush(time.Duration) bool { return true }
