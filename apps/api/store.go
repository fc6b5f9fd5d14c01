package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	storeDriverMongo    = "mongo"
	storeDriverPostgres = "postgres"
	storeDriverMemory   = "memory"
)

var storeDrivers = []string{storeDriverMongo, storeDriverPostgres, storeDriverMemory}

// ErrDuplicateEmail is returned by InsertAccount when the store already
// holds an account for the email.
var ErrDuplicateEmail = errors.New("email already registered")

type UserAccount struct {
	ID           string
	Email        string
	PasswordHash string
	// LegacyPassword holds the plaintext password of accounts written before
	// passwords were hashed. It is cleared once the account is upgraded.
	LegacyPassword string
	CreatedAt      time.Time
}

type IncidentReport struct {
	ID          string
	ReferenceID string
	Name        string
	Email       string
	Category    string
	Date        string
	Time        string
	Location    string
	Reason      string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type AccountStore interface {
	// FindAccountByEmail returns nil, nil when no account exists.
	FindAccountByEmail(ctx context.Context, email string) (*UserAccount, error)
	// InsertAccount sets ID and CreatedAt on success.
	InsertAccount(ctx context.Context, account *UserAccount) error
}

type ReportStore interface {
	// InsertReport sets ID, CreatedAt and UpdatedAt on success.
	InsertReport(ctx context.Context, report *IncidentReport) error
}

// legacyAccountStore is implemented by stores that may hold accounts with
// plaintext passwords.
type legacyAccountStore interface {
	ListLegacyAccounts(ctx context.Context) ([]UserAccount, error)
	UpgradeLegacyPassword(ctx context.Context, id, email, passwordHash string) error
}

type Store interface {
	AccountStore
	ReportStore
	Ping(ctx context.Context) error
	// EnsureSchema creates indexes or applies migrations.
	EnsureSchema(ctx context.Context) error
	Close(ctx context.Context) error
}

func openStore(ctx context.Context, cfg *Config, logger *slog.Logger) (Store, error) {
	switch cfg.StoreDriver {
	case storeDriverMongo:
		return newMongoStore(ctx, cfg.MongoURI)
	case storeDriverPostgres:
		return newPostgresStore(ctx, cfg.DatabaseURL, logger)
	case storeDriverMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return newMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
