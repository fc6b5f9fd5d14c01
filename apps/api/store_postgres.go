package main

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const pgUniqueViolation = "23505"

// gooseUpContext is swapped in tests.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

type postgresStore struct {
	db  *sql.DB
	log *slog.Logger
}

func newPostgresStore(ctx context.Context, databaseURL string, logger *slog.Logger) (*postgresStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &postgresStore{db: db, log: logger}, nil
}

func (s *postgresStore) EnsureSchema(ctx context.Context) error {
	goose.SetBaseFS(migrationFiles)
	goose.SetLogger(gooseLogger{log: s.log})
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *postgresStore) FindAccountByEmail(ctx context.Context, email string) (*UserAccount, error) {
	var account UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id::text, email, password_hash, created_at
		FROM accounts
		WHERE email = $1
	`, email).Scan(&account.ID, &account.Email, &account.PasswordHash, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (s *postgresStore) InsertAccount(ctx context.Context, account *UserAccount) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (email, password_hash)
		VALUES ($1, $2)
		RETURNING id::text, created_at
	`, account.Email, account.PasswordHash).Scan(&account.ID, &account.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (s *postgresStore) InsertReport(ctx context.Context, report *IncidentReport) error {
	var reason sql.NullString
	if report.Reason != "" {
		reason = sql.NullString{String: report.Reason, Valid: true}
	}
	return s.db.QueryRowContext(ctx, `
		INSERT INTO incident_reports (
			reference_id, name, email, category, incident_date, incident_time,
			location, reason, description
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id::text, created_at, updated_at
	`,
		report.ReferenceID, report.Name, report.Email, report.Category,
		report.Date, report.Time, report.Location, reason, report.Description,
	).Scan(&report.ID, &report.CreatedAt, &report.UpdatedAt)
}

func (s *postgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *postgresStore) Close(context.Context) error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

type gooseLogger struct {
	log *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
	os.Exit(1)
}
