package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

var (
	errMissingCredentials = &apiError{Status: http.StatusBadRequest, Code: "missing_fields", Message: "Missing fields"}
	errEmailRegistered    = &apiError{Status: http.StatusConflict, Code: "email_registered", Message: "Email already registered"}
	errPasswordTooLong    = &apiError{Status: http.StatusBadRequest, Code: "password_too_long", Message: "Password too long"}
	errInvalidCredentials = &apiError{Status: http.StatusUnauthorized, Code: "invalid_credentials", Message: "Invalid email or password"}
)

func bindCredentials(c *gin.Context) (credentialsPayload, bool) {
	var payload credentialsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		return payload, false
	}
	payload.Email = normalizeEmail(payload.Email)
	if payload.Email == "" || strings.TrimSpace(payload.Password) == "" {
		return payload, false
	}
	return payload, true
}

func (a *App) registerHandler(c *gin.Context) {
	payload, ok := bindCredentials(c)
	if !ok {
		a.writeAPIError(c, errMissingCredentials)
		return
	}

	if len(payload.Password) > maxPasswordBytes {
		a.writeAPIError(c, errPasswordTooLong)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeCallTimeout)
	defer cancel()

	if err := a.registerAccount(ctx, payload.Email, payload.Password); err != nil {
		a.writeAPIError(c, err)
		return
	}
	a.log.Info("account registered", "email", payload.Email)
	c.JSON(http.StatusOK, gin.H{"message": "Registration successful"})
}

func (a *App) registerAccount(ctx context.Context, email, password string) error {
	// Skips the bcrypt cost for the common case. InsertAccount still decides
	// concurrent races.
	existing, err := a.store.FindAccountByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return errEmailRegistered
	}

	hash, err := a.hashPassword(password)
	if err != nil {
		return err
	}
	err = a.store.InsertAccount(ctx, &UserAccount{Email: email, PasswordHash: hash})
	if errors.Is(err, ErrDuplicateEmail) {
		return errEmailRegistered
	}
	return err
}

func (a *App) loginHandler(c *gin.Context) {
	payload, ok := bindCredentials(c)
	if !ok {
		a.writeAPIError(c, errMissingCredentials)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeCallTimeout)
	defer cancel()

	if err := a.authenticate(ctx, payload.Email, payload.Password); err != nil {
		a.writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Login successful"})
}

func (a *App) authenticate(ctx context.Context, email, password string) error {
	account, err := a.store.FindAccountByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !a.verifyAccountPassword(account, password) {
		return errInvalidCredentials
	}
	if account.PasswordHash == "" {
		a.upgradeLegacyAccount(ctx, *account, password)
	}
	return nil
}

// upgradeLegacyAccount replaces a verified plaintext password with a bcrypt
// hash. Failures are logged; the login itself has already succeeded.
func (a *App) upgradeLegacyAccount(ctx context.Context, account UserAccount, password string) {
	legacyStore, ok := a.store.(legacyAccountStore)
	if !ok {
		return
	}
	hash, err := a.hashPassword(password)
	if err != nil {
		a.log.Error("failed to hash legacy password", "account_id", account.ID, "err", err)
		return
	}
	if err := legacyStore.UpgradeLegacyPassword(ctx, account.ID, normalizeEmail(account.Email), hash); err != nil {
		a.log.Error("failed to upgrade legacy password", "account_id", account.ID, "err", err)
		a.errors.CaptureException(err)
		return
	}
	a.log.Info("legacy password upgraded", "account_id", account.ID)
}
