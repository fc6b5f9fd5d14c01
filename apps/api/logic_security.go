package main

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func containsString(list []string, value string) bool {
	for _, entry := range list {
		if entry == value {
			return true
		}
	}
	return false
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// bcrypt only reads the first 72 bytes and refuses anything longer.
const maxPasswordBytes = 72

func (a *App) hashPassword(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", errPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.passwordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// verifyAccountPassword reports whether password matches the account.
// A nil account still pays for one bcrypt comparison so unknown emails and
// wrong passwords take the same time.
func (a *App) verifyAccountPassword(account *UserAccount, password string) bool {
	if account == nil {
		_ = bcrypt.CompareHashAndPassword(a.timingHash(), []byte(password))
		return false
	}
	if account.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) == nil
	}
	if account.LegacyPassword != "" {
		_ = bcrypt.CompareHashAndPassword(a.timingHash(), []byte(password))
		return subtle.ConstantTimeCompare([]byte(account.LegacyPassword), []byte(password)) == 1
	}
	return false
}

func (a *App) timingHash() []byte {
	a.dummyHashOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), a.passwordCost)
		if err != nil {
			a.log.Error("failed to build timing hash", "err", err)
			return
		}
		a.dummyHash = hash
	})
	return a.dummyHash
}

func generateReferenceID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (a *App) allowRequest(key string, now time.Time) bool {
	if a.cfg.RateLimitRequests == 0 {
		return true
	}
	return a.checkRateLimit(key, a.cfg.RateLimitRequests, a.cfg.RateLimitWindow, now)
}

func (a *App) checkRateLimit(key string, maxRequests int, window time.Duration, now time.Time) bool {
	a.rateLimiterMu.Lock()
	defer a.rateLimiterMu.Unlock()

	bucket, ok := a.rateBuckets[key]
	if !ok || now.Sub(bucket.start) >= window {
		a.rateBuckets[key] = rateBucket{start: now, count: 1}
		return true
	}
	bucket.count++
	a.rateBuckets[key] = bucket
	return bucket.count <= maxRequests
}

func (a *App) startRateLimiterCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				a.pruneRateLimiterState(now)
			}
		}
	}()
}

func (a *App) pruneRateLimiterState(now time.Time) {
	a.rateLimiterMu.Lock()
	defer a.rateLimiterMu.Unlock()
	for key, bucket := range a.rateBuckets {
		if now.Sub(bucket.start) >= a.cfg.RateLimitWindow {
			delete(a.rateBuckets, key)
		}
	}
}
