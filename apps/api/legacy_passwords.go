package main

import (
	"context"
	"errors"
	"fmt"
)

var errLegacyUpgradeUnsupported = errors.New("store driver does not hold legacy accounts")

// upgradeLegacyPasswords hashes every remaining plaintext password and
// normalizes the account email on the way. Accounts whose normalized email
// collides with another account, or whose password cannot be hashed, are
// skipped and logged.
func (a *App) upgradeLegacyPasswords(ctx context.Context) (int, error) {
	legacyStore, ok := a.store.(legacyAccountStore)
	if !ok {
		return 0, fmt.Errorf("%s: %w", a.cfg.StoreDriver, errLegacyUpgradeUnsupported)
	}

	accounts, err := legacyStore.ListLegacyAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list legacy accounts: %w", err)
	}

	upgraded := 0
	for _, account := range accounts {
		hash, err := a.hashPassword(account.LegacyPassword)
		if err != nil {
			a.log.Warn("skipping legacy account whose password cannot be hashed", "account_id", account.ID, "err", err)
			continue
		}
		err = legacyStore.UpgradeLegacyPassword(ctx, account.ID, normalizeEmail(account.Email), hash)
		if errors.Is(err, ErrDuplicateEmail) {
			a.log.Warn("skipping legacy account with conflicting email", "account_id", account.ID)
			continue
		}
		if err != nil {
			return upgraded, fmt.Errorf("upgrade account %s: %w", account.ID, err)
		}
		upgraded++
	}
	return upgraded, nil
}
