package main

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryStore struct {
	mu       sync.Mutex
	accounts map[string]UserAccount
	reports  []IncidentReport
	nextID   int
	now      func() time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		accounts: make(map[string]UserAccount),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *memoryStore) allocateID() string {
	s.nextID++
	return strconv.Itoa(s.nextID)
}

func (s *memoryStore) FindAccountByEmail(_ context.Context, email string) (*UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[email]
	if !ok {
		return nil, nil
	}
	return &account, nil
}

func (s *memoryStore) InsertAccount(_ context.Context, account *UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.Email]; exists {
		return ErrDuplicateEmail
	}
	account.ID = s.allocateID()
	account.CreatedAt = s.now()
	s.accounts[account.Email] = *account
	return nil
}

func (s *memoryStore) InsertReport(_ context.Context, report *IncidentReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	report.ID = s.allocateID()
	report.CreatedAt = s.now()
	report.UpdatedAt = report.CreatedAt
	s.reports = append(s.reports, *report)
	return nil
}

func (s *memoryStore) ListLegacyAccounts(_ context.Context) ([]UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	legacy := []UserAccount{}
	for _, account := range s.accounts {
		if account.LegacyPassword != "" && account.PasswordHash == "" {
			legacy = append(legacy, account)
		}
	}
	return legacy, nil
}

func (s *memoryStore) UpgradeLegacyPassword(_ context.Context, id, email, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, account := range s.accounts {
		if account.ID != id {
			continue
		}
		if existing, taken := s.accounts[email]; taken && existing.ID != id {
			return ErrDuplicateEmail
		}
		delete(s.accounts, key)
		account.Email = email
		account.PasswordHash = passwordHash
		account.LegacyPassword = ""
		s.accounts[email] = account
		return nil
	}
	return nil
}

func (s *memoryStore) Ping(context.Context) error { return nil }

func (s *memoryStore) EnsureSchema(context.Context) error { return nil }

func (s *memoryStore) Close(context.Context) error { return nil }
