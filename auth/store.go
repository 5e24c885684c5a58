package auth

import (
	"context"
	"sync"

	"github.com/collabflow/collabflow-cli/db"
)

// MemoryStore keeps the session for the lifetime of the process only.
type MemoryStore struct {
	mu    sync.Mutex
	token *db.Token
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) GetTokenRecord() (*db.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return nil, nil
	}
	cp := *m.token
	return &cp, nil
}

func (m *MemoryStore) UpsertTokenRecord(token *db.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *token
	m.token = &cp
	return nil
}

func (m *MemoryStore) ClearTokenRecord() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = nil
	return nil
}

// tokenRepoStorer adapts db.TokenRepository to TokenStorer.
type tokenRepoStorer struct{ repo db.TokenRepository }

// NewRepoStorer persists the session through a TokenRepository.
func NewRepoStorer(repo db.TokenRepository) TokenStorer {
	return &tokenRepoStorer{repo: repo}
}

func (s *tokenRepoStorer) GetTokenRecord() (*db.Token, error) {
	return s.repo.Get(context.Background())
}

func (s *tokenRepoStorer) UpsertTokenRecord(token *db.Token) error {
	return s.repo.Upsert(context.Background(), token)
}

func (s *tokenRepoStorer) ClearTokenRecord() error {
	return s.repo.Clear(context.Background())
}
