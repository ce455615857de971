package auth

import (
	"context"
	"sync"
	"time"
)

// TokenStore describes persistence operations required by the token manager.
type TokenStore interface {
	// Insert stores a new token. It fails with ErrTokenExists when the token
	// id is already taken.
	Insert(ctx context.Context, tok *Token) error
	// FindBySecret returns the token holding the given secret value, or nil
	// when no such token exists.
	FindBySecret(ctx context.Context, secret string) (*Token, error)
	// Delete removes the token with the given id and reports whether a token
	// was found. A miss is not an error.
	Delete(ctx context.Context, id string) (bool, error)
	// List returns every stored token.
	List(ctx context.Context) ([]*Token, error)
	// DeleteExpired removes all tokens whose expiry precedes now and returns
	// the number removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// MemoryTokenStore is the default in-process token store.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	byID   map[string]*Token
	secret map[string]string // secret value -> token id
}

var _ TokenStore = (*MemoryTokenStore)(nil)

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		byID:   make(map[string]*Token),
		secret: make(map[string]string),
	}
}

func (s *MemoryTokenStore) Insert(ctx context.Context, tok *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[tok.ID]; ok {
		return ErrTokenExists
	}
	cp := *tok
	s.byID[tok.ID] = &cp
	s.secret[tok.Secret] = tok.ID
	return nil
}

func (s *MemoryTokenStore) FindBySecret(ctx context.Context, secret string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.secret[secret]
	if !ok {
		return nil, nil
	}
	tok, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *tok
	return &cp, nil
}

func (s *MemoryTokenStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.byID[id]
	if !ok {
		return false, nil
	}
	delete(s.byID, id)
	delete(s.secret, tok.Secret)
	return true, nil
}

func (s *MemoryTokenStore) List(ctx context.Context) ([]*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Token, 0, len(s.byID))
	for _, tok := range s.byID {
		cp := *tok
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, tok := range s.byID {
		if tok.Expired(now) {
			delete(s.byID, id)
			delete(s.secret, tok.Secret)
			removed++
		}
	}
	return removed, nil
}
