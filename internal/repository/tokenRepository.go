package repository

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

const maxIssueAttempts = 3

var ErrTokenCollision = errors.New("could not generate a unique token")

// TokenRepository maps issued tokens to user ids for the lifetime of the
// process. Tokens never expire and issuing a new one leaves older tokens valid.
type TokenRepository struct {
	mu       sync.RWMutex
	tokens   map[string]string
	generate func() (uuid.UUID, error)
}

func NewTokenRepository() *TokenRepository {
	return NewTokenRepositoryWithGenerator(uuid.NewRandom)
}

func NewTokenRepositoryWithGenerator(generate func() (uuid.UUID, error)) *TokenRepository {
	return &TokenRepository{
		tokens:   make(map[string]string),
		generate: generate,
	}
}

// Issues a fresh random token bound to userID
func (r *TokenRepository) Issue(userID string) (string, error) {
	for i := 0; i < maxIssueAttempts; i++ {
		id, err := r.generate()
		if err != nil {
			return "", fmt.Errorf("failed to generate token: %w", err)
		}

		token := id.String()

		r.mu.Lock()
		if _, taken := r.tokens[token]; !taken {
			r.tokens[token] = userID
			r.mu.Unlock()
			return token, nil
		}
		r.mu.Unlock()
	}

	return "", ErrTokenCollision
}

// Returns the user id a token was issued to
func (r *TokenRepository) Resolve(token string) (string, bool) {
	if token == "" {
		return "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.tokens[token]
	return userID, ok
}

func (r *TokenRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}
