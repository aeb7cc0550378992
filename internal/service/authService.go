package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aman-churiwal/quota-gateway/internal/models"
	"github.com/aman-churiwal/quota-gateway/internal/repository"
	"go.uber.org/zap"
)

// ErrInvalidCredentials covers both unknown usernames and wrong passwords
var ErrInvalidCredentials = errors.New("invalid credentials")

const bearerPrefix = "Bearer "

type AuthService struct {
	users  *repository.UserRepository
	tokens *repository.TokenRepository
	log    *zap.Logger
}

func NewAuthService(users *repository.UserRepository, tokens *repository.TokenRepository, log *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		log:    log,
	}
}

type LoginResult struct {
	Token string
	User  *models.User
}

// Authenticates a user and issues a new token. Earlier tokens stay valid.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user := s.users.FindByCredentials(username, password)
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.log.Info("user logged in",
		zap.String("user_id", user.ID),
		zap.String("tier", user.Tier.String()),
		zap.String("token_prefix", tokenPrefix(token)),
	)

	return &LoginResult{Token: token, User: user}, nil
}

// Resolve derives the rate-limit identity of a request. The Authorization
// value is used verbatim as the token; a "Bearer " prefixed value is also
// accepted. Anything that does not resolve to a known user is anonymous and
// keyed by the caller's address.
func (s *AuthService) Resolve(authorization, remoteAddr string) models.Identity {
	if user := s.lookup(authorization); user != nil {
		return models.UserIdentity(user)
	}

	if strings.HasPrefix(authorization, bearerPrefix) {
		if user := s.lookup(strings.TrimPrefix(authorization, bearerPrefix)); user != nil {
			return models.UserIdentity(user)
		}
	}

	return models.AnonymousIdentity(remoteAddr)
}

func (s *AuthService) lookup(token string) *models.User {
	userID, ok := s.tokens.Resolve(token)
	if !ok {
		return nil
	}

	return s.users.FindByID(userID)
}

func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
