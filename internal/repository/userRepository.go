package repository

import (
	"crypto/subtle"

	"github.com/aman-churiwal/quota-gateway/internal/models"
)

// UserRepository is the static user directory. It is built once at start-up
// and never mutated, so lookups need no locking.
type UserRepository struct {
	byID       map[string]models.User
	byUsername map[string]models.User
}

func NewUserRepository(users []models.User) *UserRepository {
	r := &UserRepository{
		byID:       make(map[string]models.User, len(users)),
		byUsername: make(map[string]models.User, len(users)),
	}

	for _, u := range users {
		r.byID[u.ID] = u
		r.byUsername[u.Username] = u
	}

	return r
}

// Retrieves the user matching both username and password.
// Unknown usernames and wrong passwords are indistinguishable to the caller.
func (r *UserRepository) FindByCredentials(username, password string) *models.User {
	user, ok := r.byUsername[username]
	if !ok {
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) != 1 {
		return nil
	}

	return &user
}

// Retrieves user by id
func (r *UserRepository) FindByID(id string) *models.User {
	user, ok := r.byID[id]
	if !ok {
		return nil
	}

	return &user
}

func (r *UserRepository) Count() int {
	return len(r.byID)
}
