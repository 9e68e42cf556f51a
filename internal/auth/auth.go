// Package auth supplies the authenticated caller identity for every
// request. Tokens are compared only by their sha256 hash; role membership
// is checked here, server-side, never from anything the client sent.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrUnauthenticated = errors.New("invalid or missing credentials")
	ErrUserNotFound    = errors.New("user not found")
)

// Role is a server-assigned privilege level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Roles  []Role `json:"roles"`
}

// HasRole reports whether the identity carries r.
func (i *Identity) HasRole(r Role) bool {
	for _, have := range i.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// Authenticator resolves a bearer token to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Registry is an in-process token store standing in for the hosted
// identity service. Only token hashes are retained.
type Registry struct {
	mu     sync.RWMutex
	byHash map[string]*Identity
	byUser map[string]string // user ID -> current token hash
}

func NewRegistry() *Registry {
	return &Registry{
		byHash: make(map[string]*Identity),
		byUser: make(map[string]string),
	}
}

// Register stores the identity under the given token, replacing any token
// the user already had.
func (r *Registry) Register(id *Identity, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registerLocked(id, token)
}

func (r *Registry) registerLocked(id *Identity, token string) {
	if old, ok := r.byUser[id.UserID]; ok {
		delete(r.byHash, old)
	}
	h := hashToken(token)
	cp := *id
	r.byHash[h] = &cp
	r.byUser[id.UserID] = h
}

// Authenticate implements Authenticator.
func (r *Registry) Authenticate(ctx context.Context, token string) (*Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byHash[hashToken(token)]
	if !ok {
		return nil, ErrUnauthenticated
	}
	cp := *id
	return &cp, nil
}

// ResetToken rotates the user's credential and returns the new token. The
// plain token is returned exactly once; only its hash is kept.
func (r *Registry) ResetToken(userID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.byUser[userID]
	if !ok {
		return "", ErrUserNotFound
	}
	id := r.byHash[h]
	token := "ak_" + uuid.NewString()
	r.registerLocked(id, token)
	return token, nil
}

// Remove deletes the user's credential entirely.
func (r *Registry) Remove(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.byUser[userID]
	if !ok {
		return ErrUserNotFound
	}
	delete(r.byHash, h)
	delete(r.byUser, userID)
	return nil
}
