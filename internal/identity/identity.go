// Package identity issues and resumes sessions for authenticated and
// anonymous users.
package identity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Method records how an identity was established.
type Method string

const (
	MethodResumed     Method = "resumed"
	MethodToken       Method = "token"
	MethodAnonymous   Method = "anonymous"
	MethodPlaceholder Method = "placeholder"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidToken    = errors.New("invalid token")
)

type Identity struct {
	ID        string `json:"id"`
	Anonymous bool   `json:"anonymous"`
	Method    Method `json:"method,omitempty"`
	// SessionID is set on identities resolved from a session token. It never
	// leaves the server.
	SessionID string `json:"-"`
}

func (i Identity) IsZero() bool { return i.ID == "" }

// IsPlaceholder reports whether the identity was generated locally after the
// provider failed.
func (i Identity) IsPlaceholder() bool { return i.Method == MethodPlaceholder }

// NewPlaceholder returns a locally generated identity for degraded mode.
func NewPlaceholder() Identity {
	return Identity{ID: "local-" + uuid.NewString(), Anonymous: true, Method: MethodPlaceholder}
}

type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token,omitempty"`
	Identity  Identity  `json:"identity"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionResponse is returned by the auth endpoints.
type SessionResponse struct {
	Token     string    `json:"token"`
	Identity  Identity  `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

type RedeemRequest struct {
	Token string `json:"token"`
}
