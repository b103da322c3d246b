package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionAudience = "docdash-session"
	customAudience  = "docdash-custom"
)

type sessionClaims struct {
	SessionID string `json:"sid"`
	Anonymous bool   `json:"anon"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 tokens. Session tokens and custom tokens
// share the secret and are told apart by audience.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

func (s *Signer) IssueSession(sess Session) (string, error) {
	claims := sessionClaims{
		SessionID: sess.ID,
		Anonymous: sess.Identity.Anonymous,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.Identity.ID,
			Audience:  jwt.ClaimStrings{sessionAudience},
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseSession returns the session id and subject of a session token.
func (s *Signer) ParseSession(token string) (sessionID, userID string, err error) {
	claims := &sessionClaims{}
	if _, err := s.parse(token, claims, sessionAudience); err != nil {
		return "", "", err
	}
	if claims.SessionID == "" || claims.Subject == "" {
		return "", "", fmt.Errorf("%w: missing session claims", ErrInvalidToken)
	}
	return claims.SessionID, claims.Subject, nil
}

// IssueCustom mints a token an operator hands to a user out of band. Redeeming
// it signs the user in as uid.
func (s *Signer) IssueCustom(uid string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   uid,
		Audience:  jwt.ClaimStrings{customAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Signer) ParseCustom(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	if _, err := s.parse(token, claims, customAudience); err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

func (s *Signer) parse(token string, claims jwt.Claims, audience string) (*jwt.Token, error) {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithAudience(audience), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return parsed, nil
}
