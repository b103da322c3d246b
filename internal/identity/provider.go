package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docdash/pkg/logger"

	"github.com/google/uuid"
)

type SessionStore interface {
	Save(ctx context.Context, sess Session) error
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

// Provider implements resume-session, redeem-token, create-anonymous and
// end-session on top of a session store and a token signer.
type Provider struct {
	store  SessionStore
	signer *Signer
	ttl    time.Duration
	now    func() time.Time
}

func NewProvider(store SessionStore, signer *Signer, ttl time.Duration) *Provider {
	return &Provider{store: store, signer: signer, ttl: ttl, now: time.Now}
}

func (p *Provider) CreateAnonymous(ctx context.Context) (Session, error) {
	return p.start(ctx, Identity{ID: uuid.NewString(), Anonymous: true, Method: MethodAnonymous})
}

// RedeemToken exchanges a custom token for a fresh session.
func (p *Provider) RedeemToken(ctx context.Context, token string) (Session, error) {
	uid, err := p.signer.ParseCustom(strings.TrimSpace(token))
	if err != nil {
		return Session{}, err
	}
	return p.start(ctx, Identity{ID: uid, Method: MethodToken})
}

// Resume validates a session token and returns the live session it refers
// to. Ended sessions do not resume even if the token has not expired.
func (p *Provider) Resume(ctx context.Context, token string) (Session, error) {
	sid, uid, err := p.signer.ParseSession(strings.TrimSpace(token))
	if err != nil {
		return Session{}, err
	}
	sess, err := p.store.Get(ctx, sid)
	if err != nil {
		return Session{}, err
	}
	if sess.Identity.ID != uid {
		return Session{}, fmt.Errorf("%w: subject does not match session", ErrInvalidToken)
	}
	sess.Token = token
	sess.Identity.Method = MethodResumed
	sess.Identity.SessionID = sess.ID
	return sess, nil
}

// Authenticate resolves a bearer token to its identity.
func (p *Provider) Authenticate(ctx context.Context, token string) (Identity, error) {
	sess, err := p.Resume(ctx, token)
	if err != nil {
		return Identity{}, err
	}
	return sess.Identity, nil
}

// EndSession revokes the session behind token and returns its identity,
// including the id of the revoked session.
func (p *Provider) EndSession(ctx context.Context, token string) (Identity, error) {
	sid, uid, err := p.signer.ParseSession(strings.TrimSpace(token))
	if err != nil {
		return Identity{}, err
	}
	if err := p.store.Delete(ctx, sid); err != nil {
		return Identity{}, err
	}
	logger.Sugar.Infof("Session %s ended for %s", sid, uid)
	return Identity{ID: uid, SessionID: sid}, nil
}

func (p *Provider) start(ctx context.Context, id Identity) (Session, error) {
	now := p.now()
	sess := Session{
		ID:        uuid.NewString(),
		Identity:  id,
		CreatedAt: now,
		ExpiresAt: now.Add(p.ttl),
	}
	token, err := p.signer.IssueSession(sess)
	if err != nil {
		return Session{}, fmt.Errorf("issue session token: %w", err)
	}
	if err := p.store.Save(ctx, sess); err != nil {
		return Session{}, err
	}
	sess.Token = token
	logger.Sugar.Infof("Session %s started for %s (%s)", sess.ID, id.ID, id.Method)
	return sess, nil
}

// IsAuthError reports whether err means the caller has no valid session, as
// opposed to the provider failing.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrSessionNotFound)
}
