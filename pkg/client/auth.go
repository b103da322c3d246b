package client

import (
	"context"
	"net/http"
	"path/filepath"

	"docdash/internal/dashboard"
	"docdash/internal/identity"
	"docdash/pkg/logger"

	"github.com/fsnotify/fsnotify"
)

// CurrentSession resumes the persisted session. A session the server no
// longer accepts is removed from disk and reported as absent.
func (c *Client) CurrentSession(ctx context.Context) (identity.Identity, bool, error) {
	rec, ok, err := c.Sessions.Load()
	if err != nil || !ok {
		return identity.Identity{}, false, err
	}

	var resp identity.SessionResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/session", nil, rec.Token, nil, &resp); err != nil {
		if IsUnauthorized(err) {
			logger.Sugar.Infof("Stored session for %s is no longer valid", rec.UserID)
			return identity.Identity{}, false, c.Sessions.Clear()
		}
		return identity.Identity{}, false, err
	}
	return resp.Identity, true, nil
}

func (c *Client) RedeemToken(ctx context.Context, token string) (identity.Identity, error) {
	var resp identity.SessionResponse
	req := identity.RedeemRequest{Token: token}
	if err := c.do(ctx, http.MethodPost, "/api/auth/redeem", nil, "", req, &resp); err != nil {
		return identity.Identity{}, err
	}
	return resp.Identity, c.persist(resp)
}

func (c *Client) SignInAnonymously(ctx context.Context) (identity.Identity, error) {
	var resp identity.SessionResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/anonymous", nil, "", nil, &resp); err != nil {
		return identity.Identity{}, err
	}
	return resp.Identity, c.persist(resp)
}

// SignOut ends the session on the server and forgets it locally. Live
// subscriptions are held while the request runs so the server-side
// disconnect is not reported as a failure. They are closed once the session
// is gone and stay open if sign-out fails.
func (c *Client) SignOut(ctx context.Context) error {
	token := c.token()
	if token == "" {
		c.closeSubscriptions()
		return nil
	}

	subs := c.liveSubscriptions()
	for _, sub := range subs {
		sub.hold()
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/signout", nil, token, nil, nil)
	if err != nil && !IsUnauthorized(err) {
		for _, sub := range subs {
			sub.release()
		}
		return err
	}
	// Held queries the server already dropped are no longer tracked.
	for _, sub := range subs {
		sub.stop()
	}
	c.closeSubscriptions()
	return c.Sessions.Clear()
}

func (c *Client) persist(resp identity.SessionResponse) error {
	return c.Sessions.Save(SessionRecord{
		Token:     resp.Token,
		UserID:    resp.Identity.ID,
		Anonymous: resp.Identity.Anonymous,
		ExpiresAt: resp.ExpiresAt,
	})
}

// Observe watches the session file and calls fn whenever the stored
// identity changes, e.g. after another process signed in or out.
func (c *Client) Observe(fn func(id identity.Identity, ok bool)) (dashboard.Unsubscribe, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// The file is replaced on every save, so watch its directory.
	if err := watcher.Add(filepath.Dir(c.Sessions.Path())); err != nil {
		watcher.Close()
		return nil, err
	}

	last, _, _ := c.Sessions.Load()
	name := filepath.Clean(c.Sessions.Path())

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != name {
					continue
				}
				rec, present, err := c.Sessions.Load()
				if err != nil {
					logger.Sugar.Warnf("Cannot read session file: %v", err)
					continue
				}
				if rec.UserID == last.UserID && rec.Token == last.Token {
					continue
				}
				last = rec
				fn(rec.Identity(), present)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Sugar.Warnf("Session watcher error: %v", err)
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
