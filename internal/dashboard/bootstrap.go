package dashboard

import (
	"context"
	"fmt"
	"time"

	"docdash/internal/identity"
	"docdash/pkg/logger"
)

const DefaultBootstrapTimeout = 10 * time.Second

// BootstrapResult is always usable: on failure Identity is a local
// placeholder and Err says why.
type BootstrapResult struct {
	Identity identity.Identity
	Err      error
}

// Bootstrap establishes an identity: resume the persisted session, else
// redeem token if one was supplied, else sign in anonymously. Any failure
// yields a placeholder identity. It returns within timeout even if the
// provider does not honour ctx.
func Bootstrap(ctx context.Context, p IdentityProvider, token string, timeout time.Duration) BootstrapResult {
	if timeout <= 0 {
		timeout = DefaultBootstrapTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan BootstrapResult, 1)
	go func() {
		id, err := establish(ctx, p, token)
		done <- BootstrapResult{Identity: id, Err: err}
	}()

	var res BootstrapResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = BootstrapResult{Err: fmt.Errorf("authentication timed out: %w", ctx.Err())}
	}

	if res.Err != nil {
		res.Identity = identity.NewPlaceholder()
		logger.Sugar.Warnf("Bootstrap failed, continuing as %s: %v", res.Identity.ID, res.Err)
		return res
	}
	logger.Sugar.Infof("Bootstrap ready as %s (%s)", res.Identity.ID, res.Identity.Method)
	return res
}

func establish(ctx context.Context, p IdentityProvider, token string) (identity.Identity, error) {
	id, ok, err := p.CurrentSession(ctx)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("resume session: %w", err)
	}
	if ok {
		id.Method = identity.MethodResumed
		return id, nil
	}

	if token != "" {
		id, err := p.RedeemToken(ctx, token)
		if err != nil {
			return identity.Identity{}, fmt.Errorf("redeem token: %w", err)
		}
		id.Method = identity.MethodToken
		return id, nil
	}

	id, err = p.SignInAnonymously(ctx)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("anonymous sign-in: %w", err)
	}
	id.Method = identity.MethodAnonymous
	id.Anonymous = true
	return id, nil
}
