// Package dashboard keeps a user's view of private and public documents in
// sync with the backend and gates mutations on the acting identity.
package dashboard

import (
	"context"

	"docdash/internal/document/model"
	"docdash/internal/identity"
)

// Unsubscribe releases a subscription or observer. It is safe to call more
// than once.
type Unsubscribe func()

type IdentityProvider interface {
	// CurrentSession resumes a persisted session. ok is false when there is
	// none.
	CurrentSession(ctx context.Context) (id identity.Identity, ok bool, err error)
	RedeemToken(ctx context.Context, token string) (identity.Identity, error)
	SignInAnonymously(ctx context.Context) (identity.Identity, error)
	SignOut(ctx context.Context) error
	// Observe calls fn whenever the persisted session changes. ok is false
	// once the session is gone.
	Observe(fn func(id identity.Identity, ok bool)) (Unsubscribe, error)
}

type DocumentStore interface {
	// Subscribe delivers the full contents of c on every change until the
	// returned Unsubscribe is called.
	Subscribe(ctx context.Context, c model.Collection, onSnapshot func([]model.Document), onError func(error)) (Unsubscribe, error)
	Add(ctx context.Context, c model.Collection, req model.WriteDocRequest) (model.Document, error)
	Set(ctx context.Context, c model.Collection, id string, req model.WriteDocRequest) (model.Document, error)
	Update(ctx context.Context, c model.Collection, id string, patch model.PatchDocRequest) (model.Document, error)
	Delete(ctx context.Context, c model.Collection, id string) error
}
