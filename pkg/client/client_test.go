package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"docdash/internal/dashboard"
	"docdash/internal/document/model"
	"docdash/internal/document/repository"
	"docdash/internal/document/service"
	"docdash/internal/identity"
	"docdash/router"
	"docdash/socket"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	URL     string
	Signer  *identity.Signer
	Handler http.Handler
}

func startServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	signer := identity.NewSigner("test-secret")
	provider := identity.NewProvider(identity.NewRedisSessionStore(rdb), signer, time.Hour)
	docs := service.NewDocumentService(repository.NewMemoryRepository(), nil)
	hub := socket.NewHub(docs)
	docs.Notifier = hub

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	go hub.FlushWorker(ctx, 50*time.Millisecond)

	handler := router.Setup(router.Deps{
		Documents:  docs,
		Identity:   provider,
		Hub:        hub,
		CORSOrigin: "*",
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{URL: srv.URL, Signer: signer, Handler: handler}
}

func newClient(t *testing.T, baseURL, sessionPath string) *Client {
	t.Helper()
	if sessionPath == "" {
		sessionPath = filepath.Join(t.TempDir(), "session.toml")
	}
	sessions, err := NewSessionFile(sessionPath)
	require.NoError(t, err)
	return New(baseURL, sessions)
}

func signedIn(t *testing.T, baseURL string) (*Client, identity.Identity) {
	t.Helper()
	c := newClient(t, baseURL, "")
	id, err := c.SignInAnonymously(context.Background())
	require.NoError(t, err)
	return c, id
}

func nextSnapshot(t *testing.T, ch <-chan []model.Document) []model.Document {
	t.Helper()
	select {
	case docs := <-ch:
		return docs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestClient_AnonymousSessionPersistsAndResumes(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.toml")

	first := newClient(t, srv.URL, path)
	id, err := first.SignInAnonymously(ctx)
	require.NoError(t, err)
	assert.True(t, id.Anonymous)

	second := newClient(t, srv.URL, path)
	resumed, ok, err := second.CurrentSession(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id.ID, resumed.ID)
	assert.Equal(t, identity.MethodResumed, resumed.Method)
}

func TestClient_CurrentSessionWithoutFile(t *testing.T) {
	srv := startServer(t)
	c := newClient(t, srv.URL, "")

	_, ok, err := c.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_RevokedSessionIsCleared(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	c, _ := signedIn(t, srv.URL)

	rec, ok, err := c.Sessions.Load()
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.SignOut(ctx))
	require.NoError(t, c.Sessions.Save(rec))

	_, ok, err = c.CurrentSession(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, stored, err := c.Sessions.Load()
	require.NoError(t, err)
	assert.False(t, stored)
}

func TestClient_RedeemToken(t *testing.T) {
	srv := startServer(t)
	c := newClient(t, srv.URL, "")

	token, err := srv.Signer.IssueCustom("alice", time.Minute)
	require.NoError(t, err)

	id, err := c.RedeemToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", id.ID)
	assert.False(t, id.Anonymous)

	rec, ok, err := c.Sessions.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", rec.UserID)

	_, err = c.RedeemToken(context.Background(), "garbage")
	assert.True(t, IsUnauthorized(err))
}

func TestClient_DocumentRoundTrip(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	c, id := signedIn(t, srv.URL)
	coll := model.Private(id.ID)

	doc, err := c.Add(ctx, coll, model.WriteDocRequest{Title: "Notes", Content: "a"})
	require.NoError(t, err)
	assert.Equal(t, id.ID, doc.AuthorID)

	content := "b"
	updated, err := c.Update(ctx, coll, doc.ID, model.PatchDocRequest{Content: &content})
	require.NoError(t, err)
	assert.Equal(t, "Notes", updated.Title)
	assert.Equal(t, "b", updated.Content)

	set, err := c.Set(ctx, coll, "fixed-id", model.WriteDocRequest{Title: "Pinned"})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", set.ID)

	docs, err := c.List(ctx, coll)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	require.NoError(t, c.Delete(ctx, coll, doc.ID))

	_, err = c.Get(ctx, coll, doc.ID)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Contains(t, apiErr.Message, "document not found")
}

func TestClient_PublicDocumentsAreAuthorOnly(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	author, _ := signedIn(t, srv.URL)
	other, _ := signedIn(t, srv.URL)

	doc, err := author.Add(ctx, model.Public(), model.WriteDocRequest{Title: "Spec"})
	require.NoError(t, err)

	title := "Hijacked"
	_, err = other.Update(ctx, model.Public(), doc.ID, model.PatchDocRequest{Title: &title})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Contains(t, apiErr.Message, "only the author")

	err = other.Delete(ctx, model.Public(), doc.ID)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)

	require.NoError(t, author.Delete(ctx, model.Public(), doc.ID))
}

func TestClient_SubscribeReceivesSnapshots(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	c, _ := signedIn(t, srv.URL)

	snapshots := make(chan []model.Document, 8)
	unsub, err := c.Subscribe(ctx, model.Public(),
		func(docs []model.Document) { snapshots <- docs },
		func(err error) { t.Errorf("unexpected error: %v", err) },
	)
	require.NoError(t, err)
	defer unsub()

	assert.Empty(t, nextSnapshot(t, snapshots))

	_, err = c.Add(ctx, model.Public(), model.WriteDocRequest{Title: "Live"})
	require.NoError(t, err)

	docs := nextSnapshot(t, snapshots)
	require.Len(t, docs, 1)
	assert.Equal(t, "Live", docs[0].Title)
	assert.True(t, docs[0].IsPublic)
}

func TestClient_SubscribeToForeignPrivateCollection(t *testing.T) {
	srv := startServer(t)
	_, owner := signedIn(t, srv.URL)
	other, _ := signedIn(t, srv.URL)

	_, err := other.Subscribe(context.Background(), model.Private(owner.ID),
		func([]model.Document) {}, func(error) {})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestClient_SignOutClosesSubscriptionsQuietly(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	c, _ := signedIn(t, srv.URL)

	snapshots := make(chan []model.Document, 8)
	errs := make(chan error, 8)
	_, err := c.Subscribe(ctx, model.Public(),
		func(docs []model.Document) { snapshots <- docs },
		func(err error) { errs <- err },
	)
	require.NoError(t, err)
	nextSnapshot(t, snapshots)

	require.NoError(t, c.SignOut(ctx))

	select {
	case err := <-errs:
		t.Fatalf("unexpected error after sign-out: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	_, ok, err := c.Sessions.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_SignOutKeepsOtherSessionsOfSameUserLive(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	token, err := srv.Signer.IssueCustom("alice", time.Minute)
	require.NoError(t, err)
	laptop := newClient(t, srv.URL, "")
	desktop := newClient(t, srv.URL, "")
	_, err = laptop.RedeemToken(ctx, token)
	require.NoError(t, err)
	_, err = desktop.RedeemToken(ctx, token)
	require.NoError(t, err)

	snapshots := make(chan []model.Document, 8)
	errs := make(chan error, 8)
	unsub, err := desktop.Subscribe(ctx, model.Public(),
		func(docs []model.Document) { snapshots <- docs },
		func(err error) { errs <- err },
	)
	require.NoError(t, err)
	defer unsub()
	nextSnapshot(t, snapshots)

	require.NoError(t, laptop.SignOut(ctx))

	_, err = desktop.Add(ctx, model.Public(), model.WriteDocRequest{Title: "Still here"})
	require.NoError(t, err)
	docs := nextSnapshot(t, snapshots)
	require.Len(t, docs, 1)
	assert.Equal(t, "Still here", docs[0].Title)

	select {
	case err := <-errs:
		t.Fatalf("desktop live query failed: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestClient_FailedSignOutKeepsDashboardLive(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/signout" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		srv.Handler.ServeHTTP(w, r)
	}))
	defer flaky.Close()

	c := newClient(t, flaky.URL, "")
	d := dashboard.New(c, c, dashboard.Options{})
	defer d.Close()
	res := d.Start(ctx)
	require.NoError(t, res.Err)

	err := d.SignOut(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, res.Identity.ID, d.Identity().ID)
	notice, ok := d.Notice()
	require.True(t, ok)
	assert.Equal(t, "Failed to sign out: boom", notice.Message)

	other, _ := signedIn(t, srv.URL)
	_, err = other.Add(ctx, model.Public(), model.WriteDocRequest{Title: "After"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(d.Public()) == 1 }, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "After", d.Public()[0].Title)

	_, stored, err := c.Sessions.Load()
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestClient_ObserveSessionFile(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.toml")

	watcher := newClient(t, srv.URL, path)
	type change struct {
		id identity.Identity
		ok bool
	}
	changes := make(chan change, 8)
	stop, err := watcher.Observe(func(id identity.Identity, ok bool) { changes <- change{id, ok} })
	require.NoError(t, err)
	defer stop()

	other := newClient(t, srv.URL, path)
	id, err := other.SignInAnonymously(ctx)
	require.NoError(t, err)

	select {
	case got := <-changes:
		assert.True(t, got.ok)
		assert.Equal(t, id.ID, got.id.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no change observed after sign-in")
	}

	require.NoError(t, other.SignOut(ctx))

	select {
	case got := <-changes:
		assert.False(t, got.ok)
	case <-time.After(2 * time.Second):
		t.Fatal("no change observed after sign-out")
	}
}

func TestClient_DrivesDashboard(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	c := newClient(t, srv.URL, "")
	d := dashboard.New(c, c, dashboard.Options{})
	defer d.Close()

	res := d.Start(ctx)
	require.NoError(t, res.Err)
	assert.Equal(t, identity.MethodAnonymous, res.Identity.Method)

	_, err := d.Create(ctx, "Shared", "", true)
	require.NoError(t, err)
	_, err = d.Create(ctx, "Mine", "", false)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(d.Public()) == 1 && len(d.Private()) == 1
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "Shared", d.Public()[0].Title)
	assert.Equal(t, "Mine", d.Private()[0].Title)
}
