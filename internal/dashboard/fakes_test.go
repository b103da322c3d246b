package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"docdash/internal/document/model"
	"docdash/internal/document/repository"
	"docdash/internal/document/service"
	"docdash/internal/identity"
)

type fakeProvider struct {
	mu         sync.Mutex
	session    identity.Identity
	resumeErr  error
	redeemErr  error
	anonErr    error
	signOutErr error
	// block makes every call wait until it is closed, ignoring ctx.
	block     chan struct{}
	redeemed  []string
	anonCalls int
	signOuts  int
	observers map[int]func(identity.Identity, bool)
	nextObs   int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{observers: make(map[int]func(identity.Identity, bool))}
}

func (p *fakeProvider) wait() {
	if p.block != nil {
		<-p.block
	}
}

func (p *fakeProvider) CurrentSession(context.Context) (identity.Identity, bool, error) {
	p.wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resumeErr != nil {
		return identity.Identity{}, false, p.resumeErr
	}
	return p.session, !p.session.IsZero(), nil
}

func (p *fakeProvider) RedeemToken(_ context.Context, token string) (identity.Identity, error) {
	p.wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.redeemed = append(p.redeemed, token)
	if p.redeemErr != nil {
		return identity.Identity{}, p.redeemErr
	}
	p.session = identity.Identity{ID: "uid-" + token}
	return p.session, nil
}

func (p *fakeProvider) SignInAnonymously(context.Context) (identity.Identity, error) {
	p.wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.anonCalls++
	if p.anonErr != nil {
		return identity.Identity{}, p.anonErr
	}
	p.session = identity.Identity{ID: "anon-1", Anonymous: true}
	return p.session, nil
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOuts++
	if p.signOutErr != nil {
		return p.signOutErr
	}
	p.session = identity.Identity{}
	return nil
}

func (p *fakeProvider) Observe(fn func(identity.Identity, bool)) (Unsubscribe, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextObs
	p.nextObs++
	p.observers[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.observers, id)
	}, nil
}

// switchTo simulates another process replacing the persisted session.
func (p *fakeProvider) switchTo(id identity.Identity) {
	p.mu.Lock()
	p.session = id
	fns := make([]func(identity.Identity, bool), 0, len(p.observers))
	for _, fn := range p.observers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(id, !id.IsZero())
	}
}

func (p *fakeProvider) observerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.observers)
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type subscriber struct {
	onSnapshot func([]model.Document)
	onError    func(error)
}

// backend is a shared document service whose change notifications are pushed
// synchronously to every live subscriber.
type backend struct {
	svc *service.DocumentService

	mu   sync.Mutex
	subs map[string]map[int]subscriber
	next int
	// failing collections report an error instead of a snapshot.
	failing map[string]error
}

func newBackend() *backend {
	b := &backend{
		subs:    make(map[string]map[int]subscriber),
		failing: make(map[string]error),
	}
	clock := &testClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b.svc = service.NewDocumentService(repository.NewMemoryRepository(), b).WithClock(clock.Now)
	return b
}

func (b *backend) Notify(path string) {
	b.mu.Lock()
	subs := make([]subscriber, 0, len(b.subs[path]))
	for _, s := range b.subs[path] {
		subs = append(subs, s)
	}
	failure := b.failing[path]
	b.mu.Unlock()

	c, err := model.ParseCollection(path)
	if err != nil {
		return
	}
	docs, loadErr := b.svc.Snapshot(context.Background(), c)
	if failure != nil {
		loadErr = failure
	}
	for _, s := range subs {
		if loadErr != nil {
			s.onError(loadErr)
			continue
		}
		s.onSnapshot(docs)
	}
}

func (b *backend) fail(c model.Collection, err error) {
	b.mu.Lock()
	b.failing[c.Path()] = err
	b.mu.Unlock()
}

func (b *backend) subscribers(c model.Collection) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[c.Path()])
}

func (b *backend) storeFor(p *fakeProvider) *backendStore {
	return &backendStore{b: b, p: p}
}

// backendStore acts as whichever identity the provider currently holds.
type backendStore struct {
	b *backend
	p *fakeProvider

	mu    sync.Mutex
	calls map[string]int
}

func (s *backendStore) actor() string {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	return s.p.session.ID
}

func (s *backendStore) record(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[op]++
}

func (s *backendStore) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *backendStore) Subscribe(_ context.Context, c model.Collection, onSnapshot func([]model.Document), onError func(error)) (Unsubscribe, error) {
	s.record("subscribe")
	if err := s.b.svc.CanRead(c, s.actor()); err != nil {
		return nil, err
	}
	b := s.b
	b.mu.Lock()
	id := b.next
	b.next++
	if b.subs[c.Path()] == nil {
		b.subs[c.Path()] = make(map[int]subscriber)
	}
	b.subs[c.Path()][id] = subscriber{onSnapshot: onSnapshot, onError: onError}
	b.mu.Unlock()

	b.Notify(c.Path())

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[c.Path()], id)
			b.mu.Unlock()
		})
	}, nil
}

func (s *backendStore) Add(ctx context.Context, c model.Collection, req model.WriteDocRequest) (model.Document, error) {
	s.record("add")
	return s.b.svc.Add(ctx, s.actor(), c, req)
}

func (s *backendStore) Set(ctx context.Context, c model.Collection, id string, req model.WriteDocRequest) (model.Document, error) {
	s.record("set")
	return s.b.svc.Set(ctx, s.actor(), c, id, req)
}

func (s *backendStore) Update(ctx context.Context, c model.Collection, id string, patch model.PatchDocRequest) (model.Document, error) {
	s.record("update")
	return s.b.svc.Update(ctx, s.actor(), c, id, patch)
}

func (s *backendStore) Delete(ctx context.Context, c model.Collection, id string) error {
	s.record("delete")
	return s.b.svc.Delete(ctx, s.actor(), c, id)
}

// manualStore hands its callbacks to the test instead of a backend.
type manualStore struct {
	mu        sync.Mutex
	snapshots map[string]func([]model.Document)
	errors    map[string]func(error)
	released  map[string]int
	subErr    error
	addErr    error
}

func newManualStore() *manualStore {
	return &manualStore{
		snapshots: make(map[string]func([]model.Document)),
		errors:    make(map[string]func(error)),
		released:  make(map[string]int),
	}
}

func (s *manualStore) Subscribe(_ context.Context, c model.Collection, onSnapshot func([]model.Document), onError func(error)) (Unsubscribe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subErr != nil {
		return nil, s.subErr
	}
	s.snapshots[c.Path()] = onSnapshot
	s.errors[c.Path()] = onError
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.released[c.Path()]++
	}, nil
}

func (s *manualStore) push(c model.Collection, docs ...model.Document) {
	s.mu.Lock()
	fn := s.snapshots[c.Path()]
	s.mu.Unlock()
	if fn != nil {
		fn(docs)
	}
}

func (s *manualStore) fail(c model.Collection, err error) {
	s.mu.Lock()
	fn := s.errors[c.Path()]
	s.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (s *manualStore) Add(_ context.Context, c model.Collection, req model.WriteDocRequest) (model.Document, error) {
	if s.addErr != nil {
		return model.Document{}, s.addErr
	}
	return model.Document{ID: "new", Title: req.Title, Content: req.Content}, nil
}

func (s *manualStore) Set(context.Context, model.Collection, string, model.WriteDocRequest) (model.Document, error) {
	return model.Document{}, errors.New("not supported")
}

func (s *manualStore) Update(context.Context, model.Collection, string, model.PatchDocRequest) (model.Document, error) {
	return model.Document{}, errors.New("not supported")
}

func (s *manualStore) Delete(context.Context, model.Collection, string) error {
	return errors.New("not supported")
}
