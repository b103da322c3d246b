package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"docdash/internal/document/model"
	"docdash/internal/identity"
	"docdash/pkg/logger"
)

const DefaultNoticeTTL = 5 * time.Second

var (
	ErrNoIdentity           = errors.New("not signed in")
	ErrDegraded             = errors.New("backend unavailable: running with a local placeholder identity")
	ErrNotAuthor            = errors.New("only the author can change a public document")
	ErrConfirmationRequired = errors.New("delete requires confirmation")
)

type Options struct {
	// Token is redeemed when there is no session to resume.
	Token            string
	BootstrapTimeout time.Duration
	NoticeTTL        time.Duration
	Now              func() time.Time
}

type slot int

const (
	privateSlot slot = iota
	publicSlot
)

func (s slot) String() string {
	if s == publicSlot {
		return "public documents"
	}
	return "private documents"
}

// Dashboard owns the view state: both document lists, the editor, the
// notification and the busy indicator. Lists change only when a
// subscription pushes a snapshot.
type Dashboard struct {
	ids   IdentityProvider
	store DocumentStore
	opts  Options

	mu       sync.Mutex
	ctx      context.Context
	identity identity.Identity
	ready    bool
	// gen increases on every identity change; callbacks from older
	// generations are dropped.
	gen     uint64
	lists   [2][]model.Document
	subs    [2]Unsubscribe
	editor  *model.Document
	notice  Notice
	busy    int
	observe Unsubscribe

	changes chan struct{}
}

func New(ids IdentityProvider, store DocumentStore, opts Options) *Dashboard {
	if opts.NoticeTTL == 0 {
		opts.NoticeTTL = DefaultNoticeTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dashboard{
		ids:     ids,
		store:   store,
		opts:    opts,
		ctx:     context.Background(),
		changes: make(chan struct{}, 1),
	}
}

// Changes signals that the view state changed. Signals are coalesced.
func (d *Dashboard) Changes() <-chan struct{} {
	return d.changes
}

func (d *Dashboard) emit() {
	select {
	case d.changes <- struct{}{}:
	default:
	}
}

// Start bootstraps an identity, opens both subscriptions and starts
// observing session changes. It always ends in a ready state.
func (d *Dashboard) Start(ctx context.Context) BootstrapResult {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()

	done := d.begin()
	res := Bootstrap(ctx, d.ids, d.opts.Token, d.opts.BootstrapTimeout)
	done()

	d.SetIdentity(ctx, res.Identity)
	d.mu.Lock()
	d.ready = true
	if res.Err != nil {
		d.setNoticeLocked(NoticeError, "Authentication failed: "+res.Err.Error())
	}
	d.mu.Unlock()

	if !res.Identity.IsPlaceholder() {
		d.startObserving()
	}
	d.emit()
	return res
}

func (d *Dashboard) startObserving() {
	d.mu.Lock()
	if d.observe != nil {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	stop, err := d.ids.Observe(d.handleIdentityChange)
	if err != nil {
		logger.Sugar.Warnf("Cannot observe session changes: %v", err)
		return
	}
	d.mu.Lock()
	d.observe = stop
	d.mu.Unlock()
}

func (d *Dashboard) handleIdentityChange(id identity.Identity, ok bool) {
	d.mu.Lock()
	current := d.identity
	ctx := d.ctx
	d.mu.Unlock()

	switch {
	case !ok && !current.IsZero():
		logger.Sugar.Infof("Session for %s ended elsewhere", current.ID)
		d.clearIdentity()
		d.notify(NoticeInfo, "Signed out")
	case ok && id.ID != current.ID:
		logger.Sugar.Infof("Session switched from %s to %s", current.ID, id.ID)
		d.SetIdentity(ctx, id)
	}
}

// SetIdentity releases the current subscriptions, clears every list and the
// editor, and subscribes again on behalf of id.
func (d *Dashboard) SetIdentity(ctx context.Context, id identity.Identity) {
	d.mu.Lock()
	stale := d.releaseLocked()
	d.gen++
	gen := d.gen
	d.identity = id
	d.mu.Unlock()
	release(stale)
	d.emit()

	if id.IsZero() || id.IsPlaceholder() {
		return
	}
	d.subscribe(ctx, gen, privateSlot, model.Private(id.ID))
	d.subscribe(ctx, gen, publicSlot, model.Public())
}

func (d *Dashboard) subscribe(ctx context.Context, gen uint64, s slot, c model.Collection) {
	unsub, err := d.store.Subscribe(ctx, c,
		func(docs []model.Document) { d.applySnapshot(gen, s, docs) },
		func(err error) { d.subscriptionFailed(gen, s, err) },
	)
	if err != nil {
		d.subscriptionFailed(gen, s, err)
		return
	}

	d.mu.Lock()
	if d.gen != gen {
		d.mu.Unlock()
		unsub()
		return
	}
	d.subs[s] = unsub
	d.mu.Unlock()
}

// applySnapshot replaces a whole list with a freshly sorted snapshot.
func (d *Dashboard) applySnapshot(gen uint64, s slot, docs []model.Document) {
	d.mu.Lock()
	if d.gen != gen {
		d.mu.Unlock()
		return
	}
	list := make([]model.Document, 0, len(docs))
	for _, doc := range docs {
		doc.IsPublic = s == publicSlot
		if s == privateSlot && doc.AuthorID != d.identity.ID {
			logger.Sugar.Warnf("Dropping foreign document %s from private list", doc.ID)
			continue
		}
		list = append(list, doc)
	}
	sortByLastUpdated(list)
	d.lists[s] = list
	d.mu.Unlock()
	d.emit()
}

func (d *Dashboard) subscriptionFailed(gen uint64, s slot, err error) {
	d.mu.Lock()
	if d.gen != gen {
		d.mu.Unlock()
		return
	}
	logger.Sugar.Errorf("Subscription to %s failed: %v", s, err)
	d.setNoticeLocked(NoticeError, fmt.Sprintf("Could not load %s: %v", s, err))
	d.mu.Unlock()
	d.emit()
}

// releaseLocked clears lists and the editor and detaches the open
// subscriptions. The caller runs them through release after unlocking mu.
func (d *Dashboard) releaseLocked() []Unsubscribe {
	var stale []Unsubscribe
	for i, unsub := range d.subs {
		if unsub != nil {
			stale = append(stale, unsub)
			d.subs[i] = nil
		}
	}
	d.lists = [2][]model.Document{}
	d.editor = nil
	return stale
}

func release(fns []Unsubscribe) {
	for _, fn := range fns {
		fn()
	}
}

func (d *Dashboard) clearIdentity() {
	d.mu.Lock()
	stale := d.releaseLocked()
	d.gen++
	d.identity = identity.Identity{}
	d.mu.Unlock()
	release(stale)
	d.emit()
}

// SignOut ends the session and clears all view state.
func (d *Dashboard) SignOut(ctx context.Context) error {
	done := d.begin()
	err := d.ids.SignOut(ctx)
	done()
	if err != nil {
		d.notify(NoticeError, "Failed to sign out: "+err.Error())
		return err
	}
	d.clearIdentity()
	d.notify(NoticeSuccess, "Signed out")
	return nil
}

// Close releases subscriptions and the session observer.
func (d *Dashboard) Close() {
	d.mu.Lock()
	stale := d.releaseLocked()
	d.gen++
	if d.observe != nil {
		stale = append(stale, d.observe)
		d.observe = nil
	}
	d.mu.Unlock()
	release(stale)
}

// Create writes a new document to the public or private collection and opens
// it in the editor.
func (d *Dashboard) Create(ctx context.Context, title, content string, public bool) (model.Document, error) {
	id, err := d.actor()
	if err != nil {
		d.notify(NoticeError, "Failed to create document: "+err.Error())
		return model.Document{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = model.DefaultTitle
	}

	done := d.begin()
	doc, err := d.store.Add(ctx, collectionFor(id, public), model.WriteDocRequest{Title: title, Content: content})
	done()
	if err != nil {
		d.notify(NoticeError, "Failed to create document: "+err.Error())
		return model.Document{}, err
	}

	doc.IsPublic = public
	d.mu.Lock()
	d.editor = &doc
	d.setNoticeLocked(NoticeSuccess, fmt.Sprintf("Created %q", doc.Title))
	d.mu.Unlock()
	d.emit()
	return doc, nil
}

// Save writes the editor's title and content back to the collection the
// document was read from. The backend stamps a fresh last-updated time.
func (d *Dashboard) Save(ctx context.Context, doc model.Document) (model.Document, error) {
	id, err := d.actor()
	if err == nil && !canModify(id, doc) {
		err = ErrNotAuthor
	}
	if err != nil {
		d.notify(NoticeError, "Failed to save document: "+err.Error())
		return model.Document{}, err
	}

	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = model.DefaultTitle
	}
	content := doc.Content
	done := d.begin()
	saved, err := d.store.Update(ctx, collectionFor(id, doc.IsPublic), doc.ID, model.PatchDocRequest{Title: &title, Content: &content})
	done()
	if err != nil {
		d.notify(NoticeError, "Failed to save document: "+err.Error())
		return model.Document{}, err
	}

	saved.IsPublic = doc.IsPublic
	d.mu.Lock()
	if d.editor != nil && d.editor.ID == saved.ID {
		d.editor = &saved
	}
	d.setNoticeLocked(NoticeSuccess, fmt.Sprintf("Saved %q", saved.Title))
	d.mu.Unlock()
	d.emit()
	return saved, nil
}

// Delete removes doc after the user confirmed. Public documents may only be
// deleted by their author; that is checked before any backend call.
func (d *Dashboard) Delete(ctx context.Context, doc model.Document, confirmed bool) error {
	id, err := d.actor()
	switch {
	case err != nil:
	case !confirmed:
		err = ErrConfirmationRequired
	case !canModify(id, doc):
		err = ErrNotAuthor
	}
	if err != nil {
		d.notify(NoticeError, "Failed to delete document: "+err.Error())
		return err
	}

	done := d.begin()
	err = d.store.Delete(ctx, collectionFor(id, doc.IsPublic), doc.ID)
	done()
	if err != nil {
		d.notify(NoticeError, "Failed to delete document: "+err.Error())
		return err
	}

	d.mu.Lock()
	if d.editor != nil && d.editor.ID == doc.ID {
		d.editor = nil
	}
	d.setNoticeLocked(NoticeSuccess, fmt.Sprintf("Deleted %q", doc.Title))
	d.mu.Unlock()
	d.emit()
	return nil
}

// CanDelete reports whether the delete control should be offered for doc.
func (d *Dashboard) CanDelete(doc model.Document) bool {
	id, err := d.actor()
	return err == nil && canModify(id, doc)
}

// CanEdit reports whether Save would be attempted for doc.
func (d *Dashboard) CanEdit(doc model.Document) bool {
	return d.CanDelete(doc)
}

func canModify(id identity.Identity, doc model.Document) bool {
	return !doc.IsPublic || doc.AuthorID == id.ID
}

func collectionFor(id identity.Identity, public bool) model.Collection {
	if public {
		return model.Public()
	}
	return model.Private(id.ID)
}

// actor returns the identity mutations run as.
func (d *Dashboard) actor() (identity.Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.identity.IsZero():
		return identity.Identity{}, ErrNoIdentity
	case d.identity.IsPlaceholder():
		return d.identity, ErrDegraded
	}
	return d.identity, nil
}

func (d *Dashboard) Open(doc model.Document) {
	d.mu.Lock()
	d.editor = &doc
	d.mu.Unlock()
	d.emit()
}

func (d *Dashboard) CloseEditor() {
	d.mu.Lock()
	d.editor = nil
	d.mu.Unlock()
	d.emit()
}

// Editor returns the document open in the editor.
func (d *Dashboard) Editor() (model.Document, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.editor == nil {
		return model.Document{}, false
	}
	return *d.editor, true
}

func (d *Dashboard) Private() []model.Document { return d.list(privateSlot) }

func (d *Dashboard) Public() []model.Document { return d.list(publicSlot) }

func (d *Dashboard) list(s slot) []model.Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.Document(nil), d.lists[s]...)
}

func (d *Dashboard) Identity() identity.Identity {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.identity
}

// Ready is true once Start has finished, whether or not it succeeded.
func (d *Dashboard) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready
}

func (d *Dashboard) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.busy > 0
}

// Notice returns the current notification unless it was dismissed or has
// expired.
func (d *Dashboard) Notice() (Notice, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.notice.IsZero() || d.notice.expired(d.opts.Now(), d.opts.NoticeTTL) {
		return Notice{}, false
	}
	return d.notice, true
}

func (d *Dashboard) Dismiss() {
	d.mu.Lock()
	d.notice = Notice{}
	d.mu.Unlock()
	d.emit()
}

func (d *Dashboard) notify(kind NoticeKind, msg string) {
	d.mu.Lock()
	d.setNoticeLocked(kind, msg)
	d.mu.Unlock()
	d.emit()
}

func (d *Dashboard) setNoticeLocked(kind NoticeKind, msg string) {
	d.notice = Notice{Kind: kind, Message: msg, At: d.opts.Now()}
}

// begin marks an awaited backend call; the returned func ends it.
func (d *Dashboard) begin() func() {
	d.mu.Lock()
	d.busy++
	d.mu.Unlock()
	d.emit()
	return func() {
		d.mu.Lock()
		d.busy--
		d.mu.Unlock()
		d.emit()
	}
}
