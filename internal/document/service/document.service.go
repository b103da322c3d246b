package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docdash/internal/document/model"

	"github.com/google/uuid"
)

type Repository interface {
	Insert(ctx context.Context, c model.Collection, doc model.Document) error
	Upsert(ctx context.Context, c model.Collection, doc model.Document) error
	Update(ctx context.Context, c model.Collection, id string, patch model.PatchDocRequest, lastUpdated time.Time) (int64, error)
	Delete(ctx context.Context, c model.Collection, id string) (int64, error)
	Get(ctx context.Context, c model.Collection, id string) (model.Document, error)
	List(ctx context.Context, c model.Collection) ([]model.Document, error)
}

// ChangeNotifier is told about every collection that changed.
type ChangeNotifier interface {
	Notify(collection string)
}

type DocumentService struct {
	Repo     Repository
	Notifier ChangeNotifier
	now      func() time.Time
}

func NewDocumentService(repo Repository, notifier ChangeNotifier) *DocumentService {
	return &DocumentService{Repo: repo, Notifier: notifier, now: time.Now}
}

// WithClock replaces the timestamp source.
func (s *DocumentService) WithClock(now func() time.Time) *DocumentService {
	s.now = now
	return s
}

// CanRead reports whether userID may read the collection. Private
// collections are readable by their owner only.
func (s *DocumentService) CanRead(c model.Collection, userID string) error {
	if userID == "" {
		return model.ErrForbidden
	}
	if c.IsPublic() || c.OwnerID() == userID {
		return nil
	}
	return fmt.Errorf("%w: collection %s belongs to another user", model.ErrForbidden, c)
}

// Snapshot returns the full current contents of a collection without any
// permission check. The live query hub uses it after access was verified.
func (s *DocumentService) Snapshot(ctx context.Context, c model.Collection) ([]model.Document, error) {
	return s.Repo.List(ctx, c)
}

func (s *DocumentService) List(ctx context.Context, userID string, c model.Collection) ([]model.Document, error) {
	if err := s.CanRead(c, userID); err != nil {
		return nil, err
	}
	return s.Repo.List(ctx, c)
}

func (s *DocumentService) Get(ctx context.Context, userID string, c model.Collection, id string) (model.Document, error) {
	if err := s.CanRead(c, userID); err != nil {
		return model.Document{}, err
	}
	return s.Repo.Get(ctx, c, id)
}

func (s *DocumentService) Add(ctx context.Context, userID string, c model.Collection, req model.WriteDocRequest) (model.Document, error) {
	if err := s.CanRead(c, userID); err != nil {
		return model.Document{}, err
	}
	now := s.now().UTC()
	doc := model.Document{
		ID:          uuid.NewString(),
		Title:       normalizeTitle(req.Title),
		Content:     req.Content,
		AuthorID:    userID,
		CreatedAt:   now,
		LastUpdated: now,
		IsPublic:    c.IsPublic(),
	}
	if err := s.Repo.Insert(ctx, c, doc); err != nil {
		return model.Document{}, err
	}
	s.notify(c)
	return doc, nil
}

// Set writes a document under a caller-chosen id. Overwriting an existing
// public document requires being its author.
func (s *DocumentService) Set(ctx context.Context, userID string, c model.Collection, id string, req model.WriteDocRequest) (model.Document, error) {
	if strings.TrimSpace(id) == "" {
		return model.Document{}, fmt.Errorf("%w: missing document id", model.ErrInvalidInput)
	}
	if err := s.CanRead(c, userID); err != nil {
		return model.Document{}, err
	}
	now := s.now().UTC()
	doc := model.Document{
		ID:          id,
		Title:       normalizeTitle(req.Title),
		Content:     req.Content,
		AuthorID:    userID,
		CreatedAt:   now,
		LastUpdated: now,
		IsPublic:    c.IsPublic(),
	}

	existing, err := s.Repo.Get(ctx, c, id)
	switch {
	case err == nil:
		if err := checkAuthor(c, existing, userID); err != nil {
			return model.Document{}, err
		}
		doc.AuthorID = existing.AuthorID
		doc.CreatedAt = existing.CreatedAt
	case !errors.Is(err, model.ErrNotFound):
		return model.Document{}, err
	}

	if err := s.Repo.Upsert(ctx, c, doc); err != nil {
		return model.Document{}, err
	}
	s.notify(c)
	return doc, nil
}

// Update applies a partial patch and always stamps a fresh last-updated time.
func (s *DocumentService) Update(ctx context.Context, userID string, c model.Collection, id string, patch model.PatchDocRequest) (model.Document, error) {
	if patch.Title != nil {
		t := normalizeTitle(*patch.Title)
		patch.Title = &t
	}
	existing, err := s.Get(ctx, userID, c, id)
	if err != nil {
		return model.Document{}, err
	}
	if err := checkAuthor(c, existing, userID); err != nil {
		return model.Document{}, err
	}

	stamp := s.now().UTC()
	rows, err := s.Repo.Update(ctx, c, id, patch, stamp)
	if err != nil {
		return model.Document{}, err
	}
	if rows == 0 {
		return model.Document{}, model.ErrNotFound
	}

	if patch.Title != nil {
		existing.Title = *patch.Title
	}
	if patch.Content != nil {
		existing.Content = *patch.Content
	}
	existing.LastUpdated = stamp
	s.notify(c)
	return existing, nil
}

// Delete removes a document. Public documents can only be deleted by their
// author.
func (s *DocumentService) Delete(ctx context.Context, userID string, c model.Collection, id string) error {
	existing, err := s.Get(ctx, userID, c, id)
	if err != nil {
		return err
	}
	if err := checkAuthor(c, existing, userID); err != nil {
		return err
	}
	rows, err := s.Repo.Delete(ctx, c, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return model.ErrNotFound
	}
	s.notify(c)
	return nil
}

func (s *DocumentService) notify(c model.Collection) {
	if s.Notifier != nil {
		s.Notifier.Notify(c.Path())
	}
}

func checkAuthor(c model.Collection, doc model.Document, userID string) error {
	if c.IsPublic() && doc.AuthorID != userID {
		return fmt.Errorf("%w: only the author can modify a public document", model.ErrForbidden)
	}
	return nil
}

func normalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.DefaultTitle
	}
	return title
}
