package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"docdash/internal/document/model"
)

// MemoryRepository keeps documents in process memory. It backs local
// development (DATABASE_URL=memory://) and tests.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs map[string]map[string]model.Document
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: make(map[string]map[string]model.Document)}
}

func (r *MemoryRepository) Insert(_ context.Context, c model.Collection, doc model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	coll := r.collection(c)
	if _, ok := coll[doc.ID]; ok {
		return model.ErrInvalidInput
	}
	coll[doc.ID] = doc
	return nil
}

func (r *MemoryRepository) Upsert(_ context.Context, c model.Collection, doc model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	coll := r.collection(c)
	if existing, ok := coll[doc.ID]; ok {
		doc.AuthorID = existing.AuthorID
		doc.CreatedAt = existing.CreatedAt
	}
	coll[doc.ID] = doc
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, c model.Collection, id string, patch model.PatchDocRequest, lastUpdated time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	coll := r.collection(c)
	doc, ok := coll[id]
	if !ok {
		return 0, nil
	}
	if patch.Title != nil {
		doc.Title = *patch.Title
	}
	if patch.Content != nil {
		doc.Content = *patch.Content
	}
	doc.LastUpdated = lastUpdated
	coll[id] = doc
	return 1, nil
}

func (r *MemoryRepository) Delete(_ context.Context, c model.Collection, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	coll := r.collection(c)
	if _, ok := coll[id]; !ok {
		return 0, nil
	}
	delete(coll, id)
	return 1, nil
}

func (r *MemoryRepository) Get(_ context.Context, c model.Collection, id string) (model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[c.Path()][id]
	if !ok {
		return model.Document{}, model.ErrNotFound
	}
	doc.IsPublic = c.IsPublic()
	return doc, nil
}

func (r *MemoryRepository) List(_ context.Context, c model.Collection) ([]model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	docs := make([]model.Document, 0, len(r.docs[c.Path()]))
	for _, doc := range r.docs[c.Path()] {
		doc.IsPublic = c.IsPublic()
		docs = append(docs, doc)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].LastUpdated.After(docs[j].LastUpdated)
	})
	return docs, nil
}

// collection must be called with mu held for writing.
func (r *MemoryRepository) collection(c model.Collection) map[string]model.Document {
	coll, ok := r.docs[c.Path()]
	if !ok {
		coll = make(map[string]model.Document)
		r.docs[c.Path()] = coll
	}
	return coll
}
