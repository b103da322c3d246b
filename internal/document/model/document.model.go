package model

import (
	"errors"
	"strings"
	"time"
)

const DefaultTitle = "Untitled Document"

var (
	ErrNotFound          = errors.New("document not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidCollection = errors.New("invalid collection path")
)

// Document is a stored document. IsPublic is never persisted; it is derived
// from the collection the document was read from.
type Document struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	AuthorID    string    `json:"authorId"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
	IsPublic    bool      `json:"isPublic"`
}

// Collection addresses a set of documents: either one identity's private
// documents or the global public set.
type Collection struct {
	ownerID string
	public  bool
}

const (
	publicPath    = "public/documents"
	privatePrefix = "users/"
	privateSuffix = "/documents"
)

func Private(ownerID string) Collection {
	return Collection{ownerID: ownerID}
}

func Public() Collection {
	return Collection{public: true}
}

// ParseCollection accepts "public/documents" or "users/{uid}/documents".
func ParseCollection(path string) (Collection, error) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == publicPath {
		return Public(), nil
	}
	if len(path) > len(privatePrefix)+len(privateSuffix) &&
		strings.HasPrefix(path, privatePrefix) && strings.HasSuffix(path, privateSuffix) {
		owner := strings.TrimSuffix(strings.TrimPrefix(path, privatePrefix), privateSuffix)
		if owner != "" && !strings.Contains(owner, "/") {
			return Private(owner), nil
		}
	}
	return Collection{}, ErrInvalidCollection
}

func (c Collection) Path() string {
	if c.public {
		return publicPath
	}
	return privatePrefix + c.ownerID + privateSuffix
}

func (c Collection) String() string { return c.Path() }

func (c Collection) IsPublic() bool { return c.public }

// OwnerID is empty for the public collection.
func (c Collection) OwnerID() string { return c.ownerID }

func (c Collection) IsZero() bool { return !c.public && c.ownerID == "" }

// WriteDocRequest is the body of add-item and set-item.
type WriteDocRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// PatchDocRequest is the body of update-item. Nil fields are left unchanged.
type PatchDocRequest struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

type CreateDocResponse struct {
	DocID    string   `json:"document_id"`
	Document Document `json:"document"`
}
