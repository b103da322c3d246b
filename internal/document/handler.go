package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"docdash/internal/document/model"
	"docdash/internal/document/service"
	"docdash/middleware"
	"docdash/pkg/logger"
)

type DocumentHandler struct {
	Service *service.DocumentService
}

func NewDocumentHandler(service *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{Service: service}
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c, ok := collectionParam(w, r)
	if !ok {
		return
	}

	docs, err := h.Service.List(r.Context(), middleware.UserID(r.Context()), c)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to list %s: %v", c, err)
		writeError(w, err)
		return
	}
	writeJSON(w, docs)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c, docID, ok := documentParams(w, r)
	if !ok {
		return
	}

	doc, err := h.Service.Get(r.Context(), middleware.UserID(r.Context()), c, docID)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to get doc %s: %v", docID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, doc)
}

func (h *DocumentHandler) AddDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c, ok := collectionParam(w, r)
	if !ok {
		return
	}

	var req model.WriteDocRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // Ignore error, default to empty

	doc, err := h.Service.Add(r.Context(), middleware.UserID(r.Context()), c, req)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to create document: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, model.CreateDocResponse{DocID: doc.ID, Document: doc})
}

func (h *DocumentHandler) SetDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c, docID, ok := documentParams(w, r)
	if !ok {
		return
	}

	var req model.WriteDocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := h.Service.Set(r.Context(), middleware.UserID(r.Context()), c, docID, req)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to set doc %s: %v", docID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, doc)
}

func (h *DocumentHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c, docID, ok := documentParams(w, r)
	if !ok {
		return
	}

	var req model.PatchDocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := h.Service.Update(r.Context(), middleware.UserID(r.Context()), c, docID, req)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to update doc %s: %v", docID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, doc)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c, docID, ok := documentParams(w, r)
	if !ok {
		return
	}

	if err := h.Service.Delete(r.Context(), middleware.UserID(r.Context()), c, docID); err != nil {
		logger.Sugar.Errorf("Handler: Failed to delete document %s: %v", docID, err)
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Document deleted successfully"))
}

func collectionParam(w http.ResponseWriter, r *http.Request) (model.Collection, bool) {
	path := r.URL.Query().Get("collection")
	if path == "" {
		http.Error(w, "Missing collection parameter", http.StatusBadRequest)
		return model.Collection{}, false
	}
	c, err := model.ParseCollection(path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return model.Collection{}, false
	}
	return c, true
}

func documentParams(w http.ResponseWriter, r *http.Request) (model.Collection, string, bool) {
	c, ok := collectionParam(w, r)
	if !ok {
		return c, "", false
	}
	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		return c, "", false
	}
	return c, docID, true
}

// writeError maps service errors to a status and writes the error text so
// clients can show the backend's message.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, model.ErrInvalidCollection):
		status = http.StatusBadRequest
	default:
		// Storage errors stay in the log.
		logger.Sugar.Errorf("Handler: internal error: %v", err)
		http.Error(w, "Internal server error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
