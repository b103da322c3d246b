package identity

import (
	"encoding/json"
	"net/http"
	"strings"

	"docdash/pkg/logger"
)

// Disconnector drops the live connections opened with one session.
type Disconnector interface {
	DisconnectSession(sessionID string)
}

type Handler struct {
	Provider     *Provider
	Disconnector Disconnector
}

func NewHandler(provider *Provider, disconnector Disconnector) *Handler {
	return &Handler{Provider: provider, Disconnector: disconnector}
}

// TokenFromRequest reads the session token from the query string (browsers
// cannot set headers on WebSocket upgrades) or the Authorization header.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
}

func (h *Handler) Anonymous(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, err := h.Provider.CreateAnonymous(r.Context())
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to create anonymous session: %v", err)
		http.Error(w, "Failed to create anonymous session", http.StatusInternalServerError)
		return
	}
	writeSession(w, sess)
}

func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	sess, err := h.Provider.RedeemToken(r.Context(), req.Token)
	if err != nil {
		if IsAuthError(err) {
			http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
			return
		}
		logger.Sugar.Errorf("Handler: Failed to redeem token: %v", err)
		http.Error(w, "Failed to redeem token", http.StatusInternalServerError)
		return
	}
	writeSession(w, sess)
}

func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := TokenFromRequest(r)
	if token == "" {
		http.Error(w, "Unauthorized: No token provided", http.StatusUnauthorized)
		return
	}
	sess, err := h.Provider.Resume(r.Context(), token)
	if err != nil {
		if IsAuthError(err) {
			http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
			return
		}
		logger.Sugar.Errorf("Handler: Failed to resume session: %v", err)
		http.Error(w, "Failed to resume session", http.StatusInternalServerError)
		return
	}
	writeSession(w, sess)
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := TokenFromRequest(r)
	if token == "" {
		http.Error(w, "Unauthorized: No token provided", http.StatusUnauthorized)
		return
	}
	id, err := h.Provider.EndSession(r.Context(), token)
	if err != nil {
		if IsAuthError(err) {
			http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
			return
		}
		logger.Sugar.Errorf("Handler: Failed to end session: %v", err)
		http.Error(w, "Failed to end session", http.StatusInternalServerError)
		return
	}
	if h.Disconnector != nil {
		h.Disconnector.DisconnectSession(id.SessionID)
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signed out"))
}

func writeSession(w http.ResponseWriter, sess Session) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SessionResponse{
		Token:     sess.Token,
		Identity:  sess.Identity,
		ExpiresAt: sess.ExpiresAt,
	})
}
