package router

import (
	"net/http"

	docHandler "docdash/internal/document"
	"docdash/internal/document/model"
	"docdash/internal/document/service"
	"docdash/internal/identity"
	"docdash/middleware"
	"docdash/pkg/logger"
	"docdash/socket"
)

type Deps struct {
	Documents   *service.DocumentService
	Identity    *identity.Provider
	Hub         *socket.Hub
	// Sessions drops the sockets of ended sessions. Defaults to Hub.
	Sessions    identity.Disconnector
	RateLimiter *middleware.RateLimiter
	CORSOrigin  string
}

func Setup(d Deps) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.AuthMiddleware(d.Identity)
	limited := func(h http.HandlerFunc) http.Handler {
		if d.RateLimiter == nil {
			return auth(h)
		}
		return auth(d.RateLimiter.Middleware(h))
	}

	// Identity
	sessions := d.Sessions
	if sessions == nil {
		sessions = d.Hub
	}
	idHandler := identity.NewHandler(d.Identity, sessions)
	mux.HandleFunc("/api/auth/anonymous", idHandler.Anonymous)
	mux.HandleFunc("/api/auth/redeem", idHandler.Redeem)
	mux.HandleFunc("/api/auth/session", idHandler.Session)
	mux.HandleFunc("/api/auth/signout", idHandler.SignOut)

	// WebSocket live queries
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := middleware.IdentityFrom(r.Context())
		userID := id.ID
		c, err := model.ParseCollection(r.URL.Query().Get("collection"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := d.Documents.CanRead(c, userID); err != nil {
			logger.Sugar.Warnf("Subscription rejected: %s on %s: %v", userID, c, err)
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		socket.ServeWs(d.Hub, w, r, c, userID, id.SessionID)
	})
	mux.Handle("/ws", auth(wsHandler))

	// REST API
	h := docHandler.NewDocumentHandler(d.Documents)
	mux.Handle("/api/documents", auth(http.HandlerFunc(h.GetDocuments)))
	mux.Handle("/api/documents/get", auth(http.HandlerFunc(h.GetDocument)))
	mux.Handle("/api/documents/add", limited(h.AddDocument))
	mux.Handle("/api/documents/set", limited(h.SetDocument))
	mux.Handle("/api/documents/update", limited(h.UpdateDocument))
	mux.Handle("/api/documents/delete", limited(h.DeleteDocument))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	return middleware.CORSMiddleware(d.CORSOrigin)(mux)
}
