package web

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/JonMunkholm/outings/internal/logging"
	"github.com/JonMunkholm/outings/internal/store"
)

type sessionKey struct{}

// withSession attaches the visitor's filter session to the request context.
// A missing, malformed or expired cookie starts a new session. The cookie
// has no expiry, so the browser drops it when it closes.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := s.lookupSession(r)
		if sess == nil {
			sess = s.sessions.Create()
			http.SetCookie(w, &http.Cookie{
				Name:     s.cfg.Session.CookieName,
				Value:    sess.ID,
				Path:     s.basePath(),
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})
			logging.FromContext(r.Context()).Debug("session started", "session_id", sess.ID)
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) lookupSession(r *http.Request) *store.Session {
	c, err := r.Cookie(s.cfg.Session.CookieName)
	if err != nil {
		return nil
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return nil
	}
	sess, ok := s.sessions.Get(c.Value)
	if !ok {
		return nil
	}
	return sess
}

// sessionFrom returns the session withSession attached, or nil outside it.
func sessionFrom(ctx context.Context) *store.Session {
	sess, _ := ctx.Value(sessionKey{}).(*store.Session)
	return sess
}

// snapshot returns the request's view: the visitor's filters over the
// shared dataset, or the bare dataset for routes without a session.
func (s *Server) snapshot(r *http.Request) store.Snapshot {
	if sess := sessionFrom(r.Context()); sess != nil {
		return sess.Snapshot()
	}
	return s.store.Snapshot()
}
