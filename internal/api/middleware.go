package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	rlerrors "github.com/rootline/rootline/pkg/errors"
	"github.com/rootline/rootline/pkg/session"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

// requestID accepts a caller's X-Request-ID or issues a uuid, and stores it
// where chi's middleware.GetReqID finds it.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

type ctxKey int

const (
	viewerKey ctxKey = iota
	sessionKey
)

// authenticate resolves "Authorization: Bearer <session id>" to a viewer.
// Requests without the header continue as the anonymous viewer.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := uuid.Parse(raw); err != nil {
			s.writeError(w, r, rlerrors.New(rlerrors.ErrCodeUnauthorized, "malformed session id"))
			return
		}
		sess, err := s.sessions.Get(r.Context(), raw)
		if err != nil {
			s.writeError(w, r, rlerrors.Wrap(rlerrors.ErrCodeInternal, err, "load session"))
			return
		}
		if sess == nil {
			s.writeError(w, r, rlerrors.New(rlerrors.ErrCodeSessionExpired, "session expired or unknown"))
			return
		}
		ctx := context.WithValue(r.Context(), viewerKey, sess.Viewer)
		ctx = context.WithValue(ctx, sessionKey, sess.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func viewerFrom(ctx context.Context) session.Viewer {
	v, _ := ctx.Value(viewerKey).(session.Viewer)
	return v
}

func sessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey).(string)
	return id
}
