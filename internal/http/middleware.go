package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"studyhub/internal/auth"
	"studyhub/internal/authz"
	"studyhub/internal/logging"
	"studyhub/internal/metrics"
	"studyhub/internal/operations"
)

// requestLogging copies chi's request id into the logging context, then logs and counts
// the request once it has been served.
func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.ContextWithRequestID(r.Context(), chimiddleware.GetReqID(r.Context()))
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		r = r.WithContext(ctx)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		metrics.RecordRequest(route, r.Method, status, elapsed)

		event := logging.Ctx(ctx).Info()
		if status >= http.StatusInternalServerError {
			event = logging.Ctx(ctx).Error()
		} else if status >= http.StatusBadRequest {
			event = logging.Ctx(ctx).Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", elapsed).
			Msg("request")
	})
}

type actorKey struct{}

func actorFromContext(ctx context.Context) authz.Actor {
	actor, _ := ctx.Value(actorKey{}).(authz.Actor)
	return actor
}

// resolveActor turns a bearer token into the current state of its account, so role
// changes and deletions apply to tokens already issued.
func (s *Server) resolveActor(r *http.Request) (authz.Actor, error) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return authz.Actor{}, operations.Unauthenticated("Not authorized to access this route")
	}
	claims, err := auth.ParseToken(s.cfg.Auth.JWTSecret, s.cfg.Auth.JWTIssuer, token)
	if err != nil {
		return authz.Actor{}, operations.Unauthenticated("Not authorized to access this route")
	}
	account, err := s.svc.Me(r.Context(), authz.Actor{ID: claims.UserID})
	if operations.KindOf(err) == operations.KindNotFound {
		return authz.Actor{}, operations.Unauthenticated("User no longer exists")
	}
	if err != nil {
		return authz.Actor{}, err
	}
	return authz.Actor{ID: account.ID, Role: account.Role}, nil
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := s.resolveActor(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), actorKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// optionalAuth attaches an actor when a valid token is sent and serves anonymously otherwise.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bearerToken(r.Header.Get("Authorization")) == "" {
			next.ServeHTTP(w, r)
			return
		}
		actor, err := s.resolveActor(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
