// Package http exposes the platform over a chi router. Every response body is the
// {success, data, error} envelope.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"studyhub/internal/config"
	"studyhub/internal/model"
	"studyhub/internal/operations"
	"studyhub/internal/ratelimit"
)

const healthTimeout = 2 * time.Second

type Server struct {
	cfg     config.Config
	svc     *operations.Service
	limiter *ratelimit.Limiter
}

// NewServer wires the router. client may be nil, in which case rate limits are counted
// in process.
func NewServer(cfg config.Config, svc *operations.Service, client redis.UniversalClient) *Server {
	return &Server{
		cfg: cfg,
		svc: svc,
		limiter: ratelimit.New(cfg.RateLimit, client, func(w http.ResponseWriter, _ *http.Request, message string) {
			writeError(w, http.StatusTooManyRequests, message)
		}),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogging)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         86400,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	authLimit := s.limiter.Middleware(ratelimit.Auth(s.cfg.RateLimit))
	uploadLimit := s.limiter.Middleware(ratelimit.Upload(s.cfg.RateLimit))

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(ratelimit.General(s.cfg.RateLimit)))

		r.Route("/auth", func(r chi.Router) {
			r.With(authLimit).Post("/register", s.handleRegister)
			r.With(authLimit).Post("/login", s.handleLogin)
			r.With(authLimit, s.authMiddleware).Post("/logout", s.handleLogout)
			r.With(authLimit).Post("/forgot-password", s.handleForgotPassword)
			r.With(authLimit).Post("/reset-password/{token}", s.handleResetPassword)
			r.With(s.authMiddleware).Get("/me", s.handleMe)
		})

		r.Route("/resources", func(r chi.Router) {
			r.With(s.optionalAuth).Get("/", s.handleListResources)
			r.With(uploadLimit, s.authMiddleware).Post("/", s.handleCreateResource)
			r.With(s.optionalAuth).Get("/search", s.handleSearchResources)
			r.Get("/filters", s.handleFilterOptions)
			r.With(s.optionalAuth).Get("/user/{userId}", s.handleResourcesByUser)

			r.With(s.optionalAuth).Get("/{id}", s.handleGetResource)
			r.With(s.authMiddleware).Put("/{id}", s.handleUpdateResource)
			r.With(s.authMiddleware).Delete("/{id}", s.handleDeleteResource)
			r.With(uploadLimit, s.authMiddleware).Post("/{id}/upload", s.handleReplaceResourceFile)
			r.With(s.authMiddleware).Post("/{id}/rate", s.handleRateResource)
			r.With(s.authMiddleware).Get("/{id}/download", s.handleDownloadResource)
			r.With(s.authMiddleware).Post("/{id}/save", s.handleToggleSave)
		})

		r.Route("/forums", func(r chi.Router) {
			r.With(s.authMiddleware).Post("/", s.handleCreateForum)
			r.Get("/", s.handleListForums)
			r.Get("/{forumId}", s.handleGetForum)
			r.With(s.authMiddleware).Put("/{forumId}", s.handleUpdateForum)
			r.With(s.authMiddleware).Delete("/{forumId}", s.handleDeleteForum)

			r.With(uploadLimit, s.authMiddleware).Post("/{forumId}/posts", s.handleCreatePost)
			r.Get("/{forumId}/posts", s.handleListPosts)
			r.With(s.authMiddleware).Put("/{forumId}/posts/{postId}", s.handleUpdatePost)
			r.With(s.authMiddleware).Delete("/{forumId}/posts/{postId}", s.handleDeletePost)
			r.With(s.authMiddleware).Post("/{forumId}/posts/{postId}/like", s.handleToggleLike)
			r.With(s.authMiddleware).Post("/{forumId}/posts/{postId}/report", s.handleReportPost)
			r.With(s.authMiddleware).Post("/{forumId}/posts/{postId}/mark-answer", s.handleMarkAnswer)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/profile", s.handleGetProfile)
			r.Put("/profile", s.handleUpdateProfile)
			r.With(uploadLimit).Post("/profile-picture", s.handleProfilePicture)
			r.Put("/change-password", s.handleChangePassword)
			r.Get("/resources", s.handleMyResources)
			r.Get("/saved-resources", s.handleSavedResources)
			r.Get("/forums", s.handleMyForums)
			r.Get("/notifications", s.handleNotifications)
			r.Put("/notifications/{id}", s.handleMarkNotificationRead)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.authMiddleware, s.requireAdmin)
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/resources/pending", s.handlePendingResources)
			r.Put("/resources/{id}/approve", s.handleApproveResource)
			r.Put("/resources/{id}/reject", s.handleRejectResource)
			r.Get("/users", s.handleListUsers)
			r.Put("/users/{id}/role", s.handleUpdateRole)
			r.Get("/statistics/users", s.handleUserStatistics)
			r.Get("/statistics/resources", s.handleResourceStatistics)
			r.Get("/statistics/forums", s.handleForumStatistics)
		})
	})

	return r
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := actorFromContext(r.Context())
		if actor.Role != model.RoleAdmin {
			writeError(w, http.StatusForbidden, "User role "+string(actor.Role)+" is not authorized to access this route")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := s.svc.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}
