package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"studyhub/internal/model"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := s.svc.Dashboard(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, dashboard)
}

func (s *Server) handlePendingResources(w http.ResponseWriter, r *http.Request) {
	page, err := s.svc.PendingResources(r.Context(), actorFromContext(r.Context()), pageFromQuery(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writePage(w, page)
}

func (s *Server) handleApproveResource(w http.ResponseWriter, r *http.Request) {
	resource, err := s.svc.ApproveResource(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, resource)
}

func (s *Server) handleRejectResource(w http.ResponseWriter, r *http.Request) {
	var in model.ReviewInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	resource, err := s.svc.RejectResource(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, resource)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.AccountFilter{
		Role:    model.Role(q.Get("role")),
		Faculty: q.Get("faculty"),
		Search:  strings.TrimSpace(q.Get("search")),
	}
	page, err := s.svc.ListUsers(r.Context(), actorFromContext(r.Context()), filter, pageFromQuery(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writePage(w, page)
}

func (s *Server) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	var in model.RoleUpdate
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	account, err := s.svc.UpdateRole(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, account)
}

func (s *Server) handleUserStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.UserStatistics(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

func (s *Server) handleResourceStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.ResourceStatistics(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

func (s *Server) handleForumStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.ForumStatistics(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}
