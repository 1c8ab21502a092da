package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"studyhub/internal/model"
	"studyhub/internal/operations"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	account, err := s.svc.Me(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, account)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in model.ProfileUpdate
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	account, err := s.svc.UpdateProfile(r.Context(), actorFromContext(r.Context()), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, account)
}

func (s *Server) handleProfilePicture(w http.ResponseWriter, r *http.Request) {
	if err := s.parseUpload(w, r, 1); err != nil {
		s.fail(w, r, err)
		return
	}
	up := formFile(r, "profilePicture")
	if up == nil {
		s.fail(w, r, operations.Validation("Please upload a file"))
		return
	}
	account, err := s.svc.UpdateProfilePicture(r.Context(), actorFromContext(r.Context()), *up)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, account)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var in model.ChangePasswordInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.ChangePassword(r.Context(), actorFromContext(r.Context()), in); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, "Password updated successfully")
}

func (s *Server) handleMyResources(w http.ResponseWriter, r *http.Request) {
	page, err := s.svc.MyResources(r.Context(), actorFromContext(r.Context()), pageFromQuery(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writePage(w, page)
}

func (s *Server) handleSavedResources(w http.ResponseWriter, r *http.Request) {
	page, err := s.svc.SavedResources(r.Context(), actorFromContext(r.Context()), pageFromQuery(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writePage(w, page)
}

func (s *Server) handleMyForums(w http.ResponseWriter, r *http.Request) {
	page, err := s.svc.MyForums(r.Context(), actorFromContext(r.Context()), pageFromQuery(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writePage(w, page)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	box, err := s.svc.ListNotifications(r.Context(), actorFromContext(r.Context()), pageFromQuery(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	count := len(box.Items)
	writeJSON(w, http.StatusOK, envelope{
		Success:     true,
		Data:        box.Items,
		Count:       &count,
		Pagination:  &box.Pagination,
		UnreadCount: &box.Unread,
	})
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.MarkNotificationRead(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, n)
}
