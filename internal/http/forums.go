package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"studyhub/internal/model"
	"studyhub/internal/operations"
)

func (s *Server) handleCreateForum(w http.ResponseWriter, r *http.Request) {
	var in model.ForumInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	forum, err := s.svc.CreateForum(r.Context(), actorFromContext(r.Context()), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, forum)
}

func (s *Server) handleListForums(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.ForumFilter{
		Category: model.ForumCategory(q.Get("category")),
		Faculty:  q.Get("faculty"),
		Search:   strings.TrimSpace(q.Get("search")),
		Sort:     q.Get("sort"),
	}
	page, err := s.svc.ListForums(r.Context(), filter, pageFromQuery(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writePage(w, page)
}

func (s *Server) handleGetForum(w http.ResponseWriter, r *http.Request) {
	forum, err := s.svc.GetForum(r.Context(), chi.URLParam(r, "forumId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, forum)
}

func (s *Server) handleUpdateForum(w http.ResponseWriter, r *http.Request) {
	var in model.ForumUpdate
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	forum, err := s.svc.UpdateForum(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "forumId"), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, forum)
}

func (s *Server) handleDeleteForum(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteForum(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "forumId")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, struct{}{})
}

// handleCreatePost accepts JSON, or a multipart form with content and attachments.
func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var (
		in      model.PostInput
		uploads []operations.Upload
	)
	if isMultipart(r) {
		if err := s.parseUpload(w, r, s.cfg.Uploads.MaxAttachments); err != nil {
			s.fail(w, r, err)
			return
		}
		in.Content = r.FormValue("content")
		uploads = formFiles(r, "attachments")
	} else if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	post, err := s.svc.CreatePost(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "forumId"), in, uploads)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, post)
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	page, err := s.svc.ListPosts(r.Context(), chi.URLParam(r, "forumId"), pageFromQuery(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writePage(w, page)
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	var in model.PostUpdate
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	post, err := s.svc.UpdatePost(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "forumId"), chi.URLParam(r, "postId"), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, post)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeletePost(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "forumId"), chi.URLParam(r, "postId")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, struct{}{})
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	post, err := s.svc.ToggleLike(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "forumId"), chi.URLParam(r, "postId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, post)
}

func (s *Server) handleReportPost(w http.ResponseWriter, r *http.Request) {
	var in model.ReportInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.ReportPost(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "forumId"), chi.URLParam(r, "postId"), in); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, "Post reported successfully")
}

func (s *Server) handleMarkAnswer(w http.ResponseWriter, r *http.Request) {
	post, err := s.svc.MarkAnswer(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "forumId"), chi.URLParam(r, "postId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, post)
}
