package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"studyhub/internal/model"
	"studyhub/internal/operations"
	"studyhub/internal/pagination"
)

func pageFromQuery(r *http.Request) pagination.Request {
	q := r.URL.Query()
	return pagination.Parse(q.Get("page"), q.Get("limit"))
}

func resourceFilterFromQuery(r *http.Request) model.ResourceFilter {
	q := r.URL.Query()
	return model.ResourceFilter{
		Type:         model.ResourceType(q.Get("type")),
		Faculty:      q.Get("faculty"),
		Department:   q.Get("department"),
		Course:       q.Get("course"),
		Level:        q.Get("level"),
		Semester:     q.Get("semester"),
		AcademicYear: q.Get("academicYear"),
		Search:       strings.TrimSpace(q.Get("q")),
		Sort:         q.Get("sort"),
	}
}

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	page, err := s.svc.ListResources(r.Context(), resourceFilterFromQuery(r), pageFromQuery(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writePage(w, page)
}

func (s *Server) handleSearchResources(w http.ResponseWriter, r *http.Request) {
	page, err := s.svc.SearchResources(r.Context(), resourceFilterFromQuery(r), pageFromQuery(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writePage(w, page)
}

func (s *Server) handleFilterOptions(w http.ResponseWriter, r *http.Request) {
	options, err := s.svc.FilterOptions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, options)
}

func (s *Server) handleResourcesByUser(w http.ResponseWriter, r *http.Request) {
	page, err := s.svc.ResourcesByUser(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "userId"), pageFromQuery(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writePage(w, page)
}

func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	resource, err := s.svc.GetResource(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, resource)
}

func (s *Server) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	if err := s.parseUpload(w, r, 1); err != nil {
		s.fail(w, r, err)
		return
	}
	resource, err := s.svc.CreateResource(r.Context(), actorFromContext(r.Context()), resourceInputFromForm(r), formFile(r, "file"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, resource)
}

// handleUpdateResource takes JSON, or a multipart form that may also replace the file.
func (s *Server) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	var (
		in model.ResourceUpdate
		up *operations.Upload
	)
	if isMultipart(r) {
		if err := s.parseUpload(w, r, 1); err != nil {
			s.fail(w, r, err)
			return
		}
		in = resourceUpdateFromForm(r)
		up = formFile(r, "file")
	} else if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	resource, err := s.svc.UpdateResource(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), in, up)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, resource)
}

func (s *Server) handleReplaceResourceFile(w http.ResponseWriter, r *http.Request) {
	if err := s.parseUpload(w, r, 1); err != nil {
		s.fail(w, r, err)
		return
	}
	resource, err := s.svc.ReplaceResourceFile(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), formFile(r, "file"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, resource)
}

func (s *Server) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteResource(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, struct{}{})
}

func (s *Server) handleRateResource(w http.ResponseWriter, r *http.Request) {
	var in model.RatingInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	resource, err := s.svc.RateResource(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, resource)
}

func (s *Server) handleDownloadResource(w http.ResponseWriter, r *http.Request) {
	download, err := s.svc.DownloadResource(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer download.File.Close()

	info, err := download.File.Stat()
	if err != nil {
		s.fail(w, r, operations.Storage("File not found", err))
		return
	}
	name := download.Resource.DownloadName()
	w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(name, `"`, "")+`"`)
	http.ServeContent(w, r, name, info.ModTime(), download.File)
}

func (s *Server) handleToggleSave(w http.ResponseWriter, r *http.Request) {
	saved, err := s.svc.ToggleSave(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	message := "Resource removed from saved"
	if saved {
		message = "Resource saved"
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]bool{"saved": saved}, Message: message})
}
