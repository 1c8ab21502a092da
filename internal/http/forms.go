package http

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"studyhub/internal/model"
	"studyhub/internal/operations"
)

const multipartMemory = 8 << 20

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// parseUpload reads a multipart body capped at files uploads of the configured size plus
// room for fields. Other content types are left alone and yield no files.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request, files int) error {
	if !isMultipart(r) {
		return nil
	}
	limit := s.cfg.Uploads.MaxBytes*int64(files) + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return operations.Validation("File size exceeds limit of " + strconv.FormatInt(s.cfg.Uploads.MaxBytes/(1<<20), 10) + "MB")
		}
		return operations.Validation("Invalid multipart form")
	}
	return nil
}

func toUpload(fh *multipart.FileHeader) operations.Upload {
	return operations.Upload{
		Name: fh.Filename,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}

func formFile(r *http.Request, field string) *operations.Upload {
	if r.MultipartForm == nil {
		return nil
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil
	}
	up := toUpload(files[0])
	return &up
}

func formFiles(r *http.Request, field string) []operations.Upload {
	if r.MultipartForm == nil {
		return nil
	}
	var uploads []operations.Upload
	for _, fh := range r.MultipartForm.File[field] {
		uploads = append(uploads, toUpload(fh))
	}
	return uploads
}

// optionalField returns nil when the form did not carry key at all.
func optionalField(r *http.Request, key string) *string {
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

func resourceInputFromForm(r *http.Request) model.ResourceInput {
	if r.MultipartForm == nil {
		return model.ResourceInput{}
	}
	return model.ResourceInput{
		Title:        strings.TrimSpace(r.FormValue("title")),
		Description:  r.FormValue("description"),
		Type:         model.ResourceType(r.FormValue("type")),
		Faculty:      r.FormValue("faculty"),
		Department:   r.FormValue("department"),
		Course:       r.FormValue("course"),
		Level:        r.FormValue("level"),
		Semester:     r.FormValue("semester"),
		AcademicYear: r.FormValue("academicYear"),
		Tags:         model.SplitTags(r.FormValue("tags")),
	}
}

func resourceUpdateFromForm(r *http.Request) model.ResourceUpdate {
	u := model.ResourceUpdate{
		Title:        optionalField(r, "title"),
		Description:  optionalField(r, "description"),
		Faculty:      optionalField(r, "faculty"),
		Department:   optionalField(r, "department"),
		Course:       optionalField(r, "course"),
		Level:        optionalField(r, "level"),
		Semester:     optionalField(r, "semester"),
		AcademicYear: optionalField(r, "academicYear"),
	}
	if v := optionalField(r, "type"); v != nil {
		kind := model.ResourceType(*v)
		u.Type = &kind
	}
	if v := optionalField(r, "tags"); v != nil {
		tags := model.SplitTags(*v)
		u.Tags = &tags
	}
	return u
}
