// Package blob stores uploaded files on the local filesystem. Stored files are addressed by a
// path relative to the store root; nothing outside the root can be opened or removed.
package blob

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

type Kind string

const (
	KindResource   Kind = "resources"
	KindProfile    Kind = "profiles"
	KindAttachment Kind = "attachments"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrNotImage        = errors.New("file is not an image")
	ErrInvalidPath     = errors.New("invalid blob path")
)

// TooLargeError reports an upload over the configured size cap.
type TooLargeError struct {
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("file exceeds the %dMB limit", e.Limit>>20)
}

var documentTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"video/mp4",
	"audio/mpeg",
	"application/zip",
}

var imageTypes = []string{"image/jpeg", "image/png", "image/gif"}

// sniffLen is how much of the upload mimetype inspects.
const sniffLen = 3072

type Stored struct {
	Path string
	Name string
	Ext  string
	MIME string
	Size int64
}

type Store struct {
	root     string
	maxBytes int64
}

func NewStore(root string, maxBytes int64) (*Store, error) {
	for _, kind := range []Kind{KindResource, KindProfile, KindAttachment} {
		if err := os.MkdirAll(filepath.Join(root, string(kind)), 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
	}
	return &Store{root: root, maxBytes: maxBytes}, nil
}

func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// Save sniffs the content, rejects types outside the allow-list for kind, and writes it
// under a random name. A partially written file is removed on any error.
func (s *Store) Save(kind Kind, name string, r io.Reader) (Stored, error) {
	header := make([]byte, sniffLen)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Stored{}, err
	}
	header = header[:n]

	detected := mimetype.Detect(header)
	allowed := documentTypes
	rejection := ErrUnsupportedType
	if kind == KindProfile {
		allowed, rejection = imageTypes, ErrNotImage
	}
	if !isAllowed(detected, allowed) {
		return Stored{}, rejection
	}

	ext := Extension(name)
	if ext == "" {
		ext = strings.TrimPrefix(detected.Extension(), ".")
	}
	filename := uuid.NewString()
	if ext != "" {
		filename += "." + ext
	}
	rel := filepath.ToSlash(filepath.Join(string(kind), filename))

	f, err := os.OpenFile(filepath.Join(s.root, rel), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Stored{}, err
	}
	limited := io.LimitReader(io.MultiReader(bytes.NewReader(header), r), s.maxBytes+1)
	size, err := io.Copy(f, limited)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && size > s.maxBytes {
		err = &TooLargeError{Limit: s.maxBytes}
	}
	if err != nil {
		_ = os.Remove(filepath.Join(s.root, rel))
		return Stored{}, err
	}

	return Stored{
		Path: rel,
		Name: filepath.Base(name),
		Ext:  ext,
		MIME: detected.String(),
		Size: size,
	}, nil
}

func isAllowed(detected *mimetype.MIME, allowed []string) bool {
	for m := detected; m != nil; m = m.Parent() {
		for _, candidate := range allowed {
			if m.Is(candidate) {
				return true
			}
		}
	}
	return false
}

func (s *Store) Open(path string) (*os.File, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// Remove deletes the blob. A blob that is already gone is not an error.
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.root, clean), nil
}

// Extension is the lower-cased extension of a client filename without the dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
