// Package operations implements every use case of the platform on top of the store. Each
// exported method checks authorization before it writes and returns *Error on failure.
package operations

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"studyhub/internal/authz"
	"studyhub/internal/blob"
	"studyhub/internal/config"
	"studyhub/internal/db"
	"studyhub/internal/logging"
	"studyhub/internal/mail"
	"studyhub/internal/model"
	"studyhub/internal/tasks"
)

// UploadPoints is credited to an account for every resource it uploads.
const UploadPoints = 5

type Service struct {
	cfg    config.Config
	store  *db.Store
	gate   *authz.Gate
	tasks  tasks.Submitter
	blobs  *blob.Store
	mailer mail.Sender
	now    func() time.Time
}

func NewService(cfg config.Config, store *db.Store, gate *authz.Gate, runner tasks.Submitter, blobs *blob.Store, mailer mail.Sender) *Service {
	return &Service{
		cfg:    cfg,
		store:  store,
		gate:   gate,
		tasks:  runner,
		blobs:  blobs,
		mailer: mailer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) authorize(actor authz.Actor, entity authz.Entity, action authz.Action, message string) error {
	if actor.ID == "" {
		return Unauthenticated("Not authorized to access this route")
	}
	if !s.gate.CanMutate(actor, entity, action) {
		return Forbidden(message)
	}
	return nil
}

// notify appends one notification to recipient's mailbox off the request path. The actor
// never notifies itself.
func (s *Service) notify(actorID, recipientID string, kind model.NotificationType, message string, target *model.Target) {
	if recipientID == "" || recipientID == actorID {
		return
	}
	n := model.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Type:        kind,
		Message:     message,
		Target:      target,
		CreatedAt:   s.now(),
	}
	s.tasks.Submit("notify:"+string(kind), func(ctx context.Context) error {
		return s.store.CreateNotification(ctx, n)
	})
}

// notifyAdmins resolves the admin set when the task runs, so each event sees the admins of
// that moment.
func (s *Service) notifyAdmins(actorID string, kind model.NotificationType, message string, target *model.Target) {
	createdAt := s.now()
	s.tasks.Submit("notify-admins:"+string(kind), func(ctx context.Context) error {
		admins, err := s.store.ListAdminIDs(ctx)
		if err != nil {
			return err
		}
		var errs []error
		for _, adminID := range admins {
			if adminID == actorID {
				continue
			}
			err := s.store.CreateNotification(ctx, model.Notification{
				ID:          uuid.NewString(),
				RecipientID: adminID,
				Type:        kind,
				Message:     message,
				Target:      target,
				CreatedAt:   createdAt,
			})
			if err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// removeBlobs deletes stored files in the background; a failure is only logged.
func (s *Service) removeBlobs(paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		path := path
		s.tasks.Submit("remove-file", func(context.Context) error {
			return s.blobs.Remove(path)
		})
	}
}

// discardBlob removes a file saved during a request that then failed.
func (s *Service) discardBlob(ctx context.Context, path string) {
	if err := s.blobs.Remove(path); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("discard uploaded file")
	}
}

// Upload is one file received from a client.
type Upload struct {
	Name string
	Open func() (io.ReadCloser, error)
}

func (s *Service) saveUpload(kind blob.Kind, up Upload) (blob.Stored, error) {
	f, err := up.Open()
	if err != nil {
		return blob.Stored{}, Storage("Could not read uploaded file", err)
	}
	defer f.Close()

	stored, err := s.blobs.Save(kind, up.Name, f)
	if err != nil {
		return blob.Stored{}, uploadError(err)
	}
	return stored, nil
}

func uploadError(err error) error {
	var tooLarge *blob.TooLargeError
	switch {
	case errors.Is(err, blob.ErrUnsupportedType):
		return &Error{Kind: KindValidation, Message: "File type not supported. Allowed types: images, documents, presentations, spreadsheets, PDF, ZIP, audio and video files.", Err: err}
	case errors.Is(err, blob.ErrNotImage):
		return &Error{Kind: KindValidation, Message: "Please upload an image file", Err: err}
	case errors.As(err, &tooLarge):
		return &Error{Kind: KindValidation, Message: "File size exceeds limit of " + strconv.FormatInt(tooLarge.Limit>>20, 10) + "MB", Err: err}
	default:
		return Storage("File upload failed", err)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
