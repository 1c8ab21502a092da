package operations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"studyhub/internal/auth"
	"studyhub/internal/authz"
	"studyhub/internal/blob"
	"studyhub/internal/crypto"
	"studyhub/internal/db"
	"studyhub/internal/mail"
	"studyhub/internal/model"
	"studyhub/internal/pagination"
)

type Session struct {
	Token   string        `json:"token"`
	Account model.Account `json:"user"`
}

func (s *Service) issueSession(a model.Account) (Session, error) {
	token, err := auth.NewAccessToken(s.cfg.Auth.JWTSecret, s.cfg.Auth.JWTIssuer, s.cfg.Auth.AccessTokenTTL, auth.Claims{
		UserID: a.ID,
		Role:   string(a.Role),
		Name:   a.Name,
	})
	if err != nil {
		return Session{}, Internal(err)
	}
	return Session{Token: token, Account: a}, nil
}

func (s *Service) Register(ctx context.Context, in model.RegisterInput) (Session, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := validate(in); err != nil {
		return Session{}, err
	}
	if in.Role == "" {
		in.Role = model.RoleStudent
	}

	exists, err := s.store.EmailExists(ctx, in.Email)
	if err != nil {
		return Session{}, Internal(err)
	}
	if exists {
		return Session{}, Conflict("Email is already registered")
	}

	hash, err := crypto.HashPassword(in.Password)
	if err != nil {
		return Session{}, Internal(err)
	}
	now := s.now()
	account := model.Account{
		ID:             uuid.NewString(),
		Name:           in.Name,
		Email:          in.Email,
		PasswordHash:   hash,
		Role:           in.Role,
		Faculty:        in.Faculty,
		Department:     in.Department,
		YearOfStudy:    in.YearOfStudy,
		ProfilePicture: model.DefaultProfilePicture,
		SavedResources: []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		if isUniqueViolation(err) {
			return Session{}, Conflict("Email is already registered")
		}
		return Session{}, Internal(err)
	}
	return s.issueSession(account)
}

func (s *Service) Login(ctx context.Context, in model.LoginInput) (Session, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if err := validate(in); err != nil {
		return Session{}, err
	}
	account, err := s.store.GetAccountByEmail(ctx, in.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, Unauthenticated("Invalid credentials")
	}
	if err != nil {
		return Session{}, Internal(err)
	}
	if err := crypto.CheckPassword(account.PasswordHash, in.Password); err != nil {
		return Session{}, Unauthenticated("Invalid credentials")
	}
	return s.issueSession(account)
}

func (s *Service) Me(ctx context.Context, actor authz.Actor) (model.Account, error) {
	return s.GetAccount(ctx, actor.ID)
}

func (s *Service) GetAccount(ctx context.Context, id string) (model.Account, error) {
	account, err := s.store.GetAccountByID(ctx, id)
	if err != nil {
		return model.Account{}, lookup(err, "User")
	}
	return account, nil
}

// ForgotPassword stores a hashed reset token and mails the raw one. The result does not
// reveal whether the address belongs to an account.
func (s *Service) ForgotPassword(ctx context.Context, in model.ForgotPasswordInput) error {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if err := validate(in); err != nil {
		return err
	}
	account, err := s.store.GetAccountByEmail(ctx, in.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return Internal(err)
	}

	token, err := crypto.NewResetToken()
	if err != nil {
		return Internal(err)
	}
	hash := crypto.HashToken(token)
	expires := s.now().Add(s.cfg.Auth.ResetTokenTTL)
	if err := s.store.SetResetToken(ctx, account.ID, &hash, &expires); err != nil {
		return Internal(err)
	}

	link := strings.TrimRight(s.cfg.Mail.PublicBase, "/") + "/api/auth/reset-password/" + token
	msg := mail.PasswordReset(account.Email, link, s.cfg.Auth.ResetTokenTTL)
	accountID := account.ID
	s.tasks.Submit("mail:password-reset", func(ctx context.Context) error {
		if err := s.mailer.Send(ctx, msg); err != nil {
			// The token is cleared when the mail cannot be delivered.
			if clearErr := s.store.SetResetToken(ctx, accountID, nil, nil); clearErr != nil {
				return errors.Join(err, fmt.Errorf("clear reset token: %w", clearErr))
			}
			return err
		}
		return nil
	})
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token string, in model.ResetPasswordInput) (Session, error) {
	if err := validate(in); err != nil {
		return Session{}, err
	}
	if strings.TrimSpace(token) == "" {
		return Session{}, Validation("Invalid token")
	}
	now := s.now()
	account, err := s.store.GetAccountByResetToken(ctx, crypto.HashToken(token), now)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, Validation("Invalid token")
	}
	if err != nil {
		return Session{}, Internal(err)
	}
	hash, err := crypto.HashPassword(in.Password)
	if err != nil {
		return Session{}, Internal(err)
	}
	if err := s.store.UpdatePassword(ctx, account.ID, hash, now); err != nil {
		return Session{}, Internal(err)
	}
	account.PasswordHash = hash
	account.ResetTokenHash, account.ResetExpiresAt = nil, nil
	return s.issueSession(account)
}

func (s *Service) ChangePassword(ctx context.Context, actor authz.Actor, in model.ChangePasswordInput) error {
	if err := validate(in); err != nil {
		return err
	}
	account, err := s.store.GetAccountByID(ctx, actor.ID)
	if err != nil {
		return lookup(err, "User")
	}
	if err := crypto.CheckPassword(account.PasswordHash, in.CurrentPassword); err != nil {
		return Unauthenticated("Current password is incorrect")
	}
	hash, err := crypto.HashPassword(in.NewPassword)
	if err != nil {
		return Internal(err)
	}
	return wrap(s.store.UpdatePassword(ctx, account.ID, hash, s.now()))
}

func (s *Service) UpdateProfile(ctx context.Context, actor authz.Actor, in model.ProfileUpdate) (model.Account, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if err := validate(in); err != nil {
		return model.Account{}, err
	}
	account, err := s.store.GetAccountByID(ctx, actor.ID)
	if err != nil {
		return model.Account{}, lookup(err, "User")
	}
	in.Apply(&account)
	account.UpdatedAt = s.now()
	if err := s.store.UpdateProfile(ctx, account); err != nil {
		return model.Account{}, Internal(err)
	}
	return account, nil
}

// UpdateProfilePicture stores an image and points the profile at it. The previous picture
// is removed unless it is the shared default.
func (s *Service) UpdateProfilePicture(ctx context.Context, actor authz.Actor, up Upload) (model.Account, error) {
	account, err := s.store.GetAccountByID(ctx, actor.ID)
	if err != nil {
		return model.Account{}, lookup(err, "User")
	}
	stored, err := s.saveUpload(blob.KindProfile, up)
	if err != nil {
		return model.Account{}, err
	}
	previous := account.ProfilePicture
	account.ProfilePicture = stored.Path
	account.UpdatedAt = s.now()
	if err := s.store.UpdateProfile(ctx, account); err != nil {
		s.discardBlob(ctx, stored.Path)
		return model.Account{}, Internal(err)
	}
	if previous != model.DefaultProfilePicture {
		s.removeBlobs(previous)
	}
	return account, nil
}

func (s *Service) UpdateRole(ctx context.Context, actor authz.Actor, accountID string, in model.RoleUpdate) (model.Account, error) {
	if err := validate(in); err != nil {
		return model.Account{}, err
	}
	if err := s.authorize(actor, authz.AccountEntity(model.Account{ID: accountID}), authz.ActionChangeRole, "Not authorized to change user roles"); err != nil {
		return model.Account{}, err
	}
	var account model.Account
	err := s.store.WithTx(ctx, func(q *db.Queries) error {
		var err error
		account, err = q.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return lookup(err, "User")
		}
		account.Role = in.Role
		account.UpdatedAt = s.now()
		return q.UpdateRole(ctx, account.ID, account.Role, account.UpdatedAt)
	})
	if err != nil {
		return model.Account{}, wrap(err)
	}
	return account, nil
}

func (s *Service) ListUsers(ctx context.Context, actor authz.Actor, f model.AccountFilter, page pagination.Request) (pagination.Page[model.Account], error) {
	if err := s.requireAdmin(actor); err != nil {
		return pagination.Page[model.Account]{}, err
	}
	result, err := s.store.ListAccounts(ctx, f, page)
	if err != nil {
		return result, Internal(err)
	}
	return result, nil
}
