package operations

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"studyhub/internal/authz"
	"studyhub/internal/blob"
	"studyhub/internal/config"
	"studyhub/internal/crypto"
	"studyhub/internal/db"
	"studyhub/internal/mail"
	"studyhub/internal/model"
	"studyhub/internal/pagination"
	"studyhub/internal/tasks"
)

type harness struct {
	svc   *Service
	store *db.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, url)
	if err != nil {
		t.Skipf("db unavailable: %v", err)
	}
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool, "up"))

	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	blobs, err := blob.NewStore(t.TempDir(), cfg.Uploads.MaxBytes)
	require.NoError(t, err)
	gate, err := authz.NewGate()
	require.NoError(t, err)

	store := db.NewStore(pool)
	return &harness{
		svc:   NewService(cfg, store, gate, tasks.Inline{}, blobs, mail.LogSender{}),
		store: store,
	}
}

func (h *harness) account(t *testing.T, role model.Role) authz.Actor {
	t.Helper()
	hash, err := crypto.HashPassword("secret1")
	require.NoError(t, err)
	now := time.Now().UTC()
	id := uuid.NewString()
	require.NoError(t, h.store.CreateAccount(context.Background(), model.Account{
		ID:             id,
		Name:           "User " + id[:8],
		Email:          id + "@example.test",
		PasswordHash:   hash,
		Role:           role,
		Faculty:        "Science",
		Department:     "Physics",
		ProfilePicture: model.DefaultProfilePicture,
		CreatedAt:      now,
		UpdatedAt:      now,
	}))
	return authz.Actor{ID: id, Role: role}
}

func pdfUpload() *Upload {
	body := []byte("%PDF-1.4\n% test document\n")
	return &Upload{
		Name: "notes.pdf",
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(body)), nil },
	}
}

func resourceInput(title string) model.ResourceInput {
	return model.ResourceInput{
		Title:       title,
		Description: "Week one",
		Type:        model.TypeLectureNote,
		Faculty:     "Science",
		Department:  "Physics",
		Course:      "PHY101",
		Level:       "100",
	}
}

func (h *harness) approvedResource(t *testing.T, owner, admin authz.Actor) model.Resource {
	t.Helper()
	ctx := context.Background()
	r, err := h.svc.CreateResource(ctx, owner, resourceInput("Mechanics"), pdfUpload())
	require.NoError(t, err)
	r, err = h.svc.ApproveResource(ctx, admin, r.ID)
	require.NoError(t, err)
	return r
}

func (h *harness) mailbox(t *testing.T, actor authz.Actor) []model.Notification {
	t.Helper()
	box, err := h.svc.ListNotifications(context.Background(), actor, pagination.Request{Page: 1, Limit: 100})
	require.NoError(t, err)
	return box.Items
}

func TestUploadApproveNotifiesUploader(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lecturer := h.account(t, model.RoleLecturer)
	admin := h.account(t, model.RoleAdmin)

	r, err := h.svc.CreateResource(ctx, lecturer, resourceInput("Thermodynamics"), pdfUpload())
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, r.Status)
	require.Equal(t, "pdf", r.FileType)

	account, err := h.svc.GetAccount(ctx, lecturer.ID)
	require.NoError(t, err)
	require.Equal(t, UploadPoints, account.ContributionPoints)

	var pending bool
	for _, n := range h.mailbox(t, admin) {
		if n.Target != nil && n.Target.ID == r.ID && n.Type == model.NotifySystem {
			pending = true
		}
	}
	require.True(t, pending, "admin should be told about the pending upload")

	approved, err := h.svc.ApproveResource(ctx, admin, r.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	require.Equal(t, admin.ID, *approved.ApprovedBy)

	box := h.mailbox(t, lecturer)
	require.Len(t, box, 1)
	require.Equal(t, model.NotifyResourceApproved, box[0].Type)
	require.Equal(t, `Your resource "Thermodynamics" has been approved`, box[0].Message)
	require.Equal(t, model.TargetResource, box[0].Target.Kind)
}

func TestStudentCannotUpload(t *testing.T) {
	h := newHarness(t)
	student := h.account(t, model.RoleStudent)
	_, err := h.svc.CreateResource(context.Background(), student, resourceInput("Notes"), pdfUpload())
	require.Equal(t, KindForbidden, KindOf(err))
}

func TestRatingKeepsExactMean(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.account(t, model.RolePublisher)
	admin := h.account(t, model.RoleAdmin)
	a := h.account(t, model.RoleStudent)
	b := h.account(t, model.RoleStudent)

	pending, err := h.svc.CreateResource(ctx, owner, resourceInput("Draft"), pdfUpload())
	require.NoError(t, err)
	_, err = h.svc.RateResource(ctx, a, pending.ID, model.RatingInput{Rating: 4})
	require.Equal(t, KindForbidden, KindOf(err))

	r := h.approvedResource(t, owner, admin)
	_, err = h.svc.RateResource(ctx, a, r.ID, model.RatingInput{Rating: 6})
	require.Equal(t, KindValidation, KindOf(err))

	_, err = h.svc.RateResource(ctx, a, r.ID, model.RatingInput{Rating: 5})
	require.NoError(t, err)
	r, err = h.svc.RateResource(ctx, b, r.ID, model.RatingInput{Rating: 2})
	require.NoError(t, err)
	require.InDelta(t, 3.5, r.AverageRating, 1e-9)

	r, err = h.svc.RateResource(ctx, a, r.ID, model.RatingInput{Rating: 1, Comment: "changed my mind"})
	require.NoError(t, err)
	require.Len(t, r.Ratings, 2)
	require.InDelta(t, 1.5, r.AverageRating, 1e-9)

	stored, err := h.store.GetResource(ctx, r.ID)
	require.NoError(t, err)
	require.InDelta(t, 1.5, stored.AverageRating, 1e-9)
	require.Len(t, stored.Ratings, 2)
}

func TestStrangerCannotMutateResource(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.account(t, model.RoleLecturer)
	admin := h.account(t, model.RoleAdmin)
	stranger := h.account(t, model.RoleStudent)
	r := h.approvedResource(t, owner, admin)

	title := "Hijacked"
	_, err := h.svc.UpdateResource(ctx, stranger, r.ID, model.ResourceUpdate{Title: &title}, nil)
	require.Equal(t, KindForbidden, KindOf(err))
	require.Equal(t, KindForbidden, KindOf(h.svc.DeleteResource(ctx, stranger, r.ID)))

	stored, err := h.store.GetResource(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, r.Title, stored.Title)

	updated, err := h.svc.UpdateResource(ctx, admin, r.ID, model.ResourceUpdate{Title: &title}, nil)
	require.NoError(t, err)
	require.Equal(t, "Hijacked", updated.Title)
}

func TestDeleteResourceRemovesNotifications(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.account(t, model.RoleLecturer)
	admin := h.account(t, model.RoleAdmin)
	r := h.approvedResource(t, owner, admin)
	require.NotEmpty(t, h.mailbox(t, owner))

	require.NoError(t, h.svc.DeleteResource(ctx, owner, r.ID))
	_, err := h.svc.GetResource(ctx, owner, r.ID)
	require.Equal(t, KindNotFound, KindOf(err))
	require.Empty(t, h.mailbox(t, owner))
}

func TestPendingResourceVisibility(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.account(t, model.RoleLecturer)
	admin := h.account(t, model.RoleAdmin)
	stranger := h.account(t, model.RoleStudent)

	r, err := h.svc.CreateResource(ctx, owner, resourceInput("Hidden"), pdfUpload())
	require.NoError(t, err)

	_, err = h.svc.GetResource(ctx, stranger, r.ID)
	require.Equal(t, KindForbidden, KindOf(err))
	_, err = h.svc.GetResource(ctx, authz.Actor{}, r.ID)
	require.Equal(t, KindForbidden, KindOf(err))
	_, err = h.svc.GetResource(ctx, owner, r.ID)
	require.NoError(t, err)
	_, err = h.svc.GetResource(ctx, admin, r.ID)
	require.NoError(t, err)

	_, err = h.svc.DownloadResource(ctx, owner, r.ID)
	require.Equal(t, KindForbidden, KindOf(err))
}

func TestResourcesByUserPagination(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.account(t, model.RoleLecturer)
	admin := h.account(t, model.RoleAdmin)
	for i := 0; i < 3; i++ {
		h.approvedResource(t, owner, admin)
	}

	first, err := h.svc.ResourcesByUser(ctx, authz.Actor{}, owner.ID, pagination.Request{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.Equal(t, 3, first.Pagination.Total)
	require.NotNil(t, first.Pagination.Next)
	require.Nil(t, first.Pagination.Prev)

	second, err := h.svc.ResourcesByUser(ctx, authz.Actor{}, owner.ID, pagination.Request{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	require.Nil(t, second.Pagination.Next)
	require.NotNil(t, second.Pagination.Prev)
}

func TestToggleSave(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.account(t, model.RoleLecturer)
	admin := h.account(t, model.RoleAdmin)
	reader := h.account(t, model.RoleStudent)
	r := h.approvedResource(t, owner, admin)

	saved, err := h.svc.ToggleSave(ctx, reader, r.ID)
	require.NoError(t, err)
	require.True(t, saved)
	list, err := h.svc.SavedResources(ctx, reader, pagination.Request{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, r.ID, list.Items[0].ID)

	saved, err = h.svc.ToggleSave(ctx, reader, r.ID)
	require.NoError(t, err)
	require.False(t, saved)
	list, err = h.svc.SavedResources(ctx, reader, pagination.Request{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Empty(t, list.Items)
}

func newForum(t *testing.T, h *harness, creator authz.Actor) model.Forum {
	t.Helper()
	f, err := h.svc.CreateForum(context.Background(), creator, model.ForumInput{
		Title:       "Quantum questions",
		Description: "Ask anything",
		Category:    model.CategoryGeneral,
	})
	require.NoError(t, err)
	return f
}

func newPost(t *testing.T, h *harness, author authz.Actor, forumID string) model.Post {
	t.Helper()
	p, err := h.svc.CreatePost(context.Background(), author, forumID, model.PostInput{Content: "What is spin?"}, nil)
	require.NoError(t, err)
	return p
}

func TestLikesToggle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator := h.account(t, model.RoleStudent)
	a := h.account(t, model.RoleStudent)
	b := h.account(t, model.RoleStudent)
	f := newForum(t, h, creator)
	p := newPost(t, h, creator, f.ID)

	_, err := h.svc.ToggleLike(ctx, a, f.ID, p.ID)
	require.NoError(t, err)
	post, err := h.svc.ToggleLike(ctx, b, f.ID, p.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{a.ID, b.ID}, post.Likes)

	post, err = h.svc.ToggleLike(ctx, a, f.ID, p.ID)
	require.NoError(t, err)
	require.Equal(t, []string{b.ID}, post.Likes)

	likes := 0
	for _, n := range h.mailbox(t, creator) {
		if n.Type == model.NotifyPostLike {
			likes++
		}
	}
	require.Equal(t, 2, likes)
}

func TestReportOncePerAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator := h.account(t, model.RoleStudent)
	a := h.account(t, model.RoleStudent)
	b := h.account(t, model.RoleStudent)
	f := newForum(t, h, creator)
	p := newPost(t, h, creator, f.ID)

	require.NoError(t, h.svc.ReportPost(ctx, a, f.ID, p.ID, model.ReportInput{Reason: "spam"}))
	require.NoError(t, h.svc.ReportPost(ctx, b, f.ID, p.ID, model.ReportInput{Reason: "spam"}))
	err := h.svc.ReportPost(ctx, a, f.ID, p.ID, model.ReportInput{Reason: "again"})
	require.Equal(t, KindConflict, KindOf(err))

	stored, err := h.store.GetPost(ctx, f.ID, p.ID)
	require.NoError(t, err)
	require.Len(t, stored.Reports, 2)
}

func TestMarkAnswerKeepsOneAnswer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator := h.account(t, model.RoleStudent)
	author := h.account(t, model.RoleStudent)
	f := newForum(t, h, creator)
	first := newPost(t, h, author, f.ID)
	second := newPost(t, h, author, f.ID)

	_, err := h.svc.MarkAnswer(ctx, author, f.ID, first.ID)
	require.Equal(t, KindForbidden, KindOf(err))

	answers := func() []string {
		page, err := h.svc.ListPosts(ctx, f.ID, pagination.Request{Page: 1, Limit: 10})
		require.NoError(t, err)
		var ids []string
		for _, p := range page.Items {
			if p.IsAnswer {
				ids = append(ids, p.ID)
			}
		}
		return ids
	}

	_, err = h.svc.MarkAnswer(ctx, creator, f.ID, first.ID)
	require.NoError(t, err)
	require.Equal(t, []string{first.ID}, answers())

	_, err = h.svc.MarkAnswer(ctx, creator, f.ID, second.ID)
	require.NoError(t, err)
	require.Equal(t, []string{second.ID}, answers())

	post, err := h.svc.MarkAnswer(ctx, creator, f.ID, second.ID)
	require.NoError(t, err)
	require.False(t, post.IsAnswer)
	require.Empty(t, answers())
}

func TestDeleteForumCascadesPosts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator := h.account(t, model.RoleStudent)
	other := h.account(t, model.RoleStudent)
	f := newForum(t, h, creator)
	for i := 0; i < 3; i++ {
		newPost(t, h, other, f.ID)
	}

	forum, err := h.svc.GetForum(ctx, f.ID)
	require.NoError(t, err)
	require.Equal(t, 3, forum.PostCount)
	require.Contains(t, forum.Participants, other.ID)

	require.Equal(t, KindForbidden, KindOf(h.svc.DeleteForum(ctx, other, f.ID)))
	require.NoError(t, h.svc.DeleteForum(ctx, creator, f.ID))

	posts, err := h.store.ListPosts(ctx, f.ID, pagination.Request{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Empty(t, posts.Items)
	require.Zero(t, posts.Pagination.Total)
}

func TestPostAuthorization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator := h.account(t, model.RoleStudent)
	author := h.account(t, model.RoleStudent)
	stranger := h.account(t, model.RoleStudent)
	f := newForum(t, h, creator)
	p := newPost(t, h, author, f.ID)

	content := "edited"
	_, err := h.svc.UpdatePost(ctx, creator, f.ID, p.ID, model.PostUpdate{Content: &content})
	require.Equal(t, KindForbidden, KindOf(err))
	updated, err := h.svc.UpdatePost(ctx, author, f.ID, p.ID, model.PostUpdate{Content: &content})
	require.NoError(t, err)
	require.True(t, updated.IsEdited)

	require.Equal(t, KindForbidden, KindOf(h.svc.DeletePost(ctx, stranger, f.ID, p.ID)))
	require.NoError(t, h.svc.DeletePost(ctx, creator, f.ID, p.ID))
}

func TestPasswordResetFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	email := uuid.NewString() + "@example.test"
	session, err := h.svc.Register(ctx, model.RegisterInput{
		Name: "Ada", Email: email, Password: "secret1", Faculty: "Science", Department: "Maths",
	})
	require.NoError(t, err)
	require.Equal(t, model.RoleStudent, session.Account.Role)
	require.NotEmpty(t, session.Token)

	_, err = h.svc.Register(ctx, model.RegisterInput{
		Name: "Ada", Email: email, Password: "secret1", Faculty: "Science", Department: "Maths",
	})
	require.Equal(t, KindConflict, KindOf(err))

	require.NoError(t, h.svc.ForgotPassword(ctx, model.ForgotPasswordInput{Email: "nobody@example.test"}))

	// Plant a known token directly; the mailed one is never observable.
	token := "known-reset-token"
	hash := crypto.HashToken(token)
	expires := time.Now().UTC().Add(time.Minute)
	require.NoError(t, h.store.SetResetToken(ctx, session.Account.ID, &hash, &expires))

	_, err = h.svc.ResetPassword(ctx, "wrong", model.ResetPasswordInput{Password: "newsecret"})
	require.Equal(t, KindValidation, KindOf(err))
	_, err = h.svc.ResetPassword(ctx, token, model.ResetPasswordInput{Password: "newsecret"})
	require.NoError(t, err)

	_, err = h.svc.Login(ctx, model.LoginInput{Email: email, Password: "secret1"})
	require.Equal(t, KindUnauthenticated, KindOf(err))
	_, err = h.svc.Login(ctx, model.LoginInput{Email: email, Password: "newsecret"})
	require.NoError(t, err)

	_, err = h.svc.ResetPassword(ctx, token, model.ResetPasswordInput{Password: "another1"})
	require.Equal(t, KindValidation, KindOf(err))
}

type captureTasks struct {
	fns []tasks.Func
}

func (c *captureTasks) Submit(_ string, fn tasks.Func) {
	c.fns = append(c.fns, fn)
}

type failingSender struct {
	err error
}

func (f failingSender) Send(context.Context, mail.Message) error {
	return f.err
}

func TestForgotPasswordClearsTokenWhenMailFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	email := uuid.NewString() + "@example.test"
	_, err := h.svc.Register(ctx, model.RegisterInput{
		Name: "Grace", Email: email, Password: "secret1", Faculty: "Science", Department: "Maths",
	})
	require.NoError(t, err)

	sendErr := errors.New("smtp down")
	captured := &captureTasks{}
	h.svc.tasks = captured
	h.svc.mailer = failingSender{err: sendErr}

	require.NoError(t, h.svc.ForgotPassword(ctx, model.ForgotPasswordInput{Email: email}))
	require.Len(t, captured.fns, 1)
	account, err := h.store.GetAccountByEmail(ctx, email)
	require.NoError(t, err)
	require.NotNil(t, account.ResetTokenHash)

	err = captured.fns[0](ctx)
	require.ErrorIs(t, err, sendErr)
	account, err = h.store.GetAccountByEmail(ctx, email)
	require.NoError(t, err)
	require.Nil(t, account.ResetTokenHash)

	// A failure to clear the token is reported alongside the mail error.
	require.NoError(t, h.svc.ForgotPassword(ctx, model.ForgotPasswordInput{Email: email}))
	require.Len(t, captured.fns, 2)
	canceled, cancel := context.WithCancel(ctx)
	cancel()
	err = captured.fns[1](canceled)
	require.ErrorIs(t, err, sendErr)
	require.ErrorContains(t, err, "clear reset token")
}

func TestUpdateProfileRejectsBlankName(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := h.account(t, model.RoleStudent)

	blank := "   "
	_, err := h.svc.UpdateProfile(ctx, actor, model.ProfileUpdate{Name: &blank})
	require.Equal(t, KindValidation, KindOf(err))

	padded := "  Ada Lovelace "
	account, err := h.svc.UpdateProfile(ctx, actor, model.ProfileUpdate{Name: &padded})
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", account.Name)

	stored, err := h.svc.GetAccount(ctx, actor.ID)
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", stored.Name)
}

func TestMarkNotificationReadOnlyByRecipient(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.account(t, model.RoleLecturer)
	admin := h.account(t, model.RoleAdmin)
	h.approvedResource(t, owner, admin)

	box, err := h.svc.ListNotifications(ctx, owner, pagination.Request{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, box.Unread)
	id := box.Items[0].ID

	_, err = h.svc.MarkNotificationRead(ctx, admin, id)
	require.Equal(t, KindForbidden, KindOf(err))
	n, err := h.svc.MarkNotificationRead(ctx, owner, id)
	require.NoError(t, err)
	require.True(t, n.Read)

	box, err = h.svc.ListNotifications(ctx, owner, pagination.Request{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Zero(t, box.Unread)
}

func TestAdminOnlyStatistics(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.account(t, model.RoleStudent)
	admin := h.account(t, model.RoleAdmin)

	_, err := h.svc.Dashboard(ctx, student)
	require.Equal(t, KindForbidden, KindOf(err))

	d, err := h.svc.Dashboard(ctx, admin)
	require.NoError(t, err)
	require.GreaterOrEqual(t, d.Users, 2)

	users, err := h.svc.UserStatistics(ctx, admin)
	require.NoError(t, err)
	require.GreaterOrEqual(t, users.Total, 2)
	_, err = h.svc.ResourceStatistics(ctx, admin)
	require.NoError(t, err)
	_, err = h.svc.ForumStatistics(ctx, admin)
	require.NoError(t, err)

	promoted, err := h.svc.UpdateRole(ctx, admin, student.ID, model.RoleUpdate{Role: model.RolePublisher})
	require.NoError(t, err)
	require.Equal(t, model.RolePublisher, promoted.Role)
	_, err = h.svc.UpdateRole(ctx, student, admin.ID, model.RoleUpdate{Role: model.RoleStudent})
	require.Equal(t, KindForbidden, KindOf(err))
}
