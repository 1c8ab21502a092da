package model

import (
	"fmt"
	"time"
)

type NotificationType string

const (
	NotifyResourceApproved NotificationType = "resource_approved"
	NotifyResourceRejected NotificationType = "resource_rejected"
	NotifyResourceRated    NotificationType = "resource_rated"
	NotifyResourceComment  NotificationType = "resource_comment"
	NotifyNewPost          NotificationType = "new_post"
	NotifyNewForumPost     NotificationType = "new_forum_post"
	NotifyForumReply       NotificationType = "forum_reply"
	NotifyPostLike         NotificationType = "post_like"
	NotifyPostReport       NotificationType = "post_report"
	NotifyPostMarkedAnswer NotificationType = "post_marked_answer"
	NotifySystem           NotificationType = "system"
)

// TargetKind closes the set of entities a notification can point back to.
type TargetKind string

const (
	TargetResource TargetKind = "Resource"
	TargetForum    TargetKind = "Forum"
	TargetPost     TargetKind = "Post"
	TargetAccount  TargetKind = "User"
)

func (k TargetKind) Valid() bool {
	switch k {
	case TargetResource, TargetForum, TargetPost, TargetAccount:
		return true
	}
	return false
}

type Target struct {
	Kind TargetKind `json:"model"`
	ID   string     `json:"id"`
}

func ResourceTarget(id string) *Target { return &Target{Kind: TargetResource, ID: id} }
func ForumTarget(id string) *Target    { return &Target{Kind: TargetForum, ID: id} }
func PostTarget(id string) *Target     { return &Target{Kind: TargetPost, ID: id} }
func AccountTarget(id string) *Target  { return &Target{Kind: TargetAccount, ID: id} }

type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipient"`
	Type        NotificationType `json:"type"`
	Message     string           `json:"message"`
	Target      *Target          `json:"relatedTo,omitempty"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"createdAt"`
}

func UploadPendingMessage(title, uploader string) string {
	return fmt.Sprintf("New resource %q uploaded by %s is waiting for approval", title, uploader)
}

func ReviewMessage(title string, approved bool, reason string) string {
	if approved {
		return fmt.Sprintf("Your resource %q has been approved", title)
	}
	if reason != "" {
		return fmt.Sprintf("Your resource %q has been rejected: %s", title, reason)
	}
	return fmt.Sprintf("Your resource %q has been rejected", title)
}

func RatedMessage(title string) string {
	return fmt.Sprintf("Your resource %q received a new rating", title)
}

func NewPostMessage(author, forum string) string {
	return fmt.Sprintf("%s posted in your forum %q", author, forum)
}

func LikeMessage(liker, forum string) string {
	return fmt.Sprintf("%s liked your post in %q", liker, forum)
}

func ReportMessage(forum string) string {
	return fmt.Sprintf("A post in %q has been reported", forum)
}

func AnswerMessage(forum string) string {
	return fmt.Sprintf("Your post in %q was marked as the answer", forum)
}
