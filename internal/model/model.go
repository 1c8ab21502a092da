package model

import (
	"errors"
	"strings"
	"time"
)

type Role string

const (
	RoleStudent   Role = "student"
	RoleLecturer  Role = "lecturer"
	RolePublisher Role = "publisher"
	RoleAdmin     Role = "admin"
	RoleAlumni    Role = "alumni"
)

var Roles = []Role{RoleStudent, RoleLecturer, RolePublisher, RoleAdmin, RoleAlumni}

func (r Role) Valid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// DefaultProfilePicture is assigned at registration and never removed from storage.
const DefaultProfilePicture = "default-profile.jpg"

type Account struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	PasswordHash       string     `json:"-"`
	Role               Role       `json:"role"`
	Faculty            string     `json:"faculty"`
	Department         string     `json:"department"`
	YearOfStudy        *int       `json:"yearOfStudy,omitempty"`
	Bio                string     `json:"bio"`
	ProfilePicture     string     `json:"profilePicture"`
	ContributionPoints int        `json:"contributionPoints"`
	SavedResources     []string   `json:"savedResources"`
	ResetTokenHash     *string    `json:"-"`
	ResetExpiresAt     *time.Time `json:"-"`
	CreatedAt          time.Time  `json:"joinDate"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// ToggleSaved adds or removes a resource from the saved set and reports whether it is now saved.
func (a *Account) ToggleSaved(resourceID string) bool {
	for i, id := range a.SavedResources {
		if id == resourceID {
			a.SavedResources = append(a.SavedResources[:i:i], a.SavedResources[i+1:]...)
			return false
		}
	}
	a.SavedResources = append(a.SavedResources, resourceID)
	return true
}

// AccountRef is the public projection of an account embedded in other entities.
type AccountRef struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Role           Role   `json:"role"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

type ResourceStatus string

const (
	StatusPending  ResourceStatus = "pending"
	StatusApproved ResourceStatus = "approved"
	StatusRejected ResourceStatus = "rejected"
)

type ResourceType string

const (
	TypeLectureNote   ResourceType = "lecture_note"
	TypePastQuestion  ResourceType = "past_question"
	TypeEBook         ResourceType = "e_book"
	TypeTutorialVideo ResourceType = "tutorial_video"
	TypeArticle       ResourceType = "article"
	TypeOther         ResourceType = "other"
)

var (
	ResourceTypes = []ResourceType{TypeLectureNote, TypePastQuestion, TypeEBook, TypeTutorialVideo, TypeArticle, TypeOther}
	Levels        = []string{"100", "200", "300", "400", "500", "600", "700", "all"}
	Semesters     = []string{"1", "2", "both"}
	FileTypes     = []string{"pdf", "doc", "ppt", "xls", "jpg", "png", "mp4", "mp3", "zip", "other"}
)

type Rating struct {
	AccountID string    `json:"user"`
	Value     int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"date"`
}

type Resource struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Type            ResourceType   `json:"type"`
	Faculty         string         `json:"faculty"`
	Department      string         `json:"department"`
	Course          string         `json:"course"`
	Level           string         `json:"level"`
	Semester        string         `json:"semester"`
	AcademicYear    string         `json:"academicYear"`
	Tags            []string       `json:"tags"`
	FilePath        string         `json:"-"`
	FileType        string         `json:"fileType"`
	FileSize        int64          `json:"fileSize"`
	UploadedBy      string         `json:"uploadedBy"`
	Uploader        *AccountRef    `json:"uploader,omitempty"`
	Status          ResourceStatus `json:"status"`
	ApprovedBy      *string        `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time     `json:"approvedAt,omitempty"`
	RejectionReason string         `json:"rejectionReason,omitempty"`
	Views           int            `json:"views"`
	Downloads       int            `json:"downloads"`
	Ratings         []Rating       `json:"ratings"`
	AverageRating   float64        `json:"averageRating"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func (r Resource) Approved() bool {
	return r.Status == StatusApproved
}

// ApplyRating replaces the rater's existing tuple or appends a new one, then
// recomputes AverageRating over every tuple.
func (r *Resource) ApplyRating(rating Rating) {
	replaced := false
	for i := range r.Ratings {
		if r.Ratings[i].AccountID == rating.AccountID {
			r.Ratings[i].Value = rating.Value
			r.Ratings[i].Comment = rating.Comment
			r.Ratings[i].CreatedAt = rating.CreatedAt
			replaced = true
			break
		}
	}
	if !replaced {
		r.Ratings = append(r.Ratings, rating)
	}
	r.AverageRating = AverageRating(r.Ratings)
}

func AverageRating(ratings []Rating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, rating := range ratings {
		sum += rating.Value
	}
	return float64(sum) / float64(len(ratings))
}

// DownloadName is the attachment filename served for the stored blob.
func (r Resource) DownloadName() string {
	name := strings.TrimSpace(r.Title)
	if name == "" {
		name = "resource"
	}
	if r.FileType == "" {
		return name
	}
	return name + "." + r.FileType
}

type ForumCategory string

const (
	CategoryGeneral            ForumCategory = "general"
	CategoryCourseSpecific     ForumCategory = "course_specific"
	CategoryFacultySpecific    ForumCategory = "faculty_specific"
	CategoryDepartmentSpecific ForumCategory = "department_specific"
	CategoryTechnical          ForumCategory = "technical"
	CategoryOther              ForumCategory = "other"
)

type Forum struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Category     ForumCategory `json:"category"`
	Faculty      string        `json:"faculty,omitempty"`
	Department   string        `json:"department,omitempty"`
	Course       string        `json:"course,omitempty"`
	CreatedBy    string        `json:"createdBy"`
	Creator      *AccountRef   `json:"creator,omitempty"`
	Participants []string      `json:"participants"`
	IsActive     bool          `json:"isActive"`
	IsPinned     bool          `json:"isPinned"`
	Views        int           `json:"views"`
	PostCount    int           `json:"postCount"`
	LastActivity time.Time     `json:"lastActivity"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

func (f *Forum) AddParticipant(accountID string) {
	for _, id := range f.Participants {
		if id == accountID {
			return
		}
	}
	f.Participants = append(f.Participants, accountID)
}

type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	Path string `json:"path"`
}

type Report struct {
	AccountID string    `json:"user"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"date"`
}

var ErrAlreadyReported = errors.New("post already reported by this account")

type Post struct {
	ID          string       `json:"id"`
	ForumID     string       `json:"forum"`
	AuthorID    string       `json:"author"`
	Author      *AccountRef  `json:"authorInfo,omitempty"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	IsAnswer    bool         `json:"isAnswer"`
	IsEdited    bool         `json:"isEdited"`
	Likes       []string     `json:"likes"`
	Reports     []Report     `json:"-"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// ToggleLike flips the account's like and reports whether the post is now liked by it.
func (p *Post) ToggleLike(accountID string) bool {
	for i, id := range p.Likes {
		if id == accountID {
			p.Likes = append(p.Likes[:i:i], p.Likes[i+1:]...)
			return false
		}
	}
	p.Likes = append(p.Likes, accountID)
	return true
}

// AddReport appends the report unless the same account already reported the post.
func (p *Post) AddReport(report Report) error {
	for _, existing := range p.Reports {
		if existing.AccountID == report.AccountID {
			return ErrAlreadyReported
		}
	}
	p.Reports = append(p.Reports, report)
	return nil
}
