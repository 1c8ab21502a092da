package model

import "strings"

type RegisterInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6,max=72"`
	Role        Role   `json:"role" validate:"omitempty,oneof=student lecturer alumni"`
	Faculty     string `json:"faculty" validate:"required"`
	Department  string `json:"department" validate:"required"`
	YearOfStudy *int   `json:"yearOfStudy" validate:"omitempty,min=1,max=7"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ForgotPasswordInput struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordInput struct {
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=72"`
}

// ProfileUpdate leaves nil fields untouched.
type ProfileUpdate struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Faculty     *string `json:"faculty" validate:"omitempty,min=1"`
	Department  *string `json:"department" validate:"omitempty,min=1"`
	YearOfStudy *int    `json:"yearOfStudy" validate:"omitempty,min=1,max=7"`
	Bio         *string `json:"bio" validate:"omitempty,max=500"`
}

func (u ProfileUpdate) Apply(a *Account) {
	if u.Name != nil {
		a.Name = strings.TrimSpace(*u.Name)
	}
	if u.Faculty != nil {
		a.Faculty = *u.Faculty
	}
	if u.Department != nil {
		a.Department = *u.Department
	}
	if u.YearOfStudy != nil {
		year := *u.YearOfStudy
		a.YearOfStudy = &year
	}
	if u.Bio != nil {
		a.Bio = *u.Bio
	}
}

type RoleUpdate struct {
	Role Role `json:"role" validate:"required,oneof=student lecturer publisher admin alumni"`
}

type ResourceInput struct {
	Title        string       `json:"title" validate:"required,max=200"`
	Description  string       `json:"description" validate:"required,max=2000"`
	Type         ResourceType `json:"type" validate:"required,oneof=lecture_note past_question e_book tutorial_video article other"`
	Faculty      string       `json:"faculty" validate:"required"`
	Department   string       `json:"department" validate:"required"`
	Course       string       `json:"course" validate:"required"`
	Level        string       `json:"level" validate:"required,oneof=100 200 300 400 500 600 700 all"`
	Semester     string       `json:"semester" validate:"omitempty,oneof=1 2 both"`
	AcademicYear string       `json:"academicYear"`
	Tags         []string     `json:"tags" validate:"omitempty,max=20,dive,max=50"`
}

type ResourceUpdate struct {
	Title        *string       `json:"title" validate:"omitempty,min=1,max=200"`
	Description  *string       `json:"description" validate:"omitempty,min=1,max=2000"`
	Type         *ResourceType `json:"type" validate:"omitempty,oneof=lecture_note past_question e_book tutorial_video article other"`
	Faculty      *string       `json:"faculty" validate:"omitempty,min=1"`
	Department   *string       `json:"department" validate:"omitempty,min=1"`
	Course       *string       `json:"course" validate:"omitempty,min=1"`
	Level        *string       `json:"level" validate:"omitempty,oneof=100 200 300 400 500 600 700 all"`
	Semester     *string       `json:"semester" validate:"omitempty,oneof=1 2 both"`
	AcademicYear *string       `json:"academicYear"`
	Tags         *[]string     `json:"tags" validate:"omitempty,max=20,dive,max=50"`
}

func (u ResourceUpdate) Apply(r *Resource) {
	if u.Title != nil {
		r.Title = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		r.Description = *u.Description
	}
	if u.Type != nil {
		r.Type = *u.Type
	}
	if u.Faculty != nil {
		r.Faculty = *u.Faculty
	}
	if u.Department != nil {
		r.Department = *u.Department
	}
	if u.Course != nil {
		r.Course = *u.Course
	}
	if u.Level != nil {
		r.Level = *u.Level
	}
	if u.Semester != nil {
		r.Semester = *u.Semester
	}
	if u.AcademicYear != nil {
		r.AcademicYear = *u.AcademicYear
	}
	if u.Tags != nil {
		r.Tags = NormalizeTags(*u.Tags)
	}
}

type RatingInput struct {
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

type ReviewInput struct {
	Reason string `json:"reason" validate:"max=500"`
}

type ForumInput struct {
	Title       string        `json:"title" validate:"required,max=200"`
	Description string        `json:"description" validate:"required,max=2000"`
	Category    ForumCategory `json:"category" validate:"required,oneof=general course_specific faculty_specific department_specific technical other"`
	Faculty     string        `json:"faculty"`
	Department  string        `json:"department"`
	Course      string        `json:"course"`
}

type ForumUpdate struct {
	Title       *string        `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string        `json:"description" validate:"omitempty,min=1,max=2000"`
	Category    *ForumCategory `json:"category" validate:"omitempty,oneof=general course_specific faculty_specific department_specific technical other"`
	Faculty     *string        `json:"faculty"`
	Department  *string        `json:"department"`
	Course      *string        `json:"course"`
	IsActive    *bool          `json:"isActive"`
	IsPinned    *bool          `json:"isPinned"`
}

func (u ForumUpdate) Apply(f *Forum) {
	if u.Title != nil {
		f.Title = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		f.Description = *u.Description
	}
	if u.Category != nil {
		f.Category = *u.Category
	}
	if u.Faculty != nil {
		f.Faculty = *u.Faculty
	}
	if u.Department != nil {
		f.Department = *u.Department
	}
	if u.Course != nil {
		f.Course = *u.Course
	}
	if u.IsActive != nil {
		f.IsActive = *u.IsActive
	}
	if u.IsPinned != nil {
		f.IsPinned = *u.IsPinned
	}
}

type PostInput struct {
	Content string `json:"content" validate:"required,max=10000"`
}

type PostUpdate struct {
	Content *string `json:"content" validate:"required,min=1,max=10000"`
}

func (u PostUpdate) Apply(p *Post) {
	if u.Content != nil && *u.Content != p.Content {
		p.Content = *u.Content
		p.IsEdited = true
	}
}

type ReportInput struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// NormalizeTags trims, drops empties and de-duplicates case-insensitively.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// SplitTags accepts the comma separated form sent by multipart forms.
func SplitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	return NormalizeTags(strings.Split(raw, ","))
}
