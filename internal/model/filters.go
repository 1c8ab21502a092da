package model

import "time"

// ResourceFilter selects resources for listing. Empty fields match everything.
type ResourceFilter struct {
	Status       ResourceStatus
	Type         ResourceType
	Faculty      string
	Department   string
	Course       string
	Level        string
	Semester     string
	AcademicYear string
	UploadedBy   string
	IDs          []string
	Search       string
	Sort         string
}

const (
	SortNewest  = "newest"
	SortOldest  = "oldest"
	SortPopular = "popular"
	SortRating  = "rating"
	SortActive  = "active"
)

type ForumFilter struct {
	Category  ForumCategory
	Faculty   string
	CreatedBy string
	Search    string
	Sort      string
}

type AccountFilter struct {
	Role    Role
	Faculty string
	Search  string
}

type FilterOptions struct {
	Faculties     []string       `json:"faculties"`
	Departments   []string       `json:"departments"`
	Courses       []string       `json:"courses"`
	AcademicYears []string       `json:"academicYears"`
	Types         []ResourceType `json:"types"`
	Levels        []string       `json:"levels"`
	Semesters     []string       `json:"semesters"`
}

type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type Contributor struct {
	AccountRef
	ContributionPoints int `json:"contributionPoints"`
	Resources          int `json:"resources"`
}

type ForumActivity struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	PostCount int    `json:"postCount"`
}

type Dashboard struct {
	Users           int        `json:"users"`
	Resources       int        `json:"resources"`
	PendingReviews  int        `json:"pendingResources"`
	Forums          int        `json:"forums"`
	Posts           int        `json:"posts"`
	RecentUsers     []Account  `json:"recentUsers"`
	RecentResources []Resource `json:"recentResources"`
}

type UserStats struct {
	Total           int           `json:"total"`
	ByRole          []Count       `json:"byRole"`
	ByFaculty       []Count       `json:"byFaculty"`
	NewLastMonth    int           `json:"newUsersLastMonth"`
	TopContributors []Contributor `json:"topContributors"`
}

type ResourceStats struct {
	Total          int        `json:"total"`
	ByStatus       []Count    `json:"byStatus"`
	ByType         []Count    `json:"byType"`
	ByFaculty      []Count    `json:"byFaculty"`
	NewLastMonth   int        `json:"newResourcesLastMonth"`
	TotalDownloads int        `json:"totalDownloads"`
	TotalViews     int        `json:"totalViews"`
	TopDownloaded  []Resource `json:"topDownloaded"`
}

type ForumStats struct {
	TotalForums      int             `json:"totalForums"`
	ActiveForums     int             `json:"activeForums"`
	TotalPosts       int             `json:"totalPosts"`
	PostsLastWeek    int             `json:"postsLastWeek"`
	MostActiveForums []ForumActivity `json:"mostActiveForums"`
}

// StatsWindow fixes the "recent" horizons used by the statistics queries.
type StatsWindow struct {
	MonthAgo time.Time
	WeekAgo  time.Time
}

func NewStatsWindow(now time.Time) StatsWindow {
	return StatsWindow{MonthAgo: now.AddDate(0, -1, 0), WeekAgo: now.AddDate(0, 0, -7)}
}
