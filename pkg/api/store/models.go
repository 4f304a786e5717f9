package store

import (
	"time"
)

// User source constants.
const (
	SourceConfig = "config"
	SourceGitHub = "github"
)

// User represents a signed-in dashboard user. GitHub OAuth users carry
// their access token for outbound GitHub API calls; config-seeded
// users authenticate with a password and rely on the server token.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Login        string    `gorm:"uniqueIndex;not null" json:"login"`
	Name         string    `json:"name"`
	AvatarURL    string    `json:"avatar_url"`
	PasswordHash string    `json:"-"`
	AccessToken  string    `json:"-"`
	Source       string    `gorm:"not null" json:"source"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Session represents an active user session.
type Session struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Token        string     `gorm:"uniqueIndex;not null" json:"-"`
	UserID       uint       `gorm:"not null" json:"user_id"`
	ExpiresAt    time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActiveAt *time.Time `json:"last_active_at"`
}

// Repository is a GitHub repository tracked by one user. The slug
// (owner-repo) is the stable identifier used throughout the system and
// is unique per user.
type Repository struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;uniqueIndex:idx_user_slug" json:"user_id"`
	Slug          string    `gorm:"not null;uniqueIndex:idx_user_slug" json:"slug"`
	Path          string    `gorm:"not null" json:"path"`
	DisplayName   string    `json:"display_name"`
	HTMLURL       string    `json:"html_url"`
	DefaultBranch string    `json:"default_branch"`
	AvatarURL     string    `json:"avatar_url"`
	Visibility    string    `json:"visibility"`
	AddedAt       time.Time `json:"added_at"`
}

// Workflow is one cached workflow definition for a tracked repository.
// GitHub is the source of truth; rows are replaced wholesale on
// refresh and removed when the repository is untracked.
type Workflow struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_user_slug_workflow" json:"user_id"`
	Slug       string    `gorm:"not null;uniqueIndex:idx_user_slug_workflow" json:"slug"`
	WorkflowID int64     `gorm:"not null;uniqueIndex:idx_user_slug_workflow" json:"workflow_id"`
	Name       string    `gorm:"not null" json:"name"`
	Path       string    `gorm:"not null" json:"path"`
	State      string    `gorm:"not null" json:"state"`
	CachedAt   time.Time `json:"cached_at"`
}
