package domain

import "context"

// Build statuses.
const (
	BuildSucceeded = "succeeded"
	BuildFailed    = "failed"
)

// Build triggers.
const (
	TriggerStartup = "startup"
	TriggerWatch   = "watch"
	TriggerAPI     = "api"
	TriggerCLI     = "cli"
)

// BuildRecord is the persisted outcome of one build pass.
type BuildRecord struct {
	BaseModel
	BuildID    string      `gorm:"size:36;uniqueIndex;not null" json:"build_id"`
	Trigger    string      `gorm:"size:16;index;not null" json:"trigger"`
	Status     string      `gorm:"size:16;index;not null" json:"status"`
	Error      string      `gorm:"type:text" json:"error,omitempty"`
	Fragments  int         `json:"fragments"`
	Modules    int         `json:"modules"`
	PageCount  int         `json:"page_count"`
	ImportDirs int         `json:"import_dirs"`
	DurationMS int64       `json:"duration_ms"`
	Pages      []BuildPage `gorm:"constraint:OnDelete:CASCADE" json:"pages,omitempty"`
}

// BuildPage is a page registered by a successful build.
type BuildPage struct {
	ID            uint   `gorm:"primaryKey" json:"-"`
	BuildRecordID uint   `gorm:"index;not null" json:"-"`
	Position      int    `gorm:"not null" json:"position"`
	Name          string `gorm:"size:255;not null" json:"name"`
	Path          string `gorm:"size:255;not null" json:"path"`
	File          string `gorm:"size:512;not null" json:"file"`
	Module        string `gorm:"size:100;not null" json:"module"`
}

// BuildRepository defines the data access interface for build records.
type BuildRepository interface {
	Create(ctx context.Context, rec *BuildRecord) error
	GetByID(ctx context.Context, id uint) (*BuildRecord, error)
	GetByBuildID(ctx context.Context, buildID string) (*BuildRecord, error)
	List(ctx context.Context, req PageRequest) (*ListResult[BuildRecord], error)
	Prune(ctx context.Context, keep int) (int64, error)
}

// BuildService defines the business logic interface for build history.
type BuildService interface {
	Record(ctx context.Context, rec *BuildRecord) error
	// GetBuild accepts a numeric record ID or a build ID.
	GetBuild(ctx context.Context, ref string) (*BuildRecord, error)
	LatestBuilds(ctx context.Context, req PageRequest) (*ListResult[BuildRecord], error)
}
