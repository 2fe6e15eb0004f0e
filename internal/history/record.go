package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/simp-lee/sitekit/internal/build"
	"github.com/simp-lee/sitekit/internal/domain"
)

// FromManifest converts a successful build into a record.
func FromManifest(m *build.Manifest, trigger string) *domain.BuildRecord {
	rec := &domain.BuildRecord{
		BuildID:    m.BuildID,
		Trigger:    trigger,
		Status:     domain.BuildSucceeded,
		Fragments:  len(m.Sources),
		Modules:    len(m.Modules),
		PageCount:  len(m.Pages),
		ImportDirs: len(m.ImportDirs),
		DurationMS: m.Duration.Milliseconds(),
		Pages:      make([]domain.BuildPage, len(m.Pages)),
	}
	for i, p := range m.Pages {
		rec.Pages[i] = domain.BuildPage{
			Position: i,
			Name:     p.Name,
			Path:     p.Path,
			File:     p.File,
			Module:   p.Module,
		}
	}
	return rec
}

// FromFailure converts a failed build into a record. Failed builds have no
// manifest, so they get a fresh build id.
func FromFailure(err error, trigger string, took time.Duration) *domain.BuildRecord {
	return &domain.BuildRecord{
		BuildID:    uuid.NewString(),
		Trigger:    trigger,
		Status:     domain.BuildFailed,
		Error:      err.Error(),
		DurationMS: took.Milliseconds(),
	}
}
