package history

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/simp-lee/sitekit/internal/domain"
)

// buildService implements domain.BuildService.
type buildService struct {
	repo domain.BuildRepository
	keep int
	log  *slog.Logger
}

// NewBuildService creates a BuildService. When keep is positive, only the
// newest keep records survive each Record call.
func NewBuildService(repo domain.BuildRepository, keep int, log *slog.Logger) domain.BuildService {
	if log == nil {
		log = slog.Default()
	}
	return &buildService{repo: repo, keep: keep, log: log}
}

// Record validates and persists a build record, then prunes old history.
func (s *buildService) Record(ctx context.Context, rec *domain.BuildRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return err
	}

	removed, err := s.repo.Prune(ctx, s.keep)
	if err != nil {
		// The record itself is stored; a failed prune is retried on the next build.
		s.log.WarnContext(ctx, "prune build history failed", slog.Any("error", err))
		return nil
	}
	if removed > 0 {
		s.log.DebugContext(ctx, "build history pruned", slog.Int64("removed", removed), slog.Int("keep", s.keep))
	}
	return nil
}

// GetBuild retrieves a build record by numeric ID, or by build ID when ref is
// not a number.
func (s *buildService) GetBuild(ctx context.Context, ref string) (*domain.BuildRecord, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.NewAppError(domain.CodeValidation, "build reference is required", nil)
	}
	id, err := strconv.ParseUint(ref, 10, 64)
	if errors.Is(err, strconv.ErrSyntax) {
		return s.repo.GetByBuildID(ctx, ref)
	}
	if err != nil || id == 0 || id > uint64(^uint(0)) {
		return nil, domain.NewAppError(domain.CodeValidation, "invalid build id: "+ref, nil)
	}
	return s.repo.GetByID(ctx, uint(id))
}

// LatestBuilds returns a paginated list of build records.
func (s *buildService) LatestBuilds(ctx context.Context, req domain.PageRequest) (*domain.ListResult[domain.BuildRecord], error) {
	return s.repo.List(ctx, req)
}

func validateRecord(rec *domain.BuildRecord) error {
	if rec == nil {
		return domain.NewAppError(domain.CodeValidation, "build record is required", nil)
	}
	rec.BuildID = strings.TrimSpace(rec.BuildID)
	if rec.BuildID == "" {
		return domain.NewAppError(domain.CodeValidation, "build_id is required", nil)
	}
	switch rec.Status {
	case domain.BuildSucceeded, domain.BuildFailed:
	default:
		return domain.NewAppError(domain.CodeValidation, "status must be succeeded or failed", nil)
	}
	switch rec.Trigger {
	case domain.TriggerStartup, domain.TriggerWatch, domain.TriggerAPI, domain.TriggerCLI:
	default:
		return domain.NewAppError(domain.CodeValidation, "unknown build trigger", nil)
	}
	if rec.Status == domain.BuildFailed && strings.TrimSpace(rec.Error) == "" {
		return domain.NewAppError(domain.CodeValidation, "failed builds must carry an error", nil)
	}
	return nil
}
