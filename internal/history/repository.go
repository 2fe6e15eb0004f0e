package history

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/simp-lee/sitekit/internal/domain"
	"github.com/simp-lee/sitekit/internal/pkg"
)

// buildListFields are the columns GET /api/v1/builds and /_builds accept in
// sort and filter parameters.
var buildListFields = pkg.ListFields{
	Sort:   []string{"id", "created_at", "duration_ms", "page_count", "modules"},
	Filter: []string{"status", "trigger"},
	Search: []string{"build_id", "error"},
}

// buildRepository implements domain.BuildRepository using GORM.
type buildRepository struct {
	db *gorm.DB
}

// NewBuildRepository creates a new BuildRepository backed by the given GORM database.
func NewBuildRepository(db *gorm.DB) domain.BuildRepository {
	return &buildRepository{db: db}
}

// Create inserts a build record and its pages in one transaction.
func (r *buildRepository) Create(ctx context.Context, rec *domain.BuildRecord) error {
	err := pkg.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		return tx.Create(rec).Error
	})
	return mapError(err)
}

// GetByID retrieves a build record with its pages in registration order.
func (r *buildRepository) GetByID(ctx context.Context, id uint) (*domain.BuildRecord, error) {
	var rec domain.BuildRecord
	if err := r.withPages(ctx).First(&rec, id).Error; err != nil {
		return nil, mapError(err)
	}
	return &rec, nil
}

// GetByBuildID retrieves a build record by its build id.
func (r *buildRepository) GetByBuildID(ctx context.Context, buildID string) (*domain.BuildRecord, error) {
	var rec domain.BuildRecord
	if err := r.withPages(ctx).Where("build_id = ?", buildID).First(&rec).Error; err != nil {
		return nil, mapError(err)
	}
	return &rec, nil
}

func (r *buildRepository) withPages(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Pages", func(db *gorm.DB) *gorm.DB {
		return db.Order("position asc")
	})
}

// List returns a paginated, sorted, and filtered list of build records
// without their pages.
func (r *buildRepository) List(ctx context.Context, req domain.PageRequest) (*domain.ListResult[domain.BuildRecord], error) {
	var total int64
	base := r.db.WithContext(ctx).Model(&domain.BuildRecord{}).
		Scopes(buildListFields.Where(req))

	if err := base.Count(&total).Error; err != nil {
		return nil, mapError(err)
	}

	var records []domain.BuildRecord
	if err := base.Scopes(
		buildListFields.Order(req),
		pkg.Paginate(req),
	).Find(&records).Error; err != nil {
		return nil, mapError(err)
	}

	return pkg.NewListResult(records, total, req), nil
}

// Prune deletes all but the newest keep records and returns how many were removed.
func (r *buildRepository) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}

	var removed int64
	err := pkg.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&domain.BuildRecord{}).
			Order("id desc").
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) <= keep {
			return nil
		}
		stale := ids[keep:]
		if err := tx.Where("build_record_id IN ?", stale).Delete(&domain.BuildPage{}).Error; err != nil {
			return err
		}
		result := tx.Where("id IN ?", stale).Delete(&domain.BuildRecord{})
		if result.Error != nil {
			return result.Error
		}
		removed = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, mapError(err)
	}
	return removed, nil
}

// mapError converts GORM errors to domain errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKeyError(err) {
		return domain.NewAppError(domain.CodeAlreadyExists, "build already recorded", err)
	}
	return domain.NewAppError(domain.CodeInternal, "database error", err)
}

// isDuplicateKeyError detects unique constraint violations by examining the
// error message. Not all GORM dialectors translate driver-level errors to
// gorm.ErrDuplicatedKey (e.g. the pure-Go SQLite driver).
func isDuplicateKeyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
