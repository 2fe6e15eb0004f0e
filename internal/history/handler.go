package history

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/sitekit/internal/domain"
	"github.com/simp-lee/sitekit/internal/pkg"
)

// Rebuilder runs a build pass on demand and returns its record.
type Rebuilder interface {
	Rebuild(ctx context.Context, trigger string) (*domain.BuildRecord, error)
}

// BuildHandler handles REST API requests for the build resource.
type BuildHandler struct {
	svc       domain.BuildService
	rebuilder Rebuilder
}

// NewBuildHandler creates a new BuildHandler.
func NewBuildHandler(svc domain.BuildService, rebuilder Rebuilder) *BuildHandler {
	return &BuildHandler{svc: svc, rebuilder: rebuilder}
}

// rebuildRequest is the optional body of POST /api/v1/builds.
type rebuildRequest struct {
	Reason string `json:"reason" binding:"max=200"`
}

// Create handles POST /api/v1/builds. It runs a build pass and returns its
// record, whether the build succeeded or not.
func (h *BuildHandler) Create(c *gin.Context) {
	var req rebuildRequest
	if c.Request.ContentLength > 0 {
		if !pkg.BindAndValidate(c, &req) {
			return
		}
	}
	if req.Reason != "" {
		slog.InfoContext(c.Request.Context(), "rebuild requested", slog.String("reason", req.Reason))
	}

	rec, err := h.rebuilder.Rebuild(c.Request.Context(), domain.TriggerAPI)
	if rec == nil {
		if err == nil {
			err = domain.ErrInternal
		}
		pkg.Error(c, err)
		return
	}
	pkg.Created(c, rec)
}

// Get handles GET /api/v1/builds/:id, where id is a record ID or a build ID.
func (h *BuildHandler) Get(c *gin.Context) {
	rec, err := h.svc.GetBuild(c.Request.Context(), c.Param("id"))
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, rec)
}

// List handles GET /api/v1/builds.
func (h *BuildHandler) List(c *gin.Context) {
	req := pkg.ParsePageRequest(c)

	result, err := h.svc.LatestBuilds(c.Request.Context(), req)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.List(c, result)
}
