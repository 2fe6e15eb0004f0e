package history

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/sitekit/internal/domain"
	"github.com/simp-lee/sitekit/internal/middleware"
	"github.com/simp-lee/sitekit/internal/pkg"
)

// BuildPageHandler renders the build history pages.
type BuildPageHandler struct {
	svc       domain.BuildService
	rebuilder Rebuilder
}

// NewBuildPageHandler creates a new BuildPageHandler.
func NewBuildPageHandler(svc domain.BuildService, rebuilder Rebuilder) *BuildPageHandler {
	return &BuildPageHandler{svc: svc, rebuilder: rebuilder}
}

// ListPage renders the build list.
// GET /_builds
func (h *BuildPageHandler) ListPage(c *gin.Context) {
	req := pkg.ParsePageRequest(c)

	result, err := h.svc.LatestBuilds(c.Request.Context(), req)
	if err != nil {
		c.HTML(http.StatusInternalServerError, "errors/500.html", gin.H{})
		return
	}

	c.HTML(http.StatusOK, "builds/list.html", gin.H{
		"Builds":     result.Items,
		"Pagination": result,
		"BaseURL":    "/_builds",
		"CSRFToken":  middleware.GetCSRFToken(c),
	})
}

// DetailPage renders one build with its pages. The id is a record ID or a
// build ID, so log lines carrying build_id link straight to the page.
// GET /_builds/:id
func (h *BuildPageHandler) DetailPage(c *gin.Context) {
	rec, err := h.svc.GetBuild(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch domain.CodeOf(err) {
		case domain.CodeNotFound:
			c.HTML(http.StatusNotFound, "errors/404.html", gin.H{})
			return
		case domain.CodeValidation:
			c.HTML(http.StatusBadRequest, "errors/400.html", gin.H{})
			return
		}
		c.HTML(http.StatusInternalServerError, "errors/500.html", gin.H{})
		return
	}

	c.HTML(http.StatusOK, "builds/detail.html", gin.H{
		"Build": rec,
	})
}

// RebuildHTMX triggers a build from the history page.
// POST /_builds
func (h *BuildPageHandler) RebuildHTMX(c *gin.Context) {
	rec, err := h.rebuilder.Rebuild(c.Request.Context(), domain.TriggerAPI)
	if rec == nil {
		slog.ErrorContext(c.Request.Context(), "rebuild from page failed", slog.Any("error", err))
		setShowToastHeader(c, "Rebuild failed", "error")
		c.Header("HX-Reswap", "none")
		c.Status(http.StatusOK)
		return
	}

	if rec.Status == domain.BuildFailed {
		setShowToastHeader(c, "Build failed: "+rec.Error, "error")
	} else {
		setShowToastHeader(c, "Build succeeded", "success")
	}
	c.Header("HX-Redirect", "/_builds")
	c.Status(http.StatusOK)
}

// setShowToastHeader sets the HX-Trigger response header with a showToast event.
func setShowToastHeader(c *gin.Context, message, toastType string) {
	trigger, _ := json.Marshal(map[string]any{
		"showToast": map[string]string{
			"message": message,
			"type":    toastType,
		},
	})
	c.Header("HX-Trigger", string(trigger))
}
