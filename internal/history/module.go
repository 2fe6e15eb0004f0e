package history

import "github.com/gin-gonic/gin"

// Module implements the app.Module interface for build history.
type Module struct {
	handler     *BuildHandler
	pageHandler *BuildPageHandler
}

// NewModule creates a new history Module with the given handlers.
// Panics if h or ph is nil.
func NewModule(h *BuildHandler, ph *BuildPageHandler) *Module {
	if h == nil {
		panic("history.NewModule: handler must not be nil")
	}
	if ph == nil {
		panic("history.NewModule: pageHandler must not be nil")
	}
	return &Module{handler: h, pageHandler: ph}
}

// RegisterRoutes registers build API and page routes.
func (m *Module) RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup) {
	api.GET("/builds", m.handler.List)
	api.GET("/builds/:id", m.handler.Get)
	api.POST("/builds", m.handler.Create)

	pages.GET("/_builds", m.pageHandler.ListPage)
	pages.GET("/_builds/:id", m.pageHandler.DetailPage)
	pages.POST("/_builds", m.pageHandler.RebuildHTMX)
}
