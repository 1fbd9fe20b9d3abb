package v1

import (
	"github.com/gin-gonic/gin"
)

// CatalogRouteHandler defines the interface for catalog handlers.
// All catalog handlers must implement these methods.
type CatalogRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	SetDeletionMark(c *gin.Context)
}

// MoveRouteHandler defines the routes of journal entries.
type MoveRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	ReplaceLines(c *gin.Context)
	Post(c *gin.Context)
	Cancel(c *gin.Context)
	Draft(c *gin.Context)
	Reverse(c *gin.Context)
	PostBatch(c *gin.Context)
	History(c *gin.Context)
}

// RegisterCatalogRoutes registers standard CRUD routes for a catalog.
//
// Usage:
//
//	handler := handlers.NewJournalHandler(baseHandler, app.Journals)
//	RegisterCatalogRoutes(catalogs.Group("/journals"), handler)
func RegisterCatalogRoutes(group *gin.RouterGroup, handler CatalogRouteHandler) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", handler.Update)
	group.DELETE("/:id", handler.Delete)
	group.POST("/:id/deletion-mark", handler.SetDeletionMark)
}

// RegisterMoveRoutes registers CRUD and state transition routes for moves.
// The batch post route is registered before /:id so it is not taken for an id.
func RegisterMoveRoutes(group *gin.RouterGroup, handler MoveRouteHandler) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.POST("/post", handler.PostBatch)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", handler.Update)
	group.DELETE("/:id", handler.Delete)
	group.PUT("/:id/lines", handler.ReplaceLines)
	group.POST("/:id/post", handler.Post)
	group.POST("/:id/cancel", handler.Cancel)
	group.POST("/:id/draft", handler.Draft)
	group.POST("/:id/reverse", handler.Reverse)
	group.GET("/:id/history", handler.History)
}
