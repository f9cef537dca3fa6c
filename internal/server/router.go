package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/inkwell-labs/inkwell/backend/internal/auth"
	"github.com/inkwell-labs/inkwell/backend/internal/library"
	"go.uber.org/zap"
)

const ownerIDContextKey = "inkwell_owner_id"

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingOwnerResolver    = errors.New("owner resolver dependency required")
	errMissingFolderService    = errors.New("folder service dependency required")
	errMissingBookService      = errors.New("book service dependency required")
	errMissingPlacementService = errors.New("placement service dependency required")
	errMissingDragMediator     = errors.New("drag mediator dependency required")
)

// SessionValidator verifies the session cookie carried by each request.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// OwnerResolver maps validated session claims to a canonical owner id.
type OwnerResolver interface {
	ResolveOwnerID(ctx context.Context, claims auth.SessionClaims) (string, error)
}

// Dependencies collects everything the HTTP layer needs; all fields except
// Logger are required.
type Dependencies struct {
	SessionValidator SessionValidator
	OwnerResolver    OwnerResolver
	Folders          *library.FolderService
	Books            *library.BookService
	Placements       *library.PlacementService
	Drag             *library.DragMediator
	Logger           *zap.Logger
}

// NewHTTPHandler constructs the gin router exposing the library API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SessionValidator == nil {
		return nil, errMissingSessionValidator
	}
	if deps.OwnerResolver == nil {
		return nil, errMissingOwnerResolver
	}
	if deps.Folders == nil {
		return nil, errMissingFolderService
	}
	if deps.Books == nil {
		return nil, errMissingBookService
	}
	if deps.Placements == nil {
		return nil, errMissingPlacementService
	}
	if deps.Drag == nil {
		return nil, errMissingDragMediator
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	handler := &httpHandler{
		sessions:   deps.SessionValidator,
		owners:     deps.OwnerResolver,
		folders:    deps.Folders,
		books:      deps.Books,
		placements: deps.Placements,
		drag:       deps.Drag,
		logger:     logger,
	}

	api := router.Group("/library")
	api.Use(handler.authorizeRequest)

	api.GET("/folders", handler.handleListFolders)
	api.POST("/folders", handler.handleCreateFolder)
	api.DELETE("/folders/:folderID", handler.handleDeleteFolder)
	api.POST("/folders/:folderID/move", handler.handleMoveFolder)
	api.GET("/folders/root", handler.handleGetRoot)
	api.GET("/folders/:folderID/books", handler.handleListFolderBooks)
	api.POST("/folders/:folderID/reorder", handler.handleReorder)
	api.POST("/path/resolve", handler.handleResolvePath)

	api.GET("/books", handler.handleListBooks)
	api.POST("/books", handler.handleCreateBook)
	api.GET("/books/:bookID", handler.handleGetBook)
	api.PATCH("/books/:bookID", handler.handleUpdateBook)
	api.DELETE("/books/:bookID", handler.handleDeleteBook)
	api.POST("/books/:bookID/placements", handler.handlePlaceBook)
	api.DELETE("/books/:bookID/placements", handler.handleRemovePlacements)

	api.POST("/drag", handler.handleDrag)

	return router, nil
}

type httpHandler struct {
	sessions   SessionValidator
	owners     OwnerResolver
	folders    *library.FolderService
	books      *library.BookService
	placements *library.PlacementService
	drag       *library.DragMediator
	logger     *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	ownerID, err := h.owners.ResolveOwnerID(c.Request.Context(), claims)
	if err != nil {
		h.logger.Warn("owner resolution failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(ownerIDContextKey, ownerID)
	c.Next()
}

// requestOwner extracts the validated owner id stored by the auth middleware.
func (h *httpHandler) requestOwner(c *gin.Context) (library.OwnerID, bool) {
	owner, err := library.NewOwnerID(c.GetString(ownerIDContextKey))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return owner, true
}

// respondError maps the domain error taxonomy onto HTTP statuses.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, library.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "detail": err.Error()})
	case errors.Is(err, library.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "detail": err.Error()})
	case errors.Is(err, library.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict", "detail": err.Error()})
	case errors.Is(err, library.ErrNotEmpty):
		c.JSON(http.StatusConflict, gin.H{"error": "not_empty", "detail": err.Error()})
	case errors.Is(err, library.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "detail": err.Error()})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
