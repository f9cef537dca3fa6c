package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/inkwell-labs/inkwell/backend/internal/library"
)

type folderPayload struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Slug     string  `json:"slug"`
	ParentID *string `json:"parent_id"`
}

func toFolderPayload(folder library.Folder) folderPayload {
	return folderPayload{
		ID:       folder.ID,
		Name:     folder.Name,
		Slug:     folder.Slug,
		ParentID: folder.ParentID,
	}
}

func (h *httpHandler) handleListFolders(c *gin.Context) {
	owner, ok := h.requestOwner(c)
	if !ok {
		return
	}
	folders, err := h.folders.ListFolders(c.Request.Context(), owner)
	if err != nil {
		h.respondError(c, err)
		return
	}
	payload := make([]folderPayload, 0, len(folders))
	for _, folder := range folders {
		payload = append(payload, toFolderPayload(folder))
	}
	c.JSON(http.StatusOK, gin.H{"folders": payload})
}

type createFolderPayload struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
}

func (h *httpHandler) handleCreateFolder(c *gin.Context) {
	owner, ok := h.requestOwner(c)
	if !ok {
		return
	}
	var request createFolderPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	parent := library.FolderID(request.ParentID)
	if request.ParentID == "" {
		rootID, err := h.folders.GetRootID(c.Request.Context(), owner)
		if err != nil {
			h.respondError(c, err)
			return
		}
		parent = rootID
	}

	folder, err := h.folders.CreateFolder(c.Request.Context(), owner, request.Name, parent)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"folder": toFolderPayload(folder)})
}

func (h *httpHandler) handleDeleteFolder(c *gin.Context) {
	owner, ok := h.requestOwner(c)
	if !ok {
		return
	}
	folder, err := library.NewFolderID(c.Param("folderID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	policy, err := library.ParseOrphanPolicy(c.Query("on_orphans"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.folders.DeleteFolder(c.Request.Context(), owner, folder, policy); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": folder.String()})
}

type moveFolderPayload struct {
	NewParentID string `json:"new_parent_id"`
}

func (h *httpHandler) handleMoveFolder(c *gin.Context) {
	owner, ok := h.requestOwner(c)
	if !ok {
		return
	}
	folder, err := library.NewFolderID(c.Param("folderID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	var request moveFolderPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	newParent, err := library.NewFolderID(request.NewParentID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.folders.MoveFolder(c.Request.Context(), owner, folder, newParent); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"moved": folder.String()})
}

func (h *httpHandler) handleGetRoot(c *gin.Context) {
	owner, ok := h.requestOwner(c)
	if !ok {
		return
	}
	rootID, err := h.folders.GetRootID(c.Request.Context(), owner)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"folder_id": rootID.String()})
}

type resolvePathPayload struct {
	Slugs []string `json:"slugs"`
}

type resolvePathResponse struct {
	FolderID    string               `json:"folder_id"`
	Breadcrumbs []library.Breadcrumb `json:"breadcrumbs"`
	Found       bool                 `json:"found"`
}

// handleResolvePath walks a slug path for navigation. A miss is not an
// error status: the client receives found=false plus the partial crumbs
// and redirects to the root folder.
func (h *httpHandler) handleResolvePath(c *gin.Context) {
	owner, ok := h.requestOwner(c)
	if !ok {
		return
	}
	var request resolvePathPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	resolution, err := h.folders.ResolvePath(c.Request.Context(), owner, request.Slugs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resolvePathResponse{
		FolderID:    resolution.FolderID.String(),
		Breadcrumbs: resolution.Breadcrumbs,
		Found:       resolution.Found,
	})
}
