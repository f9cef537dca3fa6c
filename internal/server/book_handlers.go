package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/inkwell-labs/inkwell/backend/internal/library"
)

type bookPayload struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Author      string     `json:"author,omitempty"`
	ISBN        string     `json:"isbn,omitempty"`
	CatalogueID string     `json:"source_catalogue_id,omitempty"`
	CoverURL    string     `json:"cover_url,omitempty"`
	Status      string     `json:"status"`
	Rating      *int       `json:"rating,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	DateRead    *time.Time `json:"date_read,omitempty"`
}

func toBookPayload(book library.Book) bookPayload {
	return bookPayload{
		ID:          book.ID,
		Title:       book.Title,
		Author:      book.Author,
		ISBN:        book.ISBN,
		CatalogueID: book.CatalogueID,
		CoverURL:    book.CoverURL,
		Status:      string(book.Status),
		Rating:      book.Rating,
		Notes:       book.Notes,
		DateRead:    book.DateRead,
	}
}

func (h *httpHandler) handleListBooks(c *gin.Context) {
	owner, ok := h.requestOwner(c)
	if !ok {
		return
	}
	books, err := h.books.ListBooks(c.Request.Context(), owner)
	if err != nil {
		h.respondError(c, err)
		return
	}
	payload := make([]bookPayload, 0, len(books))
	for _, book := range books {
		payload = append(payload, toBookPayload(book))
	}
	c.JSON(http.StatusOK, gin.H{"books": payload})
}

type createBookPayload struct {
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	ISBN        string   `json:"isbn"`
	CatalogueID string   `json:"source_catalogue_id"`
	CoverURL    string   `json:"cover_url"`
	Status      string   `json:"status"`
	FolderIDs   []string `json:"folder_ids"`
}

func (h *httpHandler) handleCreateBook(c *gin.Context) {
	owner, ok := h.requestOwner(c)
	if !ok {
		return
	}
	var request createBookPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	status := library.BookStatusWishlist
	if request.Status != "" {
		parsed, err := library.ParseBookStatus(request.Status)
		if err != nil {
			h.respondError(c, err)
			return
		}
		status = parsed
	}
	folderIDs := make([]library.FolderID, 0, len(request.FolderIDs))
	for _, raw := range request.FolderIDs {
		folderIDs = append(folderIDs, library.FolderID(raw))
	}

	book, err := h.books.CreateBook(c.Request.Context(), owner, library.NewBookInput{
		Title:       request.Title,
		Author:      request.Author,
		ISBN:        request.ISBN,
		CatalogueID: request.CatalogueID,
		CoverURL:    request.CoverURL,
		Status:      status,
		FolderIDs:   folderIDs,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"book": toBookPayload(book)})
}

func (h *httpHandler) handleGetBook(c *gin.Context) {
	owner, ok := h.requestOwner(c)
	if !ok {
		return
	}
	bookID, err := library.NewBookID(c.Param("bookID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	book, err := h.books.GetBook(c.Request.Context(), owner, bookID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"book": toBookPayload(book)})
}

type updateBookPayload struct {
	Status   *string    `json:"status"`
	Rating   *int       `json:"rating"`
	Notes    *string    `json:"notes"`
	CoverURL *string    `json:"cover_url"`
	DateRead *time.Time `json:"date_read"`
}

func (h *httpHandler) handleUpdateBook(c *gin.Context) {
	owner, ok := h.requestOwner(c)
	if !ok {
		return
	}
	bookID, err := library.NewBookID(c.Param("bookID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	var request updateBookPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	update := library.BookUpdate{
		Rating:   request.Rating,
		Notes:    request.Notes,
		CoverURL: request.CoverURL,
		DateRead: request.DateRead,
	}
	if request.Status != nil {
		status, err := library.ParseBookStatus(*request.Status)
		if err != nil {
			h.respondError(c, err)
			return
		}
		update.Status = &status
	}

	book, err := h.books.UpdateBook(c.Request.Context(), owner, bookID, update)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"book": toBookPayload(book)})
}

func (h *httpHandler) handleDeleteBook(c *gin.Context) {
	owner, ok := h.requestOwner(c)
	if !ok {
		return
	}
	bookID, err := library.NewBookID(c.Param("bookID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.books.DeleteBook(c.Request.Context(), owner, bookID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": bookID.String()})
}

type orderedBookPayload struct {
	Book      bookPayload `json:"book"`
	SortOrder int         `json:"sort_order"`
}

func (h *httpHandler) handleListFolderBooks(c *gin.Context) {
	owner, ok := h.requestOwner(c)
	if !ok {
		return
	}
	folder, err := library.NewFolderID(c.Param("folderID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ordered, err := h.placements.ListOrdered(c.Request.Context(), owner, folder)
	if err != nil {
		h.respondError(c, err)
		return
	}
	payload := make([]orderedBookPayload, 0, len(ordered))
	for _, entry := range ordered {
		payload = append(payload, orderedBookPayload{
			Book:      toBookPayload(entry.Book),
			SortOrder: entry.SortOrder,
		})
	}
	c.JSON(http.StatusOK, gin.H{"books": payload})
}

type placeBookPayload struct {
	FolderID         string `json:"folder_id"`
	PreviousFolderID string `json:"previous_folder_id"`
}

func (h *httpHandler) handlePlaceBook(c *gin.Context) {
	owner, ok := h.requestOwner(c)
	if !ok {
		return
	}
	bookID, err := library.NewBookID(c.Param("bookID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	var request placeBookPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	folder, err := library.NewFolderID(request.FolderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	var previous *library.FolderID
	if request.PreviousFolderID != "" {
		prior, err := library.NewFolderID(request.PreviousFolderID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		previous = &prior
	}
	if err := h.placements.PlaceBook(c.Request.Context(), owner, bookID, folder, previous); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"placed": bookID.String()})
}

type removePlacementsPayload struct {
	FolderIDs []string `json:"folder_ids"`
}

func (h *httpHandler) handleRemovePlacements(c *gin.Context) {
	owner, ok := h.requestOwner(c)
	if !ok {
		return
	}
	bookID, err := library.NewBookID(c.Param("bookID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	var request removePlacementsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	folderIDs := make([]library.FolderID, 0, len(request.FolderIDs))
	for _, raw := range request.FolderIDs {
		folderIDs = append(folderIDs, library.FolderID(raw))
	}
	if err := h.placements.RemoveFromFolders(c.Request.Context(), owner, bookID, folderIDs); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": bookID.String()})
}

type reorderPayload struct {
	DraggedBookID string `json:"dragged_book_id"`
	TargetBookID  string `json:"target_book_id"`
}

func (h *httpHandler) handleReorder(c *gin.Context) {
	owner, ok := h.requestOwner(c)
	if !ok {
		return
	}
	folder, err := library.NewFolderID(c.Param("folderID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	var request reorderPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	dragged, err := library.NewBookID(request.DraggedBookID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	target, err := library.NewBookID(request.TargetBookID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.placements.Reorder(c.Request.Context(), owner, dragged, target, folder); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reordered": folder.String()})
}

type dragPayload struct {
	Item struct {
		ID             string `json:"id"`
		Kind           string `json:"kind"`
		SourceFolderID string `json:"source_folder_id"`
	} `json:"item"`
	Target struct {
		ID   string `json:"id"`
		Kind string `json:"kind"`
	} `json:"target"`
}

func (h *httpHandler) handleDrag(c *gin.Context) {
	owner, ok := h.requestOwner(c)
	if !ok {
		return
	}
	var request dragPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	itemKind, err := library.ParseDragKind(request.Item.Kind)
	if err != nil {
		h.respondError(c, err)
		return
	}
	targetKind, err := library.ParseDragKind(request.Target.Kind)
	if err != nil {
		h.respondError(c, err)
		return
	}

	outcome, err := h.drag.Apply(c.Request.Context(), owner,
		library.DragItem{
			ID:             request.Item.ID,
			Kind:           itemKind,
			SourceFolderID: library.FolderID(request.Item.SourceFolderID),
		},
		library.DropTarget{
			ID:   request.Target.ID,
			Kind: targetKind,
		})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": string(outcome)})
}
