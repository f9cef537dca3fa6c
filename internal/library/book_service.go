package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opBookServiceNew = "books.service.new"
	opCreateBook     = "books.create"
	opUpdateBook     = "books.update"
	opDeleteBook     = "books.delete"
	opGetBook        = "books.get"
	opListBooks      = "books.list"

	minRating = 1
	maxRating = 10
)

// BookServiceConfig describes the dependencies of the catalogue service.
type BookServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// BookService manages catalogue records. Placements referencing a book are
// removed with it, in the same transaction, so no orphaned placements survive.
type BookService struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewBookService constructs the catalogue service.
func NewBookService(cfg BookServiceConfig) (*BookService, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opBookServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opBookServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &BookService{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// NewBookInput carries the caller-supplied fields for a new catalogue record.
type NewBookInput struct {
	Title       string
	Author      string
	ISBN        string
	CatalogueID string
	CoverURL    string
	Status      BookStatus
	FolderIDs   []FolderID
}

// BookUpdate carries the in-place updatable fields; nil means unchanged.
type BookUpdate struct {
	Status   *BookStatus
	Rating   *int
	Notes    *string
	CoverURL *string
	DateRead *time.Time
}

// CreateBook inserts a catalogue record and its initial folder placements
// in one transaction. Blank folder ids are dropped; an empty list leaves
// the book placed nowhere, which the caller typically avoids by including
// the owner's root folder.
func (s *BookService) CreateBook(ctx context.Context, owner OwnerID, input NewBookInput) (Book, error) {
	if strings.TrimSpace(input.Title) == "" {
		return Book{}, newServiceError(opCreateBook, "missing_title",
			fmt.Errorf("%w: title is required", ErrValidation))
	}
	status := input.Status
	if status == "" {
		status = BookStatusWishlist
	}

	bookID, err := s.idProvider.NewID()
	if err != nil {
		return Book{}, newServiceError(opCreateBook, "id_generation_failed", err)
	}
	now := s.clock().UTC()
	book := Book{
		ID:          bookID,
		OwnerID:     owner.String(),
		Title:       strings.TrimSpace(input.Title),
		Author:      strings.TrimSpace(input.Author),
		ISBN:        strings.TrimSpace(input.ISBN),
		CatalogueID: strings.TrimSpace(input.CatalogueID),
		CoverURL:    strings.TrimSpace(input.CoverURL),
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&book).Error; err != nil {
			return storeFailure(opCreateBook, "insert_failed", err)
		}
		for _, folder := range compactFolderIDs(input.FolderIDs) {
			if _, err := loadFolder(tx, owner, folder); err != nil {
				return newServiceError(opCreateBook, "folder_lookup_failed", err)
			}
			if err := appendPlacement(tx, owner, BookID(book.ID), folder, now, true); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		s.logError(opCreateBook, txErr, zap.String("owner_id", owner.String()))
		return Book{}, txErr
	}
	return book, nil
}

// UpdateBook applies in-place field changes. A rating outside 1..10, or any
// rating on a book that is not completed, fails with ErrValidation.
func (s *BookService) UpdateBook(ctx context.Context, owner OwnerID, book BookID, update BookUpdate) (Book, error) {
	var updated Book
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Book
		err := tx.Where("owner_id = ? AND id = ?", owner.String(), book.String()).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opUpdateBook, "book_missing",
				fmt.Errorf("%w: book %s", ErrNotFound, book.String()))
		}
		if err != nil {
			return storeFailure(opUpdateBook, "query_failed", err)
		}

		if update.Status != nil {
			row.Status = *update.Status
		}
		if update.Rating != nil {
			if *update.Rating < minRating || *update.Rating > maxRating {
				return newServiceError(opUpdateBook, "rating_out_of_range",
					fmt.Errorf("%w: rating must be between %d and %d", ErrValidation, minRating, maxRating))
			}
			if row.Status != BookStatusCompleted {
				return newServiceError(opUpdateBook, "rating_requires_completed",
					fmt.Errorf("%w: rating applies only to completed books", ErrValidation))
			}
			row.Rating = update.Rating
		}
		if update.Notes != nil {
			row.Notes = *update.Notes
		}
		if update.CoverURL != nil {
			row.CoverURL = strings.TrimSpace(*update.CoverURL)
		}
		if update.DateRead != nil {
			row.DateRead = update.DateRead
		}
		row.UpdatedAt = s.clock().UTC()

		if err := tx.Save(&row).Error; err != nil {
			return storeFailure(opUpdateBook, "save_failed", err)
		}
		updated = row
		return nil
	})
	if txErr != nil {
		s.logError(opUpdateBook, txErr,
			zap.String("owner_id", owner.String()),
			zap.String("book_id", book.String()))
		return Book{}, txErr
	}
	return updated, nil
}

// DeleteBook removes the catalogue record and every placement referencing
// it, all in one transaction.
func (s *BookService) DeleteBook(ctx context.Context, owner OwnerID, book BookID) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireBook(tx, owner, book); err != nil {
			return newServiceError(opDeleteBook, "book_lookup_failed", err)
		}
		err := tx.Where("owner_id = ? AND book_id = ?", owner.String(), book.String()).
			Delete(&Placement{}).Error
		if err != nil {
			return storeFailure(opDeleteBook, "placement_delete_failed", err)
		}
		err = tx.Where("owner_id = ? AND id = ?", owner.String(), book.String()).
			Delete(&Book{}).Error
		if err != nil {
			return storeFailure(opDeleteBook, "delete_failed", err)
		}
		return nil
	})
	if txErr != nil {
		s.logError(opDeleteBook, txErr,
			zap.String("owner_id", owner.String()),
			zap.String("book_id", book.String()))
	}
	return txErr
}

// GetBook returns one owner-scoped catalogue record.
func (s *BookService) GetBook(ctx context.Context, owner OwnerID, book BookID) (Book, error) {
	var row Book
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", owner.String(), book.String()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Book{}, newServiceError(opGetBook, "book_missing",
			fmt.Errorf("%w: book %s", ErrNotFound, book.String()))
	}
	if err != nil {
		s.logError(opGetBook, err,
			zap.String("owner_id", owner.String()),
			zap.String("book_id", book.String()))
		return Book{}, storeFailure(opGetBook, "query_failed", err)
	}
	return row, nil
}

// ListBooks returns the owner's whole catalogue, newest first.
func (s *BookService) ListBooks(ctx context.Context, owner OwnerID) ([]Book, error) {
	var books []Book
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", owner.String()).
		Order("created_at DESC").
		Find(&books).Error
	if err != nil {
		s.logError(opListBooks, err, zap.String("owner_id", owner.String()))
		return nil, storeFailure(opListBooks, "query_failed", err)
	}
	return books, nil
}

func (s *BookService) logError(operation string, err error, fields ...zap.Field) {
	attrs := []zap.Field{zap.String("operation", operation)}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("book service error", attrs...)
}
