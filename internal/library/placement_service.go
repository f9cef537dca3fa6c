package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opPlacementServiceNew = "placements.service.new"
	opPlaceBook           = "placements.place"
	opPlaceBookInMany     = "placements.place_many"
	opRemoveFromFolders   = "placements.remove"
	opListOrdered         = "placements.list_ordered"
	opReorder             = "placements.reorder"
)

// PlacementServiceConfig describes the dependencies of the ordering engine.
type PlacementServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// PlacementService owns the many-to-many relation between books and
// folders and the per-folder sort order of each placement.
type PlacementService struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewPlacementService constructs the placement and ordering engine.
func NewPlacementService(cfg PlacementServiceConfig) (*PlacementService, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opPlacementServiceNew, "missing_database", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &PlacementService{db: cfg.Database, clock: clock, logger: logger}, nil
}

// OrderedBook pairs a catalogue record with its position inside one folder.
type OrderedBook struct {
	Book      Book `json:"book"`
	SortOrder int  `json:"sort_order"`
}

// PlaceBook inserts a placement at the end of the folder's sequence.
// When previousFolder is non-nil the placement in that folder is deleted
// in the same transaction, implementing "move between folders" as
// add-then-remove because sort order is local to each folder.
// Placing a book twice in the same folder fails with ErrConflict.
func (s *PlacementService) PlaceBook(ctx context.Context, owner OwnerID, book BookID, folder FolderID, previousFolder *FolderID) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireBook(tx, owner, book); err != nil {
			return newServiceError(opPlaceBook, "book_lookup_failed", err)
		}
		if _, err := loadFolder(tx, owner, folder); err != nil {
			return newServiceError(opPlaceBook, "folder_lookup_failed", err)
		}
		if err := appendPlacement(tx, owner, book, folder, s.clock().UTC(), false); err != nil {
			return err
		}
		if previousFolder != nil && *previousFolder != folder {
			err := tx.Where("owner_id = ? AND folder_id = ? AND book_id = ?",
				owner.String(), previousFolder.String(), book.String()).
				Delete(&Placement{}).Error
			if err != nil {
				return storeFailure(opPlaceBook, "previous_delete_failed", err)
			}
		}
		return nil
	})
	if txErr != nil {
		s.logError(opPlaceBook, txErr,
			zap.String("owner_id", owner.String()),
			zap.String("book_id", book.String()),
			zap.String("folder_id", folder.String()))
	}
	return txErr
}

// PlaceBookInMany is the bulk variant used when a book first enters the
// catalogue. Blank folder ids are filtered out and an empty resulting list
// is a no-op. Folders that already hold the book are skipped rather than
// failing, so repeating the call is harmless.
func (s *PlacementService) PlaceBookInMany(ctx context.Context, owner OwnerID, book BookID, folders []FolderID) error {
	targets := compactFolderIDs(folders)
	if len(targets) == 0 {
		return nil
	}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireBook(tx, owner, book); err != nil {
			return newServiceError(opPlaceBookInMany, "book_lookup_failed", err)
		}
		now := s.clock().UTC()
		for _, folder := range targets {
			if _, err := loadFolder(tx, owner, folder); err != nil {
				return newServiceError(opPlaceBookInMany, "folder_lookup_failed", err)
			}
			if err := appendPlacement(tx, owner, book, folder, now, true); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		s.logError(opPlaceBookInMany, txErr,
			zap.String("owner_id", owner.String()),
			zap.String("book_id", book.String()))
	}
	return txErr
}

// RemoveFromFolders deletes the book's placements in the listed folders.
// Placements in folders not listed are untouched.
func (s *PlacementService) RemoveFromFolders(ctx context.Context, owner OwnerID, book BookID, folders []FolderID) error {
	targets := compactFolderIDs(folders)
	if len(targets) == 0 {
		return nil
	}
	ids := make([]string, 0, len(targets))
	for _, folder := range targets {
		ids = append(ids, folder.String())
	}
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND book_id = ? AND folder_id IN ?", owner.String(), book.String(), ids).
		Delete(&Placement{}).Error
	if err != nil {
		s.logError(opRemoveFromFolders, err,
			zap.String("owner_id", owner.String()),
			zap.String("book_id", book.String()))
		return storeFailure(opRemoveFromFolders, "delete_failed", err)
	}
	return nil
}

// ListOrdered is the canonical read path for folder contents: books joined
// through their placements, ascending by sort order.
func (s *PlacementService) ListOrdered(ctx context.Context, owner OwnerID, folder FolderID) ([]OrderedBook, error) {
	var ordered []OrderedBook
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadFolder(tx, owner, folder); err != nil {
			return newServiceError(opListOrdered, "folder_lookup_failed", err)
		}
		placements, err := loadPlacementsOrdered(tx, owner, folder)
		if err != nil {
			return storeFailure(opListOrdered, "placement_query_failed", err)
		}
		if len(placements) == 0 {
			ordered = []OrderedBook{}
			return nil
		}

		bookIDs := make([]string, 0, len(placements))
		for _, placement := range placements {
			bookIDs = append(bookIDs, placement.BookID)
		}
		var books []Book
		err = tx.Where("owner_id = ? AND id IN ?", owner.String(), bookIDs).
			Find(&books).Error
		if err != nil {
			return storeFailure(opListOrdered, "book_query_failed", err)
		}
		byID := make(map[string]Book, len(books))
		for _, book := range books {
			byID[book.ID] = book
		}

		ordered = make([]OrderedBook, 0, len(placements))
		for _, placement := range placements {
			book, ok := byID[placement.BookID]
			if !ok {
				// Orphaned placement; the book row is gone. Skip rather than fail the read.
				continue
			}
			ordered = append(ordered, OrderedBook{Book: book, SortOrder: placement.SortOrder})
		}
		return nil
	})
	if txErr != nil {
		s.logError(opListOrdered, txErr,
			zap.String("owner_id", owner.String()),
			zap.String("folder_id", folder.String()))
		return nil, txErr
	}
	return ordered, nil
}

// Reorder moves the dragged book immediately before the target book inside
// one folder, splice semantics rather than swap. The surviving list is
// renumbered 1..N and every row is rewritten inside a single transaction,
// keeping the order dense. A dragged or target book absent from the folder
// makes the call a silent no-op: cross-folder drags are not reorders and
// are rejected by the mediator before reaching here.
func (s *PlacementService) Reorder(ctx context.Context, owner OwnerID, dragged, target BookID, folder FolderID) error {
	if dragged == target {
		return nil
	}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		placements, err := loadPlacementsOrdered(tx, owner, folder)
		if err != nil {
			return storeFailure(opReorder, "placement_query_failed", err)
		}

		draggedIndex, targetIndex := -1, -1
		for i, placement := range placements {
			switch placement.BookID {
			case dragged.String():
				draggedIndex = i
			case target.String():
				targetIndex = i
			}
		}
		if draggedIndex < 0 || targetIndex < 0 {
			return nil
		}

		moved := placements[draggedIndex]
		remaining := append(append([]Placement{}, placements[:draggedIndex]...), placements[draggedIndex+1:]...)
		insertAt := 0
		for i, placement := range remaining {
			if placement.BookID == target.String() {
				insertAt = i
				break
			}
		}
		resequenced := append(append(append([]Placement{}, remaining[:insertAt]...), moved), remaining[insertAt:]...)

		for position, placement := range resequenced {
			wanted := position + 1
			if placement.SortOrder == wanted {
				continue
			}
			err := tx.Model(&Placement{}).
				Where("owner_id = ? AND folder_id = ? AND book_id = ?",
					owner.String(), folder.String(), placement.BookID).
				Update("sort_order", wanted).Error
			if err != nil {
				return storeFailure(opReorder, "rewrite_failed", err)
			}
		}
		return nil
	})
	if txErr != nil {
		s.logError(opReorder, txErr,
			zap.String("owner_id", owner.String()),
			zap.String("folder_id", folder.String()),
			zap.String("dragged_book_id", dragged.String()),
			zap.String("target_book_id", target.String()))
	}
	return txErr
}

// FoldersHoldingBook lists the folder ids currently holding the book.
// The drag mediator uses it to tell same-folder reorders from cross-folder drops.
func (s *PlacementService) FoldersHoldingBook(ctx context.Context, owner OwnerID, book BookID) ([]FolderID, error) {
	var placements []Placement
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND book_id = ?", owner.String(), book.String()).
		Find(&placements).Error
	if err != nil {
		s.logError(opListOrdered, err,
			zap.String("owner_id", owner.String()),
			zap.String("book_id", book.String()))
		return nil, storeFailure(opListOrdered, "holder_query_failed", err)
	}
	folders := make([]FolderID, 0, len(placements))
	for _, placement := range placements {
		folders = append(folders, FolderID(placement.FolderID))
	}
	return folders, nil
}

// appendPlacement inserts a placement at max(sort_order)+1 within the
// caller's transaction. With skipExisting the duplicate becomes a no-op
// instead of ErrConflict.
func appendPlacement(tx *gorm.DB, owner OwnerID, book BookID, folder FolderID, now time.Time, skipExisting bool) error {
	var existing int64
	err := tx.Model(&Placement{}).
		Where("owner_id = ? AND folder_id = ? AND book_id = ?",
			owner.String(), folder.String(), book.String()).
		Count(&existing).Error
	if err != nil {
		return storeFailure(opPlaceBook, "duplicate_query_failed", err)
	}
	if existing > 0 {
		if skipExisting {
			return nil
		}
		return newServiceError(opPlaceBook, "duplicate_placement",
			fmt.Errorf("%w: book %s already placed in folder %s", ErrConflict, book.String(), folder.String()))
	}

	var maxOrder int
	err = tx.Model(&Placement{}).
		Where("owner_id = ? AND folder_id = ?", owner.String(), folder.String()).
		Select("COALESCE(MAX(sort_order), 0)").
		Scan(&maxOrder).Error
	if err != nil {
		return storeFailure(opPlaceBook, "max_order_query_failed", err)
	}

	placement := Placement{
		OwnerID:   owner.String(),
		FolderID:  folder.String(),
		BookID:    book.String(),
		SortOrder: maxOrder + 1,
		CreatedAt: now,
	}
	if err := tx.Create(&placement).Error; err != nil {
		return storeFailure(opPlaceBook, "insert_failed", err)
	}
	return nil
}

func loadPlacementsOrdered(tx *gorm.DB, owner OwnerID, folder FolderID) ([]Placement, error) {
	var placements []Placement
	err := tx.Where("owner_id = ? AND folder_id = ?", owner.String(), folder.String()).
		Order("sort_order ASC").
		Find(&placements).Error
	return placements, err
}

// requireBook verifies an owner-scoped book row exists inside a transaction.
func requireBook(tx *gorm.DB, owner OwnerID, book BookID) error {
	var row Book
	err := tx.Select("id").
		Where("owner_id = ? AND id = ?", owner.String(), book.String()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: book %s", ErrNotFound, book.String())
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	return nil
}

func compactFolderIDs(folders []FolderID) []FolderID {
	compacted := make([]FolderID, 0, len(folders))
	seen := make(map[FolderID]struct{}, len(folders))
	for _, folder := range folders {
		if folder == "" {
			continue
		}
		if _, duplicate := seen[folder]; duplicate {
			continue
		}
		seen[folder] = struct{}{}
		compacted = append(compacted, folder)
	}
	return compacted
}

func (s *PlacementService) logError(operation string, err error, fields ...zap.Field) {
	attrs := []zap.Field{zap.String("operation", operation)}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("placement service error", attrs...)
}
