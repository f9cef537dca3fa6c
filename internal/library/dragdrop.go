package library

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const opDrag = "dragdrop.apply"

var (
	errMissingFolderMover = errors.New("folder mover dependency required")
	errMissingBookPlacer  = errors.New("book placer dependency required")
)

// DragKind tells folders and books apart in drag payloads.
type DragKind string

const (
	// DragKindBook marks a dragged or dropped-on catalogue record.
	DragKindBook DragKind = "book"
	// DragKindFolder marks a dragged or dropped-on folder node.
	DragKindFolder DragKind = "folder"
)

// ParseDragKind validates a raw kind string.
func ParseDragKind(raw string) (DragKind, error) {
	switch DragKind(raw) {
	case DragKindBook:
		return DragKindBook, nil
	case DragKindFolder:
		return DragKindFolder, nil
	default:
		return "", fmt.Errorf("%w: unknown drag kind %q", ErrValidation, raw)
	}
}

// DragItem is the picked-up side of a pointer drag.
type DragItem struct {
	ID             string
	Kind           DragKind
	SourceFolderID FolderID
}

// DropTarget is the released-on side of a pointer drag.
type DropTarget struct {
	ID   string
	Kind DragKind
}

// DragOutcome reports which operation a drag resolved to.
type DragOutcome string

const (
	// DragOutcomeBookMoved means the book changed folders.
	DragOutcomeBookMoved DragOutcome = "book_moved"
	// DragOutcomeFolderMoved means the folder was re-parented.
	DragOutcomeFolderMoved DragOutcome = "folder_moved"
	// DragOutcomeReordered means the book changed position within its folder.
	DragOutcomeReordered DragOutcome = "reordered"
	// DragOutcomeIgnored means the gesture mapped to no valid operation.
	DragOutcomeIgnored DragOutcome = "ignored"
)

// FolderMover is the slice of the folder tree manager the mediator consumes.
type FolderMover interface {
	MoveFolder(ctx context.Context, owner OwnerID, folder FolderID, newParent FolderID) error
}

// BookPlacer is the slice of the ordering engine the mediator consumes.
type BookPlacer interface {
	PlaceBook(ctx context.Context, owner OwnerID, book BookID, folder FolderID, previousFolder *FolderID) error
	Reorder(ctx context.Context, owner OwnerID, dragged, target BookID, folder FolderID) error
	FoldersHoldingBook(ctx context.Context, owner OwnerID, book BookID) ([]FolderID, error)
}

// DragMediatorConfig describes the dependencies of the mediator.
type DragMediatorConfig struct {
	Folders FolderMover
	Books   BookPlacer
	Logger  *zap.Logger
}

// DragMediator translates a pointer-drag gesture into exactly one of:
// cross-folder book move, folder re-parent, or within-folder reorder.
// It holds no store access of its own.
type DragMediator struct {
	folders FolderMover
	books   BookPlacer
	logger  *zap.Logger
}

// NewDragMediator constructs the mediator.
func NewDragMediator(cfg DragMediatorConfig) (*DragMediator, error) {
	if cfg.Folders == nil {
		return nil, newServiceError(opDrag, "missing_folder_mover", errMissingFolderMover)
	}
	if cfg.Books == nil {
		return nil, newServiceError(opDrag, "missing_book_placer", errMissingBookPlacer)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &DragMediator{folders: cfg.Folders, books: cfg.Books, logger: logger}, nil
}

// Apply resolves one drag gesture.
//
//   - book on folder: move into the target folder, out of the source folder.
//   - folder on folder: re-parent, subject to the tree manager's cycle check.
//   - book on book in the same folder: reorder before the target.
//   - book on book across folders: ignored; cross-folder drops are expressed
//     by dropping on the folder itself.
func (m *DragMediator) Apply(ctx context.Context, owner OwnerID, item DragItem, target DropTarget) (DragOutcome, error) {
	switch {
	case item.Kind == DragKindBook && target.Kind == DragKindFolder:
		book, err := NewBookID(item.ID)
		if err != nil {
			return DragOutcomeIgnored, newServiceError(opDrag, "invalid_book_id", err)
		}
		folder, err := NewFolderID(target.ID)
		if err != nil {
			return DragOutcomeIgnored, newServiceError(opDrag, "invalid_folder_id", err)
		}
		previous := item.SourceFolderID
		if err := m.books.PlaceBook(ctx, owner, book, folder, &previous); err != nil {
			return DragOutcomeIgnored, err
		}
		return DragOutcomeBookMoved, nil

	case item.Kind == DragKindFolder && target.Kind == DragKindFolder:
		folder, err := NewFolderID(item.ID)
		if err != nil {
			return DragOutcomeIgnored, newServiceError(opDrag, "invalid_folder_id", err)
		}
		parent, err := NewFolderID(target.ID)
		if err != nil {
			return DragOutcomeIgnored, newServiceError(opDrag, "invalid_folder_id", err)
		}
		if err := m.folders.MoveFolder(ctx, owner, folder, parent); err != nil {
			return DragOutcomeIgnored, err
		}
		return DragOutcomeFolderMoved, nil

	case item.Kind == DragKindBook && target.Kind == DragKindBook:
		dragged, err := NewBookID(item.ID)
		if err != nil {
			return DragOutcomeIgnored, newServiceError(opDrag, "invalid_book_id", err)
		}
		targetBook, err := NewBookID(target.ID)
		if err != nil {
			return DragOutcomeIgnored, newServiceError(opDrag, "invalid_book_id", err)
		}
		holders, err := m.books.FoldersHoldingBook(ctx, owner, targetBook)
		if err != nil {
			return DragOutcomeIgnored, err
		}
		if !containsFolder(holders, item.SourceFolderID) {
			m.logger.Debug("cross-folder book drop ignored",
				zap.String("owner_id", owner.String()),
				zap.String("dragged_book_id", dragged.String()),
				zap.String("target_book_id", targetBook.String()))
			return DragOutcomeIgnored, nil
		}
		if err := m.books.Reorder(ctx, owner, dragged, targetBook, item.SourceFolderID); err != nil {
			return DragOutcomeIgnored, err
		}
		return DragOutcomeReordered, nil

	default:
		// Folder dropped on a book has no meaning.
		return DragOutcomeIgnored, nil
	}
}

func containsFolder(folders []FolderID, wanted FolderID) bool {
	for _, folder := range folders {
		if folder == wanted {
			return true
		}
	}
	return false
}
