package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

const (
	opFolderServiceNew = "folders.service.new"
	opCreateFolder     = "folders.create"
	opDeleteFolder     = "folders.delete"
	opMoveFolder       = "folders.move"
	opGetRoot          = "folders.root"
	opEnsureRoot       = "folders.ensure_root"
	opListFolders      = "folders.list"
)

// OrphanPolicy decides what happens to child folders when their parent is deleted.
type OrphanPolicy string

const (
	// OrphanReject refuses the delete while child folders remain.
	OrphanReject OrphanPolicy = "reject"
	// OrphanReparent moves child folders to the deleted folder's parent.
	OrphanReparent OrphanPolicy = "reparent"
)

// ParseOrphanPolicy validates a raw policy string; empty input selects OrphanReject.
func ParseOrphanPolicy(raw string) (OrphanPolicy, error) {
	switch OrphanPolicy(raw) {
	case OrphanReject, "":
		return OrphanReject, nil
	case OrphanReparent:
		return OrphanReparent, nil
	default:
		return "", fmt.Errorf("%w: unknown orphan policy %q", ErrValidation, raw)
	}
}

// FolderServiceConfig describes the dependencies of the folder tree manager.
type FolderServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// FolderService owns creation, deletion, and re-parenting of folder nodes
// and enforces the per-owner tree invariants.
type FolderService struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewFolderService constructs the folder tree manager.
func NewFolderService(cfg FolderServiceConfig) (*FolderService, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opFolderServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opFolderServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &FolderService{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// CreateFolder derives a slug from the display name and inserts a folder
// under the given parent. A sibling slug collision fails with ErrConflict;
// the caller retries with a different name, no disambiguating suffix is
// ever appended.
func (s *FolderService) CreateFolder(ctx context.Context, owner OwnerID, name string, parent FolderID) (Folder, error) {
	slug, err := Slugify(name)
	if err != nil {
		return Folder{}, newServiceError(opCreateFolder, "invalid_name", err)
	}
	if slug == RootSlug {
		return Folder{}, newServiceError(opCreateFolder, "reserved_slug",
			fmt.Errorf("%w: slug %q is reserved", ErrConflict, RootSlug))
	}

	var created Folder
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		parentFolder, err := loadFolder(tx, owner, parent)
		if err != nil {
			return newServiceError(opCreateFolder, "parent_lookup_failed", err)
		}

		var collisions int64
		err = tx.Model(&Folder{}).
			Where("owner_id = ? AND parent_id = ? AND slug = ?", owner.String(), parentFolder.ID, slug).
			Count(&collisions).Error
		if err != nil {
			return storeFailure(opCreateFolder, "sibling_query_failed", err)
		}
		if collisions > 0 {
			return newServiceError(opCreateFolder, "slug_conflict",
				fmt.Errorf("%w: slug %q already exists under parent %s", ErrConflict, slug, parentFolder.ID))
		}

		folderID, err := s.idProvider.NewID()
		if err != nil {
			return newServiceError(opCreateFolder, "id_generation_failed", err)
		}
		now := s.clock().UTC()
		created = Folder{
			ID:        folderID,
			OwnerID:   owner.String(),
			ParentID:  &parentFolder.ID,
			Name:      name,
			Slug:      slug,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&created).Error; err != nil {
			return storeFailure(opCreateFolder, "insert_failed", err)
		}
		return nil
	})
	if txErr != nil {
		s.logError(opCreateFolder, txErr, zap.String("owner_id", owner.String()))
		return Folder{}, txErr
	}
	return created, nil
}

// DeleteFolder removes an empty folder. Deleting the root fails with
// ErrForbidden; remaining placements fail with ErrNotEmpty. Child folders
// are handled per the orphan policy: OrphanReject refuses the delete,
// OrphanReparent moves them to the deleted folder's parent in the same
// transaction.
func (s *FolderService) DeleteFolder(ctx context.Context, owner OwnerID, folder FolderID, policy OrphanPolicy) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := loadFolder(tx, owner, folder)
		if err != nil {
			return newServiceError(opDeleteFolder, "folder_lookup_failed", err)
		}
		if target.IsRoot() {
			return newServiceError(opDeleteFolder, "root_forbidden",
				fmt.Errorf("%w: root folder cannot be deleted", ErrForbidden))
		}

		var placed int64
		err = tx.Model(&Placement{}).
			Where("owner_id = ? AND folder_id = ?", owner.String(), target.ID).
			Count(&placed).Error
		if err != nil {
			return storeFailure(opDeleteFolder, "placement_count_failed", err)
		}
		if placed > 0 {
			return newServiceError(opDeleteFolder, "folder_not_empty",
				fmt.Errorf("%w: %d book placements remain", ErrNotEmpty, placed))
		}

		var children []Folder
		err = tx.Where("owner_id = ? AND parent_id = ?", owner.String(), target.ID).
			Find(&children).Error
		if err != nil {
			return storeFailure(opDeleteFolder, "children_query_failed", err)
		}
		if len(children) > 0 {
			switch policy {
			case OrphanReparent:
				if err := reparentChildren(tx, owner, target, children); err != nil {
					return err
				}
			default:
				return newServiceError(opDeleteFolder, "children_remain",
					fmt.Errorf("%w: %d child folders remain", ErrNotEmpty, len(children)))
			}
		}

		if err := tx.Where("owner_id = ? AND id = ?", owner.String(), target.ID).
			Delete(&Folder{}).Error; err != nil {
			return storeFailure(opDeleteFolder, "delete_failed", err)
		}
		return nil
	})
	if txErr != nil {
		s.logError(opDeleteFolder, txErr,
			zap.String("owner_id", owner.String()),
			zap.String("folder_id", folder.String()))
	}
	return txErr
}

// reparentChildren lifts the children of a folder being deleted to its parent.
// A slug collision among the new siblings aborts the delete.
func reparentChildren(tx *gorm.DB, owner OwnerID, target Folder, children []Folder) error {
	for _, child := range children {
		var collisions int64
		err := tx.Model(&Folder{}).
			Where("owner_id = ? AND parent_id = ? AND slug = ? AND id <> ?",
				owner.String(), *target.ParentID, child.Slug, child.ID).
			Count(&collisions).Error
		if err != nil {
			return storeFailure(opDeleteFolder, "reparent_collision_query_failed", err)
		}
		if collisions > 0 {
			return newServiceError(opDeleteFolder, "reparent_slug_conflict",
				fmt.Errorf("%w: child slug %q collides under new parent", ErrConflict, child.Slug))
		}
	}
	err := tx.Model(&Folder{}).
		Where("owner_id = ? AND parent_id = ?", owner.String(), target.ID).
		Update("parent_id", *target.ParentID).Error
	if err != nil {
		return storeFailure(opDeleteFolder, "reparent_failed", err)
	}
	return nil
}

// MoveFolder re-parents a folder. The move is rejected when the new parent
// is the folder itself or any of its descendants, when the root is moved,
// or when the folder's slug collides with a sibling at the destination.
func (s *FolderService) MoveFolder(ctx context.Context, owner OwnerID, folder FolderID, newParent FolderID) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := loadFolder(tx, owner, folder)
		if err != nil {
			return newServiceError(opMoveFolder, "folder_lookup_failed", err)
		}
		if target.IsRoot() {
			return newServiceError(opMoveFolder, "root_forbidden",
				fmt.Errorf("%w: root folder cannot be moved", ErrForbidden))
		}
		destination, err := loadFolder(tx, owner, newParent)
		if err != nil {
			return newServiceError(opMoveFolder, "parent_lookup_failed", err)
		}

		if err := rejectCycle(tx, owner, target, destination); err != nil {
			return err
		}

		var collisions int64
		err = tx.Model(&Folder{}).
			Where("owner_id = ? AND parent_id = ? AND slug = ? AND id <> ?",
				owner.String(), destination.ID, target.Slug, target.ID).
			Count(&collisions).Error
		if err != nil {
			return storeFailure(opMoveFolder, "sibling_query_failed", err)
		}
		if collisions > 0 {
			return newServiceError(opMoveFolder, "slug_conflict",
				fmt.Errorf("%w: slug %q already exists under parent %s", ErrConflict, target.Slug, destination.ID))
		}

		err = tx.Model(&Folder{}).
			Where("owner_id = ? AND id = ?", owner.String(), target.ID).
			Update("parent_id", destination.ID).Error
		if err != nil {
			return storeFailure(opMoveFolder, "update_failed", err)
		}
		return nil
	})
	if txErr != nil {
		s.logError(opMoveFolder, txErr,
			zap.String("owner_id", owner.String()),
			zap.String("folder_id", folder.String()),
			zap.String("new_parent_id", newParent.String()))
	}
	return txErr
}

// rejectCycle fails when destination is the moved folder itself or sits
// anywhere below it. The owner's folders are loaded flat and the parent
// chain is walked upward from the destination.
func rejectCycle(tx *gorm.DB, owner OwnerID, target, destination Folder) error {
	if destination.ID == target.ID {
		return newServiceError(opMoveFolder, "cycle_rejected",
			fmt.Errorf("%w: folder cannot become its own parent", ErrValidation))
	}

	var all []Folder
	if err := tx.Where("owner_id = ?", owner.String()).Find(&all).Error; err != nil {
		return storeFailure(opMoveFolder, "tree_query_failed", err)
	}
	parents := make(map[string]*string, len(all))
	for _, node := range all {
		parents[node.ID] = node.ParentID
	}

	cursor := destination.ParentID
	for steps := 0; cursor != nil && steps <= len(all); steps++ {
		if *cursor == target.ID {
			return newServiceError(opMoveFolder, "cycle_rejected",
				fmt.Errorf("%w: folder cannot move below its own descendant", ErrValidation))
		}
		cursor = parents[*cursor]
	}
	return nil
}

// GetRootID returns the owner's root folder id, the default landing folder.
func (s *FolderService) GetRootID(ctx context.Context, owner OwnerID) (FolderID, error) {
	var root Folder
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND parent_id IS NULL", owner.String()).
		Take(&root).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", newServiceError(opGetRoot, "root_missing",
			fmt.Errorf("%w: owner has no root folder", ErrNotFound))
	}
	if err != nil {
		s.logError(opGetRoot, err, zap.String("owner_id", owner.String()))
		return "", storeFailure(opGetRoot, "query_failed", err)
	}
	return FolderID(root.ID), nil
}

// EnsureRoot creates the owner's root folder when absent and returns it.
// Called once at account provisioning; safe to call again.
func (s *FolderService) EnsureRoot(ctx context.Context, owner OwnerID) (Folder, error) {
	var root Folder
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("owner_id = ? AND parent_id IS NULL", owner.String()).
			Take(&root).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return storeFailure(opEnsureRoot, "query_failed", err)
		}

		rootID, err := s.idProvider.NewID()
		if err != nil {
			return newServiceError(opEnsureRoot, "id_generation_failed", err)
		}
		now := s.clock().UTC()
		root = Folder{
			ID:        rootID,
			OwnerID:   owner.String(),
			ParentID:  nil,
			Name:      RootName,
			Slug:      RootSlug,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&root).Error; err != nil {
			return storeFailure(opEnsureRoot, "insert_failed", err)
		}
		return nil
	})
	if txErr != nil {
		s.logError(opEnsureRoot, txErr, zap.String("owner_id", owner.String()))
		return Folder{}, txErr
	}
	return root, nil
}

// ProvisionOwner creates the root folder for a newly seen owner. It exists
// so the identity layer can depend on provisioning without importing the
// folder types.
func (s *FolderService) ProvisionOwner(ctx context.Context, ownerID string) error {
	owner, err := NewOwnerID(ownerID)
	if err != nil {
		return err
	}
	_, err = s.EnsureRoot(ctx, owner)
	return err
}

// ListFolders returns the owner's folders as a flat list, oldest first.
// Callers assemble the nested tree client-side from ParentID references.
func (s *FolderService) ListFolders(ctx context.Context, owner OwnerID) ([]Folder, error) {
	var folders []Folder
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", owner.String()).
		Order("created_at ASC").
		Find(&folders).Error
	if err != nil {
		s.logError(opListFolders, err, zap.String("owner_id", owner.String()))
		return nil, storeFailure(opListFolders, "query_failed", err)
	}
	return folders, nil
}

// loadFolder fetches one owner-scoped folder row inside a transaction.
func loadFolder(tx *gorm.DB, owner OwnerID, folder FolderID) (Folder, error) {
	var row Folder
	err := tx.Where("owner_id = ? AND id = ?", owner.String(), folder.String()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Folder{}, fmt.Errorf("%w: folder %s", ErrNotFound, folder.String())
	}
	if err != nil {
		return Folder{}, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return row, nil
}

func (s *FolderService) logError(operation string, err error, fields ...zap.Field) {
	attrs := []zap.Field{zap.String("operation", operation)}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("folder service error", attrs...)
}
