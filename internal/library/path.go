package library

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const opResolvePath = "folders.resolve_path"

// Breadcrumb is one entry of the navigation trail from the root to a
// resolved folder. The first crumb is always the synthetic "Home" entry
// with a nil ID.
type Breadcrumb struct {
	ID   *string `json:"id"`
	Name string  `json:"name"`
	Slug string  `json:"slug"`
}

// PathResolution is the result of walking a slug path. When Found is false
// the path broke partway; Breadcrumbs holds whatever was accumulated and
// callers treat the result as a redirect-to-root signal, not an error.
type PathResolution struct {
	FolderID    FolderID     `json:"folder_id"`
	Breadcrumbs []Breadcrumb `json:"breadcrumbs"`
	Found       bool         `json:"found"`
}

// ResolvePath walks a sequence of slugs from the owner's root and builds
// the breadcrumb trail. An empty slug list resolves to the root itself.
// Each step is one lookup scoped to the current cursor folder; a miss at
// any step stops the walk. Store failures surface as ErrStore.
func (s *FolderService) ResolvePath(ctx context.Context, owner OwnerID, slugs []string) (PathResolution, error) {
	var root Folder
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND parent_id IS NULL", owner.String()).
		Take(&root).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PathResolution{}, newServiceError(opResolvePath, "root_missing",
			fmt.Errorf("%w: owner has no root folder", ErrNotFound))
	}
	if err != nil {
		s.logError(opResolvePath, err, zap.String("owner_id", owner.String()))
		return PathResolution{}, storeFailure(opResolvePath, "root_query_failed", err)
	}

	resolution := PathResolution{
		FolderID:    FolderID(root.ID),
		Breadcrumbs: []Breadcrumb{{ID: nil, Name: RootName, Slug: RootSlug}},
		Found:       true,
	}

	cursor := root.ID
	for _, slug := range slugs {
		var next Folder
		err := s.db.WithContext(ctx).
			Where("owner_id = ? AND parent_id = ? AND slug = ?", owner.String(), cursor, slug).
			Take(&next).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			resolution.Found = false
			resolution.FolderID = ""
			return resolution, nil
		}
		if err != nil {
			s.logError(opResolvePath, err,
				zap.String("owner_id", owner.String()),
				zap.String("slug", slug))
			return PathResolution{}, storeFailure(opResolvePath, "step_query_failed", err)
		}
		crumbID := next.ID
		resolution.Breadcrumbs = append(resolution.Breadcrumbs, Breadcrumb{
			ID:   &crumbID,
			Name: next.Name,
			Slug: next.Slug,
		})
		cursor = next.ID
		resolution.FolderID = FolderID(next.ID)
	}

	return resolution, nil
}
