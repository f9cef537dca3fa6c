package library

import (
	"context"
	"errors"
	"testing"
)

func TestResolvePathWalksNestedSlugs(t *testing.T) {
	env := newTestEnv(t)
	owner := mustOwnerID(t, "owner-1")
	root := env.mustEnsureRoot(t, owner)
	fiction := env.mustCreateFolder(t, owner, "Fiction", FolderID(root.ID))
	scifi := env.mustCreateFolder(t, owner, "SciFi", FolderID(fiction.ID))

	resolution, err := env.folders.ResolvePath(context.Background(), owner, []string{"fiction", "scifi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resolution.Found {
		t.Fatalf("expected path to resolve")
	}
	if resolution.FolderID.String() != scifi.ID {
		t.Fatalf("expected folder id %s, got %s", scifi.ID, resolution.FolderID.String())
	}
	if len(resolution.Breadcrumbs) != 3 {
		t.Fatalf("expected 3 breadcrumbs, got %d", len(resolution.Breadcrumbs))
	}
	if resolution.Breadcrumbs[0].ID != nil || resolution.Breadcrumbs[0].Name != RootName {
		t.Fatalf("expected synthetic Home crumb first, got %+v", resolution.Breadcrumbs[0])
	}
	if resolution.Breadcrumbs[1].Slug != "fiction" || resolution.Breadcrumbs[2].Slug != "scifi" {
		t.Fatalf("unexpected crumb slugs: %+v", resolution.Breadcrumbs)
	}
	if resolution.Breadcrumbs[2].ID == nil || *resolution.Breadcrumbs[2].ID != scifi.ID {
		t.Fatalf("expected final crumb id %s, got %v", scifi.ID, resolution.Breadcrumbs[2].ID)
	}
}

func TestResolvePathMissReturnsPartialCrumbs(t *testing.T) {
	env := newTestEnv(t)
	owner := mustOwnerID(t, "owner-1")
	root := env.mustEnsureRoot(t, owner)
	env.mustCreateFolder(t, owner, "Fiction", FolderID(root.ID))

	resolution, err := env.folders.ResolvePath(context.Background(), owner, []string{"fiction", "missing"})
	if err != nil {
		t.Fatalf("a path miss must not be an error, got %v", err)
	}
	if resolution.Found {
		t.Fatalf("expected not-found signal")
	}
	if resolution.FolderID != "" {
		t.Fatalf("expected empty folder id on miss, got %s", resolution.FolderID)
	}
	if len(resolution.Breadcrumbs) != 2 {
		t.Fatalf("expected crumbs [Home, fiction], got %+v", resolution.Breadcrumbs)
	}
	if resolution.Breadcrumbs[1].Slug != "fiction" {
		t.Fatalf("expected partial crumbs to end at fiction, got %+v", resolution.Breadcrumbs)
	}
}

func TestResolvePathEmptySlugsResolvesRoot(t *testing.T) {
	env := newTestEnv(t)
	owner := mustOwnerID(t, "owner-1")
	root := env.mustEnsureRoot(t, owner)

	resolution, err := env.folders.ResolvePath(context.Background(), owner, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resolution.Found {
		t.Fatalf("expected root resolution")
	}
	if resolution.FolderID.String() != root.ID {
		t.Fatalf("expected root id %s, got %s", root.ID, resolution.FolderID.String())
	}
	if len(resolution.Breadcrumbs) != 1 || resolution.Breadcrumbs[0].Name != RootName {
		t.Fatalf("expected single Home crumb, got %+v", resolution.Breadcrumbs)
	}
}

func TestResolvePathScopedSiblingsOnly(t *testing.T) {
	env := newTestEnv(t)
	owner := mustOwnerID(t, "owner-1")
	root := env.mustEnsureRoot(t, owner)
	fiction := env.mustCreateFolder(t, owner, "Fiction", FolderID(root.ID))
	env.mustCreateFolder(t, owner, "Deep", FolderID(fiction.ID))

	// "deep" exists, but not directly under root.
	resolution, err := env.folders.ResolvePath(context.Background(), owner, []string{"deep"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolution.Found {
		t.Fatalf("expected miss for slug outside the cursor's children")
	}
}

func TestResolvePathRequiresRoot(t *testing.T) {
	env := newTestEnv(t)
	owner := mustOwnerID(t, "owner-1")

	_, err := env.folders.ResolvePath(context.Background(), owner, []string{"fiction"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found without a provisioned root, got %v", err)
	}
}
