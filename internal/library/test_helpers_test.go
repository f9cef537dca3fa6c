package library

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// seqIDProvider issues deterministic identifiers for assertions.
type seqIDProvider struct {
	mu     sync.Mutex
	prefix string
	next   int
}

func (p *seqIDProvider) NewID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return fmt.Sprintf("%s-%d", p.prefix, p.next), nil
}

// tickingClock advances one second per reading so created_at ordering is stable.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type testEnv struct {
	db         *gorm.DB
	folders    *FolderService
	books      *BookService
	placements *PlacementService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Folder{}, &Book{}, &Placement{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	clock := &tickingClock{now: time.Unix(1700000000, 0).UTC()}

	folders, err := NewFolderService(FolderServiceConfig{
		Database:   db,
		Clock:      clock.Now,
		IDProvider: &seqIDProvider{prefix: "folder"},
	})
	if err != nil {
		t.Fatalf("failed to build folder service: %v", err)
	}
	books, err := NewBookService(BookServiceConfig{
		Database:   db,
		Clock:      clock.Now,
		IDProvider: &seqIDProvider{prefix: "book"},
	})
	if err != nil {
		t.Fatalf("failed to build book service: %v", err)
	}
	placements, err := NewPlacementService(PlacementServiceConfig{
		Database: db,
		Clock:    clock.Now,
	})
	if err != nil {
		t.Fatalf("failed to build placement service: %v", err)
	}

	return &testEnv{db: db, folders: folders, books: books, placements: placements}
}

func mustOwnerID(t *testing.T, value string) OwnerID {
	t.Helper()
	id, err := NewOwnerID(value)
	if err != nil {
		t.Fatalf("unexpected owner id error: %v", err)
	}
	return id
}

func mustFolderID(t *testing.T, value string) FolderID {
	t.Helper()
	id, err := NewFolderID(value)
	if err != nil {
		t.Fatalf("unexpected folder id error: %v", err)
	}
	return id
}

func mustBookID(t *testing.T, value string) BookID {
	t.Helper()
	id, err := NewBookID(value)
	if err != nil {
		t.Fatalf("unexpected book id error: %v", err)
	}
	return id
}

func (env *testEnv) mustEnsureRoot(t *testing.T, owner OwnerID) Folder {
	t.Helper()
	root, err := env.folders.EnsureRoot(context.Background(), owner)
	if err != nil {
		t.Fatalf("failed to ensure root: %v", err)
	}
	return root
}

func (env *testEnv) mustCreateFolder(t *testing.T, owner OwnerID, name string, parent FolderID) Folder {
	t.Helper()
	folder, err := env.folders.CreateFolder(context.Background(), owner, name, parent)
	if err != nil {
		t.Fatalf("failed to create folder %q: %v", name, err)
	}
	return folder
}

func (env *testEnv) mustCreateBook(t *testing.T, owner OwnerID, title string, folders ...FolderID) Book {
	t.Helper()
	book, err := env.books.CreateBook(context.Background(), owner, NewBookInput{
		Title:     title,
		FolderIDs: folders,
	})
	if err != nil {
		t.Fatalf("failed to create book %q: %v", title, err)
	}
	return book
}

func (env *testEnv) orderedBookIDs(t *testing.T, owner OwnerID, folder FolderID) []string {
	t.Helper()
	ordered, err := env.placements.ListOrdered(context.Background(), owner, folder)
	if err != nil {
		t.Fatalf("failed to list folder contents: %v", err)
	}
	ids := make([]string, 0, len(ordered))
	for _, entry := range ordered {
		ids = append(ids, entry.Book.ID)
	}
	return ids
}
