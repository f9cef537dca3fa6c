package library

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCreateBookPlacesInInitialFolders(t *testing.T) {
	env := newTestEnv(t)
	owner := mustOwnerID(t, "owner-1")
	root := env.mustEnsureRoot(t, owner)
	shelf := env.mustCreateFolder(t, owner, "Shelf", FolderID(root.ID))

	book, err := env.books.CreateBook(context.Background(), owner, NewBookInput{
		Title:     "  Dune  ",
		Author:    "Frank Herbert",
		ISBN:      "9780441172719",
		FolderIDs: []FolderID{FolderID(root.ID), FolderID(shelf.ID)},
	})
	if err != nil {
		t.Fatalf("failed to create book: %v", err)
	}
	if book.Title != "Dune" {
		t.Fatalf("expected trimmed title, got %q", book.Title)
	}
	if book.Status != BookStatusWishlist {
		t.Fatalf("expected default wishlist status, got %q", book.Status)
	}

	for _, folder := range []FolderID{FolderID(root.ID), FolderID(shelf.ID)} {
		ids := env.orderedBookIDs(t, owner, folder)
		if len(ids) != 1 || ids[0] != book.ID {
			t.Fatalf("expected book placed in %s, got %v", folder, ids)
		}
	}
}

func TestCreateBookRequiresTitle(t *testing.T) {
	env := newTestEnv(t)
	owner := mustOwnerID(t, "owner-1")
	env.mustEnsureRoot(t, owner)

	_, err := env.books.CreateBook(context.Background(), owner, NewBookInput{Title: "   "})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateBookRollsBackOnMissingFolder(t *testing.T) {
	env := newTestEnv(t)
	owner := mustOwnerID(t, "owner-1")
	env.mustEnsureRoot(t, owner)

	_, err := env.books.CreateBook(context.Background(), owner, NewBookInput{
		Title:     "Orphaned",
		FolderIDs: []FolderID{mustFolderID(t, "missing")},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for missing folder, got %v", err)
	}

	var count int64
	if err := env.db.Model(&Book{}).Where("owner_id = ?", owner.String()).Count(&count).Error; err != nil {
		t.Fatalf("failed to count books: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected insert rolled back, found %d books", count)
	}
}

func TestUpdateBookPatchesOnlyProvidedFields(t *testing.T) {
	env := newTestEnv(t)
	owner := mustOwnerID(t, "owner-1")
	env.mustEnsureRoot(t, owner)
	book := env.mustCreateBook(t, owner, "Dune")

	completed := BookStatusCompleted
	notes := "re-read someday"
	updated, err := env.books.UpdateBook(context.Background(), owner, BookID(book.ID), BookUpdate{
		Status: &completed,
		Notes:  &notes,
	})
	if err != nil {
		t.Fatalf("failed to update book: %v", err)
	}
	if updated.Status != BookStatusCompleted || updated.Notes != notes {
		t.Fatalf("unexpected updated record: %+v", updated)
	}
	if updated.Title != "Dune" {
		t.Fatalf("expected untouched title, got %q", updated.Title)
	}
	if updated.Rating != nil {
		t.Fatalf("expected rating untouched, got %v", updated.Rating)
	}
}

func TestUpdateBookRatingRules(t *testing.T) {
	env := newTestEnv(t)
	owner := mustOwnerID(t, "owner-1")
	env.mustEnsureRoot(t, owner)
	book := env.mustCreateBook(t, owner, "Dune")

	rating := 8
	_, err := env.books.UpdateBook(context.Background(), owner, BookID(book.ID), BookUpdate{Rating: &rating})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected rating rejected while not completed, got %v", err)
	}

	completed := BookStatusCompleted
	if _, err := env.books.UpdateBook(context.Background(), owner, BookID(book.ID), BookUpdate{Status: &completed}); err != nil {
		t.Fatalf("failed to mark completed: %v", err)
	}

	outOfRange := 11
	_, err = env.books.UpdateBook(context.Background(), owner, BookID(book.ID), BookUpdate{Rating: &outOfRange})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected out-of-range rating rejected, got %v", err)
	}

	updated, err := env.books.UpdateBook(context.Background(), owner, BookID(book.ID), BookUpdate{Rating: &rating})
	if err != nil {
		t.Fatalf("failed to rate completed book: %v", err)
	}
	if updated.Rating == nil || *updated.Rating != rating {
		t.Fatalf("expected rating %d, got %v", rating, updated.Rating)
	}
}

func TestUpdateBookRecordsDateRead(t *testing.T) {
	env := newTestEnv(t)
	owner := mustOwnerID(t, "owner-1")
	env.mustEnsureRoot(t, owner)
	book := env.mustCreateBook(t, owner, "Dune")

	finished := time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)
	updated, err := env.books.UpdateBook(context.Background(), owner, BookID(book.ID), BookUpdate{DateRead: &finished})
	if err != nil {
		t.Fatalf("failed to set date read: %v", err)
	}
	if updated.DateRead == nil || !updated.DateRead.Equal(finished) {
		t.Fatalf("expected date read %v, got %v", finished, updated.DateRead)
	}
}

func TestDeleteBookRemovesPlacements(t *testing.T) {
	env := newTestEnv(t)
	owner := mustOwnerID(t, "owner-1")
	root := env.mustEnsureRoot(t, owner)
	shelf := env.mustCreateFolder(t, owner, "Shelf", FolderID(root.ID))
	book := env.mustCreateBook(t, owner, "Dune", FolderID(root.ID), FolderID(shelf.ID))

	if err := env.books.DeleteBook(context.Background(), owner, BookID(book.ID)); err != nil {
		t.Fatalf("failed to delete book: %v", err)
	}

	if _, err := env.books.GetBook(context.Background(), owner, BookID(book.ID)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected book gone, got %v", err)
	}
	var placements int64
	if err := env.db.Model(&Placement{}).Where("book_id = ?", book.ID).Count(&placements).Error; err != nil {
		t.Fatalf("failed to count placements: %v", err)
	}
	if placements != 0 {
		t.Fatalf("expected placements removed with the book, got %d", placements)
	}
}

func TestDeleteBookMissing(t *testing.T) {
	env := newTestEnv(t)
	owner := mustOwnerID(t, "owner-1")
	env.mustEnsureRoot(t, owner)

	err := env.books.DeleteBook(context.Background(), owner, mustBookID(t, "missing"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListBooksNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	owner := mustOwnerID(t, "owner-1")
	env.mustEnsureRoot(t, owner)

	older := env.mustCreateBook(t, owner, "Older")
	newer := env.mustCreateBook(t, owner, "Newer")

	books, err := env.books.ListBooks(context.Background(), owner)
	if err != nil {
		t.Fatalf("failed to list books: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("expected 2 books, got %d", len(books))
	}
	if books[0].ID != newer.ID || books[1].ID != older.ID {
		t.Fatalf("expected newest first, got %s then %s", books[0].Title, books[1].Title)
	}
}

func TestBookQueriesAreOwnerScoped(t *testing.T) {
	env := newTestEnv(t)
	alice := mustOwnerID(t, "alice")
	mallory := mustOwnerID(t, "mallory")
	env.mustEnsureRoot(t, alice)
	env.mustEnsureRoot(t, mallory)
	book := env.mustCreateBook(t, alice, "Private")

	if _, err := env.books.GetBook(context.Background(), mallory, BookID(book.ID)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected cross-owner read to miss, got %v", err)
	}
	if err := env.books.DeleteBook(context.Background(), mallory, BookID(book.ID)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected cross-owner delete to miss, got %v", err)
	}
}
