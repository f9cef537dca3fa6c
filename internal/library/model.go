package library

import (
	"fmt"
	"strings"
	"time"
)

const maxIdentifierLength = 190

// RootSlug is the reserved slug of the distinguished root folder each owner holds.
const RootSlug = "root"

// RootName is the display name given to the root folder at provisioning time.
const RootName = "Home"

// BookStatus enumerates the reading lifecycle of a catalogued book.
type BookStatus string

const (
	// BookStatusWishlist marks a book the owner intends to read.
	BookStatusWishlist BookStatus = "wishlist"
	// BookStatusReading marks a book currently being read.
	BookStatusReading BookStatus = "reading"
	// BookStatusCompleted marks a finished book; rating and date_read apply only here.
	BookStatusCompleted BookStatus = "completed"
)

// ParseBookStatus validates a raw status string.
func ParseBookStatus(raw string) (BookStatus, error) {
	switch BookStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case BookStatusWishlist:
		return BookStatusWishlist, nil
	case BookStatusReading:
		return BookStatusReading, nil
	case BookStatusCompleted:
		return BookStatusCompleted, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, raw)
	}
}

// OwnerID represents a validated owner identifier; every query is scoped by it.
type OwnerID string

// NewOwnerID validates raw input and returns an OwnerID.
func NewOwnerID(rawInput string) (OwnerID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty owner id", ErrValidation)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: owner id exceeds %d characters", ErrValidation, maxIdentifierLength)
	}
	return OwnerID(trimmed), nil
}

// String returns the underlying string identifier.
func (id OwnerID) String() string {
	return string(id)
}

// FolderID represents a validated folder identifier.
type FolderID string

// NewFolderID validates raw input and returns a FolderID.
func NewFolderID(rawInput string) (FolderID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty folder id", ErrValidation)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: folder id exceeds %d characters", ErrValidation, maxIdentifierLength)
	}
	return FolderID(trimmed), nil
}

// String returns the underlying string identifier.
func (id FolderID) String() string {
	return string(id)
}

// BookID represents a validated book identifier.
type BookID string

// NewBookID validates raw input and returns a BookID.
func NewBookID(rawInput string) (BookID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty book id", ErrValidation)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: book id exceeds %d characters", ErrValidation, maxIdentifierLength)
	}
	return BookID(trimmed), nil
}

// String returns the underlying string identifier.
func (id BookID) String() string {
	return string(id)
}

// Folder models one node of the per-owner organization tree.
// Exactly one folder per owner has a nil ParentID and the reserved root slug.
type Folder struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	OwnerID   string    `gorm:"column:owner_id;size:190;not null;uniqueIndex:idx_folders_owner_parent_slug,priority:1;index:idx_folders_owner_parent,priority:1"`
	ParentID  *string   `gorm:"column:parent_id;size:190;uniqueIndex:idx_folders_owner_parent_slug,priority:2;index:idx_folders_owner_parent,priority:2"`
	Name      string    `gorm:"column:name;size:320;not null"`
	Slug      string    `gorm:"column:slug;size:320;not null;uniqueIndex:idx_folders_owner_parent_slug,priority:3"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Folder) TableName() string {
	return "folders"
}

// IsRoot reports whether the folder is the owner's distinguished root.
func (f Folder) IsRoot() bool {
	return f.ParentID == nil
}

// Book models one catalogue record. A book belongs to exactly one owner and
// may be placed into any number of folders through Placement rows.
type Book struct {
	ID          string     `gorm:"column:id;primaryKey;size:190;not null"`
	OwnerID     string     `gorm:"column:owner_id;size:190;not null;index:idx_books_owner"`
	Title       string     `gorm:"column:title;size:512;not null"`
	Author      string     `gorm:"column:author;size:512"`
	ISBN        string     `gorm:"column:isbn;size:32"`
	CatalogueID string     `gorm:"column:source_catalogue_id;size:190"`
	CoverURL    string     `gorm:"column:cover_url;size:1024"`
	Status      BookStatus `gorm:"column:status;size:16;not null;default:wishlist"`
	Rating      *int       `gorm:"column:rating"`
	Notes       string     `gorm:"column:notes;type:text"`
	DateRead    *time.Time `gorm:"column:date_read"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Book) TableName() string {
	return "books"
}

// Placement asserts that a book belongs to a folder, with a per-folder
// ordering position. SortOrder values are kept dense (1..N) by the
// ordering engine's write path; only SortOrder is ever updated in place.
type Placement struct {
	OwnerID   string    `gorm:"column:owner_id;primaryKey;size:190;not null"`
	FolderID  string    `gorm:"column:folder_id;primaryKey;size:190;not null;index:idx_placements_folder_order,priority:1"`
	BookID    string    `gorm:"column:book_id;primaryKey;size:190;not null"`
	SortOrder int       `gorm:"column:sort_order;not null;index:idx_placements_folder_order,priority:2"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Placement) TableName() string {
	return "folder_books"
}
