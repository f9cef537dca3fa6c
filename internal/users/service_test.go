package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/inkwell-labs/inkwell/backend/internal/auth"
)

type recordingProvisioner struct {
	mu     sync.Mutex
	owners []string
	err    error
}

func (p *recordingProvisioner) ProvisionOwner(_ context.Context, ownerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.owners = append(p.owners, ownerID)
	return nil
}

func newUsersTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Identity{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func claimsFor(userID, email string) auth.SessionClaims {
	return auth.SessionClaims{
		UserID:    userID,
		UserEmail: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: userID,
		},
	}
}

func TestResolveOwnerIDCreatesIdentityAndProvisions(t *testing.T) {
	db := newUsersTestDB(t)
	provisioner := &recordingProvisioner{}
	service, err := NewService(ServiceConfig{Database: db, Provisioner: provisioner})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}

	ownerID, err := service.ResolveOwnerID(context.Background(), claimsFor("user-123", "reader@example.com"))
	if err != nil {
		t.Fatalf("failed to resolve owner: %v", err)
	}
	if ownerID != "user-123" {
		t.Fatalf("expected owner id user-123, got %q", ownerID)
	}

	var identity Identity
	if err := db.Where("subject = ?", "user-123").Take(&identity).Error; err != nil {
		t.Fatalf("expected identity row: %v", err)
	}
	if identity.Provider != "default" || identity.Email != "reader@example.com" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if len(provisioner.owners) != 1 || provisioner.owners[0] != "user-123" {
		t.Fatalf("expected provisioner called once for user-123, got %v", provisioner.owners)
	}
}

func TestResolveOwnerIDProvisionsOnlyOnce(t *testing.T) {
	db := newUsersTestDB(t)
	provisioner := &recordingProvisioner{}
	service, err := NewService(ServiceConfig{Database: db, Provisioner: provisioner})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := service.ResolveOwnerID(context.Background(), claimsFor("user-123", "reader@example.com")); err != nil {
			t.Fatalf("resolution %d failed: %v", i, err)
		}
	}
	if len(provisioner.owners) != 1 {
		t.Fatalf("expected a single provisioning call, got %d", len(provisioner.owners))
	}
}

func TestResolveOwnerIDSplitsProviderPrefix(t *testing.T) {
	db := newUsersTestDB(t)
	service, err := NewService(ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}

	ownerID, err := service.ResolveOwnerID(context.Background(), claimsFor("google:sub-42", ""))
	if err != nil {
		t.Fatalf("failed to resolve owner: %v", err)
	}
	if ownerID != "sub-42" {
		t.Fatalf("expected provider prefix stripped, got %q", ownerID)
	}

	var identity Identity
	if err := db.Where("owner_id = ?", "sub-42").Take(&identity).Error; err != nil {
		t.Fatalf("expected identity row: %v", err)
	}
	if identity.Provider != "google" || identity.Subject != "sub-42" {
		t.Fatalf("unexpected provider split: %+v", identity)
	}
}

func TestResolveOwnerIDRejectsEmptyIdentity(t *testing.T) {
	db := newUsersTestDB(t)
	service, err := NewService(ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}

	_, err = service.ResolveOwnerID(context.Background(), auth.SessionClaims{})
	if !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("expected invalid identity error, got %v", err)
	}
}

func TestResolveOwnerIDPropagatesProvisionerFailure(t *testing.T) {
	db := newUsersTestDB(t)
	boom := errors.New("provisioning failed")
	service, err := NewService(ServiceConfig{Database: db, Provisioner: &recordingProvisioner{err: boom}})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}

	_, err = service.ResolveOwnerID(context.Background(), claimsFor("user-123", ""))
	if !errors.Is(err, boom) {
		t.Fatalf("expected provisioner failure surfaced, got %v", err)
	}
}

func TestResolveOwnerIDRefreshesProfileFields(t *testing.T) {
	db := newUsersTestDB(t)
	clock := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	service, err := NewService(ServiceConfig{Database: db, Clock: func() time.Time { return clock }})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}

	if _, err := service.ResolveOwnerID(context.Background(), claimsFor("user-123", "old@example.com")); err != nil {
		t.Fatalf("first resolution failed: %v", err)
	}

	// A fresh service instance has a cold cache and takes the refresh path.
	restarted, err := NewService(ServiceConfig{Database: db, Clock: func() time.Time { return clock }})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	if _, err := restarted.ResolveOwnerID(context.Background(), claimsFor("user-123", "new@example.com")); err != nil {
		t.Fatalf("second resolution failed: %v", err)
	}

	var identity Identity
	if err := db.Where("subject = ?", "user-123").Take(&identity).Error; err != nil {
		t.Fatalf("expected identity row: %v", err)
	}
	if identity.Email != "new@example.com" {
		t.Fatalf("expected refreshed email, got %q", identity.Email)
	}
}
