package services

import (
	"errors"
	"fmt"
	"testing"
)

func TestResolveReturnsFreeKeyUnchanged(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db)
	bucket := createBucket(t, db, user.ID)

	alloc := NewKeyAllocator(db, 25)
	name, key, err := alloc.Resolve(bucket.ID, "Docs/a.txt", map[string]bool{})
	if err != nil {
		t.Fatalf("resolving: %v", err)
	}
	if name != "a.txt" || key != "Docs/a.txt" {
		t.Fatalf("resolved = (%q, %q)", name, key)
	}
}

func TestResolveRenamesBeforeExtension(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db)
	bucket := createBucket(t, db, user.ID)
	createFile(t, db, user.ID, bucket.ID, "a.txt", "Docs/a.txt", nil, 1)

	alloc := NewKeyAllocator(db, 25)
	name, key, err := alloc.Resolve(bucket.ID, "Docs/a.txt", map[string]bool{})
	if err != nil {
		t.Fatalf("resolving: %v", err)
	}
	if name != "a(1).txt" || key != "Docs/a(1).txt" {
		t.Fatalf("resolved = (%q, %q), want (a(1).txt, Docs/a(1).txt)", name, key)
	}
}

func TestResolveCountsPastExistingRenames(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db)
	bucket := createBucket(t, db, user.ID)
	createFile(t, db, user.ID, bucket.ID, "a.txt", "a.txt", nil, 1)
	createFile(t, db, user.ID, bucket.ID, "a(1).txt", "a(1).txt", nil, 1)

	alloc := NewKeyAllocator(db, 25)
	name, key, err := alloc.Resolve(bucket.ID, "a.txt", map[string]bool{})
	if err != nil {
		t.Fatalf("resolving: %v", err)
	}
	if name != "a(2).txt" || key != "a(2).txt" {
		t.Fatalf("resolved = (%q, %q), want (a(2).txt, a(2).txt)", name, key)
	}
}

func TestResolveHandlesExtensionlessNames(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db)
	bucket := createBucket(t, db, user.ID)
	createFile(t, db, user.ID, bucket.ID, "Makefile", "Makefile", nil, 1)

	alloc := NewKeyAllocator(db, 25)
	name, key, err := alloc.Resolve(bucket.ID, "Makefile", map[string]bool{})
	if err != nil {
		t.Fatalf("resolving: %v", err)
	}
	if name != "Makefile(1)" || key != "Makefile(1)" {
		t.Fatalf("resolved = (%q, %q)", name, key)
	}
}

func TestResolveTreatsDotfilesAsExtensionless(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db)
	bucket := createBucket(t, db, user.ID)
	createFile(t, db, user.ID, bucket.ID, ".gitignore", ".gitignore", nil, 1)

	alloc := NewKeyAllocator(db, 25)
	name, key, err := alloc.Resolve(bucket.ID, ".gitignore", map[string]bool{})
	if err != nil {
		t.Fatalf("resolving: %v", err)
	}
	if name != ".gitignore(1)" || key != ".gitignore(1)" {
		t.Fatalf("resolved = (%q, %q)", name, key)
	}
}

func TestResolveRespectsTakenSet(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db)
	bucket := createBucket(t, db, user.ID)

	// nothing persisted yet, but an earlier grant in the same request
	// already claimed the key
	taken := map[string]bool{"Docs/a.txt": true}
	alloc := NewKeyAllocator(db, 25)
	name, key, err := alloc.Resolve(bucket.ID, "Docs/a.txt", taken)
	if err != nil {
		t.Fatalf("resolving: %v", err)
	}
	if name != "a(1).txt" || key != "Docs/a(1).txt" {
		t.Fatalf("resolved = (%q, %q)", name, key)
	}
	if !taken["Docs/a(1).txt"] {
		t.Fatal("result must be added to the taken set")
	}
}

func TestResolveScopesCollisionsToBucket(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db)
	bucket := createBucket(t, db, user.ID)
	other := createBucket(t, db, user.ID)
	createFile(t, db, user.ID, other.ID, "a.txt", "Docs/a.txt", nil, 1)

	// the same key in another bucket is no collision
	alloc := NewKeyAllocator(db, 25)
	_, key, err := alloc.Resolve(bucket.ID, "Docs/a.txt", map[string]bool{})
	if err != nil {
		t.Fatalf("resolving: %v", err)
	}
	if key != "Docs/a.txt" {
		t.Fatalf("key = %q, want Docs/a.txt", key)
	}
}

func TestResolveExhaustsBudget(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db)
	bucket := createBucket(t, db, user.ID)

	createFile(t, db, user.ID, bucket.ID, "a.txt", "a.txt", nil, 1)
	for i := 1; i <= 3; i++ {
		name := fmt.Sprintf("a(%d).txt", i)
		createFile(t, db, user.ID, bucket.ID, name, name, nil, 1)
	}

	alloc := NewKeyAllocator(db, 3)
	_, _, err := alloc.Resolve(bucket.ID, "a.txt", map[string]bool{})
	if !errors.Is(err, ErrKeyCollisionBudget) {
		t.Fatalf("err = %v, want ErrKeyCollisionBudget", err)
	}
}
