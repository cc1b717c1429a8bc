package services

import (
	"context"
	"database/sql/driver"
	"sync"
	"testing"
	"time"

	"github.com/bucketdrive/backend/internal/models"
	"github.com/bucketdrive/backend/internal/storage"
	"github.com/bucketdrive/backend/pkg/logger"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// fakeGateway records storage calls instead of talking to MinIO.
type fakeGateway struct {
	mu      sync.Mutex
	deleted []string
	objects []storage.ObjectInfo
}

func (g *fakeGateway) PresignedPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://storage.test/put/" + key, nil
}

func (g *fakeGateway) PresignedGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://storage.test/get/" + key, nil
}

func (g *fakeGateway) Delete(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, key)
	return nil
}

func (g *fakeGateway) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []storage.ObjectInfo
	for _, obj := range g.objects {
		if prefix == "" || len(obj.Key) >= len(prefix) && obj.Key[:len(prefix)] == prefix {
			out = append(out, obj)
		}
	}
	return out, nil
}

func (g *fakeGateway) EnsureBucket(ctx context.Context) error { return nil }

func (g *fakeGateway) deletedKeys() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.deleted...)
}

type fakePool struct {
	gateway *fakeGateway
}

func (p *fakePool) Gateway(ctx context.Context, bucket *models.Bucket) (storage.Gateway, error) {
	return p.gateway, nil
}

func (p *fakePool) Evict(bucketID uuid.UUID) {}

var testSetupOnce sync.Once

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
		logger.Init()
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	err = db.AutoMigrate(
		&models.User{},
		&models.Bucket{},
		&models.Folder{},
		&models.File{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	return db
}

func createUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		FirstName:    "Test",
		LastName:     "User",
		Role:         models.UserRoleUser,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}
	return user
}

func createBucket(t *testing.T, db *gorm.DB, ownerID uuid.UUID) *models.Bucket {
	t.Helper()
	bucket := &models.Bucket{
		Name:       "test-bucket",
		Endpoint:   "storage.test:9000",
		AccessKey:  "test-access",
		SecretKey:  "test-secret",
		BucketName: "drive",
		OwnerID:    ownerID,
	}
	if err := db.Create(bucket).Error; err != nil {
		t.Fatalf("failed creating test bucket: %v", err)
	}
	return bucket
}

func createFolder(t *testing.T, db *gorm.DB, ownerID, bucketID uuid.UUID, name string, parentID *uuid.UUID, size int64) *models.Folder {
	t.Helper()
	folder := &models.Folder{
		Name:     name,
		Size:     models.NewByteSize(size),
		ParentID: parentID,
		OwnerID:  ownerID,
		BucketID: bucketID,
	}
	if err := db.Create(folder).Error; err != nil {
		t.Fatalf("failed creating test folder: %v", err)
	}
	return folder
}

func createFile(t *testing.T, db *gorm.DB, ownerID, bucketID uuid.UUID, name, key string, parentID *uuid.UUID, size int64) *models.File {
	t.Helper()
	file := &models.File{
		Name:       name,
		MimeType:   "application/octet-stream",
		Size:       models.NewByteSize(size),
		StorageKey: key,
		ParentID:   parentID,
		OwnerID:    ownerID,
		BucketID:   bucketID,
	}
	if err := db.Create(file).Error; err != nil {
		t.Fatalf("failed creating test file: %v", err)
	}
	return file
}

func folderSize(t *testing.T, db *gorm.DB, folderID uuid.UUID) string {
	t.Helper()
	var folder models.Folder
	if err := db.First(&folder, "id = ?", folderID).Error; err != nil {
		t.Fatalf("failed loading folder %s: %v", folderID, err)
	}
	return folder.Size.String()
}
