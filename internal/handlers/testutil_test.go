package handlers

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bucketdrive/backend/internal/middleware"
	"github.com/bucketdrive/backend/internal/models"
	"github.com/bucketdrive/backend/internal/services"
	"github.com/bucketdrive/backend/internal/storage"
	"github.com/bucketdrive/backend/pkg/logger"
	"github.com/bucketdrive/backend/pkg/utils"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type testEnv struct {
	app     *fiber.App
	db      *gorm.DB
	storage *fakeGateway
}

// fakeGateway records storage calls instead of talking to MinIO.
type fakeGateway struct {
	mu       sync.Mutex
	deleted  []string
	presigns []string
	objects  []storage.ObjectInfo
}

func (g *fakeGateway) PresignedPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.presigns = append(g.presigns, key)
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

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
		logger.Init()
		utils.ConfigureJWT("test-secret", 24)
		utils.ConfigureEncryption("test-encryption-secret")
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

	gateway := &fakeGateway{}
	pool := &fakePool{gateway: gateway}

	sizeService := services.NewSizeService(db)
	cascadeService := services.NewCascadeService(db, pool, sizeService, false)
	keyAllocator := services.NewKeyAllocator(db, 25)
	quotaService := &services.QuotaService{MaxRunBytes: 1000, MaxRunFiles: 100}
	reconciler := services.NewReconciler(db, pool)

	authHandler := NewAuthHandler(db)
	bucketsHandler := NewBucketsHandler(db, pool, reconciler)
	foldersHandler := NewFoldersHandler(db, sizeService, cascadeService)
	filesHandler := NewFilesHandler(db, pool, cascadeService, 15*time.Minute)
	uploadsHandler := NewUploadsHandler(db, pool, keyAllocator, quotaService, 15*time.Minute)
	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 100 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)

	bucketRoutes := api.Group("/buckets", authMiddleware.RequireAuth)
	bucketRoutes.Post("/", bucketsHandler.Attach)
	bucketRoutes.Get("/", bucketsHandler.List)
	bucketRoutes.Get("/:id", bucketsHandler.Get)
	bucketRoutes.Delete("/:id", bucketsHandler.Detach)
	bucketRoutes.Post("/:id/reconcile", bucketsHandler.Reconcile)

	folderRoutes := api.Group("/folders", authMiddleware.RequireAuth)
	folderRoutes.Post("/", foldersHandler.Create)
	folderRoutes.Get("/", foldersHandler.ListRoot)
	folderRoutes.Post("/sizes", foldersHandler.CommitSizes)
	folderRoutes.Get("/:id/children", foldersHandler.Children)
	folderRoutes.Get("/:id/path", foldersHandler.Path)
	folderRoutes.Delete("/:id", foldersHandler.Delete)

	fileRoutes := api.Group("/files", authMiddleware.RequireAuth)
	fileRoutes.Post("/batch", filesHandler.BatchCreate)
	fileRoutes.Get("/:id/download-url", filesHandler.DownloadURL)
	fileRoutes.Get("/:id", filesHandler.Get)
	fileRoutes.Delete("/:id", filesHandler.Delete)

	uploadRoutes := api.Group("/uploads", authMiddleware.RequireAuth)
	uploadRoutes.Post("/precheck", uploadsHandler.Precheck)
	uploadRoutes.Post("/grants", uploadsHandler.Grants)

	return &testEnv{app: app, db: db, storage: gateway}
}

func createTestUser(t *testing.T, db *gorm.DB, email, password string, role models.UserRole) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "User",
		Role:         role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

func createTestBucket(t *testing.T, db *gorm.DB, ownerID uuid.UUID) *models.Bucket {
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

func createTestFolder(t *testing.T, db *gorm.DB, ownerID, bucketID uuid.UUID, name string, parentID *uuid.UUID, size int64) *models.Folder {
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

func createTestFile(t *testing.T, db *gorm.DB, ownerID, bucketID uuid.UUID, name, key string, parentID *uuid.UUID, size int64) *models.File {
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

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func folderSize(t *testing.T, db *gorm.DB, folderID uuid.UUID) string {
	t.Helper()
	var folder models.Folder
	if err := db.First(&folder, "id = ?", folderID).Error; err != nil {
		t.Fatalf("failed loading folder %s: %v", folderID, err)
	}
	return folder.Size.String()
}
