package handlers

import (
	"strings"

	"github.com/bucketdrive/backend/internal/middleware"
	"github.com/bucketdrive/backend/internal/models"
	"github.com/bucketdrive/backend/internal/services"
	"github.com/bucketdrive/backend/internal/storage"
	"github.com/bucketdrive/backend/pkg/logger"
	"github.com/bucketdrive/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type BucketsHandler struct {
	DB         *gorm.DB
	Pool       storage.Pool
	Reconciler *services.Reconciler
}

func NewBucketsHandler(db *gorm.DB, pool storage.Pool, reconciler *services.Reconciler) *BucketsHandler {
	return &BucketsHandler{DB: db, Pool: pool, Reconciler: reconciler}
}

type attachBucketRequest struct {
	Name       string `json:"name"`
	Endpoint   string `json:"endpoint"`
	AccessKey  string `json:"accessKey"`
	SecretKey  string `json:"secretKey"`
	BucketName string `json:"bucketName"`
	UseSSL     bool   `json:"useSSL"`
}

// Attach registers an external bucket under the current user. The
// connection is verified before anything is persisted, and credentials
// are stored encrypted.
func (h *BucketsHandler) Attach(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req attachBucketRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Endpoint = strings.TrimSpace(req.Endpoint)
	req.BucketName = strings.TrimSpace(req.BucketName)
	if req.Name == "" || req.Endpoint == "" || req.BucketName == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name, endpoint and bucketName are required")
	}
	if req.AccessKey == "" || req.SecretKey == "" {
		return utils.Error(c, fiber.StatusBadRequest, "accessKey and secretKey are required")
	}

	gw, err := storage.NewMinIOGateway(storage.Options{
		Endpoint:  req.Endpoint,
		AccessKey: req.AccessKey,
		SecretKey: req.SecretKey,
		Bucket:    req.BucketName,
		UseSSL:    req.UseSSL,
	})
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "could not connect to bucket")
	}
	if err := gw.EnsureBucket(c.Context()); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "bucket is not reachable with the given credentials")
	}

	encryptedAccess, err := utils.EncryptAESGCM(req.AccessKey)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed encrypting credentials")
	}
	encryptedSecret, err := utils.EncryptAESGCM(req.SecretKey)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed encrypting credentials")
	}

	bucket := models.Bucket{
		Name:       req.Name,
		Endpoint:   req.Endpoint,
		AccessKey:  encryptedAccess,
		SecretKey:  encryptedSecret,
		BucketName: req.BucketName,
		UseSSL:     req.UseSSL,
		OwnerID:    currentUser.ID,
	}
	if err := h.DB.Create(&bucket).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating bucket record")
	}

	logger.InfoWithUser(currentUser.ID.String(), "bucket_attached", map[string]interface{}{
		"bucket_id":   bucket.ID.String(),
		"endpoint":    bucket.Endpoint,
		"bucket_name": bucket.BucketName,
	})

	return utils.Success(c, fiber.StatusCreated, bucket)
}

func (h *BucketsHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var buckets []models.Bucket
	if err := h.DB.Where("owner_id = ?", currentUser.ID).Order("created_at DESC").Find(&buckets).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing buckets")
	}
	return utils.Success(c, fiber.StatusOK, buckets)
}

func (h *BucketsHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	bucket, respErr := h.loadOwnedBucket(c, currentUser)
	if bucket == nil {
		return respErr
	}
	return utils.Success(c, fiber.StatusOK, bucket)
}

// Detach removes the bucket record and every file and folder record that
// referenced it. Objects in the remote bucket are left untouched.
func (h *BucketsHandler) Detach(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	bucket, respErr := h.loadOwnedBucket(c, currentUser)
	if bucket == nil {
		return respErr
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("bucket_id = ?", bucket.ID).Delete(&models.File{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("bucket_id = ?", bucket.ID).Delete(&models.Folder{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.Bucket{}, "id = ?", bucket.ID).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed detaching bucket")
	}

	h.Pool.Evict(bucket.ID)

	logger.InfoWithUser(currentUser.ID.String(), "bucket_detached", map[string]interface{}{
		"bucket_id": bucket.ID.String(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "bucket detached"})
}

type reconcileRequest struct {
	Prefix string `json:"prefix"`
}

// Reconcile lists objects under a prefix and reports the ones with no
// matching file record.
func (h *BucketsHandler) Reconcile(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	bucket, respErr := h.loadOwnedBucket(c, currentUser)
	if bucket == nil {
		return respErr
	}

	var req reconcileRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	orphans, err := h.Reconciler.SweepOrphans(c.Context(), bucket, strings.TrimSpace(req.Prefix))
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed reconciling bucket")
	}

	results := make([]fiber.Map, 0, len(orphans))
	for _, obj := range orphans {
		results = append(results, fiber.Map{"key": obj.Key, "size": obj.Size})
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"orphans": results})
}

// loadOwnedBucket resolves :id to a bucket owned by the current user.
// On failure the error response has already been written; the caller
// just returns the error.
func (h *BucketsHandler) loadOwnedBucket(c *fiber.Ctx, currentUser *models.User) (*models.Bucket, error) {
	bucketID, err := parseUUID(c.Params("id"))
	if err != nil {
		return nil, utils.Error(c, fiber.StatusBadRequest, "invalid bucket id")
	}

	var bucket models.Bucket
	if err := h.DB.First(&bucket, "id = ?", bucketID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.Error(c, fiber.StatusNotFound, "bucket not found")
		}
		return nil, utils.Error(c, fiber.StatusInternalServerError, "failed loading bucket")
	}
	if bucket.OwnerID != currentUser.ID {
		return nil, utils.Error(c, fiber.StatusForbidden, "access denied")
	}
	return &bucket, nil
}
