package handlers

import (
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/bucketdrive/backend/internal/middleware"
	"github.com/bucketdrive/backend/internal/models"
	"github.com/bucketdrive/backend/internal/services"
	"github.com/bucketdrive/backend/internal/storage"
	"github.com/bucketdrive/backend/pkg/logger"
	"github.com/bucketdrive/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type UploadsHandler struct {
	DB         *gorm.DB
	Pool       storage.Pool
	Keys       *services.KeyAllocator
	Quota      *services.QuotaService
	PresignTTL time.Duration
}

func NewUploadsHandler(db *gorm.DB, pool storage.Pool, keys *services.KeyAllocator, quota *services.QuotaService, presignTTL time.Duration) *UploadsHandler {
	return &UploadsHandler{DB: db, Pool: pool, Keys: keys, Quota: quota, PresignTTL: presignTTL}
}

type precheckRequest struct {
	BucketID   string `json:"bucketID"`
	TotalBytes string `json:"totalBytes"`
	FileCount  int    `json:"fileCount"`
}

// Precheck validates a whole upload run against the configured ceilings
// before the client moves any byte. A run that passes is never rejected
// mid-flight for quota reasons.
func (h *UploadsHandler) Precheck(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req precheckRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	bucket, respErr := h.loadOwnedBucket(c, currentUser, req.BucketID)
	if bucket == nil {
		return respErr
	}

	totalBytes := new(big.Int)
	if trimmed := strings.TrimSpace(req.TotalBytes); trimmed != "" {
		if _, ok := totalBytes.SetString(trimmed, 10); !ok {
			return utils.Error(c, fiber.StatusBadRequest, "invalid totalBytes")
		}
	}

	if err := h.Quota.Check(totalBytes, req.FileCount); err != nil {
		if errors.Is(err, services.ErrQuotaExceeded) {
			logger.WarnWithUser(currentUser.ID.String(), "upload_quota_rejected", map[string]interface{}{
				"total_bytes": totalBytes.String(),
				"file_count":  req.FileCount,
			})
			return utils.Error(c, fiber.StatusRequestEntityTooLarge, err.Error())
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking quota")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"allowed": true})
}

type grantsRequest struct {
	BucketID string       `json:"bucketID"`
	Items    []grantsItem `json:"items"`
}

type grantsItem struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Size        string `json:"size"`
	ContentType string `json:"contentType"`
}

// Grants issues one presigned PUT per requested item, in request order.
// Keys that collide with an existing record, or with an earlier item of
// the same request, are renamed with a "(n)" suffix before the
// extension; the response carries the final name and key.
func (h *UploadsHandler) Grants(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req grantsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Items) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "items are required")
	}

	bucket, respErr := h.loadOwnedBucket(c, currentUser, req.BucketID)
	if bucket == nil {
		return respErr
	}

	gw, err := h.Pool.Gateway(c.Context(), bucket)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed opening bucket")
	}

	// keys issued earlier in this request are taken even though their
	// records do not exist yet
	taken := make(map[string]bool, len(req.Items))
	grants := make([]fiber.Map, len(req.Items))
	for i, item := range req.Items {
		key := strings.TrimSpace(item.Key)
		if key == "" {
			return utils.Error(c, fiber.StatusBadRequest, "key is required for every item")
		}

		fileName, storageKey, err := h.Keys.Resolve(bucket.ID, key, taken)
		if err != nil {
			if errors.Is(err, services.ErrKeyCollisionBudget) {
				return utils.Error(c, fiber.StatusConflict, "too many name collisions for "+key)
			}
			return utils.Error(c, fiber.StatusInternalServerError, "failed resolving storage key")
		}

		url, err := gw.PresignedPut(c.Context(), storageKey, h.PresignTTL)
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed issuing upload url")
		}

		grants[i] = fiber.Map{
			"fileName": fileName,
			"key":      storageKey,
			"url":      url,
		}
	}

	logger.InfoWithUser(currentUser.ID.String(), "upload_grants_issued", map[string]interface{}{
		"bucket_id": bucket.ID.String(),
		"count":     len(grants),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"grants": grants})
}

func (h *UploadsHandler) loadOwnedBucket(c *fiber.Ctx, currentUser *models.User, rawID string) (*models.Bucket, error) {
	bucketID, err := parseUUID(rawID)
	if err != nil {
		return nil, utils.Error(c, fiber.StatusBadRequest, "invalid bucketID")
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
