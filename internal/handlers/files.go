package handlers

import (
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

type FilesHandler struct {
	DB         *gorm.DB
	Pool       storage.Pool
	Cascade    *services.CascadeService
	PresignTTL time.Duration
}

func NewFilesHandler(db *gorm.DB, pool storage.Pool, cascade *services.CascadeService, presignTTL time.Duration) *FilesHandler {
	return &FilesHandler{DB: db, Pool: pool, Cascade: cascade, PresignTTL: presignTTL}
}

type batchCreateRequest struct {
	BucketID string            `json:"bucketID"`
	ParentID *string           `json:"parentID"`
	Files    []batchCreateFile `json:"files"`
}

type batchCreateFile struct {
	Name       string `json:"name"`
	StorageKey string `json:"storageKey"`
	Size       string `json:"size"`
	MimeType   string `json:"mimeType"`
}

// BatchCreate persists the file records of one uploaded batch. The
// objects are already in storage; this only writes metadata. Folder
// sizes are not touched here, the client commits its size deltas once
// at the end of the run.
func (h *FilesHandler) BatchCreate(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req batchCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Files) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "files are required")
	}

	bucketID, err := parseUUID(req.BucketID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid bucketID")
	}
	var bucket models.Bucket
	if err := h.DB.First(&bucket, "id = ?", bucketID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "bucket not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading bucket")
	}
	if bucket.OwnerID != currentUser.ID {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	parentID, err := parseOptionalUUID(req.ParentID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid parentID")
	}
	if parentID != nil {
		var parent models.Folder
		if err := h.DB.First(&parent, "id = ?", *parentID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.Error(c, fiber.StatusNotFound, "parent folder not found")
			}
			return utils.Error(c, fiber.StatusInternalServerError, "failed loading parent folder")
		}
		if parent.OwnerID != currentUser.ID || parent.BucketID != bucketID {
			return utils.Error(c, fiber.StatusForbidden, "access denied")
		}
	}

	records := make([]models.File, len(req.Files))
	for i, in := range req.Files {
		if in.Name == "" || in.StorageKey == "" {
			return utils.Error(c, fiber.StatusBadRequest, "name and storageKey are required for every file")
		}
		size, err := models.ParseByteSize(in.Size)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid file size")
		}
		mimeType := in.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		records[i] = models.File{
			Name:       in.Name,
			MimeType:   mimeType,
			Size:       size,
			StorageKey: in.StorageKey,
			ParentID:   parentID,
			OwnerID:    currentUser.ID,
			BucketID:   bucketID,
		}
	}

	if err := h.DB.Create(&records).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating file records")
	}

	logger.InfoWithUser(currentUser.ID.String(), "files_batch_created", map[string]interface{}{
		"bucket_id": bucketID.String(),
		"count":     len(records),
	})

	return utils.Success(c, fiber.StatusCreated, records)
}

func (h *FilesHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	file, respErr := h.loadOwnedFile(c, currentUser)
	if file == nil {
		return respErr
	}
	return utils.Success(c, fiber.StatusOK, file)
}

// DownloadURL issues a presigned GET for the file's object.
func (h *FilesHandler) DownloadURL(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	file, respErr := h.loadOwnedFile(c, currentUser)
	if file == nil {
		return respErr
	}

	gw, err := h.Pool.Gateway(c.Context(), &file.Bucket)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed opening bucket")
	}
	url, err := gw.PresignedGet(c.Context(), file.StorageKey, h.PresignTTL)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed issuing download url")
	}

	logger.InfoWithUser(currentUser.ID.String(), "download_url_issued", map[string]interface{}{
		"file_id":     file.ID.String(),
		"storage_key": file.StorageKey,
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"url": url})
}

// Delete removes the file's object and record, then decrements every
// ancestor folder by the file's size.
func (h *FilesHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	file, respErr := h.loadOwnedFile(c, currentUser)
	if file == nil {
		return respErr
	}

	if err := h.Cascade.DeleteFile(c.Context(), file.ID); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting file")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "file deleted"})
}

func (h *FilesHandler) loadOwnedFile(c *fiber.Ctx, currentUser *models.User) (*models.File, error) {
	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return nil, utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	var file models.File
	if err := h.DB.Preload("Bucket").First(&file, "id = ?", fileID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.Error(c, fiber.StatusNotFound, "file not found")
		}
		return nil, utils.Error(c, fiber.StatusInternalServerError, "failed loading file")
	}
	if file.OwnerID != currentUser.ID {
		return nil, utils.Error(c, fiber.StatusForbidden, "access denied")
	}
	return &file, nil
}
