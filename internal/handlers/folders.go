package handlers

import (
	"math/big"
	"strings"

	"github.com/bucketdrive/backend/internal/middleware"
	"github.com/bucketdrive/backend/internal/models"
	"github.com/bucketdrive/backend/internal/services"
	"github.com/bucketdrive/backend/pkg/logger"
	"github.com/bucketdrive/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FoldersHandler struct {
	DB      *gorm.DB
	Sizes   *services.SizeService
	Cascade *services.CascadeService
}

func NewFoldersHandler(db *gorm.DB, sizes *services.SizeService, cascade *services.CascadeService) *FoldersHandler {
	return &FoldersHandler{DB: db, Sizes: sizes, Cascade: cascade}
}

type createFolderRequest struct {
	BucketID string  `json:"bucketID"`
	Name     string  `json:"name"`
	ParentID *string `json:"parentID"`
}

// Create persists a folder record with size zero. During an upload run
// the folder record exists before any of its files do.
func (h *FoldersHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createFolderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
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

	folder := models.Folder{
		Name:     name,
		Size:     models.NewByteSize(0),
		ParentID: parentID,
		OwnerID:  currentUser.ID,
		BucketID: bucketID,
	}
	if err := h.DB.Create(&folder).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating folder")
	}

	logger.InfoWithUser(currentUser.ID.String(), "folder_created", map[string]interface{}{
		"folder_id": folder.ID.String(),
		"name":      folder.Name,
		"bucket_id": bucketID.String(),
		"parent_id": req.ParentID,
	})

	return utils.Success(c, fiber.StatusCreated, folder)
}

// ListRoot returns the top-level folders and files of a bucket.
func (h *FoldersHandler) ListRoot(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	bucketID, err := parseUUID(c.Query("bucketID"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid bucketID")
	}

	var folders []models.Folder
	if err := h.DB.
		Where("bucket_id = ? AND owner_id = ? AND parent_id IS NULL", bucketID, currentUser.ID).
		Order("name ASC").
		Find(&folders).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing folders")
	}

	var files []models.File
	if err := h.DB.
		Where("bucket_id = ? AND owner_id = ? AND parent_id IS NULL", bucketID, currentUser.ID).
		Order("name ASC").
		Find(&files).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing files")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"folders": folders, "files": files})
}

// Children returns the direct subfolders and files of a folder.
func (h *FoldersHandler) Children(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folder, respErr := h.loadOwnedFolder(c, currentUser)
	if folder == nil {
		return respErr
	}

	var subfolders []models.Folder
	if err := h.DB.Where("parent_id = ?", folder.ID).Order("name ASC").Find(&subfolders).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing subfolders")
	}

	var files []models.File
	if err := h.DB.Where("parent_id = ?", folder.ID).Order("name ASC").Find(&files).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing files")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"folders": subfolders, "files": files})
}

// Path returns the breadcrumb chain from the root folder down to the
// requested folder.
func (h *FoldersHandler) Path(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folder, respErr := h.loadOwnedFolder(c, currentUser)
	if folder == nil {
		return respErr
	}

	chain := []models.Folder{*folder}
	current := folder.ParentID
	for current != nil {
		var parent models.Folder
		if err := h.DB.First(&parent, "id = ?", *current).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				break
			}
			return utils.Error(c, fiber.StatusInternalServerError, "failed building breadcrumb path")
		}
		chain = append(chain, parent)
		current = parent.ParentID
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	return utils.Success(c, fiber.StatusOK, chain)
}

// Delete removes the folder, its whole subtree and the backing objects,
// then brings the surviving ancestors' sizes back in line.
func (h *FoldersHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folder, respErr := h.loadOwnedFolder(c, currentUser)
	if folder == nil {
		return respErr
	}

	if err := h.Cascade.DeleteFolder(c.Context(), folder.ID); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting folder")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "folder deleted"})
}

type commitSizesRequest struct {
	Deltas map[string]string `json:"deltas"`
}

// CommitSizes applies the client's accumulated folder size deltas in one
// additive batch. Deltas add to the stored value instead of replacing
// it, so concurrent runs against the same folders all land.
func (h *FoldersHandler) CommitSizes(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req commitSizesRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Deltas) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "deltas are required")
	}

	deltas := make(map[uuid.UUID]*big.Int, len(req.Deltas))
	ids := make([]uuid.UUID, 0, len(req.Deltas))
	for rawID, rawDelta := range req.Deltas {
		folderID, err := parseUUID(rawID)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid folder id in deltas")
		}
		delta, ok := new(big.Int).SetString(strings.TrimSpace(rawDelta), 10)
		if !ok {
			return utils.Error(c, fiber.StatusBadRequest, "invalid delta value")
		}
		deltas[folderID] = delta
		ids = append(ids, folderID)
	}

	var owned int64
	if err := h.DB.Model(&models.Folder{}).
		Where("id IN ? AND owner_id = ?", ids, currentUser.ID).
		Count(&owned).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed validating folders")
	}
	if owned != int64(len(ids)) {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	if err := h.Sizes.ApplyDeltas(deltas); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed committing folder sizes")
	}

	logger.InfoWithUser(currentUser.ID.String(), "folder_sizes_committed", map[string]interface{}{
		"folder_count": len(deltas),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "sizes committed"})
}

func (h *FoldersHandler) loadOwnedFolder(c *fiber.Ctx, currentUser *models.User) (*models.Folder, error) {
	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return nil, utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	var folder models.Folder
	if err := h.DB.First(&folder, "id = ?", folderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.Error(c, fiber.StatusNotFound, "folder not found")
		}
		return nil, utils.Error(c, fiber.StatusInternalServerError, "failed loading folder")
	}
	if folder.OwnerID != currentUser.ID {
		return nil, utils.Error(c, fiber.StatusForbidden, "access denied")
	}
	return &folder, nil
}
