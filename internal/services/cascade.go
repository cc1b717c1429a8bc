package services

import (
	"context"
	"math/big"

	"github.com/bucketdrive/backend/internal/models"
	"github.com/bucketdrive/backend/internal/storage"
	"github.com/bucketdrive/backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CascadeService removes files and folders and keeps ancestor sizes
// honest while doing it. File deletion decrements each ancestor by the
// file's exact size; folder deletion recomputes the nearest surviving
// ancestor from its remaining children, so a cascade that died halfway
// can be retried without double-subtracting.
type CascadeService struct {
	DB         *gorm.DB
	Pool       storage.Pool
	Sizes      *SizeService
	PruneEmpty bool
}

func NewCascadeService(db *gorm.DB, pool storage.Pool, sizes *SizeService, pruneEmpty bool) *CascadeService {
	return &CascadeService{DB: db, Pool: pool, Sizes: sizes, PruneEmpty: pruneEmpty}
}

func (s *CascadeService) DeleteFile(ctx context.Context, fileID uuid.UUID) error {
	var file models.File
	if err := s.DB.Preload("Bucket").First(&file, "id = ?", fileID).Error; err != nil {
		return err
	}

	gw, err := s.Pool.Gateway(ctx, &file.Bucket)
	if err != nil {
		return err
	}
	if err := gw.Delete(ctx, file.StorageKey); err != nil {
		return err
	}

	// Hard delete so the storage key is immediately reusable; the
	// bucket/key unique index only spans live rows.
	if err := s.DB.Unscoped().Delete(&models.File{}, "id = ?", file.ID).Error; err != nil {
		return err
	}

	if err := s.Sizes.DecrementAncestors(file.ParentID, file.Size.BigInt()); err != nil {
		return err
	}

	logger.Info("file_deleted", map[string]interface{}{
		"file_id":     file.ID.String(),
		"storage_key": file.StorageKey,
		"size":        file.Size.String(),
	})

	if s.PruneEmpty {
		return s.pruneEmptyAncestors(file.ParentID)
	}
	return nil
}

func (s *CascadeService) DeleteFolder(ctx context.Context, folderID uuid.UUID) error {
	var folder models.Folder
	if err := s.DB.First(&folder, "id = ?", folderID).Error; err != nil {
		return err
	}
	parentID := folder.ParentID

	deleted := new(big.Int)
	if err := s.deleteSubtree(ctx, &folder, deleted); err != nil {
		return err
	}

	logger.Info("folder_deleted", map[string]interface{}{
		"folder_id":     folder.ID.String(),
		"deleted_bytes": deleted.String(),
	})

	if parentID == nil {
		return nil
	}

	oldSize, newSize, err := s.Sizes.Recompute(*parentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}

	delta := new(big.Int).Sub(oldSize, newSize)
	var parent models.Folder
	if err := s.DB.Select("id", "parent_id").First(&parent, "id = ?", *parentID).Error; err != nil {
		return err
	}
	if err := s.Sizes.DecrementAncestors(parent.ParentID, delta); err != nil {
		return err
	}

	if s.PruneEmpty {
		return s.pruneEmptyAncestors(parentID)
	}
	return nil
}

// deleteSubtree removes a folder post-order: descendant folders first so
// no child ever references a deleted parent, then the folder's own
// files, then the folder record. Ancestor sizes are not touched here.
func (s *CascadeService) deleteSubtree(ctx context.Context, folder *models.Folder, deleted *big.Int) error {
	var subfolders []models.Folder
	if err := s.DB.Where("parent_id = ?", folder.ID).Find(&subfolders).Error; err != nil {
		return err
	}
	for i := range subfolders {
		if err := s.deleteSubtree(ctx, &subfolders[i], deleted); err != nil {
			return err
		}
	}

	var files []models.File
	if err := s.DB.Preload("Bucket").Where("parent_id = ?", folder.ID).Find(&files).Error; err != nil {
		return err
	}
	for i := range files {
		gw, err := s.Pool.Gateway(ctx, &files[i].Bucket)
		if err != nil {
			return err
		}
		if err := gw.Delete(ctx, files[i].StorageKey); err != nil {
			return err
		}
		if err := s.DB.Unscoped().Delete(&models.File{}, "id = ?", files[i].ID).Error; err != nil {
			return err
		}
		deleted.Add(deleted, files[i].Size.BigInt())
	}

	return s.DB.Unscoped().Delete(&models.Folder{}, "id = ?", folder.ID).Error
}

// pruneEmptyAncestors walks upward from startID deleting folders that
// hold no files and no subfolders. Stops at the first non-empty folder.
func (s *CascadeService) pruneEmptyAncestors(startID *uuid.UUID) error {
	current := startID
	for current != nil {
		var folder models.Folder
		if err := s.DB.Select("id", "parent_id").First(&folder, "id = ?", *current).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return err
		}

		var fileCount, folderCount int64
		if err := s.DB.Model(&models.File{}).Where("parent_id = ?", folder.ID).Count(&fileCount).Error; err != nil {
			return err
		}
		if err := s.DB.Model(&models.Folder{}).Where("parent_id = ?", folder.ID).Count(&folderCount).Error; err != nil {
			return err
		}
		if fileCount > 0 || folderCount > 0 {
			return nil
		}

		if err := s.DB.Unscoped().Delete(&models.Folder{}, "id = ?", folder.ID).Error; err != nil {
			return err
		}
		logger.Info("empty_folder_pruned", map[string]interface{}{
			"folder_id": folder.ID.String(),
		})

		current = folder.ParentID
	}
	return nil
}
