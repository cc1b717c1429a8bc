package services

import (
	"fmt"
	"math/big"

	"github.com/bucketdrive/backend/internal/models"
	"github.com/bucketdrive/backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SizeService owns every mutation of the persisted Folder.size column.
// The column is a shared multi-writer resource (concurrent upload runs,
// concurrent deletions), so it is only ever changed relatively, as
// size = size + delta, or recomputed from direct children. Blind
// overwrites would lose updates under interleaving.
type SizeService struct {
	DB *gorm.DB
}

func NewSizeService(db *gorm.DB) *SizeService {
	return &SizeService{DB: db}
}

// applyDelta adds delta to one folder's stored size. Postgres numeric
// arithmetic is exact, so the delta is applied in SQL and the update stays
// a single additive statement. sqlite coerces text operands through a
// 64-bit float, which rounds large counts, so there the sum is computed in
// Go before writing. Returns the number of rows touched.
func applyDelta(tx *gorm.DB, folderID uuid.UUID, delta *big.Int) (int64, error) {
	if tx.Dialector.Name() == "postgres" {
		result := tx.Model(&models.Folder{}).
			Where("id = ?", folderID).
			Update("size", gorm.Expr("size + ?", delta.String()))
		return result.RowsAffected, result.Error
	}

	var folder models.Folder
	if err := tx.Select("id", "size").First(&folder, "id = ?", folderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, err
	}
	next := new(big.Int).Add(folder.Size.BigInt(), delta)
	result := tx.Model(&models.Folder{}).
		Where("id = ?", folder.ID).
		Update("size", next.String())
	return result.RowsAffected, result.Error
}

// ApplyDeltas adds each delta to its folder's stored size in one batched
// pass. Additive on purpose: two racing upload runs against the same
// folder must both land.
func (s *SizeService) ApplyDeltas(deltas map[uuid.UUID]*big.Int) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		for folderID, delta := range deltas {
			if delta == nil || delta.Sign() == 0 {
				continue
			}
			rows, err := applyDelta(tx, folderID, delta)
			if err != nil {
				return err
			}
			if rows == 0 {
				return fmt.Errorf("folder %s not found for size delta", folderID)
			}
		}
		return nil
	})
}

// DecrementAncestors walks the parent chain starting at startID, taking
// delta off every folder up to the root, one folder at a time.
func (s *SizeService) DecrementAncestors(startID *uuid.UUID, delta *big.Int) error {
	if delta == nil || delta.Sign() == 0 {
		return nil
	}

	neg := new(big.Int).Neg(delta)
	current := startID
	for current != nil {
		var folder models.Folder
		if err := s.DB.Select("id", "parent_id").First(&folder, "id = ?", *current).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return err
		}

		if _, err := applyDelta(s.DB, folder.ID, neg); err != nil {
			return err
		}

		current = folder.ParentID
	}
	return nil
}

// Recompute resets a folder's size to the sum of its direct children's
// stored sizes and returns (old, new). Used by the deletion cascade:
// recomputing instead of subtracting makes a retried cascade idempotent
// after partial failure.
func (s *SizeService) Recompute(folderID uuid.UUID) (*big.Int, *big.Int, error) {
	var folder models.Folder
	if err := s.DB.First(&folder, "id = ?", folderID).Error; err != nil {
		return nil, nil, err
	}
	oldSize := folder.Size.BigInt()

	newSize := new(big.Int)

	var files []models.File
	if err := s.DB.Select("size").Where("parent_id = ?", folderID).Find(&files).Error; err != nil {
		return nil, nil, err
	}
	for _, f := range files {
		newSize.Add(newSize, f.Size.BigInt())
	}

	var subfolders []models.Folder
	if err := s.DB.Select("size").Where("parent_id = ?", folderID).Find(&subfolders).Error; err != nil {
		return nil, nil, err
	}
	for _, sub := range subfolders {
		newSize.Add(newSize, sub.Size.BigInt())
	}

	if err := s.DB.Model(&models.Folder{}).
		Where("id = ?", folderID).
		Update("size", newSize.String()).Error; err != nil {
		return nil, nil, err
	}

	logger.Info("folder_size_recomputed", map[string]interface{}{
		"folder_id": folderID.String(),
		"old_size":  oldSize.String(),
		"new_size":  newSize.String(),
	})

	return oldSize, newSize, nil
}
