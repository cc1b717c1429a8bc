package services

import (
	"context"

	"github.com/bucketdrive/backend/internal/models"
	"github.com/bucketdrive/backend/internal/storage"
	"github.com/bucketdrive/backend/pkg/logger"
	"gorm.io/gorm"
)

// Reconciler finds orphaned objects: keys present in the bucket with no
// matching File record. Uploads whose metadata creation failed stay in
// storage; this sweep makes them visible and cleanable.
type Reconciler struct {
	DB   *gorm.DB
	Pool storage.Pool
}

func NewReconciler(db *gorm.DB, pool storage.Pool) *Reconciler {
	return &Reconciler{DB: db, Pool: pool}
}

func (r *Reconciler) SweepOrphans(ctx context.Context, bucket *models.Bucket, prefix string) ([]storage.ObjectInfo, error) {
	gw, err := r.Pool.Gateway(ctx, bucket)
	if err != nil {
		return nil, err
	}

	objects, err := gw.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, nil
	}

	keys := make([]string, len(objects))
	for i, obj := range objects {
		keys[i] = obj.Key
	}

	var known []string
	if err := r.DB.Model(&models.File{}).
		Where("bucket_id = ? AND storage_key IN ?", bucket.ID, keys).
		Pluck("storage_key", &known).Error; err != nil {
		return nil, err
	}

	knownSet := make(map[string]bool, len(known))
	for _, k := range known {
		knownSet[k] = true
	}

	var orphans []storage.ObjectInfo
	for _, obj := range objects {
		if !knownSet[obj.Key] {
			orphans = append(orphans, obj)
		}
	}

	if len(orphans) > 0 {
		logger.Warn("orphaned_objects_found", map[string]interface{}{
			"bucket_id": bucket.ID.String(),
			"prefix":    prefix,
			"count":     len(orphans),
		})
	}

	return orphans, nil
}
