package services

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/bucketdrive/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrKeyCollisionBudget = errors.New("storage key collision retry budget exhausted")

// KeyAllocator resolves storage-key collisions deterministically: a
// taken key gets "(n)" inserted before the file extension, n counting up
// until a free key is found or the attempt budget runs out. Within one
// grant request the taken set also covers keys issued earlier in the
// same request, since their File records do not exist yet.
type KeyAllocator struct {
	DB          *gorm.DB
	MaxAttempts int
}

func NewKeyAllocator(db *gorm.DB, maxAttempts int) *KeyAllocator {
	if maxAttempts <= 0 {
		maxAttempts = 25
	}
	return &KeyAllocator{DB: db, MaxAttempts: maxAttempts}
}

// Resolve returns the final (fileName, storageKey) for the requested
// key, renaming on collision. taken is mutated to include the result.
func (a *KeyAllocator) Resolve(bucketID uuid.UUID, key string, taken map[string]bool) (string, string, error) {
	dir := path.Dir(key)
	name := path.Base(key)
	stem, ext := splitExtension(name)

	candidateName := name
	candidateKey := key
	for attempt := 0; attempt <= a.MaxAttempts; attempt++ {
		if attempt > 0 {
			candidateName = fmt.Sprintf("%s(%d)%s", stem, attempt, ext)
			if dir == "." {
				candidateKey = candidateName
			} else {
				candidateKey = dir + "/" + candidateName
			}
		}

		if taken[candidateKey] {
			continue
		}
		exists, err := a.keyExists(bucketID, candidateKey)
		if err != nil {
			return "", "", err
		}
		if !exists {
			taken[candidateKey] = true
			return candidateName, candidateKey, nil
		}
	}

	return "", "", fmt.Errorf("%w: %s", ErrKeyCollisionBudget, key)
}

func (a *KeyAllocator) keyExists(bucketID uuid.UUID, key string) (bool, error) {
	var count int64
	err := a.DB.Model(&models.File{}).
		Where("bucket_id = ? AND storage_key = ?", bucketID, key).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func splitExtension(name string) (string, string) {
	ext := path.Ext(name)
	if ext == "" || ext == name {
		return name, ""
	}
	return strings.TrimSuffix(name, ext), ext
}
