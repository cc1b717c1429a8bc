package database

import (
	"context"
	"fmt"

	"github.com/bucketdrive/backend/internal/config"
	"github.com/bucketdrive/backend/internal/models"
	"github.com/bucketdrive/backend/internal/storage"
	"github.com/bucketdrive/backend/pkg/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := seedAdminUser(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Bucket{},
		&models.Folder{},
		&models.File{},
	)
}

func seedAdminUser(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	hash, err := utils.HashPassword("admin123")
	if err != nil {
		return err
	}

	admin := models.User{
		Email:        "admin@bucketdrive.local",
		PasswordHash: hash,
		FirstName:    "System",
		LastName:     "Admin",
		Role:         models.UserRoleAdmin,
	}

	return db.Create(&admin).Error
}

// SeedDefaultBucket attaches the bucket from the MINIO_* config under the
// seeded admin user, so a fresh install is usable before anyone attaches
// an external bucket. Skipped when the admin already has a record for the
// configured endpoint and bucket name.
func SeedDefaultBucket(ctx context.Context, db *gorm.DB, pool storage.Pool, cfg config.MinIOConfig) error {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil
	}

	var admin models.User
	if err := db.First(&admin, "role = ?", models.UserRoleAdmin).Error; err != nil {
		return err
	}

	var bucket models.Bucket
	err := db.First(&bucket,
		"owner_id = ? AND endpoint = ? AND bucket_name = ?",
		admin.ID, cfg.Endpoint, cfg.Bucket).Error
	if err == gorm.ErrRecordNotFound {
		encryptedAccess, err := utils.EncryptAESGCM(cfg.AccessKey)
		if err != nil {
			return err
		}
		encryptedSecret, err := utils.EncryptAESGCM(cfg.SecretKey)
		if err != nil {
			return err
		}
		bucket = models.Bucket{
			Name:       "default",
			Endpoint:   cfg.Endpoint,
			AccessKey:  encryptedAccess,
			SecretKey:  encryptedSecret,
			BucketName: cfg.Bucket,
			UseSSL:     cfg.UseSSL,
			OwnerID:    admin.ID,
		}
		if err := db.Create(&bucket).Error; err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	gw, err := pool.Gateway(ctx, &bucket)
	if err != nil {
		return err
	}
	return gw.EnsureBucket(ctx)
}
