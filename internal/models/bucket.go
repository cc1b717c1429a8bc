package models

import "github.com/google/uuid"

// Bucket is an externally-hosted object-storage bucket attached by a user.
// SecretKey is stored AES-GCM encrypted (utils.ConfigureEncryption).
type Bucket struct {
	BaseModel
	Name       string    `json:"name" gorm:"type:varchar(255);not null"`
	Endpoint   string    `json:"endpoint" gorm:"type:varchar(255);not null"`
	AccessKey  string    `json:"-" gorm:"type:text;not null"`
	SecretKey  string    `json:"-" gorm:"type:text;not null"`
	BucketName string    `json:"bucketName" gorm:"type:varchar(255);not null"`
	UseSSL     bool      `json:"useSSL" gorm:"not null;default:false"`
	OwnerID    uuid.UUID `json:"ownerID" gorm:"type:uuid;not null;index"`

	Owner User `json:"owner,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
}
