package models

import "github.com/google/uuid"

type File struct {
	BaseModel
	Name       string     `json:"name" gorm:"type:varchar(255);not null"`
	MimeType   string     `json:"mimeType" gorm:"type:varchar(255);not null"`
	Size       ByteSize   `json:"size" gorm:"not null;default:0"`
	StorageKey string     `json:"storageKey" gorm:"type:text;not null;uniqueIndex:idx_bucket_storage_key"`
	ParentID   *uuid.UUID `json:"parentID,omitempty" gorm:"type:uuid;index"`
	OwnerID    uuid.UUID  `json:"ownerID" gorm:"type:uuid;not null;index"`
	BucketID   uuid.UUID  `json:"bucketID" gorm:"type:uuid;not null;uniqueIndex:idx_bucket_storage_key"`
	Shared     bool       `json:"shared" gorm:"not null;default:false"`

	Parent *Folder `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
	Owner  User    `json:"owner,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
	Bucket Bucket  `json:"-" gorm:"foreignKey:BucketID;references:ID"`
}
