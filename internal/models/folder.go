package models

import "github.com/google/uuid"

// Folder carries an aggregate Size: the byte total of every descendant
// file, maintained additively on upload and by recompute on delete. The
// column is only ever mutated through relative updates, never overwritten.
type Folder struct {
	BaseModel
	Name     string     `json:"name" gorm:"type:varchar(255);not null"`
	Size     ByteSize   `json:"size" gorm:"not null;default:0"`
	ParentID *uuid.UUID `json:"parentID,omitempty" gorm:"type:uuid;index"`
	OwnerID  uuid.UUID  `json:"ownerID" gorm:"type:uuid;not null;index"`
	BucketID uuid.UUID  `json:"bucketID" gorm:"type:uuid;not null;index"`
	Shared   bool       `json:"shared" gorm:"not null;default:false"`

	Parent     *Folder  `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
	Subfolders []Folder `json:"subfolders,omitempty" gorm:"foreignKey:ParentID"`
	Files      []File   `json:"files,omitempty" gorm:"foreignKey:ParentID"`
	Owner      User     `json:"owner,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
}
