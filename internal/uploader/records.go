package uploader

import (
	"time"

	"github.com/google/uuid"
)

// User mirrors the authenticated user returned by the API.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      string    `json:"role"`
}

// BucketRecord mirrors an attached bucket. Credentials are never
// serialized by the server, so they never appear here.
type BucketRecord struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Endpoint   string    `json:"endpoint"`
	BucketName string    `json:"bucketName"`
	UseSSL     bool      `json:"useSSL"`
	CreatedAt  time.Time `json:"createdAt"`
}

// FileRecord mirrors a persisted file.
type FileRecord struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	MimeType   string     `json:"mimeType"`
	Size       string     `json:"size"`
	StorageKey string     `json:"storageKey"`
	ParentID   *uuid.UUID `json:"parentID,omitempty"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Listing is one level of the remote hierarchy: the folders and files
// directly under a parent.
type Listing struct {
	Folders []FolderRecord `json:"folders"`
	Files   []FileRecord   `json:"files"`
}
