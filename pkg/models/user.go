package models

import (
	"time"
)

// User is the local record of an authenticated principal. FolderID holds the
// builder workspace folder once provisioned.
type User struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"` // identity provider subject or email
	Username   string    `json:"username"`
	FolderID   *string   `json:"folder_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HasFolder reports whether a workspace folder is stored for u.
func (u *User) HasFolder() bool {
	return u.FolderID != nil && *u.FolderID != ""
}
