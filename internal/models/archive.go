package models

import "time"

// ArchiveStatus tracks a background export render.
type ArchiveStatus string

const (
	ArchiveStatusQueued ArchiveStatus = "QUEUED"
	ArchiveStatusReady  ArchiveStatus = "READY"
	ArchiveStatusFailed ArchiveStatus = "FAILED"
)

// ArchiveEntry is one requested export snapshot rendered in the background
// and persisted on disk. READY entries carry a signed download token.
type ArchiveEntry struct {
	ID            string        `json:"id"`
	SessionID     string        `json:"sessionId"`
	Collection    string        `json:"collection"`
	Format        string        `json:"format"`
	Status        ArchiveStatus `json:"status"`
	Filename      string        `json:"filename,omitempty"`
	SizeBytes     int64         `json:"sizeBytes,omitempty"`
	Error         string        `json:"error,omitempty"`
	DownloadToken string        `json:"downloadToken,omitempty"`
	ExpiresAt     *time.Time    `json:"expiresAt,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	CompletedAt   *time.Time    `json:"completedAt,omitempty"`
}
