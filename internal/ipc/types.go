package ipc

import (
	"time"

	"shadowplay/internal/panel"
)

// StartRequest begins mirroring.
type StartRequest struct{}

// StartResponse indicates whether mirroring was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest halts mirroring.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and watch state.
type StatusResponse struct {
	Running        bool           `json:"running"`
	PID            int            `json:"pid"`
	LockPath       string         `json:"lock_path"`
	IdentityDBPath string         `json:"identity_db_path"`
	Snapshot       panel.Snapshot `json:"snapshot"`
	CacheTotal     int64          `json:"cache_total"`
	CacheResolved  int64          `json:"cache_resolved"`
}

// CacheEntry is one cached folder identity.
type CacheEntry struct {
	FolderPath string    `json:"folder_path"`
	Resolved   bool      `json:"resolved"`
	Source     string    `json:"source,omitempty"`
	SourceID   string    `json:"source_id,omitempty"`
	Title      string    `json:"title,omitempty"`
	SearchTerm string    `json:"search_term,omitempty"`
	Score      float64   `json:"score,omitempty"`
	CoverFile  string    `json:"cover_file,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CacheListRequest lists cached identities.
type CacheListRequest struct{}

// CacheListResponse contains cache entries.
type CacheListResponse struct {
	Entries []CacheEntry `json:"entries"`
}

// CacheInvalidateRequest removes one folder's cached identity.
type CacheInvalidateRequest struct {
	FolderPath string `json:"folder_path"`
}

// CacheInvalidateResponse reports whether an entry was removed.
type CacheInvalidateResponse struct {
	Removed bool `json:"removed"`
}

// CacheClearRequest drops the whole identity cache.
type CacheClearRequest struct{}

// CacheClearResponse reports how many entries were removed.
type CacheClearResponse struct {
	Removed int64 `json:"removed"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse carries notification test results.
type TestNotificationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
