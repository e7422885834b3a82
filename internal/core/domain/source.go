package domain

import "time"

type SourceStatus string

const (
	StatusUploaded   SourceStatus = "uploaded"
	StatusProcessing SourceStatus = "processing"
	StatusReady      SourceStatus = "ready"
	StatusFailed     SourceStatus = "failed"
)

// SourceFile is an uploaded bulk file feeding one domain collection.
type SourceFile struct {
	ID          string       `json:"id"`
	Domain      Domain       `json:"domain"`
	Filename    string       `json:"filename"`
	MimeType    string       `json:"mime_type"`
	StoragePath string       `json:"storage_path"`
	PolicyType  string       `json:"policy_type,omitempty"`
	PolicyID    string       `json:"policy_id,omitempty"`
	RecordCount int          `json:"record_count"`
	Status      SourceStatus `json:"status"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// SourceRecord is one extracted record before embedding.
type SourceRecord map[string]any

type UploadSource struct {
	Domain     Domain
	Filename   string
	MimeType   string
	PolicyType string
	PolicyID   string
}
