package models

import "time"

// TaskStatus is the externally observable state of one publishing run
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusAnalyzing  TaskStatus = "analyzing"
	StatusUploading  TaskStatus = "uploading"
	StatusCompleted  TaskStatus = "completed"
	StatusError      TaskStatus = "error"
)

// IsTerminal reports whether no further transitions are allowed
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// ImageMetadata describes the image as selected and processed by the caller
type ImageMetadata struct {
	Filename      string `json:"filename"`
	MimeType      string `json:"mime_type"`
	OriginalSize  uint64 `json:"original_size"`
	ProcessedSize uint64 `json:"processed_size"`
	Width         uint32 `json:"width"`
	Height        uint32 `json:"height"`
}

// PublishRequest is the input of a single pipeline run
type PublishRequest struct {
	ImageData    string        `json:"image_data"` // base64
	Metadata     ImageMetadata `json:"metadata"`
	TargetSiteID string        `json:"target_site_id"`
}

// ImageAnalysis is the SEO metadata generated by the vision model
type ImageAnalysis struct {
	Filename    string   `json:"filename"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	AltText     string   `json:"alt_text"`
	Tags        []string `json:"tags"`
}

// TaskUpdate is emitted at every stage boundary of a run
type TaskUpdate struct {
	Filename string     `json:"filename"`
	Status   TaskStatus `json:"status"`
	Error    string     `json:"error,omitempty"`
}

// ImageTask is the live view of a run kept by the serve command
type ImageTask struct {
	ID        string     `json:"id"`
	Filename  string     `json:"filename"`
	SiteID    string     `json:"site_id"`
	Status    TaskStatus `json:"status"`
	Error     string     `json:"error,omitempty"`
	URL       string     `json:"url,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
