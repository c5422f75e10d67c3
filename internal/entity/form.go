package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/form-extractor/constants"
)

// Form is an uploaded image and its processing state.
type Form struct {
	ID           uuid.UUID            `json:"id"`
	Filename     string               `json:"filename"`
	StorageKey   string               `json:"-"`
	ContentType  string               `json:"content_type"`
	FileSize     int64                `json:"file_size"`
	ContentHash  string               `json:"content_hash"`
	Status       constants.FormStatus `json:"status"`
	ErrorMessage *string              `json:"error_message,omitempty"`
	UploadedAt   time.Time            `json:"uploaded_at"`
	ProcessedAt  *time.Time           `json:"processed_at,omitempty"`
}
