package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Extraction is the stored pipeline outcome for one form. Result holds the
// serialized response body exactly as the pipeline produced it.
type Extraction struct {
	FormID          uuid.UUID       `json:"form_id"`
	Status          string          `json:"status"`
	DocumentType    string          `json:"document_type"`
	ConfidenceScore float64         `json:"confidence_score"`
	FieldCount      int             `json:"field_count"`
	LatencyMS       int64           `json:"latency_ms"`
	Result          json.RawMessage `json:"result"`
	CreatedAt       time.Time       `json:"created_at"`
}
