package pipeline

import (
	"encoding/json"

	"github.com/joseph-ayodele/form-extractor/constants"
	"github.com/joseph-ayodele/form-extractor/internal/schema"
)

// Step is one entry of the execution log.
type Step struct {
	StepName string               `json:"step_name"`
	Status   constants.StepStatus `json:"status"`
	Payload  any                  `json:"payload,omitempty"`
}

// Result is the outcome of one Process call. Its JSON form depends on
// Status: successes carry the document, errors only the message and steps.
type Result struct {
	Status          string
	Filename        string
	Data            *schema.Document
	UnclearFields   []string
	ConfidenceScore float64
	RawText         string
	Steps           []Step
	LatencyMS       int64
	Error           string

	// Err keeps the typed cause for callers; it is not serialized.
	Err error
}

// OK reports whether the run succeeded.
func (r Result) OK() bool { return r.Status == constants.ResultSuccess }

type successJSON struct {
	Status          string           `json:"status"`
	Filename        string           `json:"filename"`
	Data            *schema.Document `json:"data"`
	UnclearFields   []string         `json:"unclear_fields"`
	ConfidenceScore float64          `json:"confidence_score"`
	RawText         string           `json:"raw_text"`
	Steps           []Step           `json:"steps"`
	LatencyMS       int64            `json:"latency_ms"`
}

type errorJSON struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Steps  []Step `json:"steps"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	steps := r.Steps
	if steps == nil {
		steps = []Step{}
	}
	if !r.OK() {
		return json.Marshal(errorJSON{Status: constants.ResultError, Error: r.Error, Steps: steps})
	}
	unclear := r.UnclearFields
	if unclear == nil {
		unclear = []string{}
	}
	return json.Marshal(successJSON{
		Status:          r.Status,
		Filename:        r.Filename,
		Data:            r.Data,
		UnclearFields:   unclear,
		ConfidenceScore: r.ConfidenceScore,
		RawText:         r.RawText,
		Steps:           steps,
		LatencyMS:       r.LatencyMS,
	})
}
