package schema

import (
	"encoding/json"
	"strings"

	"github.com/joseph-ayodele/form-extractor/constants"
)

// Confidence is the per-field confidence label.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence accepts a label case-insensitively.
func ParseConfidence(s string) (Confidence, bool) {
	switch c := Confidence(strings.ToLower(strings.TrimSpace(s))); c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return c, true
	}
	return "", false
}

// Field is one labelled value inside a section.
type Field struct {
	FieldName  string     `json:"field_name"`
	FieldValue string     `json:"field_value"`
	Confidence Confidence `json:"confidence,omitempty"`
}

// Section groups related fields.
type Section struct {
	SectionName string  `json:"section_name"`
	Fields      []Field `json:"fields"`
}

// Table is a grid of cell strings.
type Table struct {
	TableName string     `json:"table_name"`
	Headers   []string   `json:"headers"`
	Rows      [][]string `json:"rows"`
}

// KeyEntities holds the recognized entity buckets.
type KeyEntities struct {
	PersonNames   []string `json:"person_names,omitempty"`
	Organizations []string `json:"organizations,omitempty"`
	Dates         []string `json:"dates,omitempty"`
	Emails        []string `json:"emails,omitempty"`
	PhoneNumbers  []string `json:"phone_numbers,omitempty"`
	Addresses     []string `json:"addresses,omitempty"`
	IDNumbers     []string `json:"id_numbers,omitempty"`
	Amounts       []string `json:"amounts,omitempty"`
}

// Values returns the bucket for kind.
func (k KeyEntities) Values(kind constants.EntityKind) []string {
	switch kind {
	case constants.EntityPersonNames:
		return k.PersonNames
	case constants.EntityOrganizations:
		return k.Organizations
	case constants.EntityDates:
		return k.Dates
	case constants.EntityEmails:
		return k.Emails
	case constants.EntityPhoneNumbers:
		return k.PhoneNumbers
	case constants.EntityAddresses:
		return k.Addresses
	case constants.EntityIDNumbers:
		return k.IDNumbers
	case constants.EntityAmounts:
		return k.Amounts
	}
	return nil
}

// Document is the canonical extraction result.
type Document struct {
	DocumentType       string      `json:"document_type"`
	Summary            string      `json:"summary"`
	Sections           []Section   `json:"sections"`
	Tables             []Table     `json:"tables,omitempty"`
	KeyEntities        KeyEntities `json:"key_entities"`
	SignaturesDetected bool        `json:"signatures_detected"`
	ConfidenceScore    float64     `json:"confidence_score"`
	UnclearFields      []string    `json:"unclear_fields"`
}

// Object re-encodes the document as an ordered loose object.
func (d Document) Object() (*Object, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return ParseObject(b)
}

// FieldCount is the number of fields across all sections.
func (d Document) FieldCount() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Fields)
	}
	return n
}
