package constants

// Canonical document defaults.
const (
	DefaultDocumentType    = "Handwritten Form"
	DefaultSummary         = "Extracted handwritten form data"
	DefaultConfidenceScore = 0.85
	GeneralSectionName     = "General Information"
)

// Pipeline stage names, in execution order.
const (
	StepValidation       = "1. Validation"
	StepVisualExtraction = "2. Visual Extraction"
	StepExtraction       = "3. Extraction"
	StepCleaning         = "4. Validation & Cleaning"
)

// ImageConfidenceThreshold is the detection quality below which document
// confidence is pulled down.
const ImageConfidenceThreshold = 0.6
