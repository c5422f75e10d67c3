package constants

// FormStatus is the lifecycle status of an uploaded form.
type FormStatus string

// Stable values (store these exact strings in DB).
const (
	FormStatusPending    FormStatus = "PENDING"
	FormStatusProcessing FormStatus = "PROCESSING"
	FormStatusCompleted  FormStatus = "COMPLETED"
	FormStatusFailed     FormStatus = "FAILED"
)

// StepStatus is the outcome recorded for one pipeline stage.
type StepStatus string

const (
	StepCompleted StepStatus = "COMPLETED"
	StepFailed    StepStatus = "FAILED"
)

// Result statuses of a pipeline invocation.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)
