package constants

// JobStatus is the canonical status of a document moving through the validation queue.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusExtracted JobStatus = "EXTRACTED" // stage 1 completed
	JobStatusValidated JobStatus = "VALIDATED" // all agent stages completed
	JobStatusFailed    JobStatus = "FAILED"    // extraction failed; agents never ran
)
