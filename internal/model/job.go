package model

import "time"

// JobStatus is the lifecycle state of a workflow job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// JobStep identifies the workflow stage a job is currently in.
type JobStep string

const (
	StepUpload     JobStep = "upload"
	StepExtract    JobStep = "extract"
	StepParse      JobStep = "parse"
	StepValidate   JobStep = "validate"
	StepCompare    JobStep = "compare"
	StepAutomation JobStep = "automation"
	StepComplete   JobStep = "complete"
)

// Job tracks one end-to-end pricelist processing run.
type Job struct {
	ID          string     `json:"id"`
	Filename    string     `json:"filename"`
	Status      JobStatus  `json:"status"`
	CurrentStep JobStep    `json:"current_step"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	ProductsExtracted int `json:"products_extracted"`
	ProductsMissing   int `json:"products_missing"`
	ProductsCreated   int `json:"products_created"`

	Report   *Report  `json:"report,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// JobSummary is the compact listing view of a Job.
type JobSummary struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	Status      JobStatus `json:"status"`
	CurrentStep JobStep   `json:"current_step"`
	StartedAt   time.Time `json:"started_at"`
	HasErrors   bool      `json:"has_errors"`
}

// Summary projects a Job into its listing form.
func (j *Job) Summary() JobSummary {
	return JobSummary{
		ID:          j.ID,
		Filename:    j.Filename,
		Status:      j.Status,
		CurrentStep: j.CurrentStep,
		StartedAt:   j.StartedAt,
		HasErrors:   len(j.Errors) > 0,
	}
}
