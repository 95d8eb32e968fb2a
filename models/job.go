package models

import (
	"fmt"
	"strings"
)

// JobStatus is the backend's view of a print job.
type JobStatus string

const (
	JobUploaded  JobStatus = "UPLOADED"
	JobPaid      JobStatus = "PAID"
	JobPrinting  JobStatus = "PRINTING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

// JobStatusResponse is the body of the status endpoint.
type JobStatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ParseJobStatus normalizes a wire value; unknown values are an error.
func ParseJobStatus(s string) (JobStatus, error) {
	st := JobStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case JobUploaded, JobPaid, JobPrinting, JobCompleted, JobFailed:
		return st, nil
	}
	return "", fmt.Errorf("unrecognized job status %q", s)
}

// Terminal reports whether no further transitions are expected.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Rank orders the non-failed statuses; FAILED and unknown values rank -1.
func (s JobStatus) Rank() int {
	switch s {
	case JobUploaded:
		return 0
	case JobPaid:
		return 1
	case JobPrinting:
		return 2
	case JobCompleted:
		return 3
	}
	return -1
}

// Advances reports whether moving from s to next is a forward transition.
// FAILED is reachable from any non-terminal status; terminal statuses absorb.
func (s JobStatus) Advances(next JobStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == JobFailed {
		return true
	}
	return next.Rank() > s.Rank()
}

// StepState is how a step is drawn.
type StepState string

const (
	StepDone    StepState = "done"
	StepActive  StepState = "active"
	StepPending StepState = "pending"
	StepFailed  StepState = "failed"
)

// Step is one entry of the display-ready progress sequence.
type Step struct {
	Key         JobStatus `json:"key"`
	Label       string    `json:"label"`
	Description string    `json:"description"`
	State       StepState `json:"state"`
}

var stepTemplates = []Step{
	{Key: JobUploaded, Label: "Uploaded", Description: "File uploaded successfully"},
	{Key: JobPaid, Label: "Paid", Description: "Payment received"},
	{Key: JobPrinting, Label: "Printing", Description: "Sending to printer"},
	{Key: JobCompleted, Label: "Completed", Description: "Print job completed"},
}

// BuildSteps lays out the four steps for status. A completed job marks every
// step done; a failed job marks the step after last (the last known good
// status) as failed.
func BuildSteps(status, last JobStatus) []Step {
	steps := make([]Step, len(stepTemplates))
	copy(steps, stepTemplates)

	current := status.Rank()
	failedAt := -1
	if status == JobFailed {
		failedAt = last.Rank() + 1
		if failedAt >= len(steps) {
			failedAt = len(steps) - 1
		}
		current = failedAt
	}

	for i := range steps {
		switch {
		case i == failedAt:
			steps[i].State = StepFailed
		case status == JobCompleted || i < current:
			steps[i].State = StepDone
		case i == current:
			steps[i].State = StepActive
		default:
			steps[i].State = StepPending
		}
	}
	return steps
}
