package models

import "fmt"

// Stage is one of the four sequential phases of a kiosk visit.
type Stage string

const (
	StageHome    Stage = "home"
	StageUpload  Stage = "upload"
	StagePayment Stage = "payment"
	StageStatus  Stage = "status"
)

func ParseStage(s string) (Stage, error) {
	switch Stage(s) {
	case StageHome, StageUpload, StagePayment, StageStatus:
		return Stage(s), nil
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Severity classes a notification.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
)

// Notification is the single user-visible message slot.
type Notification struct {
	Message  string   `json:"message"`
	Severity Severity `json:"type"`
}
