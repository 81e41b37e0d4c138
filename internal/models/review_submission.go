package models

import (
	"time"

	"github.com/noah-isme/gema-code-review/pkg/reviewapi"
)

// Phase is the current stage of the submission state machine.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseSubmitting Phase = "submitting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// InFlight reports whether an attempt is between submit and completion.
func (p Phase) InFlight() bool {
	return p == PhaseValidating || p == PhaseSubmitting
}

// Terminal reports whether the attempt has finished.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// ErrorKind classifies why an attempt failed.
type ErrorKind string

const (
	ErrorKindEmptyInput       ErrorKind = "empty_input"
	ErrorKindInvalidExtension ErrorKind = "invalid_extension"
	ErrorKindInvalidContent   ErrorKind = "invalid_content"
	ErrorKindServiceError     ErrorKind = "service_error"
	ErrorKindTransportError   ErrorKind = "transport_error"
)

// SubmissionState tracks one session's submission lifecycle.
// ErrorMessage is set only in PhaseFailed and Result only in PhaseSucceeded.
type SubmissionState struct {
	Phase        Phase                     `json:"phase"`
	ErrorMessage string                    `json:"error_message,omitempty"`
	ErrorKind    ErrorKind                 `json:"error_kind,omitempty"`
	Result       *reviewapi.AnalysisResult `json:"result,omitempty"`
	Mode         InputMode                 `json:"mode,omitempty"`
	Attempt      int                       `json:"attempt"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}

// NewSubmissionState returns an idle state.
func NewSubmissionState() SubmissionState {
	return SubmissionState{Phase: PhaseIdle}
}

// SessionSnapshot is a point-in-time copy of a session's input and submission state.
// Version increases with every transition of the owning session.
type SessionSnapshot struct {
	SessionID  string          `json:"session_id"`
	Version    uint64          `json:"version"`
	Input      InputState      `json:"input"`
	Submission SubmissionState `json:"submission"`
}
