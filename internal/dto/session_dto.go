package dto

import (
	"time"

	"github.com/noah-isme/gema-code-review/internal/models"
	"github.com/noah-isme/gema-code-review/internal/presenter"
)

// CodeUpdateRequest replaces the pasted code.
type CodeUpdateRequest struct {
	Code string `json:"code" validate:"max=1048576"`
}

// LanguageUpdateRequest replaces the language tag.
type LanguageUpdateRequest struct {
	Language string `json:"language" validate:"required,oneof=python javascript jsx"`
}

// InputView mirrors the input controls.
type InputView struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Mode     string `json:"mode"`
	FileName string `json:"file_name,omitempty"`
	FileSize int    `json:"file_size,omitempty"`
}

// ShellView carries everything the presentation shell binds to.
type ShellView struct {
	SessionID      string                       `json:"session_id"`
	Version        uint64                       `json:"version"`
	Input          InputView                    `json:"input"`
	Phase          string                       `json:"phase"`
	Attempt        int                          `json:"attempt"`
	SubmitDisabled bool                         `json:"submit_disabled"`
	ShowProgress   bool                         `json:"show_progress"`
	ShowError      bool                         `json:"show_error"`
	Error          string                       `json:"error,omitempty"`
	ErrorKind      string                       `json:"error_kind,omitempty"`
	ShowResults    bool                         `json:"show_results"`
	Result         *presenter.PresentationModel `json:"result,omitempty"`
	UpdatedAt      *time.Time                   `json:"updated_at,omitempty"`
}

// SessionCreatedResponse is returned when a session starts.
type SessionCreatedResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	View      ShellView `json:"view"`
}

// NewShellView derives the shell bindings from a session snapshot.
func NewShellView(snapshot models.SessionSnapshot) ShellView {
	state := snapshot.Submission
	input := snapshot.Input

	view := ShellView{
		SessionID: snapshot.SessionID,
		Version:   snapshot.Version,
		Input: InputView{
			Code:     input.Code,
			Language: string(input.Language),
			Mode:     string(input.ResolvedMode()),
		},
		Phase:          string(state.Phase),
		Attempt:        state.Attempt,
		SubmitDisabled: state.Phase.InFlight(),
		ShowProgress:   state.Phase == models.PhaseSubmitting,
		ShowError:      state.Phase == models.PhaseFailed,
		ShowResults:    state.Phase == models.PhaseSucceeded && state.Result != nil,
	}

	if input.File != nil {
		view.Input.FileName = input.File.Name
		view.Input.FileSize = len(input.File.Content)
	}

	if view.ShowError {
		view.Error = state.ErrorMessage
		view.ErrorKind = string(state.ErrorKind)
	}

	if view.ShowResults {
		model := presenter.Present(*state.Result)
		view.Result = &model
	}

	if !state.UpdatedAt.IsZero() {
		updated := state.UpdatedAt.UTC()
		view.UpdatedAt = &updated
	}

	return view
}
