// Package validation gates file selection and submission before anything reaches the network.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/noah-isme/gema-code-review/internal/models"
)

var (
	// ErrInvalidExtension indicates the file name is outside the extension whitelist.
	ErrInvalidExtension = errors.New("invalid file extension")
	// ErrEmptyInput indicates neither code nor a file was provided.
	ErrEmptyInput = errors.New("empty input")
	// ErrBinaryContent indicates the staged file is not source text.
	ErrBinaryContent = errors.New("binary file content")
	// ErrFileTooLarge indicates the staged file exceeds the configured limit.
	ErrFileTooLarge = errors.New("file too large")
)

const (
	// InvalidExtensionMessage is shown when a file is rejected at selection time.
	InvalidExtensionMessage = "Unsupported file type. Only .py, .js, and .jsx files are supported."
	// EmptyInputMessage is shown when submit is pressed with nothing to send.
	EmptyInputMessage = "Please enter code or upload a file"
	// BinaryContentMessage is shown when a whitelisted name carries non-text bytes.
	BinaryContentMessage = "The selected file does not look like source code."
)

// AllowedExtensions lists the accepted file extensions without the leading dot.
var AllowedExtensions = []string{"py", "js", "jsx"}

// ValidationError carries a user-facing message for a sentinel error kind.
type ValidationError struct {
	Kind    error
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// Message returns the user-facing text of err when it is a ValidationError.
func Message(err error) string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// FileExtension returns the lower-cased text after the final dot, or "" when there is none.
func FileExtension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}

// ValidateFileExtension checks filename against the extension whitelist.
func ValidateFileExtension(filename string) error {
	ext := FileExtension(strings.TrimSpace(filename))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}

	return &ValidationError{Kind: ErrInvalidExtension, Message: InvalidExtensionMessage}
}

const emptyContentType = "text/plain; charset=utf-8"

// ValidateFileContent rejects payloads above maxBytes or that are not text, and returns
// the detected content type of accepted payloads. A maxBytes of zero disables the size check.
func ValidateFileContent(content []byte, maxBytes int64) (string, error) {
	if maxBytes > 0 && int64(len(content)) > maxBytes {
		return "", &ValidationError{
			Kind:    ErrFileTooLarge,
			Message: fmt.Sprintf("The selected file exceeds the %d KB limit.", maxBytes/1024),
		}
	}

	if len(content) == 0 {
		return emptyContentType, nil
	}

	detected := mimetype.Detect(content)
	for mtype := detected; mtype != nil; mtype = mtype.Parent() {
		if mtype.Is("text/plain") {
			return detected.String(), nil
		}
	}

	return "", &ValidationError{Kind: ErrBinaryContent, Message: BinaryContentMessage}
}

// ValidateSubmission fails when the code is blank and no file is staged.
func ValidateSubmission(input models.InputState) error {
	if input.HasFile() {
		return nil
	}
	if strings.TrimSpace(input.Code) == "" {
		return &ValidationError{Kind: ErrEmptyInput, Message: EmptyInputMessage}
	}
	return nil
}

// KindOf maps a validation error onto the submission error taxonomy.
func KindOf(err error) models.ErrorKind {
	switch {
	case errors.Is(err, ErrEmptyInput):
		return models.ErrorKindEmptyInput
	case errors.Is(err, ErrInvalidExtension):
		return models.ErrorKindInvalidExtension
	case errors.Is(err, ErrBinaryContent), errors.Is(err, ErrFileTooLarge):
		return models.ErrorKindInvalidContent
	default:
		return ""
	}
}
