package models

// Language enumerates the source languages accepted for pasted code.
type Language string

const (
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageJSX        Language = "jsx"
)

// Valid reports whether the language is one of the supported tags.
func (l Language) Valid() bool {
	switch l {
	case LanguagePython, LanguageJavaScript, LanguageJSX:
		return true
	default:
		return false
	}
}

// InputMode selects which input is sent on submission.
type InputMode string

const (
	InputModeText InputMode = "text"
	InputModeFile InputMode = "file"
)

// FileHandle is a staged source file.
type FileHandle struct {
	Name        string `json:"name"`
	Content     []byte `json:"content"`
	ContentType string `json:"content_type,omitempty"`
}

// InputState holds what the user has typed or selected. It carries no validation.
type InputState struct {
	Code     string      `json:"code"`
	Language Language    `json:"language"`
	File     *FileHandle `json:"file,omitempty"`
	Mode     InputMode   `json:"mode"`
}

// NewInputState returns the session defaults.
func NewInputState() InputState {
	return InputState{
		Language: LanguagePython,
		Mode:     InputModeText,
	}
}

// SetCode replaces the pasted source text.
func (s *InputState) SetCode(text string) {
	s.Code = text
}

// SetLanguage replaces the language tag.
func (s *InputState) SetLanguage(tag Language) {
	s.Language = tag
}

// SetFile stages a file and switches to file mode.
func (s *InputState) SetFile(handle FileHandle) {
	file := handle
	file.Content = append([]byte(nil), handle.Content...)
	s.File = &file
	s.Mode = InputModeFile
}

// ClearFile drops the staged file and switches back to text mode.
func (s *InputState) ClearFile() {
	s.File = nil
	s.Mode = InputModeText
}

// HasFile reports whether a file is staged.
func (s InputState) HasFile() bool {
	return s.File != nil
}

// ResolvedMode applies the submission priority rule: a staged file always wins.
func (s InputState) ResolvedMode() InputMode {
	if s.HasFile() {
		return InputModeFile
	}
	return InputModeText
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s InputState) Clone() InputState {
	clone := s
	if s.File != nil {
		file := *s.File
		file.Content = append([]byte(nil), s.File.Content...)
		clone.File = &file
	}
	return clone
}
