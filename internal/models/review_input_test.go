package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInputStateDefaults(t *testing.T) {
	input := NewInputState()

	assert.Equal(t, "", input.Code)
	assert.Equal(t, LanguagePython, input.Language)
	assert.Nil(t, input.File)
	assert.Equal(t, InputModeText, input.ResolvedMode())
}

func TestFileDominatesText(t *testing.T) {
	input := NewInputState()
	input.SetCode("print(1)")
	input.SetFile(FileHandle{Name: "main.py", Content: []byte("x")})

	assert.Equal(t, InputModeFile, input.ResolvedMode())
	assert.Equal(t, "print(1)", input.Code)

	input.ClearFile()
	assert.Equal(t, InputModeText, input.Mode)
	assert.Equal(t, InputModeText, input.ResolvedMode())
}

func TestCloneCopiesFileContent(t *testing.T) {
	content := []byte("abc")
	input := NewInputState()
	input.SetFile(FileHandle{Name: "a.js", Content: content})
	content[0] = 'z'
	assert.Equal(t, "abc", string(input.File.Content))

	clone := input.Clone()
	clone.File.Content[0] = 'q'
	assert.Equal(t, "abc", string(input.File.Content))
}

func TestLanguageValid(t *testing.T) {
	assert.True(t, LanguageJSX.Valid())
	assert.True(t, LanguageJavaScript.Valid())
	assert.False(t, Language("ruby").Valid())
	assert.False(t, Language("").Valid())
}

func TestPhaseClassification(t *testing.T) {
	assert.True(t, PhaseValidating.InFlight())
	assert.True(t, PhaseSubmitting.InFlight())
	assert.False(t, PhaseIdle.InFlight())
	assert.True(t, PhaseSucceeded.Terminal())
	assert.True(t, PhaseFailed.Terminal())
	assert.False(t, PhaseSubmitting.Terminal())
}
