package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-code-review/internal/models"
)

func TestValidateFileExtension(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		valid    bool
	}{
		{name: "python", filename: "main.py", valid: true},
		{name: "upper_case", filename: "Script.PY", valid: true},
		{name: "javascript", filename: "app.js", valid: true},
		{name: "jsx", filename: "App.Jsx", valid: true},
		{name: "last_dot_wins", filename: "archive.txt.py", valid: true},
		{name: "text", filename: "notes.txt", valid: false},
		{name: "extension_only_suffix", filename: "main.pyc", valid: false},
		{name: "no_dot", filename: "py", valid: false},
		{name: "trailing_dot", filename: "main.", valid: false},
		{name: "typescript", filename: "app.ts", valid: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFileExtension(tc.filename)
			if tc.valid {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidExtension)
			require.Equal(t, InvalidExtensionMessage, err.Error())
			require.Equal(t, models.ErrorKindInvalidExtension, KindOf(err))
		})
	}
}

func TestInvalidExtensionMessageNamesAllowedSet(t *testing.T) {
	for _, ext := range AllowedExtensions {
		require.Contains(t, InvalidExtensionMessage, "."+ext)
	}
}

func TestValidateSubmission(t *testing.T) {
	input := models.NewInputState()
	err := ValidateSubmission(input)
	require.ErrorIs(t, err, ErrEmptyInput)
	require.Equal(t, "Please enter code or upload a file", Message(err))

	input.SetCode("   \n\t")
	require.ErrorIs(t, ValidateSubmission(input), ErrEmptyInput)

	input.SetCode("print(1)")
	require.NoError(t, ValidateSubmission(input))

	fileOnly := models.NewInputState()
	fileOnly.SetFile(models.FileHandle{Name: "main.py", Content: []byte("x = 1")})
	require.NoError(t, ValidateSubmission(fileOnly))
}

func TestValidateFileContent(t *testing.T) {
	contentType, err := ValidateFileContent([]byte("def main():\n    return 1\n"), 1024)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(contentType, "text/"), contentType)

	_, err = ValidateFileContent([]byte("const x = () => <div/>;\n"), 1024)
	require.NoError(t, err)

	contentType, err = ValidateFileContent(nil, 1024)
	require.NoError(t, err)
	require.Equal(t, "text/plain; charset=utf-8", contentType)

	pngHeader := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}
	contentType, err = ValidateFileContent(pngHeader, 1024)
	require.ErrorIs(t, err, ErrBinaryContent)
	require.Empty(t, contentType)
	require.Equal(t, models.ErrorKindInvalidContent, KindOf(err))

	_, err = ValidateFileContent(make([]byte, 2048), 1024)
	require.ErrorIs(t, err, ErrFileTooLarge)
	require.Contains(t, Message(err), "1 KB")
}
