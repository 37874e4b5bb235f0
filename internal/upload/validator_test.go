package upload

import (
	"testing"

	"github.com/damacus/iron-folders/internal/fserrors"
	"github.com/damacus/iron-folders/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtension(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"report.pdf", "pdf"},
		{"archive.tar.gz", "gz"},
		{"README", ""},
		{".hidden", "hidden"},
		{"trailing.", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Extension(tt.name); got != tt.expected {
				t.Errorf("Extension(%q) = %q, want %q", tt.name, got, tt.expected)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"My File (1)!.pdf", "My_File__1__.pdf"},
		{"plain-name_1.txt", "plain-name_1.txt"},
		{"café.png", "caf_.png"},
		{"a/b.txt", "a_b.txt"},
		{"日本語.txt", "___.txt"},
		{"party 🎉.jpg", "party___.jpg"},
		{"👍🏽.png", "____.png"},
		{"bad\xffbyte.txt", "bad_byte.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.name); got != tt.expected {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.name, got, tt.expected)
			}
		})
	}
}

func TestValidator_Check(t *testing.T) {
	v := NewValidator(nil)

	assert.NoError(t, v.Check("My File (1)!.pdf"))
	assert.ErrorIs(t, v.Check("archive.exe"), fserrors.ErrDisallowedExtension)
	assert.ErrorIs(t, v.Check("README"), fserrors.ErrDisallowedExtension)
	assert.ErrorIs(t, v.Check("PHOTO.JPG"), fserrors.ErrDisallowedExtension, "allow-list is case-sensitive")
	assert.ErrorIs(t, v.Check("   "), fserrors.ErrEmptyName)
}

func TestValidator_CustomList(t *testing.T) {
	v := NewValidator([]string{".exe"})

	assert.NoError(t, v.Check("setup.exe"))
	assert.ErrorIs(t, v.Check("report.pdf"), fserrors.ErrDisallowedExtension)
}

func TestValidator_FilterKeepsSiblings(t *testing.T) {
	v := NewValidator(nil)
	files := []models.File{
		{Name: "archive.exe"},
		{Name: "My File (1)!.pdf"},
		{Name: "song.mp3"},
	}

	accepted, rejected := v.Filter(files)

	require.Len(t, accepted, 2)
	assert.Equal(t, "My_File__1__.pdf", accepted[0].Name)
	assert.Equal(t, "song.mp3", accepted[1].Name)

	require.Len(t, rejected, 1)
	assert.Equal(t, "archive.exe", rejected[0].Name)
	assert.ErrorIs(t, rejected[0], fserrors.ErrDisallowedExtension)
	assert.Contains(t, rejected[0].Error(), "exe")
}

func TestDefaultAllowedExtensions(t *testing.T) {
	assert.Len(t, DefaultAllowedExtensions, 52)
	for _, ext := range DefaultAllowedExtensions {
		assert.True(t, len(ext) > 1 && ext[0] == '.', "bad entry %q", ext)
	}
}

func TestSuccessMessage(t *testing.T) {
	assert.Equal(t, "No files uploaded.", SuccessMessage(0))
	assert.Equal(t, "1 file uploaded successfully!", SuccessMessage(1))
	assert.Equal(t, "3 files uploaded successfully!", SuccessMessage(3))
}
