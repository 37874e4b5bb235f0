package localfiles

import (
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func memFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in/notes.txt", []byte("hello world"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/in/logo.png", pngHeader, 0o644))
	require.NoError(t, fs.MkdirAll("/in/sub", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/in/sub/deep.txt", []byte("x"), 0o644))
	return fs
}

func TestFile(t *testing.T) {
	src := New(memFs(t))

	f, err := src.File("/in/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", f.Name)
	assert.Equal(t, int64(11), f.Size)
	assert.True(t, strings.HasPrefix(f.ContentType, "text/plain"), f.ContentType)

	rc, err := f.Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestFile_DetectsContent(t *testing.T) {
	f, err := New(memFs(t)).File("/in/logo.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", f.ContentType)
}

func TestFile_Errors(t *testing.T) {
	src := New(memFs(t))

	_, err := src.File("/in/sub")
	assert.ErrorIs(t, err, ErrIsDirectory)

	_, err = src.File("/in/missing.txt")
	assert.Error(t, err)

	_, err = src.Files("/in/notes.txt", "/in/missing.txt")
	assert.Error(t, err)
}

func TestFiles(t *testing.T) {
	files, err := New(memFs(t)).Files("/in/notes.txt", "/in/logo.png")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "notes.txt", files[0].Name)
	assert.Equal(t, "logo.png", files[1].Name)
}

func TestDir_SkipsSubdirectories(t *testing.T) {
	files, err := New(memFs(t)).Dir("/in")
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"notes.txt", "logo.png"}, names)
}
