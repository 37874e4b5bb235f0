// Package localfiles turns paths on a local filesystem into upload inputs.
package localfiles

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/damacus/iron-folders/internal/models"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// ErrIsDirectory is returned for a path that names a directory
var ErrIsDirectory = errors.New("is a directory")

// sniffLen is how much of a file is read to detect its content type
const sniffLen = 3072

// Source reads files from an afero filesystem
type Source struct {
	fs afero.Fs
}

// New returns a Source over fs. A nil fs means the OS filesystem.
func New(fs afero.Fs) *Source {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Source{fs: fs}
}

// File describes one local file. The file is opened lazily on upload.
func (s *Source) File(path string) (models.File, error) {
	info, err := s.fs.Stat(path)
	if err != nil {
		return models.File{}, err
	}
	if info.IsDir() {
		return models.File{}, fmt.Errorf("%s: %w", path, ErrIsDirectory)
	}
	contentType, err := s.detect(path)
	if err != nil {
		return models.File{}, err
	}
	return models.File{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Size:        info.Size(),
		Open: func() (io.ReadCloser, error) {
			return s.fs.Open(path)
		},
	}, nil
}

// Files describes every path, stopping at the first failure
func (s *Source) Files(paths ...string) ([]models.File, error) {
	files := make([]models.File, 0, len(paths))
	for _, p := range paths {
		f, err := s.File(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// Dir describes the regular files directly inside dir, skipping
// subdirectories.
func (s *Source) Dir(dir string) ([]models.File, error) {
	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, err
	}
	var files []models.File
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		f, err := s.File(filepath.Join(dir, info.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func (s *Source) detect(path string) (string, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(io.LimitReader(f, sniffLen))
	if err != nil {
		return "", fmt.Errorf("detect %s: %w", path, err)
	}
	return mt.String(), nil
}
