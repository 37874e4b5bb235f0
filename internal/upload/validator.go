// Package upload gates files before they are handed to a backend: an
// extension allow-list check followed by key sanitization.
package upload

import (
	"fmt"
	"strings"

	"github.com/damacus/iron-folders/internal/fserrors"
	"github.com/damacus/iron-folders/internal/models"
)

// DefaultAllowedExtensions covers documents, images, audio, video and
// archives. Entries are case-sensitive and carry the leading dot.
var DefaultAllowedExtensions = []string{
	".3g2", ".3gp", ".7z", ".aac", ".asf", ".avi", ".bmp", ".doc", ".docx",
	".f4a", ".f4b", ".f4p", ".f4v", ".flac", ".flv", ".gif", ".gz", ".jpeg",
	".jpg", ".m2ts", ".m2v", ".m4a", ".m4b", ".m4p", ".m4r", ".m4s", ".m4v",
	".mkv", ".mov", ".mp3", ".mp4", ".mpeg", ".mpg", ".mts", ".ogg", ".opus",
	".pdf", ".png", ".ppt", ".pptx", ".rar", ".tar", ".tgz", ".ts", ".txt",
	".wav", ".webm", ".wma", ".wmv", ".xls", ".xlsx", ".zip",
}

// Extension returns the substring after the last dot, or "" when name has
// no dot.
func Extension(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	return name[i+1:]
}

// Sanitize replaces every character outside [A-Za-z0-9._-] with '_', one
// per UTF-16 code unit, so a character outside the Basic Multilingual Plane
// (most emoji) becomes "__". Keys match the ones the mobile app produced.
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if isSafe(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
		if r > 0xFFFF {
			// surrogate pair
			b.WriteByte('_')
		}
	}
	return b.String()
}

func isSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}

// Rejection reports why a single file was left out of a batch
type Rejection struct {
	Name string
	Err  error
}

func (r Rejection) Error() string {
	return fmt.Sprintf("%s: %v", r.Name, r.Err)
}

func (r Rejection) Unwrap() error {
	return r.Err
}

// Validator checks candidate names against an allow-list
type Validator struct {
	allowed map[string]struct{}
}

// NewValidator builds a validator. An empty list falls back to
// DefaultAllowedExtensions.
func NewValidator(allowed []string) *Validator {
	if len(allowed) == 0 {
		allowed = DefaultAllowedExtensions
	}
	v := &Validator{allowed: make(map[string]struct{}, len(allowed))}
	for _, ext := range allowed {
		v.allowed[ext] = struct{}{}
	}
	return v
}

// Allows reports whether the dotted extension is on the allow-list
func (v *Validator) Allows(dotted string) bool {
	_, ok := v.allowed[dotted]
	return ok
}

// Check validates a single candidate name
func (v *Validator) Check(name string) error {
	if strings.TrimSpace(name) == "" {
		return fserrors.ErrEmptyName
	}
	ext := Extension(name)
	if !v.Allows("." + ext) {
		return fmt.Errorf("%w: %s", fserrors.ErrDisallowedExtension, ext)
	}
	return nil
}

// Filter validates every file independently. Accepted files are returned
// with their sanitized names; one rejection never aborts the batch.
func (v *Validator) Filter(files []models.File) ([]models.File, []Rejection) {
	var accepted []models.File
	var rejected []Rejection
	for _, f := range files {
		if err := v.Check(f.Name); err != nil {
			rejected = append(rejected, Rejection{Name: f.Name, Err: err})
			continue
		}
		f.Name = Sanitize(f.Name)
		accepted = append(accepted, f)
	}
	return accepted, rejected
}

// SuccessMessage summarizes a completed batch of n uploads
func SuccessMessage(n int) string {
	switch n {
	case 0:
		return "No files uploaded."
	case 1:
		return "1 file uploaded successfully!"
	}
	return fmt.Sprintf("%d files uploaded successfully!", n)
}
