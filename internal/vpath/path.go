// Package vpath implements the logical path model used to browse flat
// object storage as if it were a directory tree.
//
// A logical path is either empty (the root) or a sequence of non-empty
// segments, each followed by exactly one Separator, e.g. "docs/img/".
package vpath

import (
	"fmt"
	"strings"

	"github.com/damacus/iron-folders/internal/fserrors"
	"github.com/damacus/iron-folders/internal/models"
)

// Separator is the hierarchy delimiter used for keys and listings
const Separator = "/"

// Root is the empty logical path
const Root = ""

// Segments splits a path into its non-empty segments
func Segments(path string) []string {
	parts := strings.Split(path, Separator)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Join renders segments as a logical path
func Join(segments ...string) string {
	if len(segments) == 0 {
		return Root
	}
	return strings.Join(segments, Separator) + Separator
}

// Normalize drops empty segments and leading separators and makes sure a
// non-root path ends with exactly one separator.
func Normalize(path string) string {
	return Join(Segments(path)...)
}

// IsRoot reports whether path normalizes to the root
func IsRoot(path string) bool {
	return len(Segments(path)) == 0
}

// Descend appends one segment to path
func Descend(path, segment string) (string, error) {
	if segment == "" {
		return "", fmt.Errorf("descend: %w: empty", fserrors.ErrInvalidSegment)
	}
	if strings.Contains(segment, Separator) {
		return "", fmt.Errorf("descend: %w: %q contains %q", fserrors.ErrInvalidSegment, segment, Separator)
	}
	return Normalize(path) + segment + Separator, nil
}

// Ascend removes the last segment of path
func Ascend(path string) (string, error) {
	segs := Segments(path)
	if len(segs) == 0 {
		return "", fserrors.ErrAtRoot
	}
	return Join(segs[:len(segs)-1]...), nil
}

// DisplayRoot renders path for presentation only
func DisplayRoot(path string) string {
	if path == Root {
		return Separator
	}
	return path
}

// Breadcrumbs builds one crumb per segment, each pointing at the path up to
// and including that segment.
func Breadcrumbs(path string) []models.Breadcrumb {
	var crumbs []models.Breadcrumb
	current := ""
	for _, part := range Segments(path) {
		current += part + Separator
		crumbs = append(crumbs, models.Breadcrumb{
			Name: part,
			Path: current,
		})
	}
	return crumbs
}
