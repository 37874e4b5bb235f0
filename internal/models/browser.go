// Package models contains data structures used across the browser, the
// backend adapters and the proxy handlers
package models

import (
	"io"
	"sort"
)

// Entry is one child of the current path, either a folder or a file
type Entry struct {
	Name     string `json:"name"`
	IsFolder bool   `json:"isFolder"`
}

// Listing is the normalized result of a single-level list operation.
// Folders and files are disjoint by name.
type Listing struct {
	Folders []Entry `json:"folders"`
	Files   []Entry `json:"files"`
}

// Entries returns folders followed by files, the order the browser shows them
func (l Listing) Entries() []Entry {
	out := make([]Entry, 0, len(l.Folders)+len(l.Files))
	out = append(out, l.Folders...)
	return append(out, l.Files...)
}

// Len returns the number of entries in the listing
func (l Listing) Len() int {
	return len(l.Folders) + len(l.Files)
}

// Find looks up an entry by name
func (l Listing) Find(name string) (Entry, bool) {
	for _, e := range l.Entries() {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Sort orders folders and files by name
func (l *Listing) Sort() {
	sort.Slice(l.Folders, func(i, j int) bool { return l.Folders[i].Name < l.Folders[j].Name })
	sort.Slice(l.Files, func(i, j int) bool { return l.Files[i].Name < l.Files[j].Name })
}

// File is an upload candidate. Size is -1 when unknown.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// Breadcrumb for navigation
type Breadcrumb struct {
	Name string
	Path string
}
