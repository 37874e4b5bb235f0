package backend

import (
	"strings"

	"github.com/damacus/iron-folders/internal/models"
	"github.com/damacus/iron-folders/internal/vpath"
)

// Collector accumulates the raw keys returned by one delimiter listing and
// reduces them to a single directory level relative to the queried prefix.
type Collector struct {
	prefix  string
	folders map[string]struct{}
	files   map[string]struct{}
}

// NewCollector starts a collection for the given query prefix
func NewCollector(prefix string) *Collector {
	return &Collector{
		prefix:  prefix,
		folders: make(map[string]struct{}),
		files:   make(map[string]struct{}),
	}
}

// Prefix returns the queried prefix
func (c *Collector) Prefix() string {
	return c.prefix
}

// AddPrefix records a delimiter group (common prefix)
func (c *Collector) AddPrefix(key string) {
	rest := c.relative(key)
	if rest == "" {
		return
	}
	c.addFolder(firstSegment(rest))
}

// AddObject records a leaf key. Keys ending in the separator are folder
// markers; keys that still nest below the prefix collapse to their first
// segment.
func (c *Collector) AddObject(key string) {
	rest := c.relative(key)
	if rest == "" {
		return
	}
	if i := strings.Index(rest, vpath.Separator); i >= 0 {
		c.addFolder(rest[:i])
		return
	}
	c.files[rest] = struct{}{}
}

// AddFolderName records an already-relative folder name
func (c *Collector) AddFolderName(name string) {
	name = strings.TrimSuffix(name, vpath.Separator)
	if name == "" {
		return
	}
	c.addFolder(firstSegment(name))
}

// AddFileName records an already-relative file name
func (c *Collector) AddFileName(name string) {
	if name == "" {
		return
	}
	if strings.Contains(name, vpath.Separator) {
		c.AddFolderName(name)
		return
	}
	c.files[name] = struct{}{}
}

// Listing returns the sorted, disjoint result. A name seen both as a folder
// and as a file is reported once, as a folder.
func (c *Collector) Listing() models.Listing {
	var l models.Listing
	for name := range c.folders {
		l.Folders = append(l.Folders, models.Entry{Name: name, IsFolder: true})
	}
	for name := range c.files {
		if _, dup := c.folders[name]; dup {
			continue
		}
		l.Files = append(l.Files, models.Entry{Name: name})
	}
	l.Sort()
	return l
}

func (c *Collector) relative(key string) string {
	if !strings.HasPrefix(key, c.prefix) {
		return ""
	}
	return strings.TrimPrefix(key, c.prefix)
}

func (c *Collector) addFolder(name string) {
	if name == "" {
		return
	}
	c.folders[name] = struct{}{}
}

func firstSegment(rest string) string {
	if i := strings.Index(rest, vpath.Separator); i >= 0 {
		return rest[:i]
	}
	return rest
}
