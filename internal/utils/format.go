// Package utils provides shared formatting helpers and context keys
package utils

import (
	"fmt"

	"github.com/damacus/iron-folders/internal/models"
)

var sizeUnits = []string{"KB", "MB", "GB", "TB", "PB", "EB"}

// FormatFileSize renders a byte count with binary units, e.g. "1.5 MB".
// Negative sizes render as "0 B".
func FormatFileSize(size int64) string {
	if size < 1024 {
		if size < 0 {
			size = 0
		}
		return fmt.Sprintf("%d B", size)
	}
	value := float64(size)
	unit := -1
	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", value, sizeUnits[unit])
}

// FormatEntry renders a listing row; folders carry a trailing slash
func FormatEntry(e models.Entry) string {
	if e.IsFolder {
		return e.Name + "/"
	}
	return e.Name
}

// FormatLocation renders service:container/path
func FormatLocation(service, container, path string) string {
	return service + ":" + container + "/" + path
}
