package container

import (
	"fmt"
	"time"

	"github.com/docker/go-units"
)

var binarySizes = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// FormatSize renders a byte count with 1024-based units, e.g. "2.3 GB"
func FormatSize(bytes int64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}
	return units.CustomSize("%.1f %s", float64(bytes), 1024.0, binarySizes)
}

// FormatAge renders how long ago t was, e.g. "3 days ago"
func FormatAge(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return units.HumanDuration(now.Sub(t)) + " ago"
}
