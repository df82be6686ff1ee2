package filevalidator

import (
	"fmt"
	"math"
)

// FormatSizeReadable converts a size in bytes to a human-readable string
func FormatSizeReadable(size int64) string {
	switch {
	case size < KB:
		return fmt.Sprintf("%d B", size)
	case size < MB:
		return formatUnit(size, KB, "KB")
	case size < GB:
		return formatUnit(size, MB, "MB")
	default:
		return formatUnit(size, GB, "GB")
	}
}

func formatUnit(size, unit int64, suffix string) string {
	value := float64(size) / float64(unit)
	// Round to 1 decimal place properly
	rounded := math.Round(value*10) / 10
	if rounded == float64(int64(rounded)) {
		return fmt.Sprintf("%.0f %s", rounded, suffix)
	}
	return fmt.Sprintf("%.1f %s", rounded, suffix)
}
