package models

import (
	"fmt"
	"strings"
)

// Size is a derivative resolution class.
type Size string

const (
	SizeThumbnail Size = "thumbnail"
	SizeMedium    Size = "medium"
	SizeLarge     Size = "large"
)

// AllSizes lists the sizes in ascending order.
var AllSizes = []Size{SizeThumbnail, SizeMedium, SizeLarge}

// MaxDimension is the longest edge in pixels.
func (s Size) MaxDimension() int {
	switch s {
	case SizeThumbnail:
		return 300
	case SizeMedium:
		return 1024
	case SizeLarge:
		return 2048
	}
	return 0
}

// DefaultQuality is the lossy compression quality in [0,1].
func (s Size) DefaultQuality() float64 {
	switch s {
	case SizeThumbnail:
		return 0.7
	case SizeMedium:
		return 0.8
	case SizeLarge:
		return 0.85
	}
	return 0.8
}

// Local reports whether the size is always kept on the device.
func (s Size) Local() bool {
	return s == SizeThumbnail || s == SizeMedium
}

func (s Size) Valid() bool {
	return s.MaxDimension() > 0
}

// ParseSize accepts a size name case-insensitively.
func ParseSize(v string) (Size, error) {
	s := Size(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown size %q", v)
	}
	return s, nil
}

// JoinSizes renders sizes as a comma-separated list for storage.
func JoinSizes(sizes []Size) string {
	parts := make([]string, len(sizes))
	for i, s := range sizes {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

// SplitSizes parses JoinSizes output; unknown entries are skipped.
func SplitSizes(v string) []Size {
	if v == "" {
		return nil
	}
	var out []Size
	for _, p := range strings.Split(v, ",") {
		if s, err := ParseSize(p); err == nil {
			out = append(out, s)
		}
	}
	return out
}
