package handler

import (
	"regexp"
	"strings"
)

var spaceRun = regexp.MustCompile(`\s{2,}`)

// collapseSpaces trims the string and collapses internal whitespace runs
// to single spaces. Applied to display names before they are persisted.
func collapseSpaces(s string) string {
	return spaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

// clamp bounds a numeric form value to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// floorAt bounds a numeric form value from below.
func floorAt(v, lo float64) float64 {
	if v < lo {
		return lo
	}
	return v
}
