// Package rating implements the security scoring engine used by the
// dashboard, API and CLI.
//
// Findings are reduced to per-severity counts (Aggregate), the counts are
// turned into a 0-100 score (ComputeScore), and either the score or the raw
// counts are mapped to a letter grade (Classify, ClassifyFromCounts).
// Everything in this package is pure and safe for concurrent use.
package rating

import (
	"strings"
)

// Severity is a normalized finding severity.
type Severity string

// Severity levels, most severe first.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Severities lists every recognized severity, most severe first.
var Severities = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityInfo,
}

// ParseSeverity normalizes a raw severity string. Matching is
// case-insensitive and ignores surrounding whitespace. The second return
// value is false for empty or unrecognized input.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "crit":
		return SeverityCritical, true
	case "high":
		return SeverityHigh, true
	case "medium", "moderate", "med":
		return SeverityMedium, true
	case "low":
		return SeverityLow, true
	case "info", "informational":
		return SeverityInfo, true
	default:
		return "", false
	}
}

// Rank returns a numeric rank for sorting. Higher means more severe;
// unrecognized severities rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

func (s Severity) String() string {
	return string(s)
}
