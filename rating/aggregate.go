package rating

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Finding is a single detected issue as reported by a scanner. Only the
// severity is read by the engine; the rest is carried for display.
//
// ZAP-style reports name the severity field "risk", so either field is
// accepted. Severity takes precedence when both are set.
type Finding struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title,omitempty"`
	Severity    string `json:"severity,omitempty"`
	Risk        string `json:"risk,omitempty"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
	Solution    string `json:"solution,omitempty"`
}

// RawSeverity returns the severity string as reported, before normalization.
func (f Finding) RawSeverity() string {
	if f.Severity != "" {
		return f.Severity
	}
	return f.Risk
}

// Level returns the normalized severity of the finding.
func (f Finding) Level() (Severity, bool) {
	return ParseSeverity(f.RawSeverity())
}

// SeverityCounts holds the number of findings per severity.
// The total is always derived from the buckets and never stored.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
}

// Total returns the sum of all buckets.
func (c SeverityCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low + c.Info
}

// Get returns the count for a single severity.
func (c SeverityCounts) Get(s Severity) int {
	switch s {
	case SeverityCritical:
		return c.Critical
	case SeverityHigh:
		return c.High
	case SeverityMedium:
		return c.Medium
	case SeverityLow:
		return c.Low
	case SeverityInfo:
		return c.Info
	default:
		return 0
	}
}

// Add returns the bucket-wise sum of c and o.
func (c SeverityCounts) Add(o SeverityCounts) SeverityCounts {
	return SeverityCounts{
		Critical: c.Critical + o.Critical,
		High:     c.High + o.High,
		Medium:   c.Medium + o.Medium,
		Low:      c.Low + o.Low,
		Info:     c.Info + o.Info,
	}
}

// Validate reports an error wrapping ErrInvalidCounts if any bucket is negative.
func (c SeverityCounts) Validate() error {
	for _, s := range Severities {
		if n := c.Get(s); n < 0 {
			return fmt.Errorf("%w: %s = %d", ErrInvalidCounts, s, n)
		}
	}
	return nil
}

// MarshalJSON includes the derived total in the encoded object.
// A "total" key in decoded input is ignored.
func (c SeverityCounts) MarshalJSON() ([]byte, error) {
	type Alias SeverityCounts
	return json.Marshal(struct {
		Alias
		Total int `json:"total"`
	}{
		Alias: Alias(c),
		Total: c.Total(),
	})
}

func (c *SeverityCounts) inc(s Severity) {
	switch s {
	case SeverityCritical:
		c.Critical++
	case SeverityHigh:
		c.High++
	case SeverityMedium:
		c.Medium++
	case SeverityLow:
		c.Low++
	case SeverityInfo:
		c.Info++
	}
}

// Aggregation is the result of reducing a set of findings.
type Aggregation struct {
	Counts SeverityCounts `json:"counts"`
	// Unclassified is the number of findings whose severity was missing
	// or not recognized. They are not part of Counts.
	Unclassified int `json:"unclassified"`
	// Unrecognized lists the distinct raw severity values that could not
	// be classified, sorted. An empty severity is reported as "".
	Unrecognized []string `json:"unrecognized,omitempty"`
}

// Aggregate counts findings per severity. The result does not depend on
// the order of findings.
func Aggregate(findings []Finding) Aggregation {
	var agg Aggregation
	seen := make(map[string]bool)

	for _, f := range findings {
		sev, ok := f.Level()
		if !ok {
			agg.Unclassified++
			raw := f.RawSeverity()
			if !seen[raw] {
				seen[raw] = true
				agg.Unrecognized = append(agg.Unrecognized, raw)
			}
			continue
		}
		agg.Counts.inc(sev)
	}

	sort.Strings(agg.Unrecognized)
	return agg
}
