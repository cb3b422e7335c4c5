// Package ingest decodes scanner reports into findings for the rating engine.
//
// Supported inputs are a plain JSON array of findings, an object with a
// "findings" array, OWASP ZAP JSON reports, and Trivy JSON reports. The
// format is detected from the document shape.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/build-flow-labs/scanboard/rating"
)

// Format identifies a report format.
type Format string

const (
	FormatFindings Format = "findings"
	FormatZAP      Format = "zap"
	FormatTrivy    Format = "trivy"
)

// ErrUnknownFormat is returned when a document matches no supported format.
var ErrUnknownFormat = errors.New("unrecognized report format")

// Report is a decoded report.
type Report struct {
	Format   Format
	Target   string
	Findings []rating.Finding
}

// probe holds the top-level keys used for format detection.
type probe struct {
	Findings      json.RawMessage `json:"findings"`
	Site          json.RawMessage `json:"site"`
	Results       json.RawMessage `json:"Results"`
	SchemaVersion int             `json:"SchemaVersion"`
	ArtifactName  string          `json:"ArtifactName"`
	Target        string          `json:"target"`
}

// Parse detects the format of data and decodes its findings.
func Parse(data []byte) (*Report, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrUnknownFormat)
	}

	if trimmed[0] == '[' {
		var findings []rating.Finding
		if err := json.Unmarshal(trimmed, &findings); err != nil {
			return nil, fmt.Errorf("decoding findings array: %w", err)
		}
		return &Report{Format: FormatFindings, Findings: findings}, nil
	}

	var p probe
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}

	switch {
	case p.Findings != nil:
		var findings []rating.Finding
		if err := json.Unmarshal(p.Findings, &findings); err != nil {
			return nil, fmt.Errorf("decoding findings: %w", err)
		}
		return &Report{Format: FormatFindings, Target: p.Target, Findings: findings}, nil

	case p.Site != nil:
		report, err := ParseZAPJSON(trimmed)
		if err != nil {
			return nil, err
		}
		return &Report{Format: FormatZAP, Target: report.Target(), Findings: report.Findings()}, nil

	case p.Results != nil || p.SchemaVersion > 0:
		result, err := ParseTrivyJSON(trimmed)
		if err != nil {
			return nil, err
		}
		return &Report{Format: FormatTrivy, Target: result.ArtifactName, Findings: result.Findings()}, nil
	}

	return nil, ErrUnknownFormat
}
