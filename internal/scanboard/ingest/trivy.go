package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/build-flow-labs/scanboard/rating"
)

// TrivyVulnerability is a single vulnerability in a Trivy report.
type TrivyVulnerability struct {
	VulnerabilityID  string   `json:"VulnerabilityID"`
	PkgName          string   `json:"PkgName"`
	InstalledVersion string   `json:"InstalledVersion"`
	FixedVersion     string   `json:"FixedVersion,omitempty"`
	Severity         string   `json:"Severity"`
	Title            string   `json:"Title,omitempty"`
	Description      string   `json:"Description,omitempty"`
	PrimaryURL       string   `json:"PrimaryURL,omitempty"`
	References       []string `json:"References,omitempty"`
}

// TrivyTarget is a scanned target such as an image layer or lock file.
type TrivyTarget struct {
	Target          string               `json:"Target"`
	Class           string               `json:"Class,omitempty"`
	Type            string               `json:"Type,omitempty"`
	Vulnerabilities []TrivyVulnerability `json:"Vulnerabilities,omitempty"`
}

// TrivyResult is the complete Trivy scan output.
type TrivyResult struct {
	SchemaVersion int           `json:"SchemaVersion,omitempty"`
	ArtifactName  string        `json:"ArtifactName,omitempty"`
	ArtifactType  string        `json:"ArtifactType,omitempty"`
	Results       []TrivyTarget `json:"Results,omitempty"`
}

// ParseTrivyJSON parses Trivy JSON output.
func ParseTrivyJSON(data []byte) (*TrivyResult, error) {
	var result TrivyResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decoding Trivy report: %w", err)
	}
	return &result, nil
}

// HasFixedVersion returns true if the vulnerability has a known fix.
func (v *TrivyVulnerability) HasFixedVersion() bool {
	return v.FixedVersion != "" && v.FixedVersion != "none"
}

// Findings returns all vulnerabilities from all targets as findings.
// Trivy's UNKNOWN severity is passed through and ends up unclassified.
func (r *TrivyResult) Findings() []rating.Finding {
	var out []rating.Finding
	for _, target := range r.Results {
		for _, v := range target.Vulnerabilities {
			title := v.Title
			if title == "" {
				title = v.VulnerabilityID
			}
			desc := v.Description
			if desc == "" {
				desc = fmt.Sprintf("`%s` %s in %s", v.PkgName, v.InstalledVersion, target.Target)
			}
			solution := ""
			if v.HasFixedVersion() {
				solution = fmt.Sprintf("Upgrade `%s` to %s.", v.PkgName, v.FixedVersion)
			}
			out = append(out, rating.Finding{
				ID:          v.VulnerabilityID,
				Title:       title,
				Severity:    v.Severity,
				URL:         v.PrimaryURL,
				Description: desc,
				Solution:    solution,
			})
		}
	}
	return out
}
