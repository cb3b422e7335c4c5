package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/build-flow-labs/scanboard/rating"
)

// ZAPReport is the subset of an OWASP ZAP JSON report that is read.
type ZAPReport struct {
	ProgramName string    `json:"@programName,omitempty"`
	Version     string    `json:"@version,omitempty"`
	Sites       []ZAPSite `json:"site"`
}

// ZAPSite groups alerts for one scanned site.
type ZAPSite struct {
	Name   string     `json:"@name"`
	Host   string     `json:"@host,omitempty"`
	Alerts []ZAPAlert `json:"alerts"`
}

// ZAPAlert is a single alert type raised on a site.
type ZAPAlert struct {
	PluginID  string        `json:"pluginid"`
	Alert     string        `json:"alert"`
	Name      string        `json:"name,omitempty"`
	RiskCode  string        `json:"riskcode"`
	RiskDesc  string        `json:"riskdesc,omitempty"`
	Desc      string        `json:"desc,omitempty"`
	Solution  string        `json:"solution,omitempty"`
	Instances []ZAPInstance `json:"instances,omitempty"`
}

// ZAPInstance is one location an alert was raised for.
type ZAPInstance struct {
	URI    string `json:"uri"`
	Method string `json:"method,omitempty"`
	Param  string `json:"param,omitempty"`
}

// ParseZAPJSON parses ZAP JSON report output.
func ParseZAPJSON(data []byte) (*ZAPReport, error) {
	var report ZAPReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decoding ZAP report: %w", err)
	}
	return &report, nil
}

// Target returns the first site name in the report.
func (r *ZAPReport) Target() string {
	if len(r.Sites) == 0 {
		return ""
	}
	return r.Sites[0].Name
}

// Findings flattens alerts into findings, one per alert per site.
func (r *ZAPReport) Findings() []rating.Finding {
	var out []rating.Finding
	for _, site := range r.Sites {
		for _, a := range site.Alerts {
			title := a.Alert
			if title == "" {
				title = a.Name
			}
			u := site.Name
			if len(a.Instances) > 0 && a.Instances[0].URI != "" {
				u = a.Instances[0].URI
			}
			out = append(out, rating.Finding{
				ID:          a.PluginID,
				Title:       title,
				Risk:        a.risk(),
				URL:         u,
				Description: stripTags(a.Desc),
				Solution:    stripTags(a.Solution),
			})
		}
	}
	return out
}

// risk maps the numeric risk code to a severity word. ZAP has no critical
// level. The textual riskdesc ("High (Medium)") is used when the code is
// missing.
func (a ZAPAlert) risk() string {
	switch strings.TrimSpace(a.RiskCode) {
	case "3":
		return "high"
	case "2":
		return "medium"
	case "1":
		return "low"
	case "0":
		return "info"
	}
	if fields := strings.Fields(a.RiskDesc); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// stripTags removes the <p> wrappers ZAP puts around descriptions.
func stripTags(s string) string {
	r := strings.NewReplacer("<p>", "", "</p>", "\n")
	return strings.TrimSpace(r.Replace(s))
}
