package rating

import "fmt"

// Assessment is the rating engine's output for one set of findings.
// Its JSON shape is consumed by the dashboard and API clients.
type Assessment struct {
	Score        int            `json:"score"`
	Rating       Grade          `json:"rating"`
	Label        string         `json:"label"`
	Description  string         `json:"description"`
	Color        ColorCategory  `json:"color"`
	Policy       Policy         `json:"policy"`
	Counts       SeverityCounts `json:"counts"`
	Unclassified int            `json:"unclassified"`
}

// Assess aggregates findings, scores them, and classifies them under policy.
func Assess(findings []Finding, policy Policy) (Assessment, error) {
	agg := Aggregate(findings)
	a, err := AssessCounts(agg.Counts, policy)
	if err != nil {
		return Assessment{}, err
	}
	a.Unclassified = agg.Unclassified
	return a, nil
}

// AssessCounts scores counts and classifies them under policy.
func AssessCounts(counts SeverityCounts, policy Policy) (Assessment, error) {
	score, err := ComputeScore(counts)
	if err != nil {
		return Assessment{}, err
	}

	var r Rating
	switch policy {
	case PolicyScoreBanded:
		r, err = Classify(score)
	case PolicySeverityGated:
		r, err = ClassifyFromCounts(counts)
	default:
		return Assessment{}, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
	if err != nil {
		return Assessment{}, err
	}

	return Assessment{
		Score:       score,
		Rating:      r.Grade,
		Label:       r.Label,
		Description: r.Description,
		Color:       r.Color,
		Policy:      policy,
		Counts:      counts,
	}, nil
}
