package dashboard

import (
	"time"

	"github.com/build-flow-labs/scanboard/internal/scanboard/store"
	"github.com/build-flow-labs/scanboard/rating"
)

// Direction of a score trend.
type Direction string

const (
	Up        Direction = "up"
	Down      Direction = "down"
	Flat      Direction = "flat"
	FirstScan Direction = "first"
)

// Trend compares the two most recent scores of a project.
type Trend struct {
	From      int       `json:"from"`
	To        int       `json:"to"`
	Delta     int       `json:"delta"`
	Direction Direction `json:"direction"`
}

// ComputeTrend derives a trend from a chronological history.
func ComputeTrend(history []store.Entry) Trend {
	switch len(history) {
	case 0:
		return Trend{Direction: Flat}
	case 1:
		s := history[0].Score
		return Trend{From: s, To: s, Direction: FirstScan}
	}

	prev := history[len(history)-2].Score
	curr := history[len(history)-1].Score
	d := curr - prev

	dir := Flat
	if d > 0 {
		dir = Up
	} else if d < 0 {
		dir = Down
	}
	return Trend{From: prev, To: curr, Delta: d, Direction: dir}
}

// HistoryPoint is one scan in a project's score history.
type HistoryPoint struct {
	ScanID    string                `json:"scan_id"`
	Timestamp time.Time             `json:"timestamp"`
	Score     int                   `json:"score"`
	Rating    rating.Grade          `json:"rating"`
	Counts    rating.SeverityCounts `json:"counts"`
}

func historyPoints(history []store.Entry) []HistoryPoint {
	points := make([]HistoryPoint, 0, len(history))
	for _, e := range history {
		points = append(points, HistoryPoint{
			ScanID:    e.ID,
			Timestamp: e.Timestamp,
			Score:     e.Score,
			Rating:    e.Grade,
			Counts:    e.Counts,
		})
	}
	return points
}

// ProjectSummary is the latest state of one project.
type ProjectSummary struct {
	Project      string            `json:"project"`
	TargetURL    string            `json:"target_url"`
	LatestScanID string            `json:"latest_scan_id"`
	ScannedAt    time.Time         `json:"scanned_at"`
	Overview     rating.Assessment `json:"overview"` // score-banded
	Latest       rating.Assessment `json:"latest"`   // severity-gated
	Trend        Trend             `json:"trend"`
}

func summarizeProject(latest store.Entry, history []store.Entry) (ProjectSummary, error) {
	overview, err := rating.AssessCounts(latest.Counts, rating.PolicyScoreBanded)
	if err != nil {
		return ProjectSummary{}, err
	}
	gated, err := rating.AssessCounts(latest.Counts, rating.PolicySeverityGated)
	if err != nil {
		return ProjectSummary{}, err
	}
	overview.Unclassified = latest.Unclassified
	gated.Unclassified = latest.Unclassified

	return ProjectSummary{
		Project:      latest.Project,
		TargetURL:    latest.TargetURL,
		LatestScanID: latest.ID,
		ScannedAt:    latest.Timestamp,
		Overview:     overview,
		Latest:       gated,
		Trend:        ComputeTrend(history),
	}, nil
}

// Stats aggregates the latest scan of every project.
type Stats struct {
	Projects     int                   `json:"projects"`
	Scans        int                   `json:"scans"`
	Counts       rating.SeverityCounts `json:"counts"`
	AverageScore int                   `json:"average_score"`
	Rating       *rating.Rating        `json:"rating,omitempty"`
}

// ComputeStats sums counts and averages scores across latest scans. The
// overall rating is the score-banded grade of the rounded average.
func ComputeStats(latest []store.Entry, totalScans int) (Stats, error) {
	st := Stats{Projects: len(latest), Scans: totalScans}
	if len(latest) == 0 {
		return st, nil
	}

	sum := 0
	for _, e := range latest {
		st.Counts = st.Counts.Add(e.Counts)
		sum += e.Score
	}
	n := len(latest)
	st.AverageScore = (sum + n/2) / n

	r, err := rating.Classify(st.AverageScore)
	if err != nil {
		return Stats{}, err
	}
	st.Rating = &r
	return st, nil
}
