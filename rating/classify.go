package rating

import (
	"fmt"
	"strings"
)

// Grade is a letter rating. Grades are ordered A+ (best) to F (worst).
type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
	GradeF     Grade = "F"
)

// Grades lists every grade, best first.
var Grades = []Grade{GradeAPlus, GradeA, GradeB, GradeC, GradeD, GradeF}

// Rank returns the position of the grade on the scale. Higher is better;
// unknown grades rank 0.
func (g Grade) Rank() int {
	for i, known := range Grades {
		if g == known {
			return len(Grades) - i
		}
	}
	return 0
}

// WorseThan reports whether g is a strictly worse grade than o.
func (g Grade) WorseThan(o Grade) bool {
	return g.Rank() < o.Rank()
}

// ParseGrade converts a string such as "b" or "A+" to a Grade.
func ParseGrade(s string) (Grade, error) {
	g := Grade(strings.ToUpper(strings.TrimSpace(s)))
	if g.Rank() == 0 {
		return "", fmt.Errorf("unknown grade %q", s)
	}
	return g, nil
}

// ColorCategory is the semantic presentation class of a rating. The UI
// maps it to its own styling.
type ColorCategory string

const (
	ColorGood    ColorCategory = "good"
	ColorCaution ColorCategory = "caution"
	ColorBad     ColorCategory = "bad"
)

// Rating is a grade with its display metadata.
type Rating struct {
	Grade       Grade         `json:"rating"`
	Label       string        `json:"label"`
	Description string        `json:"description"`
	Color       ColorCategory `json:"color"`
}

var catalog = map[Grade]Rating{
	GradeAPlus: {GradeAPlus, "Excellent", "No security issues were found.", ColorGood},
	GradeA:     {GradeA, "Very Good", "Only minor issues were found.", ColorGood},
	GradeB:     {GradeB, "Good", "Some issues should be reviewed.", ColorGood},
	GradeC:     {GradeC, "Fair", "Several issues need attention.", ColorCaution},
	GradeD:     {GradeD, "Poor", "Serious issues require prompt remediation.", ColorBad},
	GradeF:     {GradeF, "Critical", "Critical issues require immediate action.", ColorBad},
}

// RatingFor returns the display metadata of a grade.
func RatingFor(g Grade) (Rating, bool) {
	r, ok := catalog[g]
	return r, ok
}

// Policy names a classification strategy. The two policies can disagree
// for the same findings; callers pick one deliberately.
type Policy string

const (
	// PolicyScoreBanded grades the numeric score in fixed bands.
	PolicyScoreBanded Policy = "score-banded"
	// PolicySeverityGated grades the raw severity counts.
	PolicySeverityGated Policy = "severity-gated"
)

// ParsePolicy converts a string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "score-banded", "banded", "score":
		return PolicyScoreBanded, nil
	case "severity-gated", "gated", "severity":
		return PolicySeverityGated, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Classify maps a score to a rating using the score-banded policy:
// A >= 90, B >= 80, C >= 70, D >= 60, F below.
func Classify(score int) (Rating, error) {
	if score < MinScore || score > MaxScore {
		return Rating{}, fmt.Errorf("%w: %d not in [%d, %d]", ErrScoreOutOfRange, score, MinScore, MaxScore)
	}

	switch {
	case score >= 90:
		return catalog[GradeA], nil
	case score >= 80:
		return catalog[GradeB], nil
	case score >= 70:
		return catalog[GradeC], nil
	case score >= 60:
		return catalog[GradeD], nil
	default:
		return catalog[GradeF], nil
	}
}

// ClassifyFromCounts maps raw counts to a rating using the severity-gated
// policy. Rules are checked in order and the first match wins:
//
//	no critical, high, medium or low findings  A+
//	high >= 2                                  F
//	high == 1                                  D
//	medium >= 3                                C
//	medium >= 1 or low >= 3                    B
//	low > 0                                    A
//	otherwise                                  A+
//
// Critical counts are not gated: a report whose only findings are critical
// falls through to A+. Info findings never affect the result.
func ClassifyFromCounts(counts SeverityCounts) (Rating, error) {
	if err := counts.Validate(); err != nil {
		return Rating{}, err
	}

	switch {
	case counts.Critical == 0 && counts.High == 0 && counts.Medium == 0 && counts.Low == 0:
		return catalog[GradeAPlus], nil
	case counts.High >= 2:
		return catalog[GradeF], nil
	case counts.High == 1:
		return catalog[GradeD], nil
	case counts.Medium >= 3:
		return catalog[GradeC], nil
	case counts.Medium >= 1 || counts.Low >= 3:
		return catalog[GradeB], nil
	case counts.Low > 0:
		return catalog[GradeA], nil
	default:
		return catalog[GradeAPlus], nil
	}
}
