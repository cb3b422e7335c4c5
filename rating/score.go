package rating

import (
	"errors"
)

var (
	// ErrInvalidCounts is returned for severity counts with a negative bucket.
	ErrInvalidCounts = errors.New("invalid severity counts")
	// ErrScoreOutOfRange is returned when a score outside [0, 100] is classified.
	ErrScoreOutOfRange = errors.New("score out of range")
	// ErrUnknownPolicy is returned for a classification policy that does not exist.
	ErrUnknownPolicy = errors.New("unknown rating policy")
)

// Score bounds.
const (
	MaxScore = 100
	MinScore = 0
)

// Points deducted from MaxScore per finding of each severity.
const (
	DeductionCritical = 20
	DeductionHigh     = 10
	DeductionMedium   = 5
	DeductionLow      = 2
	DeductionInfo     = 0
)

// Deduction returns the points deducted for one finding of severity s.
func Deduction(s Severity) int {
	switch s {
	case SeverityCritical:
		return DeductionCritical
	case SeverityHigh:
		return DeductionHigh
	case SeverityMedium:
		return DeductionMedium
	case SeverityLow:
		return DeductionLow
	default:
		return DeductionInfo
	}
}

// ComputeScore converts severity counts to a security score.
//
// Scoring:
//   - Start at 100
//   - Critical: -20 each
//   - High: -10 each
//   - Medium: -5 each
//   - Low: -2 each
//   - Info: counted, never penalized
//   - Clamped to [0, 100]
func ComputeScore(counts SeverityCounts) (int, error) {
	if err := counts.Validate(); err != nil {
		return 0, err
	}

	points := MaxScore
	for _, s := range Severities {
		n := counts.Get(s)
		d := Deduction(s)
		// Stop early once the floor is reached so huge counts cannot overflow.
		if d > 0 && n >= points/d+1 {
			return MinScore, nil
		}
		points -= n * d
	}

	if points < MinScore {
		points = MinScore
	}
	return points, nil
}
