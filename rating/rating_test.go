package rating_test

import (
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/build-flow-labs/scanboard/rating"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findings(sevs ...string) []rating.Finding {
	out := make([]rating.Finding, 0, len(sevs))
	for _, s := range sevs {
		out = append(out, rating.Finding{Severity: s})
	}
	return out
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want rating.Severity
		ok   bool
	}{
		{"critical", rating.SeverityCritical, true},
		{"CRITICAL", rating.SeverityCritical, true},
		{"High", rating.SeverityHigh, true},
		{"high", rating.SeverityHigh, true},
		{"  medium ", rating.SeverityMedium, true},
		{"Moderate", rating.SeverityMedium, true},
		{"low", rating.SeverityLow, true},
		{"Informational", rating.SeverityInfo, true},
		{"info", rating.SeverityInfo, true},
		{"", "", false},
		{"severe", "", false},
	}
	for _, tt := range tests {
		got, ok := rating.ParseSeverity(tt.in)
		assert.Equal(t, tt.ok, ok, "ParseSeverity(%q) ok", tt.in)
		assert.Equal(t, tt.want, got, "ParseSeverity(%q)", tt.in)
	}
}

func TestAggregateEmpty(t *testing.T) {
	agg := rating.Aggregate(nil)
	require.Equal(t, rating.SeverityCounts{}, agg.Counts)
	require.Zero(t, agg.Counts.Total())
	require.Zero(t, agg.Unclassified)
	require.Empty(t, agg.Unrecognized)
}

func TestAggregateCountsAndUnclassified(t *testing.T) {
	in := append(findings("critical", "High", "HIGH", "medium", "low", "low", "info", "bogus", "", "BOGUS"),
		rating.Finding{Risk: "Medium"},
		rating.Finding{Severity: "low", Risk: "High"},
	)

	agg := rating.Aggregate(in)
	require.Equal(t, rating.SeverityCounts{Critical: 1, High: 2, Medium: 2, Low: 3, Info: 1}, agg.Counts)
	require.Equal(t, 3, agg.Unclassified)
	require.Equal(t, []string{"", "BOGUS", "bogus"}, agg.Unrecognized)
	require.Equal(t, len(in)-agg.Unclassified, agg.Counts.Total())
}

func TestAggregateOrderIndependentAndIdempotent(t *testing.T) {
	a := findings("low", "critical", "medium", "high", "x", "low")
	b := findings("x", "low", "low", "high", "medium", "critical")

	first := rating.Aggregate(a)
	require.Equal(t, first, rating.Aggregate(a))
	require.Equal(t, first, rating.Aggregate(b))
}

func TestSeverityCountsJSONTotalIsDerived(t *testing.T) {
	c := rating.SeverityCounts{Critical: 1, High: 2, Low: 4}
	data, err := json.Marshal(c)
	require.NoError(t, err)
	require.JSONEq(t, `{"critical":1,"high":2,"medium":0,"low":4,"info":0,"total":7}`, string(data))

	var decoded rating.SeverityCounts
	require.NoError(t, json.Unmarshal([]byte(`{"critical":1,"high":0,"medium":0,"low":0,"info":0,"total":99}`), &decoded))
	require.Equal(t, 1, decoded.Total())
}

func TestComputeScore(t *testing.T) {
	tests := []struct {
		name   string
		counts rating.SeverityCounts
		want   int
	}{
		{"all zero", rating.SeverityCounts{}, 100},
		{"info only", rating.SeverityCounts{Info: 50}, 100},
		{"one of each", rating.SeverityCounts{Critical: 1, High: 1, Medium: 1, Low: 1}, 63},
		{"critical and two high", rating.SeverityCounts{Critical: 1, High: 2}, 60},
		{"medium and two low", rating.SeverityCounts{Medium: 1, Low: 2}, 91},
		{"exactly zero", rating.SeverityCounts{Critical: 5}, 0},
		{"clamped", rating.SeverityCounts{Critical: 4, High: 3}, 0},
		{"huge counts", rating.SeverityCounts{Low: math.MaxInt}, 0},
		{"huge after floor", rating.SeverityCounts{Critical: 5, High: math.MaxInt, Low: math.MaxInt}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rating.ComputeScore(tt.counts)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestComputeScoreRejectsNegativeCounts(t *testing.T) {
	_, err := rating.ComputeScore(rating.SeverityCounts{Medium: -1})
	require.Error(t, err)
	require.True(t, errors.Is(err, rating.ErrInvalidCounts))
	require.Contains(t, err.Error(), "medium")
}

// grid enumerates counts in [0, max] for each of critical/high/medium/low.
func grid(max int) []rating.SeverityCounts {
	var out []rating.SeverityCounts
	for c := 0; c <= max; c++ {
		for h := 0; h <= max; h++ {
			for m := 0; m <= max; m++ {
				for l := 0; l <= max; l++ {
					out = append(out, rating.SeverityCounts{Critical: c, High: h, Medium: m, Low: l})
				}
			}
		}
	}
	return out
}

func dominates(a, b rating.SeverityCounts) bool {
	return a.Critical <= b.Critical && a.High <= b.High && a.Medium <= b.Medium && a.Low <= b.Low && a.Info <= b.Info
}

func TestComputeScoreBoundsAndMonotonicity(t *testing.T) {
	all := grid(4)
	scores := make([]int, len(all))
	for i, c := range all {
		s, err := rating.ComputeScore(c)
		require.NoError(t, err)
		require.GreaterOrEqual(t, s, 0)
		require.LessOrEqual(t, s, 100)
		scores[i] = s
	}

	for i, a := range all {
		for j, b := range all {
			if dominates(a, b) && scores[i] < scores[j] {
				t.Fatalf("score(%+v)=%d < score(%+v)=%d", a, scores[i], b, scores[j])
			}
		}
	}
}

func TestClassifyBands(t *testing.T) {
	tests := []struct {
		score int
		want  rating.Grade
	}{
		{100, rating.GradeA},
		{90, rating.GradeA},
		{89, rating.GradeB},
		{80, rating.GradeB},
		{79, rating.GradeC},
		{70, rating.GradeC},
		{69, rating.GradeD},
		{60, rating.GradeD},
		{59, rating.GradeF},
		{0, rating.GradeF},
	}
	for _, tt := range tests {
		r, err := rating.Classify(tt.score)
		require.NoError(t, err)
		assert.Equal(t, tt.want, r.Grade, "Classify(%d)", tt.score)
	}
}

func TestClassifyOutOfRange(t *testing.T) {
	for _, s := range []int{-1, 101, math.MinInt} {
		_, err := rating.Classify(s)
		require.ErrorIs(t, err, rating.ErrScoreOutOfRange)
	}
}

func TestClassifyMonotonic(t *testing.T) {
	prev, err := rating.Classify(0)
	require.NoError(t, err)
	for s := 1; s <= 100; s++ {
		r, err := rating.Classify(s)
		require.NoError(t, err)
		require.False(t, r.Grade.WorseThan(prev.Grade), "Classify(%d)=%s worse than Classify(%d)=%s", s, r.Grade, s-1, prev.Grade)
		prev = r
	}
}

func TestClassifyFromCounts(t *testing.T) {
	tests := []struct {
		name      string
		counts    rating.SeverityCounts
		wantGrade rating.Grade
		wantLabel string
	}{
		{"clean", rating.SeverityCounts{}, rating.GradeAPlus, "Excellent"},
		{"info only", rating.SeverityCounts{Info: 7}, rating.GradeAPlus, "Excellent"},
		{"critical only", rating.SeverityCounts{Critical: 1}, rating.GradeAPlus, "Excellent"},
		{"critical and one low", rating.SeverityCounts{Critical: 1, Low: 1}, rating.GradeA, "Very Good"},
		{"critical and one medium", rating.SeverityCounts{Critical: 1, Medium: 1}, rating.GradeB, "Good"},
		{"critical and one high", rating.SeverityCounts{Critical: 1, High: 1}, rating.GradeD, "Poor"},
		{"many critical three medium", rating.SeverityCounts{Critical: 4, Medium: 3}, rating.GradeC, "Fair"},
		{"two high", rating.SeverityCounts{High: 2}, rating.GradeF, "Critical"},
		{"critical and two high", rating.SeverityCounts{Critical: 1, High: 2}, rating.GradeF, "Critical"},
		{"one high", rating.SeverityCounts{High: 1, Medium: 5, Low: 9}, rating.GradeD, "Poor"},
		{"three medium", rating.SeverityCounts{Medium: 3}, rating.GradeC, "Fair"},
		{"one medium two low", rating.SeverityCounts{Medium: 1, Low: 2}, rating.GradeB, "Good"},
		{"three low", rating.SeverityCounts{Low: 3}, rating.GradeB, "Good"},
		{"one low", rating.SeverityCounts{Low: 1}, rating.GradeA, "Very Good"},
		{"two low", rating.SeverityCounts{Low: 2, Info: 3}, rating.GradeA, "Very Good"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := rating.ClassifyFromCounts(tt.counts)
			require.NoError(t, err)
			require.Equal(t, tt.wantGrade, r.Grade)
			require.Equal(t, tt.wantLabel, r.Label)
			require.NotEmpty(t, r.Description)
		})
	}
}

func TestClassifyFromCountsRejectsNegativeCounts(t *testing.T) {
	_, err := rating.ClassifyFromCounts(rating.SeverityCounts{Low: -3})
	require.ErrorIs(t, err, rating.ErrInvalidCounts)
}

// Every combination must land on exactly one rule; the rule is recomputed
// independently here and compared against the classifier.
// gatedRules is the severity-gated rule table in order; the first
// predicate that holds decides the grade.
var gatedRules = []struct {
	match func(c rating.SeverityCounts) bool
	grade rating.Grade
}{
	{func(c rating.SeverityCounts) bool { return c.Critical == 0 && c.High == 0 && c.Medium == 0 && c.Low == 0 }, rating.GradeAPlus},
	{func(c rating.SeverityCounts) bool { return c.High >= 2 }, rating.GradeF},
	{func(c rating.SeverityCounts) bool { return c.High == 1 }, rating.GradeD},
	{func(c rating.SeverityCounts) bool { return c.Medium >= 3 }, rating.GradeC},
	{func(c rating.SeverityCounts) bool { return c.Medium >= 1 || c.Low >= 3 }, rating.GradeB},
	{func(c rating.SeverityCounts) bool { return c.Low > 0 }, rating.GradeA},
	{func(c rating.SeverityCounts) bool { return true }, rating.GradeAPlus},
}

func TestClassifyFromCountsExhaustive(t *testing.T) {
	for _, c := range grid(4) {
		var want rating.Grade
		for _, rule := range gatedRules {
			if rule.match(c) {
				want = rule.grade
				break
			}
		}

		r, err := rating.ClassifyFromCounts(c)
		require.NoError(t, err)
		require.Equal(t, want, r.Grade, "counts %+v", c)

		withInfo, err := rating.ClassifyFromCounts(rating.SeverityCounts{Critical: c.Critical, High: c.High, Medium: c.Medium, Low: c.Low, Info: 9})
		require.NoError(t, err)
		require.Equal(t, r.Grade, withInfo.Grade, "info changed grade for %+v", c)
	}
}

func TestCatalogColors(t *testing.T) {
	want := map[rating.Grade]rating.ColorCategory{
		rating.GradeAPlus: rating.ColorGood,
		rating.GradeA:     rating.ColorGood,
		rating.GradeB:     rating.ColorGood,
		rating.GradeC:     rating.ColorCaution,
		rating.GradeD:     rating.ColorBad,
		rating.GradeF:     rating.ColorBad,
	}
	for g, color := range want {
		r, ok := rating.RatingFor(g)
		require.True(t, ok)
		require.Equal(t, color, r.Color, "grade %s", g)
	}
	_, ok := rating.RatingFor("Z")
	require.False(t, ok)
}

func TestParseGradeAndPolicy(t *testing.T) {
	g, err := rating.ParseGrade(" a+ ")
	require.NoError(t, err)
	require.Equal(t, rating.GradeAPlus, g)

	_, err = rating.ParseGrade("E")
	require.Error(t, err)

	p, err := rating.ParsePolicy("Gated")
	require.NoError(t, err)
	require.Equal(t, rating.PolicySeverityGated, p)

	p, err = rating.ParsePolicy("score-banded")
	require.NoError(t, err)
	require.Equal(t, rating.PolicyScoreBanded, p)

	_, err = rating.ParsePolicy("weighted")
	require.ErrorIs(t, err, rating.ErrUnknownPolicy)

	require.True(t, rating.GradeF.WorseThan(rating.GradeD))
	require.False(t, rating.GradeAPlus.WorseThan(rating.GradeA))
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name       string
		in         []rating.Finding
		wantCounts rating.SeverityCounts
		wantScore  int
		banded     rating.Grade
		gated      rating.Grade
		gatedLabel string
	}{
		{
			name:       "no findings",
			in:         nil,
			wantCounts: rating.SeverityCounts{},
			wantScore:  100,
			banded:     rating.GradeA,
			gated:      rating.GradeAPlus,
			gatedLabel: "Excellent",
		},
		{
			name:       "critical and two high",
			in:         findings("critical", "high", "high"),
			wantCounts: rating.SeverityCounts{Critical: 1, High: 2},
			wantScore:  60,
			banded:     rating.GradeD,
			gated:      rating.GradeF,
			gatedLabel: "Critical",
		},
		{
			name:       "medium and two low",
			in:         findings("medium", "low", "low"),
			wantCounts: rating.SeverityCounts{Medium: 1, Low: 2},
			wantScore:  91,
			banded:     rating.GradeA,
			gated:      rating.GradeB,
			gatedLabel: "Good",
		},
		{
			name:       "three medium",
			in:         findings("medium", "Medium", "MEDIUM"),
			wantCounts: rating.SeverityCounts{Medium: 3},
			wantScore:  85,
			banded:     rating.GradeB,
			gated:      rating.GradeC,
			gatedLabel: "Fair",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			banded, err := rating.Assess(tt.in, rating.PolicyScoreBanded)
			require.NoError(t, err)
			require.Equal(t, tt.wantCounts, banded.Counts)
			require.Equal(t, tt.wantScore, banded.Score)
			require.Equal(t, tt.banded, banded.Rating)
			require.Equal(t, rating.PolicyScoreBanded, banded.Policy)

			gated, err := rating.Assess(tt.in, rating.PolicySeverityGated)
			require.NoError(t, err)
			require.Equal(t, tt.wantScore, gated.Score)
			require.Equal(t, tt.gated, gated.Rating)
			require.Equal(t, tt.gatedLabel, gated.Label)
		})
	}
}

func TestAssessReportsUnclassified(t *testing.T) {
	a, err := rating.Assess(findings("low", "weird"), rating.PolicySeverityGated)
	require.NoError(t, err)
	require.Equal(t, 1, a.Unclassified)
	require.Equal(t, 1, a.Counts.Total())
}

func TestAssessUnknownPolicy(t *testing.T) {
	_, err := rating.AssessCounts(rating.SeverityCounts{}, rating.Policy("weighted"))
	require.ErrorIs(t, err, rating.ErrUnknownPolicy)
}

func TestAssessmentJSONShape(t *testing.T) {
	a, err := rating.AssessCounts(rating.SeverityCounts{Medium: 1, Low: 2}, rating.PolicySeverityGated)
	require.NoError(t, err)

	data, err := json.Marshal(a)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"score", "rating", "label", "description", "color", "policy", "counts", "unclassified"} {
		require.Contains(t, m, key)
	}
	counts := m["counts"].(map[string]any)
	require.EqualValues(t, 3, counts["total"])
	require.Equal(t, "B", m["rating"])
}

func TestAssessConcurrent(t *testing.T) {
	in := findings("critical", "high", "medium", "low", "low", "info")
	want, err := rating.Assess(in, rating.PolicyScoreBanded)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := rating.Assess(in, rating.PolicyScoreBanded)
			if err != nil {
				errs <- err
				return
			}
			if got != want {
				errs <- errors.New("assessment differs across goroutines")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}
