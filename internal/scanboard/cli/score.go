package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/build-flow-labs/scanboard/internal/scanboard/ingest"
	"github.com/build-flow-labs/scanboard/rating"
	"github.com/spf13/cobra"
)

// ErrBelowThreshold is returned when a rating is worse than --fail-below.
var ErrBelowThreshold = errors.New("rating below threshold")

type scoreOptions struct {
	json      bool
	policy    string
	failBelow string
}

type scoreResult struct {
	File         string            `json:"file"`
	Format       ingest.Format     `json:"format"`
	Target       string            `json:"target,omitempty"`
	Assessment   rating.Assessment `json:"assessment"`
	Unrecognized []string          `json:"unrecognized,omitempty"`
}

func newScoreCmd(root *rootOptions) *cobra.Command {
	opts := &scoreOptions{}

	cmd := &cobra.Command{
		Use:   "score <file|directory>",
		Short: "Rate the findings in scanner report files",
		Long: `Reads scanner findings and prints a security score (0-100) and grade.

Accepted inputs are a JSON array of findings, an object with a "findings"
array, an OWASP ZAP JSON report, or a Trivy JSON report.

Pass a single file or a directory to score every .json file in it.
Use --json for machine-readable output.
Use --fail-below to exit non-zero when any rating is worse than a grade.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd, root, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.json, "json", false, "Output JSON instead of formatted table")
	cmd.Flags().StringVar(&opts.policy, "policy", "", "Rating policy: severity-gated or score-banded (default from config)")
	cmd.Flags().StringVar(&opts.failBelow, "fail-below", "", "Fail when a rating is worse than this grade (e.g. B)")

	return cmd
}

func runScore(cmd *cobra.Command, root *rootOptions, opts *scoreOptions, path string) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	logger := root.logger(cmd.ErrOrStderr())

	if opts.policy != "" {
		cfg.Policy = opts.policy
	}
	policy, err := cfg.RatingPolicy()
	if err != nil {
		return err
	}

	failBelow := cfg.FailBelow
	if opts.failBelow != "" {
		failBelow = opts.failBelow
	}
	var threshold rating.Grade
	if failBelow != "" {
		threshold, err = rating.ParseGrade(failBelow)
		if err != nil {
			return fmt.Errorf("--fail-below: %w", err)
		}
	}

	files, err := reportFiles(path)
	if err != nil {
		return err
	}

	var results []scoreResult
	for _, f := range files {
		r, err := scoreFile(f, policy, logger)
		if err != nil {
			return err
		}
		results = append(results, r)
	}

	out := cmd.OutOrStdout()
	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if len(results) == 1 {
			err = enc.Encode(results[0])
		} else {
			err = enc.Encode(results)
		}
		if err != nil {
			return fmt.Errorf("encoding results: %w", err)
		}
	} else {
		color := colorEnabled(out)
		for _, r := range results {
			printAssessment(out, color, r.File, r.Assessment)
			fmt.Fprintln(out)
		}
	}

	if threshold == "" {
		return nil
	}
	var failed []string
	for _, r := range results {
		if r.Assessment.Rating.WorseThan(threshold) {
			failed = append(failed, fmt.Sprintf("%s (%s)", r.File, r.Assessment.Rating))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w %s: %s", ErrBelowThreshold, threshold, strings.Join(failed, ", "))
	}
	return nil
}

// reportFiles expands path into the report files to score.
func reportFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .json files found in %s", path)
	}
	return files, nil
}

func scoreFile(path string, policy rating.Policy, logger *slog.Logger) (scoreResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scoreResult{}, fmt.Errorf("reading %s: %w", path, err)
	}
	report, err := ingest.Parse(data)
	if err != nil {
		return scoreResult{}, fmt.Errorf("%s: %w", path, err)
	}

	agg := rating.Aggregate(report.Findings)
	if agg.Unclassified > 0 {
		logger.Warn("findings with unrecognized severity were not counted",
			"file", path,
			"count", agg.Unclassified,
			"values", agg.Unrecognized,
		)
	}

	a, err := rating.AssessCounts(agg.Counts, policy)
	if err != nil {
		return scoreResult{}, fmt.Errorf("%s: %w", path, err)
	}
	a.Unclassified = agg.Unclassified

	return scoreResult{
		File:         path,
		Format:       report.Format,
		Target:       report.Target,
		Assessment:   a,
		Unrecognized: agg.Unrecognized,
	}, nil
}

func printAssessment(out io.Writer, color bool, name string, a rating.Assessment) {
	fmt.Fprintf(out, "SECURITY RATING: %s  [%s] %s, %d/100\n", name, styleGrade(color, a.Rating, a.Color), a.Label, a.Score)
	fmt.Fprintln(out, strings.Repeat("─", 60))
	fmt.Fprintf(out, "  %s\n", a.Description)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, s := range rating.Severities {
		fmt.Fprintf(w, "  %s\t%d\n", s, a.Counts.Get(s))
	}
	fmt.Fprintf(w, "  total\t%d\n", a.Counts.Total())
	if a.Unclassified > 0 {
		fmt.Fprintf(w, "  unclassified\t%d\n", a.Unclassified)
	}
	fmt.Fprintf(w, "  policy\t%s\n", a.Policy)
	w.Flush()
}
