package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/build-flow-labs/scanboard/internal/scanboard/scanner"
	"github.com/build-flow-labs/scanboard/internal/scanboard/store"
	"github.com/build-flow-labs/scanboard/rating"
	"github.com/spf13/cobra"
)

type scanOptions struct {
	project    string
	storageDir string
	delay      time.Duration
	json       bool
}

func newScanCmd(root *rootOptions) *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Run a simulated scan against a URL and store the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, root, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.project, "project", "", "Project name (defaults to the URL host)")
	cmd.Flags().StringVar(&opts.storageDir, "storage-dir", "", "Scan storage directory (default from config)")
	cmd.Flags().DurationVar(&opts.delay, "delay", 0, "Simulated scan duration (default from config)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output JSON")

	return cmd
}

func runScan(cmd *cobra.Command, root *rootOptions, opts *scanOptions, target string) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	logger := root.logger(cmd.ErrOrStderr())

	u, err := scanner.ValidateTarget(target)
	if err != nil {
		return err
	}

	project := opts.project
	if project == "" {
		project = strings.ReplaceAll(u.Host, ":", "-")
	}
	if !store.ValidProject(project) {
		return fmt.Errorf("invalid project name %q", project)
	}

	delay := opts.delay
	if !cmd.Flags().Changed("delay") {
		if delay, err = cfg.Delay(); err != nil {
			return err
		}
	}
	dir := cfg.StorageDir
	if opts.storageDir != "" {
		dir = opts.storageDir
	}
	policy, err := cfg.RatingPolicy()
	if err != nil {
		return err
	}

	st := store.New(dir, logger)
	sc := scanner.New(delay, logger)

	scan, err := sc.Scan(cmd.Context(), project, u.String())
	if err != nil {
		return fmt.Errorf("scanning %s: %w", u, err)
	}
	if err := st.Put(scan); err != nil {
		return fmt.Errorf("storing scan: %w", err)
	}

	a, err := rating.Assess(scan.Findings, policy)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			ScanID     string            `json:"scan_id"`
			Project    string            `json:"project"`
			Assessment rating.Assessment `json:"assessment"`
		}{scan.ID, scan.Project, a})
	}

	fmt.Fprintf(out, "Scan %s stored in %s\n\n", scan.ID, dir)
	printAssessment(out, colorEnabled(out), project, a)
	return nil
}
