package cli

import (
	"fmt"

	"github.com/build-flow-labs/scanboard/internal/scanboard/report"
	"github.com/build-flow-labs/scanboard/internal/scanboard/store"
	"github.com/spf13/cobra"
)

type reportOptions struct {
	owner      string
	repo       string
	token      string
	baseURL    string
	storageDir string
}

func newReportCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Publish scan assessments",
	}
	cmd.AddCommand(newReportGitHubCmd(root))
	return cmd
}

func newReportGitHubCmd(root *rootOptions) *cobra.Command {
	opts := &reportOptions{}

	cmd := &cobra.Command{
		Use:   "github <scan-id>",
		Short: "Create or update a GitHub issue with a scan's rating",
		Long: `Publishes a stored scan as a GitHub issue titled
"Security rating <grade> for <project>" with the security-scan label.
An open issue for the same project is updated instead of duplicated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportGitHub(cmd, root, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.owner, "owner", "", "Repository owner (default from config)")
	cmd.Flags().StringVar(&opts.repo, "repo", "", "Repository name (default from config)")
	cmd.Flags().StringVar(&opts.token, "token", "", "GitHub token (or GITHUB_TOKEN env var)")
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "", "GitHub API base URL (for GitHub Enterprise)")
	cmd.Flags().StringVar(&opts.storageDir, "storage-dir", "", "Scan storage directory (default from config)")

	return cmd
}

func runReportGitHub(cmd *cobra.Command, root *rootOptions, opts *reportOptions, id string) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	logger := root.logger(cmd.ErrOrStderr())

	gh := cfg.GitHub
	if opts.owner != "" {
		gh.Owner = opts.owner
	}
	if opts.repo != "" {
		gh.Repo = opts.repo
	}
	if opts.token != "" {
		gh.Token = opts.token
	}
	if opts.baseURL != "" {
		gh.BaseURL = opts.baseURL
	}
	dir := cfg.StorageDir
	if opts.storageDir != "" {
		dir = opts.storageDir
	}

	st := store.New(dir, logger)
	if err := st.Load(); err != nil {
		return fmt.Errorf("loading scans: %w", err)
	}
	scan, err := st.Get(id)
	if err != nil {
		return err
	}

	pub, err := report.NewPublisher(cmd.Context(), gh.Token, gh.Owner, gh.Repo, gh.BaseURL, logger)
	if err != nil {
		return err
	}
	res, err := pub.Publish(cmd.Context(), scan)
	if err != nil {
		return err
	}

	verb := "Updated"
	if res.Created {
		verb = "Created"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s issue #%d: %s\n", verb, res.Number, res.URL)
	return nil
}
