package cli

import (
	"fmt"

	"github.com/build-flow-labs/scanboard/internal/scanboard/server"
	"github.com/build-flow-labs/scanboard/internal/scanboard/store"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	addr       string
	storageDir string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the scanboard HTTP server and dashboard",
		Long: `Starts the HTTP server. The dashboard is served under /ui and JSON
endpoints under /api. Scans are stored as JSON files in the storage directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().StringVar(&opts.storageDir, "storage-dir", "", "Scan storage directory (default from config)")

	return cmd
}

func runServe(cmd *cobra.Command, root *rootOptions, opts *serveOptions) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	logger := root.logger(cmd.ErrOrStderr())

	if opts.addr != "" {
		cfg.Addr = opts.addr
	}
	if opts.storageDir != "" {
		cfg.StorageDir = opts.storageDir
	}
	delay, err := cfg.Delay()
	if err != nil {
		return err
	}
	policy, err := cfg.RatingPolicy()
	if err != nil {
		return err
	}

	st := store.New(cfg.StorageDir, logger)
	if err := st.Load(); err != nil {
		return fmt.Errorf("loading scans: %w", err)
	}
	logger.Info("scans loaded", "count", st.Count(), "dir", cfg.StorageDir)

	srv := server.New(server.Config{
		Addr:      cfg.Addr,
		ScanDelay: delay,
		Policy:    policy,
	}, st, logger)

	return srv.Start(cmd.Context())
}
