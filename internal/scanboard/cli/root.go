// Package cli implements the scanboard command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/build-flow-labs/scanboard/internal/scanboard/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	verbose    bool
	version    string
}

// NewRootCmd builds the scanboard command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &rootOptions{version: version}

	cmd := &cobra.Command{
		Use:   "scanboard",
		Short: "Website security scanning dashboard",
		Long: `Scanboard rates the security posture of websites from scanner findings.

Findings are counted per severity, turned into a 0-100 security score and
classified into a letter grade (A+ to F). Scores can be computed from report
files, from simulated scans, or served through the HTTP dashboard.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", ".", "Config file or directory containing .scanboard.yml")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newScoreCmd(opts))
	cmd.AddCommand(newScanCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newReportCmd(opts))
	cmd.AddCommand(newVersionCmd(opts))

	return cmd
}

// logger returns a text logger writing to w.
func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads, defaults and validates the configuration.
func (o *rootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newVersionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the scanboard version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "scanboard %s\n", opts.version)
		},
	}
}
