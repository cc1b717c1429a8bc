package cmd

import (
	"fmt"
	"os"

	"github.com/bucketdrive/backend/internal/cli/config"
	"github.com/bucketdrive/backend/internal/uploader"
	"github.com/spf13/cobra"
)

var (
	flagJSON      bool
	flagServerURL string

	cfg       *config.Config
	apiClient *uploader.Client
)

var rootCmd = &cobra.Command{
	Use:   "bucketdrive",
	Short: "BucketDrive CLI: manage your buckets and files from the terminal",
	Long: `BucketDrive CLI lets you attach object-storage buckets and upload,
browse, and manage files on your BucketDrive server without leaving
the terminal.

Get started:
  bucketdrive login you@example.com     Authenticate with your account
  bucketdrive buckets attach            Attach an S3-compatible bucket
  bucketdrive ls                        List the bucket root
  bucketdrive upload ./project/         Upload a directory recursively`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if flagServerURL != "" {
			cfg.ServerURL = flagServerURL
		}
		apiClient = uploader.NewClient(cfg.ServerURL, cfg.Token)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().StringVar(&flagServerURL, "server", "", "Override server URL (default: from config or http://localhost:8080)")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// requireAuth is a helper that returns an error if no token is configured.
func requireAuth() error {
	if cfg == nil || !cfg.HasToken() {
		return fmt.Errorf("not authenticated: run \"bucketdrive login\" first")
	}
	return nil
}

// requireBucket resolves the bucket a command operates on, preferring
// the --bucket flag over the default stored by "buckets use".
func requireBucket(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if cfg.BucketID != "" {
		return cfg.BucketID, nil
	}
	return "", fmt.Errorf("no bucket selected: pass --bucket or run \"bucketdrive buckets use <id>\"")
}
