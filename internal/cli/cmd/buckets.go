package cmd

import (
	"context"
	"fmt"

	"github.com/bucketdrive/backend/internal/cli/config"
	"github.com/bucketdrive/backend/internal/cli/output"
	"github.com/bucketdrive/backend/internal/uploader"
	"github.com/spf13/cobra"
)

var (
	flagBucketName string
	flagEndpoint   string
	flagAccessKey  string
	flagSecretKey  string
	flagRemote     string
	flagSSL        bool
	flagPrefix     string
)

var bucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "Manage attached object-storage buckets",
}

var bucketsAttachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Attach an S3-compatible bucket",
	Long: `Attach a bucket you own by its endpoint and credentials. The server
verifies it can reach the bucket before anything is stored; credentials
are encrypted at rest and never returned by the API.

  bucketdrive buckets attach --name work \
    --endpoint minio.example.com:9000 --remote-bucket work-files \
    --access-key AKIA... --secret-key ... --ssl`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}
		if flagBucketName == "" || flagEndpoint == "" || flagAccessKey == "" || flagSecretKey == "" || flagRemote == "" {
			return fmt.Errorf("--name, --endpoint, --remote-bucket, --access-key and --secret-key are required")
		}

		body := map[string]interface{}{
			"name":       flagBucketName,
			"endpoint":   flagEndpoint,
			"accessKey":  flagAccessKey,
			"secretKey":  flagSecretKey,
			"bucketName": flagRemote,
			"useSSL":     flagSSL,
		}
		var resp uploader.Response[uploader.BucketRecord]
		if err := apiClient.Post(context.Background(), "/buckets", body, &resp); err != nil {
			return fmt.Errorf("attaching bucket: %w", err)
		}

		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		fmt.Printf("Attached bucket %s (id: %s)\n", resp.Data.Name, resp.Data.ID)
		return nil
	},
}

var bucketsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List attached buckets",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		var resp uploader.Response[[]uploader.BucketRecord]
		if err := apiClient.Get(context.Background(), "/buckets", &resp); err != nil {
			return fmt.Errorf("listing buckets: %w", err)
		}

		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		output.BucketTable(resp.Data)
		return nil
	},
}

var bucketsUseCmd = &cobra.Command{
	Use:   "use <bucket-id>",
	Short: "Set the default bucket for ls, mkdir and upload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		// Validate before persisting so a typo does not wedge every
		// later command.
		var resp uploader.Response[uploader.BucketRecord]
		if err := apiClient.Get(context.Background(), "/buckets/"+args[0], &resp); err != nil {
			return fmt.Errorf("fetching bucket: %w", err)
		}

		cfg.BucketID = resp.Data.ID.String()
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Printf("Default bucket: %s (%s)\n", resp.Data.Name, resp.Data.ID)
		return nil
	},
}

var bucketsDetachCmd = &cobra.Command{
	Use:   "detach <bucket-id>",
	Short: "Detach a bucket, keeping its objects",
	Long: `Detach a bucket from your account. Only the tracked metadata is
removed; every object stays in the bucket untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		if err := apiClient.Del(context.Background(), "/buckets/"+args[0]); err != nil {
			return fmt.Errorf("detaching bucket: %w", err)
		}

		if cfg.BucketID == args[0] {
			cfg.BucketID = ""
			_ = config.Save(cfg)
		}
		fmt.Println("Detached. Objects were left in place.")
		return nil
	},
}

var bucketsReconcileCmd = &cobra.Command{
	Use:   "reconcile <bucket-id>",
	Short: "List objects in the bucket that no record tracks",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		body := map[string]string{"prefix": flagPrefix}
		var resp uploader.Response[struct {
			Orphans []struct {
				Key  string `json:"key"`
				Size string `json:"size"`
			} `json:"orphans"`
		}]
		if err := apiClient.Post(context.Background(), "/buckets/"+args[0]+"/reconcile", body, &resp); err != nil {
			return fmt.Errorf("reconciling: %w", err)
		}

		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		if len(resp.Data.Orphans) == 0 {
			fmt.Println("No orphaned objects.")
			return nil
		}
		for _, o := range resp.Data.Orphans {
			fmt.Printf("%s\t%s\n", o.Key, output.FormatSize(o.Size))
		}
		return nil
	},
}

func init() {
	bucketsAttachCmd.Flags().StringVar(&flagBucketName, "name", "", "Display name for the bucket")
	bucketsAttachCmd.Flags().StringVar(&flagEndpoint, "endpoint", "", "S3 endpoint, host:port")
	bucketsAttachCmd.Flags().StringVar(&flagRemote, "remote-bucket", "", "Bucket name at the endpoint")
	bucketsAttachCmd.Flags().StringVar(&flagAccessKey, "access-key", "", "Access key")
	bucketsAttachCmd.Flags().StringVar(&flagSecretKey, "secret-key", "", "Secret key")
	bucketsAttachCmd.Flags().BoolVar(&flagSSL, "ssl", false, "Connect over TLS")
	bucketsReconcileCmd.Flags().StringVar(&flagPrefix, "prefix", "", "Only scan keys under this prefix")

	bucketsCmd.AddCommand(bucketsAttachCmd)
	bucketsCmd.AddCommand(bucketsLsCmd)
	bucketsCmd.AddCommand(bucketsUseCmd)
	bucketsCmd.AddCommand(bucketsDetachCmd)
	bucketsCmd.AddCommand(bucketsReconcileCmd)
	rootCmd.AddCommand(bucketsCmd)
}
