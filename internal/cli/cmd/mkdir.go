package cmd

import (
	"context"
	"fmt"

	"github.com/bucketdrive/backend/internal/cli/output"
	"github.com/bucketdrive/backend/internal/uploader"
	"github.com/spf13/cobra"
)

var flagParent string

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <name>",
	Short: "Create a folder",
	Long: `Create a folder in the bucket root or inside another folder.

  bucketdrive mkdir Reports
  bucketdrive mkdir Q1 --parent <folder-id>`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}
		bucketID, err := requireBucket(flagBucket)
		if err != nil {
			return err
		}

		body := map[string]interface{}{
			"bucketID": bucketID,
			"name":     args[0],
		}
		if flagParent != "" {
			body["parentID"] = flagParent
		}

		var resp uploader.Response[uploader.FolderRecord]
		if err := apiClient.Post(context.Background(), "/folders", body, &resp); err != nil {
			return fmt.Errorf("creating folder: %w", err)
		}

		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		fmt.Printf("Created folder: %s (id: %s)\n", resp.Data.Name, resp.Data.ID)
		return nil
	},
}

func init() {
	mkdirCmd.Flags().StringVar(&flagBucket, "bucket", "", "Bucket ID (default: from \"buckets use\")")
	mkdirCmd.Flags().StringVar(&flagParent, "parent", "", "Parent folder ID")
	rootCmd.AddCommand(mkdirCmd)
}
