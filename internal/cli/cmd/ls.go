package cmd

import (
	"context"
	"fmt"

	"github.com/bucketdrive/backend/internal/cli/output"
	"github.com/bucketdrive/backend/internal/uploader"
	"github.com/spf13/cobra"
)

var flagBucket string

var lsCmd = &cobra.Command{
	Use:   "ls [folder-id]",
	Short: "List folders and files",
	Long: `List the bucket root or the children of a folder.

  bucketdrive ls                        List the default bucket's root
  bucketdrive ls --bucket <id>          List another bucket's root
  bucketdrive ls 550e8400-...           List a folder by ID`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		var resp uploader.Response[uploader.Listing]
		if len(args) > 0 {
			if err := apiClient.Get(context.Background(), "/folders/"+args[0]+"/children", &resp); err != nil {
				return fmt.Errorf("listing folder: %w", err)
			}
		} else {
			bucketID, err := requireBucket(flagBucket)
			if err != nil {
				return err
			}
			if err := apiClient.Get(context.Background(), "/folders/?bucketID="+bucketID, &resp); err != nil {
				return fmt.Errorf("listing root: %w", err)
			}
		}

		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		output.ListingTable(resp.Data)
		return nil
	},
}

func init() {
	lsCmd.Flags().StringVar(&flagBucket, "bucket", "", "Bucket ID (default: from \"buckets use\")")
	rootCmd.AddCommand(lsCmd)
}
