package cmd

import (
	"context"
	"fmt"

	"github.com/bucketdrive/backend/internal/cli/output"
	"github.com/bucketdrive/backend/internal/uploader"
	"github.com/spf13/cobra"
)

var urlCmd = &cobra.Command{
	Use:   "url <file-id>",
	Short: "Print a temporary download URL for a file",
	Long: `Print a presigned download URL. The link talks straight to the
bucket and expires after a short window.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		var resp uploader.Response[struct {
			URL string `json:"url"`
		}]
		if err := apiClient.Get(context.Background(), "/files/"+args[0]+"/download-url", &resp); err != nil {
			return fmt.Errorf("requesting download URL: %w", err)
		}

		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		fmt.Println(resp.Data.URL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(urlCmd)
}
