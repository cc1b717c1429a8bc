package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/bucketdrive/backend/internal/cli/output"
	"github.com/bucketdrive/backend/internal/uploader"
	"github.com/spf13/cobra"
)

var (
	flagForce bool
	flagDir   bool
)

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a file or folder",
	Long: `Delete a file, or a folder and everything under it, from the server
and from the bucket.

  bucketdrive rm <file-id>
  bucketdrive rm <folder-id> --dir
  bucketdrive rm <folder-id> --dir --force     Skip confirmation

Warning: deleting a folder removes all contents recursively, objects
included. This cannot be undone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		if flagDir {
			return removeFolder(args[0])
		}
		return removeFile(args[0])
	},
}

func removeFile(id string) error {
	var resp uploader.Response[uploader.FileRecord]
	if err := apiClient.Get(context.Background(), "/files/"+id, &resp); err != nil {
		return fmt.Errorf("fetching file: %w", err)
	}
	if !confirm(fmt.Sprintf("Delete file %q (%s)?", resp.Data.Name, output.FormatSize(resp.Data.Size))) {
		return nil
	}

	if err := apiClient.Del(context.Background(), "/files/"+id); err != nil {
		return fmt.Errorf("deleting: %w", err)
	}
	fmt.Printf("Deleted: %s\n", resp.Data.Name)
	return nil
}

func removeFolder(id string) error {
	var resp uploader.Response[[]uploader.FolderRecord]
	if err := apiClient.Get(context.Background(), "/folders/"+id+"/path", &resp); err != nil {
		return fmt.Errorf("fetching folder: %w", err)
	}
	name := id
	if len(resp.Data) > 0 {
		name = resp.Data[len(resp.Data)-1].Name
	}
	if !confirm(fmt.Sprintf("Delete folder %q and all its contents?", name)) {
		return nil
	}

	if err := apiClient.Del(context.Background(), "/folders/"+id); err != nil {
		return fmt.Errorf("deleting: %w", err)
	}
	fmt.Println("Deleted.")
	return nil
}

func confirm(prompt string) bool {
	if flagForce {
		return true
	}
	fmt.Printf("%s This cannot be undone. [y/N] ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	if answer != "y" && answer != "yes" {
		fmt.Println("Cancelled.")
		return false
	}
	return true
}

func init() {
	rmCmd.Flags().BoolVarP(&flagForce, "force", "f", false, "Skip confirmation prompt")
	rmCmd.Flags().BoolVar(&flagDir, "dir", false, "The ID names a folder, not a file")
	rootCmd.AddCommand(rmCmd)
}
