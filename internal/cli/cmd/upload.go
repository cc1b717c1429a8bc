package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bucketdrive/backend/internal/cli/output"
	"github.com/bucketdrive/backend/internal/tree"
	"github.com/bucketdrive/backend/internal/uploader"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	flagFolder string
	flagBatch  int
)

var uploadCmd = &cobra.Command{
	Use:   "upload <path>...",
	Short: "Upload files and directories",
	Long: `Upload local files and directories. Directories upload recursively
with their structure preserved; plain files land directly in the
destination. Files move in small batches so one bad file only fails
its own batch, and the rest of the run keeps going.

  bucketdrive upload report.pdf                Upload to the bucket root
  bucketdrive upload ./project/                Upload a directory recursively
  bucketdrive upload a.txt ./docs/ --folder <id>   Upload into a folder`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&flagBucket, "bucket", "", "Bucket ID (default: from \"buckets use\")")
	uploadCmd.Flags().StringVar(&flagFolder, "folder", "", "Destination folder ID (default: bucket root)")
	uploadCmd.Flags().IntVar(&flagBatch, "batch", uploader.DefaultBatchSize, "Files per upload batch")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	if err := requireAuth(); err != nil {
		return err
	}
	bucketID, err := requireBucket(flagBucket)
	if err != nil {
		return err
	}
	bucketUUID, err := uuid.Parse(bucketID)
	if err != nil {
		return fmt.Errorf("invalid bucket ID %q", bucketID)
	}

	dest := uploader.Destination{BucketID: bucketUUID}
	if flagFolder != "" {
		folderUUID, err := uuid.Parse(flagFolder)
		if err != nil {
			return fmt.Errorf("invalid folder ID %q", flagFolder)
		}
		dest.FolderID = &folderUUID
	}

	var folderEntries, looseEntries []tree.Entry
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return fmt.Errorf("stat %s: %w", arg, err)
		}
		if info.IsDir() {
			entries, err := collectDir(arg)
			if err != nil {
				return fmt.Errorf("walking %s: %w", arg, err)
			}
			folderEntries = append(folderEntries, entries...)
		} else {
			looseEntries = append(looseEntries, localEntry(arg, filepath.Base(arg), info.Size()))
		}
	}

	forest, err := tree.Build(folderEntries)
	if err != nil {
		return err
	}
	forest.AddLoose(looseEntries)

	total := forest.FileCount()
	if total == 0 {
		fmt.Println("Nothing to upload.")
		return nil
	}
	if !flagJSON {
		fmt.Printf("Uploading %d file(s), %s\n", total, output.FormatSize(forest.TotalBytes().String()))
	}

	orch := uploader.NewOrchestrator(apiClient, flagBatch)
	if !flagJSON {
		orch.OnChange(func(snapshot *tree.Forest) {
			fmt.Printf("\r  %d/%d uploaded", countUploaded(snapshot), total)
		})
	}

	// Ctrl-C stops scheduling new batches; in-flight ones finish or fail.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	report, err := orch.Run(ctx, forest, dest)
	if !flagJSON {
		fmt.Println()
	}
	if err != nil {
		switch {
		case errors.Is(err, uploader.ErrQuotaRejected):
			return fmt.Errorf("upload rejected: %w", err)
		case errors.Is(err, uploader.ErrAmbiguousDestination):
			return fmt.Errorf("destination folder could not be resolved; pick it again and retry")
		default:
			return err
		}
	}

	uploaded := countUploaded(report.Forest)

	if flagJSON {
		type noticeOut struct {
			Severity string `json:"severity"`
			Message  string `json:"message"`
		}
		out := struct {
			Uploaded  int         `json:"uploaded"`
			Failed    int         `json:"failed"`
			Committed bool        `json:"committed"`
			Notices   []noticeOut `json:"notices"`
		}{Uploaded: uploaded, Failed: total - uploaded, Committed: report.Committed, Notices: []noticeOut{}}
		for _, n := range report.Notices {
			out.Notices = append(out.Notices, noticeOut{Severity: string(n.Severity), Message: n.Message})
		}
		output.JSON(out)
	} else {
		for _, n := range report.Notices {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", n.Severity, n.Error())
		}
		fmt.Printf("Done: %d uploaded, %d failed\n", uploaded, total-uploaded)
		if !report.Committed {
			fmt.Fprintln(os.Stderr, "Folder totals were not updated; they will converge on the next delete or upload.")
		}
	}

	if uploaded < total {
		return fmt.Errorf("%d file(s) failed to upload", total-uploaded)
	}
	return nil
}

// collectDir walks a local directory into entries rooted at the
// directory's own name, so "./project/src/main.go" uploads as
// "project/src/main.go".
func collectDir(dir string) ([]tree.Entry, error) {
	base := filepath.Base(filepath.Clean(dir))
	var entries []tree.Entry
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		relPath := filepath.ToSlash(filepath.Join(base, rel))
		entries = append(entries, localEntry(path, relPath, info.Size()))
		return nil
	})
	return entries, err
}

func localEntry(localPath, relPath string, size int64) tree.Entry {
	return tree.Entry{
		RelPath:     relPath,
		Size:        size,
		ContentType: mime.TypeByExtension(filepath.Ext(localPath)),
		Open: func() (io.ReadCloser, error) {
			return os.Open(localPath)
		},
	}
}

func countUploaded(f *tree.Forest) int {
	count := 0
	for _, file := range f.Loose {
		if file.Status == tree.StatusUploaded {
			count++
		}
	}
	for _, root := range f.Roots {
		count += countUploadedIn(root)
	}
	return count
}

func countUploadedIn(n *tree.FolderNode) int {
	count := 0
	for _, file := range n.Files {
		if file.Status == tree.StatusUploaded {
			count++
		}
	}
	for _, sub := range n.Subfolders {
		count += countUploadedIn(sub)
	}
	return count
}
