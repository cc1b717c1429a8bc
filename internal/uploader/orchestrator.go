package uploader

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/bucketdrive/backend/internal/tree"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is how many files upload concurrently as one unit of
// failure isolation.
const DefaultBatchSize = 5

// Destination is where a run lands: an attached bucket and, optionally,
// the folder the user is currently inside.
type Destination struct {
	BucketID uuid.UUID
	FolderID *uuid.UUID
}

// Report is the outcome of one run. SizeMap is handed over exactly once;
// the orchestrator forgets it so the same deltas can never be committed
// twice.
type Report struct {
	Forest    *tree.Forest
	Notices   []Notice
	SizeMap   map[uuid.UUID]*big.Int
	Committed bool
}

// Orchestrator walks a forest depth-first and uploads it through
// presigned URLs in fixed-size batches. Each instance owns its forest
// and size map outright; there is no shared ambient state between runs.
// Sibling folders and sibling batches run strictly sequentially, so the
// size map is only ever touched by completed batches of one folder at a
// time. PUTs inside a batch are the only concurrent work.
type Orchestrator struct {
	client    *Client
	batchSize int
	onChange  func(*tree.Forest)

	forest  *tree.Forest
	sizes   map[uuid.UUID]*big.Int
	notices []Notice
}

func NewOrchestrator(client *Client, batchSize int) *Orchestrator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Orchestrator{client: client, batchSize: batchSize}
}

// OnChange registers a callback invoked with a fresh forest snapshot
// after every status rewrite. Snapshots are immutable from the reader's
// point of view.
func (o *Orchestrator) OnChange(fn func(*tree.Forest)) {
	o.onChange = fn
}

// Run uploads the forest into the destination. Batch and folder failures
// are local: they reset their own items and surface notices while the
// rest of the run continues. Only precondition failures (quota,
// unresolvable destination) abort before any work begins.
func (o *Orchestrator) Run(ctx context.Context, forest *tree.Forest, dest Destination) (*Report, error) {
	o.forest = forest
	o.sizes = make(map[uuid.UUID]*big.Int)
	o.notices = nil

	if err := o.client.Precheck(ctx, dest.BucketID, forest.TotalBytes().String(), forest.FileCount()); err != nil {
		return nil, err
	}

	destPrefix := ""
	if dest.FolderID != nil {
		chain, err := o.client.FolderPath(ctx, *dest.FolderID)
		if err != nil || len(chain) == 0 {
			o.notify(SeverityStructural, "destination folder could not be resolved", err)
			return o.report(false), ErrAmbiguousDestination
		}
		names := make([]string, len(chain))
		for i, folder := range chain {
			names[i] = folder.Name
		}
		destPrefix = strings.Join(names, "/")
	}

	o.markAllQueued()

	grandTotal := new(big.Int)
	for _, root := range forest.Roots {
		total, err := o.uploadFolder(ctx, root.ID, dest, dest.FolderID, destPrefix)
		if err != nil {
			if ctx.Err() != nil {
				return o.report(false), err
			}
			// subtree failure already surfaced; siblings continue
			continue
		}
		grandTotal.Add(grandTotal, total)
	}

	if len(forest.Loose) > 0 {
		looseTotal, err := o.uploadBatches(ctx, uuid.Nil, o.looseFiles(), dest, dest.FolderID, destPrefix)
		if err != nil {
			return o.report(false), err
		}
		grandTotal.Add(grandTotal, looseTotal)
	}

	// The destination's own record must reflect everything added beneath it.
	if dest.FolderID != nil && grandTotal.Sign() > 0 {
		addSize(o.sizes, *dest.FolderID, grandTotal)
	}

	committed := o.commitSizes(ctx)
	return o.report(committed), nil
}

// uploadFolder handles one folder node: persist the folder record first
// (visible even if every upload below it fails), then files in batches,
// then subfolders. Returns the byte total that landed under this folder.
func (o *Orchestrator) uploadFolder(ctx context.Context, folderID uuid.UUID, dest Destination, parentID *uuid.UUID, prefix string) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	node, ok := o.forest.FindFolder(folderID)
	if !ok {
		return nil, fmt.Errorf("folder %s not in forest", folderID)
	}

	record, err := o.client.CreateFolder(ctx, dest.BucketID, node.Name, parentID)
	if err != nil {
		o.notify(SeverityUpload, fmt.Sprintf("could not create folder %q; skipping its contents", node.Name), err)
		o.resetSubtree(node)
		return nil, err
	}

	o.rewriteFolder(folderID, tree.StatusUploading)

	keyPrefix := node.Name
	if prefix != "" {
		keyPrefix = prefix + "/" + node.Name
	}

	total, err := o.uploadBatches(ctx, folderID, node.Files, dest, &record.ID, keyPrefix)
	if err != nil {
		return nil, err
	}

	for _, sub := range node.Subfolders {
		subTotal, err := o.uploadFolder(ctx, sub.ID, dest, &record.ID, keyPrefix)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			continue
		}
		total.Add(total, subTotal)
	}

	o.sizes[record.ID] = total
	o.rewriteFolder(folderID, tree.StatusUploaded)
	return total, nil
}

// uploadBatches pushes files through in fixed-size batches. A failed
// batch resets only its own files and surfaces one notice; sibling
// batches keep going. Returns the bytes confirmed uploaded. Only a
// cancelled context stops scheduling.
func (o *Orchestrator) uploadBatches(ctx context.Context, ownerID uuid.UUID, files []*tree.FileNode, dest Destination, parentID *uuid.UUID, keyPrefix string) (*big.Int, error) {
	total := new(big.Int)

	for start := 0; start < len(files); start += o.batchSize {
		if err := ctx.Err(); err != nil {
			// abandoned run: in-flight items stay as they are, nothing
			// unobserved is counted
			return total, err
		}

		end := start + o.batchSize
		if end > len(files) {
			end = len(files)
		}
		batch := files[start:end]

		ids := make([]uuid.UUID, len(batch))
		items := make([]GrantItem, len(batch))
		for i, file := range batch {
			ids[i] = file.ID
			key := file.Name
			if keyPrefix != "" {
				key = keyPrefix + "/" + file.Name
			}
			items[i] = GrantItem{
				Key:         key,
				Name:        file.Name,
				Size:        strconv.FormatInt(file.Size, 10),
				ContentType: file.ContentType,
			}
		}

		o.rewriteFiles(ownerID, ids, tree.StatusUploading)

		grants, err := o.client.GrantUploads(ctx, dest.BucketID, items)
		if err != nil {
			o.failBatch(ownerID, ids, "requesting upload grants failed", err)
			continue
		}

		if err := o.putBatch(ctx, batch, grants); err != nil {
			o.failBatch(ownerID, ids, "batch upload failed", err)
			continue
		}

		inputs := make([]FileInput, len(batch))
		batchBytes := new(big.Int)
		for i, file := range batch {
			inputs[i] = FileInput{
				Name:       grants[i].FileName,
				StorageKey: grants[i].Key,
				Size:       strconv.FormatInt(file.Size, 10),
				MimeType:   file.ContentType,
			}
			batchBytes.Add(batchBytes, big.NewInt(file.Size))
		}
		if err := o.client.CreateFiles(ctx, dest.BucketID, parentID, inputs); err != nil {
			o.failBatch(ownerID, ids, "persisting file records failed", err)
			continue
		}

		o.rewriteFiles(ownerID, ids, tree.StatusUploaded)
		total.Add(total, batchBytes)
	}

	return total, nil
}

// putBatch performs every presigned PUT of one batch concurrently and
// waits for all of them before anything else happens.
func (o *Orchestrator) putBatch(ctx context.Context, batch []*tree.FileNode, grants []Grant) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := range batch {
		file := batch[i]
		grant := grants[i]
		g.Go(func() error {
			payload, err := file.Open()
			if err != nil {
				return fmt.Errorf("opening %s: %w", file.Name, err)
			}
			defer payload.Close()
			if err := o.client.PutObject(ctx, grant.URL, payload, file.Size, file.ContentType); err != nil {
				return fmt.Errorf("uploading %s: %w", file.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (o *Orchestrator) commitSizes(ctx context.Context) bool {
	deltas := make(map[string]string, len(o.sizes))
	for folderID, size := range o.sizes {
		if size.Sign() == 0 {
			continue
		}
		deltas[folderID.String()] = size.String()
	}
	if len(deltas) == 0 {
		return true
	}

	if err := o.client.CommitSizes(ctx, deltas); err != nil {
		// the uploads themselves succeeded; only the accounting is stale
		o.notify(SeverityAccounting, "uploads succeeded but folder size commit failed", err)
		return false
	}
	return true
}

func (o *Orchestrator) report(committed bool) *Report {
	report := &Report{
		Forest:    o.forest,
		Notices:   o.notices,
		SizeMap:   o.sizes,
		Committed: committed,
	}
	o.sizes = nil
	return report
}

func (o *Orchestrator) looseFiles() []*tree.FileNode {
	return o.forest.Loose
}

func (o *Orchestrator) markAllQueued() {
	looseIDs := fileIDs(o.forest.Loose)
	o.forest = o.forest.WithFileStatus(uuid.Nil, looseIDs, tree.StatusInQueue)
	for _, root := range o.forest.Roots {
		o.queueSubtree(root)
	}
	o.publish()
}

func (o *Orchestrator) queueSubtree(node *tree.FolderNode) {
	o.forest = o.forest.WithFileStatus(node.ID, fileIDs(node.Files), tree.StatusInQueue)
	o.forest = o.forest.WithFolderStatus(node.ID, tree.StatusInQueue)
	for _, sub := range node.Subfolders {
		o.queueSubtree(sub)
	}
}

func (o *Orchestrator) resetSubtree(node *tree.FolderNode) {
	o.forest = o.forest.WithFileStatus(node.ID, fileIDs(node.Files), tree.StatusNone)
	o.forest = o.forest.WithFolderStatus(node.ID, tree.StatusNone)
	for _, sub := range node.Subfolders {
		o.resetSubtree(sub)
	}
	o.publish()
}

func (o *Orchestrator) failBatch(ownerID uuid.UUID, ids []uuid.UUID, message string, err error) {
	o.rewriteFiles(ownerID, ids, tree.StatusNone)
	o.notify(SeverityUpload, message, err)
}

func (o *Orchestrator) rewriteFiles(ownerID uuid.UUID, ids []uuid.UUID, status tree.Status) {
	o.forest = o.forest.WithFileStatus(ownerID, ids, status)
	o.publish()
}

func (o *Orchestrator) rewriteFolder(folderID uuid.UUID, status tree.Status) {
	o.forest = o.forest.WithFolderStatus(folderID, status)
	o.publish()
}

func (o *Orchestrator) publish() {
	if o.onChange != nil {
		o.onChange(o.forest)
	}
}

func (o *Orchestrator) notify(severity Severity, message string, err error) {
	o.notices = append(o.notices, Notice{Severity: severity, Message: message, Err: err})
}

func fileIDs(files []*tree.FileNode) []uuid.UUID {
	ids := make([]uuid.UUID, len(files))
	for i, file := range files {
		ids[i] = file.ID
	}
	return ids
}

func addSize(sizes map[uuid.UUID]*big.Int, folderID uuid.UUID, delta *big.Int) {
	if existing, ok := sizes[folderID]; ok {
		existing.Add(existing, delta)
		return
	}
	sizes[folderID] = new(big.Int).Set(delta)
}
