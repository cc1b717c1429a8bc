package tree

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// ErrRootlessPath is returned for entries whose relative path carries no
// folder segment. Such entries belong in the loose-file list, never
// silently attached to an arbitrary folder.
var ErrRootlessPath = errors.New("relative path has no folder segment")

// Entry is one dropped filesystem item: a relative path and a way to
// open its payload. Open may be called more than once (retries).
type Entry struct {
	RelPath     string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// FileNode is an ephemeral client-side file awaiting upload. It lives
// until the persisted record is durably written or the user removes it.
type FileNode struct {
	ID          uuid.UUID
	Name        string
	RelPath     string
	Size        int64
	ContentType string
	Status      Status
	Open        func() (io.ReadCloser, error)
}

// FolderNode is an ephemeral client-side folder. A FolderNode with zero
// files and zero subfolders is pruned; the tree never holds empty
// containers.
type FolderNode struct {
	ID         uuid.UUID
	Name       string
	Status     Status
	Files      []*FileNode
	Subfolders []*FolderNode
}

// Forest is the full client-side selection: top-level folder trees plus
// files dropped without any folder.
type Forest struct {
	Roots []*FolderNode
	Loose []*FileNode
}

// Build turns a flat list of entries into a forest of folder trees.
// Each path is split into segments: the last segment names the file,
// the rest name a chain of folders from root to leaf. A leading empty
// segment (absolute-style path) is discarded. Folder matching is by
// exact name, case-sensitive, first match wins.
func Build(entries []Entry) (*Forest, error) {
	forest := &Forest{}
	for _, entry := range entries {
		segments := strings.Split(entry.RelPath, "/")
		if len(segments) > 0 && segments[0] == "" {
			segments = segments[1:]
		}
		if len(segments) < 2 {
			return nil, fmt.Errorf("%w: %q", ErrRootlessPath, entry.RelPath)
		}

		fileName := segments[len(segments)-1]
		folderNames := segments[:len(segments)-1]

		folder := findOrCreateRoot(forest, folderNames[0])
		for _, name := range folderNames[1:] {
			folder = folder.findOrCreateSubfolder(name)
		}

		folder.Files = append(folder.Files, &FileNode{
			ID:          uuid.New(),
			Name:        fileName,
			RelPath:     entry.RelPath,
			Size:        entry.Size,
			ContentType: entry.ContentType,
			Open:        entry.Open,
		})
	}
	return forest, nil
}

// AddLoose appends top-level files that were dropped outside any folder.
func (f *Forest) AddLoose(entries []Entry) {
	for _, entry := range entries {
		name := entry.RelPath
		if idx := strings.LastIndex(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		f.Loose = append(f.Loose, &FileNode{
			ID:          uuid.New(),
			Name:        name,
			RelPath:     entry.RelPath,
			Size:        entry.Size,
			ContentType: entry.ContentType,
			Open:        entry.Open,
		})
	}
}

func findOrCreateRoot(f *Forest, name string) *FolderNode {
	for _, root := range f.Roots {
		if root.Name == name {
			return root
		}
	}
	root := &FolderNode{ID: uuid.New(), Name: name}
	f.Roots = append(f.Roots, root)
	return root
}

func (n *FolderNode) findOrCreateSubfolder(name string) *FolderNode {
	for _, sub := range n.Subfolders {
		if sub.Name == name {
			return sub
		}
	}
	sub := &FolderNode{ID: uuid.New(), Name: name}
	n.Subfolders = append(n.Subfolders, sub)
	return sub
}

// IsEmpty reports whether the folder holds no files and no subfolders.
func (n *FolderNode) IsEmpty() bool {
	return len(n.Files) == 0 && len(n.Subfolders) == 0
}

// RemoveFile removes a file anywhere in the forest and prunes any folder
// chain the removal leaves empty. Returns false if the id is unknown.
func (f *Forest) RemoveFile(fileID uuid.UUID) bool {
	for i, file := range f.Loose {
		if file.ID == fileID {
			f.Loose = append(f.Loose[:i], f.Loose[i+1:]...)
			return true
		}
	}

	for i, root := range f.Roots {
		if root.removeFile(fileID) {
			if root.IsEmpty() {
				f.Roots = append(f.Roots[:i], f.Roots[i+1:]...)
			}
			return true
		}
	}
	return false
}

func (n *FolderNode) removeFile(fileID uuid.UUID) bool {
	for i, file := range n.Files {
		if file.ID == fileID {
			n.Files = append(n.Files[:i], n.Files[i+1:]...)
			return true
		}
	}
	for i, sub := range n.Subfolders {
		if sub.removeFile(fileID) {
			if sub.IsEmpty() {
				n.Subfolders = append(n.Subfolders[:i], n.Subfolders[i+1:]...)
			}
			return true
		}
	}
	return false
}

// ReconstructPath rebuilds a file's relative path by walking its
// ancestor chain. For files inside folder trees the result equals the
// original relative path with any leading slash removed.
func (f *Forest) ReconstructPath(fileID uuid.UUID) (string, bool) {
	for _, file := range f.Loose {
		if file.ID == fileID {
			return file.Name, true
		}
	}
	for _, root := range f.Roots {
		if p, ok := root.reconstructPath(fileID, root.Name); ok {
			return p, true
		}
	}
	return "", false
}

func (n *FolderNode) reconstructPath(fileID uuid.UUID, prefix string) (string, bool) {
	for _, file := range n.Files {
		if file.ID == fileID {
			return prefix + "/" + file.Name, true
		}
	}
	for _, sub := range n.Subfolders {
		if p, ok := sub.reconstructPath(fileID, prefix+"/"+sub.Name); ok {
			return p, true
		}
	}
	return "", false
}

// TotalBytes sums every file size in the forest.
func (f *Forest) TotalBytes() *big.Int {
	total := new(big.Int)
	for _, file := range f.Loose {
		total.Add(total, big.NewInt(file.Size))
	}
	for _, root := range f.Roots {
		root.addBytes(total)
	}
	return total
}

func (n *FolderNode) addBytes(total *big.Int) {
	for _, file := range n.Files {
		total.Add(total, big.NewInt(file.Size))
	}
	for _, sub := range n.Subfolders {
		sub.addBytes(total)
	}
}

// FileCount counts every file in the forest.
func (f *Forest) FileCount() int {
	count := len(f.Loose)
	for _, root := range f.Roots {
		count += root.fileCount()
	}
	return count
}

func (n *FolderNode) fileCount() int {
	count := len(n.Files)
	for _, sub := range n.Subfolders {
		count += sub.fileCount()
	}
	return count
}
