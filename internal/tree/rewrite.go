package tree

import "github.com/google/uuid"

// Status updates are pure structural rewrites: the owning folder is
// located by id anywhere in the forest and only the spine from root to
// that folder is cloned. Untouched subtrees are shared between the old
// and new forest, so a concurrent reader of the old forest never sees a
// half-updated tree.

// WithFileStatus returns a forest in which the named files inside the
// folder with ownerID carry the new status. ownerID uuid.Nil addresses
// the loose-file list. Illegal transitions leave the file untouched.
func (f *Forest) WithFileStatus(ownerID uuid.UUID, fileIDs []uuid.UUID, status Status) *Forest {
	targets := make(map[uuid.UUID]bool, len(fileIDs))
	for _, id := range fileIDs {
		targets[id] = true
	}

	out := &Forest{Roots: f.Roots, Loose: f.Loose}

	if ownerID == uuid.Nil {
		out.Loose = rewriteFiles(f.Loose, targets, status)
		return out
	}

	roots := make([]*FolderNode, len(f.Roots))
	copy(roots, f.Roots)
	for i, root := range roots {
		if rewritten, ok := rewriteFolderFiles(root, ownerID, targets, status); ok {
			roots[i] = rewritten
			break
		}
	}
	out.Roots = roots
	return out
}

// WithFolderStatus returns a forest in which the folder with the given
// id carries the new status. Folder status is driven explicitly by the
// orchestrator, not derived from children.
func (f *Forest) WithFolderStatus(folderID uuid.UUID, status Status) *Forest {
	roots := make([]*FolderNode, len(f.Roots))
	copy(roots, f.Roots)
	for i, root := range roots {
		if rewritten, ok := rewriteFolderStatus(root, folderID, status); ok {
			roots[i] = rewritten
			break
		}
	}
	return &Forest{Roots: roots, Loose: f.Loose}
}

// FindFolder locates a folder by id anywhere in the forest.
func (f *Forest) FindFolder(folderID uuid.UUID) (*FolderNode, bool) {
	for _, root := range f.Roots {
		if found, ok := findFolder(root, folderID); ok {
			return found, true
		}
	}
	return nil, false
}

func findFolder(n *FolderNode, folderID uuid.UUID) (*FolderNode, bool) {
	if n.ID == folderID {
		return n, true
	}
	for _, sub := range n.Subfolders {
		if found, ok := findFolder(sub, folderID); ok {
			return found, true
		}
	}
	return nil, false
}

func rewriteFiles(files []*FileNode, targets map[uuid.UUID]bool, status Status) []*FileNode {
	out := make([]*FileNode, len(files))
	for i, file := range files {
		if targets[file.ID] && CanTransition(file.Status, status) {
			clone := *file
			clone.Status = status
			out[i] = &clone
		} else {
			out[i] = file
		}
	}
	return out
}

func rewriteFolderFiles(n *FolderNode, ownerID uuid.UUID, targets map[uuid.UUID]bool, status Status) (*FolderNode, bool) {
	if n.ID == ownerID {
		clone := *n
		clone.Files = rewriteFiles(n.Files, targets, status)
		return &clone, true
	}
	for i, sub := range n.Subfolders {
		if rewritten, ok := rewriteFolderFiles(sub, ownerID, targets, status); ok {
			clone := *n
			clone.Subfolders = make([]*FolderNode, len(n.Subfolders))
			copy(clone.Subfolders, n.Subfolders)
			clone.Subfolders[i] = rewritten
			return &clone, true
		}
	}
	return nil, false
}

func rewriteFolderStatus(n *FolderNode, folderID uuid.UUID, status Status) (*FolderNode, bool) {
	if n.ID == folderID {
		clone := *n
		clone.Status = status
		return &clone, true
	}
	for i, sub := range n.Subfolders {
		if rewritten, ok := rewriteFolderStatus(sub, folderID, status); ok {
			clone := *n
			clone.Subfolders = make([]*FolderNode, len(n.Subfolders))
			copy(clone.Subfolders, n.Subfolders)
			clone.Subfolders[i] = rewritten
			return &clone, true
		}
	}
	return nil, false
}
