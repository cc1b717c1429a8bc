package tree

// Status tracks where a file or folder sits in the upload lifecycle.
// Transitions only move forward, from none through inQueue and uploading
// to uploaded, except that failure resets an item to none so it can be
// retried. There is no terminal failed state; failures surface as notices.
type Status string

const (
	StatusNone      Status = ""
	StatusInQueue   Status = "inQueue"
	StatusUploading Status = "uploading"
	StatusUploaded  Status = "uploaded"
)

var statusRank = map[Status]int{
	StatusNone:      0,
	StatusInQueue:   1,
	StatusUploading: 2,
	StatusUploaded:  3,
}

// CanTransition reports whether moving from one status to another is
// legal: any forward move, or a reset to none from any non-terminal
// point. Uploaded is terminal.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	if to == StatusNone {
		return from != StatusUploaded
	}
	return statusRank[to] > statusRank[from]
}
