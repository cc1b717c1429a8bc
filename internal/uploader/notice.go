package uploader

import "errors"

// ErrAmbiguousDestination means the destination folder could not be
// resolved to a storage-key prefix (deleted concurrently, for example).
// Nothing is uploaded to an ambiguous location.
var ErrAmbiguousDestination = errors.New("destination folder cannot be resolved")

// ErrQuotaRejected means the run was refused up front by the server's
// quota precheck. No work was started.
var ErrQuotaRejected = errors.New("upload run rejected by quota precheck")

type Severity string

const (
	// SeverityUpload marks a failed batch or folder: bytes did not land.
	SeverityUpload Severity = "upload"
	// SeverityStructural marks a malformed input or ambiguous destination.
	SeverityStructural Severity = "structural"
	// SeverityAccounting marks a successful upload whose size commit
	// failed. The data is fine; only the folder totals are stale.
	SeverityAccounting Severity = "accounting"
)

// Notice is one user-visible problem surfaced during a run. Batch-local
// failures become notices instead of unwinding the recursion.
type Notice struct {
	Severity Severity
	Message  string
	Err      error
}

func (n Notice) Error() string {
	if n.Err != nil {
		return n.Message + ": " + n.Err.Error()
	}
	return n.Message
}
