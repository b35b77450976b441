// Package backend abstracts the transports that move bundles to and
// from cold storage. Backends own all wire details; the rest of the
// pipeline sees uploads, downloads, tiers, and restore status.
package backend

import (
	"context"
	"errors"
)

var (
	// ErrBackendUnavailable wraps connectivity and auth failures.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrObjectExists is returned by Upload when the remote object is
	// already present and overwrite was not requested.
	ErrObjectExists = errors.New("object already exists")

	// ErrTransferFailed is returned after the backend reports a
	// non-success terminal status for a transfer.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrRestoreUnsupported marks a backend that cannot self-service
	// restores. Permanent; the operator must request retrieval
	// out-of-band.
	ErrRestoreUnsupported = errors.New("self-service restore not supported")
)

// StorageTier is a named remote storage class. The backend, not the
// manifest, is the source of truth for an object's tier.
type StorageTier string

const (
	TierStandard    StorageTier = "STANDARD"
	TierStandardIA  StorageTier = "STANDARD_IA"
	TierGlacierIR   StorageTier = "GLACIER_IR"
	TierGlacier     StorageTier = "GLACIER"
	TierDeepArchive StorageTier = "DEEP_ARCHIVE"
)

// InstantAccess reports whether objects in this tier can be downloaded
// without a prior restore request.
func (t StorageTier) InstantAccess() bool {
	return t == TierStandard || t == TierStandardIA || t == TierGlacierIR
}

// Archival reports whether this tier requires an explicit restore
// request before download.
func (t StorageTier) Archival() bool {
	return t == TierGlacier || t == TierDeepArchive
}

// RestoreState is a backend's view of an archival object's staging
// progress.
type RestoreState int

const (
	RestoreNone RestoreState = iota
	RestoreInProgress
	RestoreComplete
)

func (s RestoreState) String() string {
	switch s {
	case RestoreInProgress:
		return "in-progress"
	case RestoreComplete:
		return "complete"
	default:
		return "none"
	}
}

// ProgressFunc observes cumulative transferred bytes. Concurrency
// inside a backend is invisible to callers; progress is the only
// signal that escapes.
type ProgressFunc func(transferred int64)

// TransferBackend moves one bundle at a time. Objects are addressed by
// their bundle filename; Upload returns the archive path string that
// is recorded in the manifest.
type TransferBackend interface {
	// Kind is the manifest location this backend serves.
	Kind() string

	Upload(ctx context.Context, localPath string, overwrite bool, progress ProgressFunc) (string, error)
	Exists(ctx context.Context, name string) (bool, error)
	Download(ctx context.Context, name, localPath string) error

	TierOf(ctx context.Context, name string) (StorageTier, error)
	RestoreStatus(ctx context.Context, name string) (RestoreState, error)
	RequestRestore(ctx context.Context, name string) error
}
