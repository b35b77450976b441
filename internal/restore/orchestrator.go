// Package restore drives a manifest's bundle from "remote, possibly
// not immediately retrievable" to "verified and extracted locally".
package restore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"coldvault/internal/archive"
	"coldvault/internal/backend"
	"coldvault/internal/logger"
	"coldvault/internal/manifest"
)

// ErrRestoreTimeout reports that the operation deadline expired while
// the backend was still staging the object. Distinct from
// ErrTransferFailed: the restore is likely still pending remotely and
// can be picked up by a later attempt.
var ErrRestoreTimeout = errors.New("restore deadline exceeded while waiting for staging")

// State of one restore invocation. Ephemeral and in-memory only; a
// process restart starts a fresh attempt from Idle with no stale
// state to consult.
type State int

const (
	Idle State = iota
	RestoreRequested
	Restoring
	Ready
	Downloaded
	Verified
	Extracted
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RestoreRequested:
		return "restore-requested"
	case Restoring:
		return "restoring"
	case Ready:
		return "ready"
	case Downloaded:
		return "downloaded"
	case Verified:
		return "verified"
	case Extracted:
		return "extracted"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options tune one restore run.
type Options struct {
	// PollInterval between restore status checks. Fixed interval, no
	// backoff; operation volume is low.
	PollInterval time.Duration

	// DeleteBundle removes the downloaded bundle after successful
	// extraction.
	DeleteBundle bool

	// KeepArtifacts leaves a corrupt downloaded bundle on disk for
	// debugging instead of deleting it.
	KeepArtifacts bool
}

// Orchestrator runs the tiered restore state machine against one
// backend.
type Orchestrator struct {
	backend backend.TransferBackend
	opts    Options

	state State
	trail []State
}

func New(b backend.TransferBackend, opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Minute
	}
	return &Orchestrator{backend: b, opts: opts}
}

// State returns the machine's current state.
func (o *Orchestrator) State() State { return o.state }

// Trail returns every state entered during Run, in order.
func (o *Orchestrator) Trail() []State { return o.trail }

func (o *Orchestrator) enter(s State) {
	o.state = s
	o.trail = append(o.trail, s)
	logger.Infof("restore: %s", s)
}

// Run drives m's bundle to extracted-under-destDir. Cancellation and
// the overall operation deadline arrive through ctx; an expired
// deadline during staging surfaces as ErrRestoreTimeout.
func (o *Orchestrator) Run(ctx context.Context, m *manifest.Manifest, destDir string) error {
	o.enter(Idle)

	tier, err := o.backend.TierOf(ctx, m.Filename)
	if err != nil {
		return o.fail(err)
	}

	switch {
	case tier.InstantAccess():
		o.enter(Ready)
	case tier.Archival():
		if err := o.stage(ctx, m.Filename); err != nil {
			return o.fail(err)
		}
		o.enter(Ready)
	default:
		return o.fail(fmt.Errorf("%w: storage tier %s", backend.ErrRestoreUnsupported, tier))
	}

	bundlePath := filepath.Join(destDir, m.Filename)
	if err := o.backend.Download(ctx, m.Filename, bundlePath); err != nil {
		return o.fail(err)
	}
	o.enter(Downloaded)

	if err := archive.VerifyBundleFingerprint(bundlePath, m.BundleFingerprint, archive.PhaseRestore); err != nil {
		if !o.opts.KeepArtifacts {
			os.Remove(bundlePath)
		}
		return o.fail(err)
	}
	o.enter(Verified)

	if err := archive.ExtractBundle(bundlePath, destDir); err != nil {
		return o.fail(fmt.Errorf("extract %s: %w", bundlePath, err))
	}
	o.enter(Extracted)

	if o.opts.DeleteBundle {
		if err := os.Remove(bundlePath); err != nil {
			logger.Warnf("cannot remove restored bundle %s: %v", bundlePath, err)
		}
	}
	return nil
}

// stage issues a restore request when none is pending and polls until
// the backend reports the staged copy is ready.
func (o *Orchestrator) stage(ctx context.Context, name string) error {
	status, err := o.backend.RestoreStatus(ctx, name)
	if err != nil {
		return err
	}
	switch status {
	case backend.RestoreComplete:
		return nil
	case backend.RestoreNone:
		if err := o.backend.RequestRestore(ctx, name); err != nil {
			return err
		}
		o.enter(RestoreRequested)
	case backend.RestoreInProgress:
		o.enter(RestoreRequested)
	}

	o.enter(Restoring)
	ticker := time.NewTicker(o.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %s", ErrRestoreTimeout, name)
			}
			return ctx.Err()
		case <-ticker.C:
			status, err := o.backend.RestoreStatus(ctx, name)
			if err != nil {
				return err
			}
			if status == backend.RestoreComplete {
				return nil
			}
			logger.Infof("restore: %s still staging", name)
		}
	}
}

func (o *Orchestrator) fail(err error) error {
	o.enter(Failed)
	return err
}
