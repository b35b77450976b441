package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path"
	"path/filepath"

	"coldvault/internal/logger"
	"coldvault/internal/manifest"
)

// Runner executes one transfer-agent command and returns its stdout.
// The production implementation shells out to the globus CLI; tests
// substitute a scripted fake.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

type cliRunner struct{}

func (cliRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "globus", args...).Output()
}

// transferTask and taskDetail are the typed slices of the agent's
// JSON output the backend consumes. Everything else the CLI prints is
// ignored here; command strings and parsing never leak past this file.
type transferTask struct {
	TaskID string `json:"task_id"`
}

type taskDetail struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// RemoteArchive delegates bundle movement to a managed,
// checksum-verifying transfer agent addressed by an endpoint id and a
// destination directory. It cannot self-service restores: retrieval
// from the managed archive is a manual, out-of-band request.
type RemoteArchive struct {
	run         Runner
	endpoint    string
	archivePath string
}

func NewRemoteArchive(endpoint, archivePath string) *RemoteArchive {
	return &RemoteArchive{run: cliRunner{}, endpoint: endpoint, archivePath: archivePath}
}

func (r *RemoteArchive) Kind() string { return manifest.LocationGlobus }

// Ping verifies the agent CLI is installed and logged in.
func (r *RemoteArchive) Ping(ctx context.Context) error {
	if _, err := r.run.Run(ctx, "whoami", "-F", "json"); err != nil {
		return fmt.Errorf("%w: transfer agent not logged in: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Upload submits a checksum-verified transfer task for the bundle and
// waits for its terminal status. The destination directory is created
// when absent. Returns the archive directory path recorded in the
// manifest.
func (r *RemoteArchive) Upload(ctx context.Context, localPath string, overwrite bool, progress ProgressFunc) (string, error) {
	name := filepath.Base(localPath)
	exists, err := r.Exists(ctx, name)
	if err != nil {
		return "", err
	}
	if exists && !overwrite {
		return "", fmt.Errorf("%w: %s:%s", ErrObjectExists, r.endpoint, path.Join(r.archivePath, name))
	}

	if ok, _ := r.pathExists(ctx, r.archivePath); !ok {
		if _, err := r.run.Run(ctx, "mkdir", r.locator(r.archivePath)); err != nil {
			return "", fmt.Errorf("%w: mkdir %s: %v", ErrBackendUnavailable, r.archivePath, err)
		}
	}

	args := []string{
		"transfer", "-F", "json", "--notify", "failed",
		"-s", "checksum", "--preserve-timestamp", "--verify-checksum",
	}
	if overwrite {
		args = append(args, "--delete")
	}
	args = append(args, r.locator(localPath), r.locator(path.Join(r.archivePath, name)))
	out, err := r.run.Run(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("%w: submit transfer for %s: %v", ErrTransferFailed, name, err)
	}
	var task transferTask
	if err := json.Unmarshal(out, &task); err != nil {
		return "", fmt.Errorf("parse transfer submission: %w", err)
	}
	logger.Infof("transfer task %s submitted for %s", task.TaskID, name)

	if _, err := r.run.Run(ctx, "task", "wait", task.TaskID); err != nil {
		return "", fmt.Errorf("%w: wait on task %s: %v", ErrTransferFailed, task.TaskID, err)
	}
	out, err = r.run.Run(ctx, "task", "show", "-F", "json", task.TaskID)
	if err != nil {
		return "", fmt.Errorf("%w: inspect task %s: %v", ErrTransferFailed, task.TaskID, err)
	}
	var detail taskDetail
	if err := json.Unmarshal(out, &detail); err != nil {
		return "", fmt.Errorf("parse task status: %w", err)
	}
	if detail.Status != "SUCCEEDED" {
		return "", fmt.Errorf("%w: task %s finished %s", ErrTransferFailed, task.TaskID, detail.Status)
	}
	return r.archivePath, nil
}

func (r *RemoteArchive) Exists(ctx context.Context, name string) (bool, error) {
	return r.pathExists(ctx, path.Join(r.archivePath, name))
}

func (r *RemoteArchive) pathExists(ctx context.Context, p string) (bool, error) {
	if _, err := r.run.Run(ctx, "ls", r.locator(p)); err != nil {
		return false, nil
	}
	return true, nil
}

func (r *RemoteArchive) locator(p string) string {
	return fmt.Sprintf("%s:%s", r.endpoint, p)
}

// The managed archive offers no retrieval API, so every restore-side
// operation fails permanently with the remote locator in the message.

func (r *RemoteArchive) Download(ctx context.Context, name, localPath string) error {
	return r.unsupported(name)
}

func (r *RemoteArchive) TierOf(ctx context.Context, name string) (StorageTier, error) {
	return "", r.unsupported(name)
}

func (r *RemoteArchive) RestoreStatus(ctx context.Context, name string) (RestoreState, error) {
	return RestoreNone, r.unsupported(name)
}

func (r *RemoteArchive) RequestRestore(ctx context.Context, name string) error {
	return r.unsupported(name)
}

func (r *RemoteArchive) unsupported(name string) error {
	return fmt.Errorf("%w: submit a manual retrieval request for %s:%s",
		ErrRestoreUnsupported, r.endpoint, path.Join(r.archivePath, name))
}
