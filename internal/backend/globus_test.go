package backend

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner answers transfer-agent commands from canned state instead
// of shelling out.
type fakeRunner struct {
	existingPaths map[string]bool
	taskStatus    string
	calls         [][]string
}

func (f *fakeRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	f.calls = append(f.calls, args)
	switch args[0] {
	case "ls":
		path := strings.SplitN(args[len(args)-1], ":", 2)[1]
		if !f.existingPaths[path] {
			return nil, fmt.Errorf("exit status 1")
		}
		return []byte(""), nil
	case "mkdir":
		path := strings.SplitN(args[len(args)-1], ":", 2)[1]
		f.existingPaths[path] = true
		return []byte(""), nil
	case "transfer":
		return []byte(`{"task_id": "task-77"}`), nil
	case "task":
		if args[1] == "wait" {
			return []byte(""), nil
		}
		return []byte(fmt.Sprintf(`{"task_id": "task-77", "status": %q}`, f.taskStatus)), nil
	case "whoami":
		return []byte(`{"name": "tester"}`), nil
	}
	return nil, fmt.Errorf("unexpected command %v", args)
}

func testRemoteArchive(run *fakeRunner) *RemoteArchive {
	return &RemoteArchive{run: run, endpoint: "ep-1234", archivePath: "/archive/lab"}
}

func (f *fakeRunner) commandNames() []string {
	var out []string
	for _, c := range f.calls {
		out = append(out, c[0])
	}
	return out
}

func TestRemoteArchiveUpload(t *testing.T) {
	run := &fakeRunner{existingPaths: map[string]bool{}, taskStatus: "SUCCEEDED"}
	r := testRemoteArchive(run)

	archivePath, err := r.Upload(context.Background(), "/tmp/coldvault.x1.tar.gz", false, nil)
	require.NoError(t, err)
	assert.Equal(t, "/archive/lab", archivePath)

	// Bundle existence check, destination check, mkdir, submit, wait, show.
	assert.Equal(t, []string{"ls", "ls", "mkdir", "transfer", "task", "task"}, run.commandNames())
	assert.True(t, run.existingPaths["/archive/lab"], "destination directory created when absent")
}

func TestRemoteArchiveUploadExistingDestination(t *testing.T) {
	run := &fakeRunner{
		existingPaths: map[string]bool{"/archive/lab": true},
		taskStatus:    "SUCCEEDED",
	}
	r := testRemoteArchive(run)

	_, err := r.Upload(context.Background(), "/tmp/coldvault.x1.tar.gz", false, nil)
	require.NoError(t, err)
	assert.NotContains(t, run.commandNames(), "mkdir")
}

func TestRemoteArchiveUploadRefusesOverwrite(t *testing.T) {
	run := &fakeRunner{
		existingPaths: map[string]bool{
			"/archive/lab":                     true,
			"/archive/lab/coldvault.x1.tar.gz": true,
		},
	}
	r := testRemoteArchive(run)

	_, err := r.Upload(context.Background(), "/tmp/coldvault.x1.tar.gz", false, nil)
	assert.ErrorIs(t, err, ErrObjectExists)
	assert.NotContains(t, run.commandNames(), "transfer")
}

func TestRemoteArchiveUploadTaskFailure(t *testing.T) {
	run := &fakeRunner{existingPaths: map[string]bool{"/archive/lab": true}, taskStatus: "FAILED"}
	r := testRemoteArchive(run)

	_, err := r.Upload(context.Background(), "/tmp/coldvault.x1.tar.gz", false, nil)
	assert.ErrorIs(t, err, ErrTransferFailed)
}

func TestRemoteArchiveRestoreUnsupported(t *testing.T) {
	r := testRemoteArchive(&fakeRunner{})
	ctx := context.Background()

	_, err := r.TierOf(ctx, "coldvault.x1.tar.gz")
	assert.ErrorIs(t, err, ErrRestoreUnsupported)

	err = r.Download(ctx, "coldvault.x1.tar.gz", "/tmp/out")
	assert.ErrorIs(t, err, ErrRestoreUnsupported)
	// The operator-facing message names the remote locator to request
	// manually.
	assert.Contains(t, err.Error(), "ep-1234:/archive/lab/coldvault.x1.tar.gz")

	_, err = r.RestoreStatus(ctx, "coldvault.x1.tar.gz")
	assert.ErrorIs(t, err, ErrRestoreUnsupported)

	err = r.RequestRestore(ctx, "coldvault.x1.tar.gz")
	assert.ErrorIs(t, err, ErrRestoreUnsupported)
}
