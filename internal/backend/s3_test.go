package backend

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects      map[string]*s3.HeadObjectOutput
	restoreCalls []string
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if out, ok := f.objects[aws.ToString(in.Key)]; ok {
		return out, nil
	}
	return nil, &s3types.NotFound{}
}

func (f *fakeS3) RestoreObject(ctx context.Context, in *s3.RestoreObjectInput, opts ...func(*s3.Options)) (*s3.RestoreObjectOutput, error) {
	f.restoreCalls = append(f.restoreCalls, aws.ToString(in.Key))
	return &s3.RestoreObjectOutput{}, nil
}

type fakeUploader struct {
	uploaded  map[string][]byte
	lastClass s3types.StorageClass
}

func (f *fakeUploader) Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.uploaded == nil {
		f.uploaded = map[string][]byte{}
	}
	f.uploaded[aws.ToString(in.Key)] = data
	f.lastClass = in.StorageClass
	return &manager.UploadOutput{}, nil
}

type fakeDownloader struct {
	content map[string][]byte
}

func (f *fakeDownloader) Download(ctx context.Context, w io.WriterAt, in *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error) {
	data := f.content[aws.ToString(in.Key)]
	n, err := w.WriteAt(data, 0)
	return int64(n), err
}

func testColdStorage(api *fakeS3, up *fakeUploader, down *fakeDownloader) *ColdStorage {
	return &ColdStorage{
		api:          api,
		uploader:     up,
		downloader:   down,
		bucket:       "lab-archive-bucket",
		storageClass: "DEEP_ARCHIVE",
		restoreDays:  7,
		restoreTier:  "Bulk",
	}
}

func TestColdStorageUpload(t *testing.T) {
	dir := t.TempDir()
	bundle := filepath.Join(dir, "coldvault.x1.tar.gz")
	require.NoError(t, os.WriteFile(bundle, bytes.Repeat([]byte("z"), 1024), 0o644))

	up := &fakeUploader{}
	c := testColdStorage(&fakeS3{}, up, nil)

	var reported int64
	archivePath, err := c.Upload(context.Background(), bundle, false, func(n int64) { reported = n })
	require.NoError(t, err)
	assert.Equal(t, "lab-archive-bucket", archivePath)
	assert.Len(t, up.uploaded["coldvault.x1.tar.gz"], 1024)
	assert.Equal(t, s3types.StorageClass("DEEP_ARCHIVE"), up.lastClass)
	assert.EqualValues(t, 1024, reported)
}

func TestColdStorageUploadRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	bundle := filepath.Join(dir, "coldvault.x1.tar.gz")
	require.NoError(t, os.WriteFile(bundle, []byte("data"), 0o644))

	api := &fakeS3{objects: map[string]*s3.HeadObjectOutput{
		"coldvault.x1.tar.gz": {},
	}}
	up := &fakeUploader{}
	c := testColdStorage(api, up, nil)

	_, err := c.Upload(context.Background(), bundle, false, nil)
	assert.ErrorIs(t, err, ErrObjectExists)
	assert.Empty(t, up.uploaded)

	// With overwrite the same upload goes through.
	_, err = c.Upload(context.Background(), bundle, true, nil)
	require.NoError(t, err)
	assert.Len(t, up.uploaded, 1)
}

func TestColdStorageExists(t *testing.T) {
	api := &fakeS3{objects: map[string]*s3.HeadObjectOutput{"present": {}}}
	c := testColdStorage(api, nil, nil)

	ok, err := c.Exists(context.Background(), "present")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Exists(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestColdStorageTierOf(t *testing.T) {
	api := &fakeS3{objects: map[string]*s3.HeadObjectOutput{
		"standard": {},
		"deep":     {StorageClass: s3types.StorageClassDeepArchive},
	}}
	c := testColdStorage(api, nil, nil)

	tier, err := c.TierOf(context.Background(), "standard")
	require.NoError(t, err)
	assert.Equal(t, TierStandard, tier)
	assert.True(t, tier.InstantAccess())

	tier, err = c.TierOf(context.Background(), "deep")
	require.NoError(t, err)
	assert.Equal(t, TierDeepArchive, tier)
	assert.True(t, tier.Archival())
}

func TestColdStorageRestoreStatus(t *testing.T) {
	api := &fakeS3{objects: map[string]*s3.HeadObjectOutput{
		"untouched": {},
		"staging":   {Restore: aws.String(`ongoing-request="true"`)},
		"ready":     {Restore: aws.String(`ongoing-request="false", expiry-date="Fri, 20 Feb 2026 00:00:00 GMT"`)},
	}}
	c := testColdStorage(api, nil, nil)

	status, err := c.RestoreStatus(context.Background(), "untouched")
	require.NoError(t, err)
	assert.Equal(t, RestoreNone, status)

	status, err = c.RestoreStatus(context.Background(), "staging")
	require.NoError(t, err)
	assert.Equal(t, RestoreInProgress, status)

	status, err = c.RestoreStatus(context.Background(), "ready")
	require.NoError(t, err)
	assert.Equal(t, RestoreComplete, status)
}

func TestColdStorageRequestRestore(t *testing.T) {
	api := &fakeS3{}
	c := testColdStorage(api, nil, nil)

	require.NoError(t, c.RequestRestore(context.Background(), "coldvault.x1.tar.gz"))
	assert.Equal(t, []string{"coldvault.x1.tar.gz"}, api.restoreCalls)
}

func TestColdStorageDownload(t *testing.T) {
	down := &fakeDownloader{content: map[string][]byte{"coldvault.x1.tar.gz": []byte("payload")}}
	c := testColdStorage(&fakeS3{}, nil, down)

	dest := filepath.Join(t.TempDir(), "coldvault.x1.tar.gz")
	require.NoError(t, c.Download(context.Background(), "coldvault.x1.tar.gz", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestTierClassification(t *testing.T) {
	assert.True(t, TierStandard.InstantAccess())
	assert.True(t, TierStandardIA.InstantAccess())
	assert.True(t, TierGlacierIR.InstantAccess())
	assert.True(t, TierGlacier.Archival())
	assert.True(t, TierDeepArchive.Archival())
	assert.False(t, StorageTier("REDUCED_REDUNDANCY").InstantAccess())
	assert.False(t, StorageTier("REDUCED_REDUNDANCY").Archival())
}
