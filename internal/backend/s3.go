package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"coldvault/internal/config"
	"coldvault/internal/manifest"
)

// Multipart transfer settings. Objects above the part size are split
// and uploaded with bounded concurrency inside the SDK.
const (
	uploadPartSize    = 25 * 1024 * 1024
	uploadConcurrency = 10
)

// s3API is the subset of *s3.Client the backend calls directly.
// *s3.Client implements it; tests substitute a fake.
type s3API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	RestoreObject(ctx context.Context, in *s3.RestoreObjectInput, opts ...func(*s3.Options)) (*s3.RestoreObjectOutput, error)
}

type uploadAPI interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type downloadAPI interface {
	Download(ctx context.Context, w io.WriterAt, in *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error)
}

// ColdStorage moves bundles to and from an S3 bucket with named
// storage tiers. Tier and restore status are read from object
// metadata on every query; nothing is tracked locally.
type ColdStorage struct {
	api        s3API
	uploader   uploadAPI
	downloader downloadAPI

	bucket       string
	storageClass string
	restoreDays  int
	restoreTier  string
}

// NewColdStorage builds an S3-backed ColdStorage from the ambient AWS
// credential chain and the explicit bucket configuration.
func NewColdStorage(ctx context.Context, s3cfg config.S3, restore config.Restore) (*ColdStorage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(s3cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", ErrBackendUnavailable, err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &ColdStorage{
		api: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = uploadPartSize
			u.Concurrency = uploadConcurrency
		}),
		downloader:   manager.NewDownloader(client),
		bucket:       s3cfg.Bucket,
		storageClass: s3cfg.StorageClass,
		restoreDays:  restore.Days,
		restoreTier:  restore.Tier,
	}, nil
}

func (c *ColdStorage) Kind() string { return manifest.LocationS3 }

// Upload streams the bundle into the bucket under its base name with
// the configured storage class. Refuses to replace an existing object
// unless overwrite is set. Returns the bucket name as the archive
// path recorded in the manifest.
func (c *ColdStorage) Upload(ctx context.Context, localPath string, overwrite bool, progress ProgressFunc) (string, error) {
	if _, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)}); err != nil {
		return "", fmt.Errorf("%w: bucket %s: %v", ErrBackendUnavailable, c.bucket, err)
	}
	key := filepath.Base(localPath)
	exists, err := c.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if exists && !overwrite {
		return "", fmt.Errorf("%w: s3://%s/%s", ErrObjectExists, c.bucket, key)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()

	_, err = c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(c.bucket),
		Key:          aws.String(key),
		Body:         newProgressReader(f, progress),
		StorageClass: s3types.StorageClass(c.storageClass),
	})
	if err != nil {
		return "", fmt.Errorf("%w: upload s3://%s/%s: %v", ErrTransferFailed, c.bucket, key, err)
	}
	return c.bucket, nil
}

func (c *ColdStorage) Exists(ctx context.Context, name string) (bool, error) {
	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: head s3://%s/%s: %v", ErrBackendUnavailable, c.bucket, name, err)
	}
	return true, nil
}

func (c *ColdStorage) Download(ctx context.Context, name, localPath string) error {
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = c.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("%w: download s3://%s/%s: %v", ErrTransferFailed, c.bucket, name, err)
	}
	return nil
}

// TierOf reads the object's storage class. S3 omits the header for
// STANDARD objects, so an empty class maps to TierStandard.
func (c *ColdStorage) TierOf(ctx context.Context, name string) (StorageTier, error) {
	out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("%w: head s3://%s/%s: %v", ErrBackendUnavailable, c.bucket, name, err)
	}
	if out.StorageClass == "" {
		return TierStandard, nil
	}
	return StorageTier(out.StorageClass), nil
}

// RestoreStatus parses the Restore metadata header. The header is
// absent until a restore has been requested; while staging it carries
// ongoing-request="true", and ongoing-request="false" plus an expiry
// once the copy is ready.
func (c *ColdStorage) RestoreStatus(ctx context.Context, name string) (RestoreState, error) {
	out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return RestoreNone, fmt.Errorf("%w: head s3://%s/%s: %v", ErrBackendUnavailable, c.bucket, name, err)
	}
	if out.Restore == nil {
		return RestoreNone, nil
	}
	if strings.Contains(*out.Restore, `ongoing-request="false"`) {
		return RestoreComplete, nil
	}
	return RestoreInProgress, nil
}

// RequestRestore asks S3 to stage an archival object for retrieval.
func (c *ColdStorage) RequestRestore(ctx context.Context, name string) error {
	_, err := c.api.RestoreObject(ctx, &s3.RestoreObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(name),
		RestoreRequest: &s3types.RestoreRequest{
			Days: aws.Int32(int32(c.restoreDays)),
			GlacierJobParameters: &s3types.GlacierJobParameters{
				Tier: s3types.Tier(c.restoreTier),
			},
		},
	})
	if err != nil {
		// RestoreAlreadyInProgress means a previous request is still
		// staging; the poll loop handles that case.
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "RestoreAlreadyInProgress" {
			return nil
		}
		return fmt.Errorf("%w: restore s3://%s/%s: %v", ErrBackendUnavailable, c.bucket, name, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "404"
	}
	return false
}
