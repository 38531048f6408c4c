package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hszk-dev/vidshelf/internal/domain/repository"
)

const (
	videoPrefix     = "videos"
	thumbnailPrefix = "thumbnails"
)

// objectReader abstracts minio.Object for testability.
// *minio.Object satisfies this interface.
type objectReader interface {
	io.ReadSeekCloser
	Stat() (minio.ObjectInfo, error)
}

// minioClient defines the interface for MinIO operations.
// This abstraction allows for easier unit testing with mocks.
type minioClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (objectReader, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// minioClientAdapter wraps *minio.Client to implement minioClient interface.
// This is necessary because *minio.Client.GetObject returns *minio.Object,
// but our interface returns objectReader for testability.
type minioClientAdapter struct {
	client *minio.Client
}

func (a *minioClientAdapter) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return a.client.BucketExists(ctx, bucketName)
}

func (a *minioClientAdapter) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return a.client.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}

func (a *minioClientAdapter) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (objectReader, error) {
	return a.client.GetObject(ctx, bucketName, objectName, opts)
}

func (a *minioClientAdapter) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return a.client.RemoveObject(ctx, bucketName, objectName, opts)
}

func (a *minioClientAdapter) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return a.client.StatObject(ctx, bucketName, objectName, opts)
}

// MinIOConfig holds configuration for the MinIO blob store.
type MinIOConfig struct {
	Endpoint        string
	AccessKey       string
	SecretKey       string
	Bucket          string
	UseSSL          bool
	PlaceholderPath string
}

// MinIO implements repository.BlobStore on a MinIO/S3 bucket. Videos live
// under videos/ and thumbnails under thumbnails/. The placeholder image is a
// local file.
//
// Name assignment is a stat-then-put sequence: two concurrent uploads of the
// same name can both find it free, and the later put wins.
type MinIO struct {
	client      minioClient
	bucket      string
	placeholder string
}

// Compile-time verification that MinIO implements repository.BlobStore.
var _ repository.BlobStore = (*MinIO)(nil)

// NewMinIO creates a new MinIO blob store.
// It verifies the bucket exists during initialization to fail fast on misconfiguration.
func NewMinIO(ctx context.Context, cfg MinIOConfig) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	if err := EnsurePlaceholder(cfg.PlaceholderPath); err != nil {
		return nil, fmt.Errorf("failed to prepare placeholder: %w", err)
	}

	return newMinIOWithClient(ctx, &minioClientAdapter{client: client}, cfg.Bucket, cfg.PlaceholderPath)
}

// newMinIOWithClient creates a MinIO store with a given minioClient implementation.
// This is used for dependency injection in tests.
func newMinIOWithClient(ctx context.Context, client minioClient, bucket, placeholder string) (*MinIO, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", repository.ErrBucketNotFound, bucket)
	}

	return &MinIO{
		client:      client,
		bucket:      bucket,
		placeholder: placeholder,
	}, nil
}

// SaveVideo uploads r under a free name derived from suggestedName.
func (m *MinIO) SaveVideo(ctx context.Context, r io.Reader, suggestedName string) (string, error) {
	base := SanitizeFilename(suggestedName)

	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := candidateName(base, attempt)

		taken, err := m.exists(ctx, videoKey(name))
		if err != nil {
			return "", err
		}
		if !taken {
			taken, err = m.exists(ctx, thumbnailKey(ThumbnailNameFor(name)))
			if err != nil {
				return "", err
			}
		}
		if taken {
			continue
		}

		_, err = m.client.PutObject(ctx, m.bucket, videoKey(name), r, -1, minio.PutObjectOptions{
			ContentType: contentTypeFor(name),
		})
		if err != nil {
			return "", fmt.Errorf("failed to upload video: %w", err)
		}
		return name, nil
	}

	return "", fmt.Errorf("%w: %s", repository.ErrNameExhausted, base)
}

// SaveThumbnail uploads the thumbnail image of videoName.
func (m *MinIO) SaveThumbnail(ctx context.Context, videoName string, r io.Reader) (string, error) {
	if !validBlobName(videoName) {
		return "", fmt.Errorf("invalid video name %q", videoName)
	}
	name := ThumbnailNameFor(videoName)

	_, err := m.client.PutObject(ctx, m.bucket, thumbnailKey(name), r, -1, minio.PutObjectOptions{
		ContentType: contentTypeFor(name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload thumbnail: %w", err)
	}
	return name, nil
}

// OpenVideo retrieves a stored video.
// Caller is responsible for closing the returned Object.
func (m *MinIO) OpenVideo(ctx context.Context, name string) (*repository.Object, error) {
	if !validBlobName(name) {
		return nil, repository.ErrObjectNotFound
	}
	return m.open(ctx, videoKey(name), name)
}

// ResolveThumbnail retrieves the named thumbnail or falls back to the placeholder.
func (m *MinIO) ResolveThumbnail(ctx context.Context, name string) (*repository.Object, error) {
	if !validBlobName(name) {
		return m.OpenPlaceholder(ctx)
	}

	obj, err := m.open(ctx, thumbnailKey(name), name)
	if errors.Is(err, repository.ErrObjectNotFound) {
		return m.OpenPlaceholder(ctx)
	}
	return obj, err
}

// OpenPlaceholder opens the local placeholder image.
func (m *MinIO) OpenPlaceholder(ctx context.Context) (*repository.Object, error) {
	return openLocalFile(m.placeholder, filepath.Base(m.placeholder))
}

// DeleteVideo removes a stored video.
func (m *MinIO) DeleteVideo(ctx context.Context, name string) error {
	if !validBlobName(name) {
		return nil
	}
	return m.remove(ctx, videoKey(name))
}

// DeleteThumbnail removes a stored thumbnail.
func (m *MinIO) DeleteThumbnail(ctx context.Context, name string) error {
	if !validBlobName(name) {
		return nil
	}
	return m.remove(ctx, thumbnailKey(name))
}

// Ping verifies the MinIO connection is alive by checking bucket access.
func (m *MinIO) Ping(ctx context.Context) error {
	_, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to ping minio: %w", err)
	}
	return nil
}

func (m *MinIO) open(ctx context.Context, key, name string) (*repository.Object, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	// Verify the object exists by checking its stat.
	// GetObject returns a lazy reader that doesn't fail until read.
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close() // Best effort close on error path
		if isNoSuchKey(err) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = contentTypeFor(name)
	}

	return &repository.Object{
		ReadSeekCloser: obj,
		Name:           name,
		Size:           info.Size,
		ContentType:    contentType,
		LastModified:   info.LastModified,
	}, nil
}

// RemoveObject succeeds for missing keys, so absence needs no special case.
func (m *MinIO) remove(ctx context.Context, key string) error {
	err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (m *MinIO) exists(ctx context.Context, key string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func videoKey(name string) string {
	return path.Join(videoPrefix, name)
}

func thumbnailKey(name string) string {
	return path.Join(thumbnailPrefix, name)
}
