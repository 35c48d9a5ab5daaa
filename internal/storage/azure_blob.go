package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"go.uber.org/zap"
)

// AzureBlobStorage implements Storage interface for Azure Blob Storage
type AzureBlobStorage struct {
	client        *azblob.Client
	container     *container.Client
	containerName string
	logger        *zap.Logger
}

// NewAzureBlobStorage creates a new Azure Blob Storage instance
func NewAzureBlobStorage(connectionString, containerName string, logger *zap.Logger) (*AzureBlobStorage, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	// Ensure container exists
	_, err = client.CreateContainer(context.Background(), containerName, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil, unavailable("create container", err)
	}

	logger.Info("Azure Blob Storage initialized",
		zap.String("container", containerName),
	)

	return &AzureBlobStorage{
		client:        client,
		container:     client.ServiceClient().NewContainerClient(containerName),
		containerName: containerName,
		logger:        logger,
	}, nil
}

// Put uploads data under its content key. Re-uploading identical content
// overwrites the blob with the same bytes and refreshes its timestamp.
func (s *AzureBlobStorage) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	key := ContentKey(data)

	uploadOptions := &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: &contentType,
		},
	}
	if _, err := s.client.UploadBuffer(ctx, s.containerName, key, data, uploadOptions); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", unavailable("upload", err)
	}

	s.logger.Info("Blob uploaded to Azure Blob Storage",
		zap.String("key", key),
		zap.String("container", s.containerName),
		zap.String("contentType", contentType),
		zap.Int("size", len(data)),
	)
	return key, nil
}

// Get downloads a blob
func (s *AzureBlobStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.DownloadStream(ctx, s.containerName, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrBlobNotFound
		}
		return nil, unavailable("download", err)
	}
	return resp.Body, nil
}

// Exists reports whether the blob is stored
func (s *AzureBlobStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.container.NewBlobClient(key).GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return false, nil
	}
	return false, unavailable("properties", err)
}

// Stat returns size and last-modified time of a blob
func (s *AzureBlobStorage) Stat(ctx context.Context, key string) (BlobInfo, error) {
	props, err := s.container.NewBlobClient(key).GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return BlobInfo{}, ErrBlobNotFound
		}
		return BlobInfo{}, unavailable("properties", err)
	}
	info := BlobInfo{Key: key}
	if props.ContentLength != nil {
		info.Size = *props.ContentLength
	}
	if props.LastModified != nil {
		info.Modified = props.LastModified.UTC()
	}
	return info, nil
}

// URL returns a read-only SAS link. Requires a shared key connection string.
func (s *AzureBlobStorage) URL(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	expires := time.Now().Add(ttl).UTC()
	url, err := s.container.NewBlobClient(key).GetSASURL(sas.BlobPermissions{Read: true}, expires, nil)
	if err != nil {
		return "", time.Time{}, unavailable("sas", err)
	}
	return url, expires, nil
}

// Delete deletes a blob. Missing blobs are not an error.
func (s *AzureBlobStorage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteBlob(ctx, s.containerName, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			s.logger.Debug("Blob already deleted or not found",
				zap.String("key", key),
				zap.String("container", s.containerName),
			)
			return nil
		}
		return unavailable("delete", err)
	}

	s.logger.Info("Blob deleted from Azure Blob Storage",
		zap.String("key", key),
		zap.String("container", s.containerName),
	)
	return nil
}

// List pages through the container
func (s *AzureBlobStorage) List(ctx context.Context) ([]BlobInfo, error) {
	var blobs []BlobInfo
	pager := s.client.NewListBlobsFlatPager(s.containerName, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, unavailable("list", err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil || !ValidKey(*item.Name) {
				continue
			}
			info := BlobInfo{Key: *item.Name}
			if item.Properties != nil {
				if item.Properties.LastModified != nil {
					info.Modified = item.Properties.LastModified.UTC()
				}
				if item.Properties.ContentLength != nil {
					info.Size = *item.Properties.ContentLength
				}
			}
			blobs = append(blobs, info)
		}
	}
	return blobs, nil
}
