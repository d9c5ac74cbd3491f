// Package blob provides the storage collaborator: named-path uploads with
// overwrite semantics plus the existence check behind the incremental sink.
package blob

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureStore stores artifacts in an Azure Blob / Data Lake container.
type AzureStore struct {
	client    *azblob.Client
	container string
	logger    *slog.Logger
}

// NewAzureStore creates a store from a storage-account connection string
// and container name.
func NewAzureStore(connectionString, container string, logger *slog.Logger) (*AzureStore, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}
	return &AzureStore{
		client:    client,
		container: container,
		logger:    logger,
	}, nil
}

// Exists reports whether a blob is already present at path.
func (s *AzureStore) Exists(ctx context.Context, path string) (bool, error) {
	blobClient := s.client.ServiceClient().NewContainerClient(s.container).NewBlobClient(path)
	_, err := blobClient.GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("blob properties %s: %w", path, err)
	}
	return true, nil
}

// Upload writes data to path, overwriting any existing blob.
func (s *AzureStore) Upload(ctx context.Context, path string, data []byte) error {
	if _, err := s.client.UploadBuffer(ctx, s.container, path, data, nil); err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	s.logger.Info("uploaded artifact", "path", path, "bytes", len(data))
	return nil
}
