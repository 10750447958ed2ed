// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cloudstorage

import (
	"context"
	"fmt"
	"sync"

	"github.com/cardinalhq/songlake/internal/awsclient"
	"github.com/cardinalhq/songlake/internal/azureclient"
	"github.com/cardinalhq/songlake/internal/gcpclient"
)

// Options configures the cloud managers.
type Options struct {
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string
	AWSEndpoint        string
	AWSUsePathStyle    bool

	GCSEndpoint   string
	AzureEndpoint string
}

// CloudManagers holds all cloud provider managers for unified access. It
// implements ClientProvider; each manager is created on first use so a run
// that only touches S3 never loads Azure or GCP credentials.
type CloudManagers struct {
	opts Options

	mu    sync.Mutex
	aws   *awsclient.Manager
	gcp   *gcpclient.Manager
	azure *azureclient.Manager
	files *FileClientProvider
}

var _ ClientProvider = (*CloudManagers)(nil)

// NewCloudManagers creates the provider for all supported backends.
func NewCloudManagers(opts Options) *CloudManagers {
	return &CloudManagers{
		opts:  opts,
		files: NewFileClientProvider(""),
	}
}

// NewClient creates a storage Client for the location's provider.
func (m *CloudManagers) NewClient(ctx context.Context, loc Location) (Client, error) {
	switch loc.Provider {
	case ProviderS3:
		mgr, err := m.awsManager(ctx)
		if err != nil {
			return nil, err
		}
		var opts []awsclient.S3Option
		if m.opts.AWSEndpoint != "" {
			opts = append(opts, awsclient.WithEndpoint(m.opts.AWSEndpoint))
		}
		if m.opts.AWSUsePathStyle {
			opts = append(opts, awsclient.WithPathStyle())
		}
		s3c, err := mgr.GetS3(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		return &s3Client{awsS3Client: s3c}, nil

	case ProviderGCS:
		m.mu.Lock()
		if m.gcp == nil {
			m.gcp = gcpclient.NewManager()
		}
		mgr := m.gcp
		m.mu.Unlock()
		var opts []gcpclient.StorageOption
		if m.opts.GCSEndpoint != "" {
			opts = append(opts, gcpclient.WithEndpoint(m.opts.GCSEndpoint))
		}
		sc, err := mgr.GetStorage(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCS client: %w", err)
		}
		return &gcsClient{storageClient: sc}, nil

	case ProviderAzure:
		mgr, err := m.azureManager()
		if err != nil {
			return nil, err
		}
		opts := []azureclient.BlobOption{azureclient.WithBlobStorageAccount(loc.Account)}
		if m.opts.AzureEndpoint != "" {
			opts = append(opts, azureclient.WithBlobEndpoint(m.opts.AzureEndpoint))
		}
		bc, err := mgr.GetBlob(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure blob client: %w", err)
		}
		return &azureClient{blobClient: bc}, nil

	case ProviderFile:
		return m.files.NewClient(ctx, loc)

	default:
		return nil, fmt.Errorf("unsupported storage provider: %q", loc.Provider)
	}
}

func (m *CloudManagers) awsManager(ctx context.Context) (*awsclient.Manager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.aws != nil {
		return m.aws, nil
	}
	mgr, err := awsclient.NewManager(ctx,
		awsclient.WithStaticCredentials(m.opts.AWSAccessKeyID, m.opts.AWSSecretAccessKey),
		awsclient.WithDefaultRegion(m.opts.AWSRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS manager: %w", err)
	}
	m.aws = mgr
	return mgr, nil
}

func (m *CloudManagers) azureManager() (*azureclient.Manager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.azure != nil {
		return m.azure, nil
	}
	mgr, err := azureclient.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure manager: %w", err)
	}
	m.azure = mgr
	return mgr, nil
}
