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

package azureclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"go.opentelemetry.io/otel/trace"
)

// BlobClient pairs a blob service client with the manager's tracer.
type BlobClient struct {
	Client *azblob.Client
	Tracer trace.Tracer
}

// blobTarget identifies one blob service endpoint; it keys the client cache.
type blobTarget struct {
	account  string
	endpoint string
}

type BlobOption func(*blobTarget)

// WithBlobStorageAccount selects the storage account, the part of a
// wasbs:// host before ".blob.core.windows.net".
func WithBlobStorageAccount(storageAccount string) BlobOption {
	return func(t *blobTarget) { t.account = storageAccount }
}

// WithBlobEndpoint overrides the service URL derived from the storage
// account, for Azurite and sovereign clouds.
func WithBlobEndpoint(endpoint string) BlobOption {
	return func(t *blobTarget) { t.endpoint = endpoint }
}

var errNoStorageAccount = errors.New("azure storage account is required")

func (t blobTarget) serviceURL() string {
	if t.endpoint != "" {
		return strings.TrimSuffix(t.endpoint, "/") + "/"
	}
	return "https://" + t.account + ".blob.core.windows.net/"
}

// GetBlob returns the blob client for an account, creating it on first use.
func (m *Manager) GetBlob(_ context.Context, opts ...BlobOption) (*BlobClient, error) {
	var target blobTarget
	for _, o := range opts {
		o(&target)
	}
	if target.account == "" {
		return nil, errNoStorageAccount
	}

	m.Lock()
	defer m.Unlock()
	if c := m.blobClients[target]; c != nil {
		return c, nil
	}
	svc, err := azblob.NewClient(target.serviceURL(), m.baseCred, nil)
	if err != nil {
		return nil, fmt.Errorf("blob client for account %s: %w", target.account, err)
	}
	c := &BlobClient{Client: svc, Tracer: m.tracer}
	m.blobClients[target] = c
	return c, nil
}
