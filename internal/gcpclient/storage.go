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

package gcpclient

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
)

// StorageClient pairs a Cloud Storage client with the manager's tracer.
type StorageClient struct {
	Client *storage.Client
	Tracer trace.Tracer
}

// storageTarget keys the client cache; the zero value is the public API
// with Application Default Credentials.
type storageTarget struct {
	endpoint string
}

type StorageOption func(*storageTarget)

// WithEndpoint points the client at an alternate JSON API endpoint such as
// fake-gcs-server. Requests to a custom endpoint are unauthenticated.
func WithEndpoint(endpoint string) StorageOption {
	return func(t *storageTarget) { t.endpoint = endpoint }
}

func (t storageTarget) clientOptions() []option.ClientOption {
	if t.endpoint == "" {
		return nil
	}
	return []option.ClientOption{option.WithEndpoint(t.endpoint), option.WithoutAuthentication()}
}

// GetStorage returns the client for the given options, creating it on
// first use.
func (m *Manager) GetStorage(ctx context.Context, opts ...StorageOption) (*StorageClient, error) {
	var target storageTarget
	for _, o := range opts {
		o(&target)
	}

	m.Lock()
	defer m.Unlock()
	if c := m.storageClients[target]; c != nil {
		return c, nil
	}
	sc, err := storage.NewClient(ctx, target.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("cloud storage client: %w", err)
	}
	c := &StorageClient{Client: sc, Tracer: m.tracer}
	m.storageClients[target] = c
	return c, nil
}
