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
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Manager handles GCP client creation and caching using Application Default Credentials.
type Manager struct {
	sync.Mutex
	storageClients map[storageTarget]*StorageClient
	tracer         trace.Tracer
}

// NewManager creates a new GCP client manager. No client is created until
// GetStorage is called.
func NewManager() *Manager {
	return &Manager{
		storageClients: make(map[storageTarget]*StorageClient),
		tracer:         otel.Tracer("github.com/cardinalhq/songlake/internal/gcpclient"),
	}
}
