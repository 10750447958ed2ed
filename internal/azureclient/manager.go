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
	"fmt"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Manager struct {
	baseCred azcore.TokenCredential

	sync.Mutex
	blobClients map[blobTarget]*BlobClient
	tracer      trace.Tracer
}

// NewManager initializes Azure credential management using the default
// credential chain (environment, workload identity, managed identity, CLI).
func NewManager() (*Manager, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("loading Azure credentials: %w", err)
	}
	return newManagerWithCredential(cred), nil
}

func newManagerWithCredential(cred azcore.TokenCredential) *Manager {
	return &Manager{
		baseCred:    cred,
		blobClients: make(map[blobTarget]*BlobClient),
		tracer:      otel.Tracer("github.com/cardinalhq/songlake/internal/azureclient"),
	}
}
