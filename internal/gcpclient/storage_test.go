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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithEndpoint(t *testing.T) {
	var target storageTarget
	WithEndpoint("http://localhost:4443/storage/v1/")(&target)
	assert.Equal(t, "http://localhost:4443/storage/v1/", target.endpoint)
	assert.Len(t, target.clientOptions(), 2)
	assert.Empty(t, storageTarget{}.clientOptions())
}

func TestGetStorageCachesPerEndpoint(t *testing.T) {
	ctx := context.Background()
	m := NewManager()

	c1, err := m.GetStorage(ctx, WithEndpoint("http://localhost:4443/storage/v1/"))
	require.NoError(t, err)
	c2, err := m.GetStorage(ctx, WithEndpoint("http://localhost:4443/storage/v1/"))
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	assert.NotNil(t, c1.Tracer)
}
