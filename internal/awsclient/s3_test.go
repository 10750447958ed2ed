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

package awsclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_StaticCredentials(t *testing.T) {
	ctx := context.Background()
	mgr, err := NewManager(ctx,
		WithStaticCredentials("AKIDEXAMPLE", "secret"),
		WithDefaultRegion("us-west-2"),
	)
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", mgr.Region())

	creds, err := mgr.baseCfg.Credentials.Retrieve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "AKIDEXAMPLE", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
}

func TestManager_GetS3Caches(t *testing.T) {
	ctx := context.Background()
	mgr, err := NewManager(ctx, WithStaticCredentials("a", "b"), WithDefaultRegion("us-west-2"))
	require.NoError(t, err)

	c1, err := mgr.GetS3(ctx, WithEndpoint("http://localhost:9000"), WithPathStyle())
	require.NoError(t, err)
	c2, err := mgr.GetS3(ctx, WithEndpoint("http://localhost:9000"), WithPathStyle())
	require.NoError(t, err)
	c3, err := mgr.GetS3(ctx, WithRegion("eu-west-1"))
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	assert.NotSame(t, c1, c3)
	assert.Equal(t, "eu-west-1", c3.Client.Options().Region)
	assert.True(t, c1.Client.Options().UsePathStyle)
}
