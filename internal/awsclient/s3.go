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

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/trace"
)

// S3Client pairs an S3 API client with the manager's tracer.
type S3Client struct {
	Client *s3.Client
	Tracer trace.Tracer
}

// s3Target is everything that distinguishes one S3 client from another;
// it keys the manager's client cache.
type s3Target struct {
	region    string
	endpoint  string
	pathStyle bool
}

type S3Option func(*s3Target)

// WithRegion overrides the manager's default region.
func WithRegion(region string) S3Option {
	return func(t *s3Target) { t.region = region }
}

// WithEndpoint points the client at an S3-compatible store such as MinIO.
func WithEndpoint(url string) S3Option {
	return func(t *s3Target) { t.endpoint = url }
}

// WithPathStyle addresses buckets as http://host/bucket/key.
func WithPathStyle() S3Option {
	return func(t *s3Target) { t.pathStyle = true }
}

func (t s3Target) apply(o *s3.Options) {
	o.Region = t.region
	o.UsePathStyle = t.pathStyle
	if t.endpoint != "" {
		o.BaseEndpoint = aws.String(t.endpoint)
	}
}

// GetS3 returns the client for the given options, creating it on first use.
func (m *Manager) GetS3(_ context.Context, opts ...S3Option) (*S3Client, error) {
	target := s3Target{region: m.baseCfg.Region}
	for _, o := range opts {
		o(&target)
	}

	m.Lock()
	defer m.Unlock()
	if c := m.clients[target]; c != nil {
		return c, nil
	}
	c := &S3Client{
		Client: s3.NewFromConfig(m.baseCfg.Copy(), target.apply),
		Tracer: m.tracer,
	}
	m.clients[target] = c
	return c, nil
}
