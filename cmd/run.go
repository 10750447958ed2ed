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

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/songlake/config"
	"github.com/cardinalhq/songlake/internal/cloudstorage"
	"github.com/cardinalhq/songlake/internal/duckdbx"
	"github.com/cardinalhq/songlake/internal/etl"
	"github.com/cardinalhq/songlake/internal/filereader"
	"github.com/cardinalhq/songlake/internal/logctx"
	"github.com/cardinalhq/songlake/internal/parquetwriter"
	"github.com/cardinalhq/songlake/internal/starschema"
)

func init() {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build and write the star schema tables",
		RunE: func(c *cobra.Command, _ []string) error {
			configFile, err := c.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("failed to get config flag: %w", err)
			}

			servicename := "songlake"
			doneCtx, doneFx, err := setupTelemetry(servicename)
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}
			defer func() {
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
			}()

			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			ctx := logctx.WithLogger(doneCtx, slog.Default())
			_, err = runETL(ctx, cfg)
			return err
		},
	}

	cmd.Flags().String("config", "", "INI file holding the [AWS] credentials (default ./"+config.DefaultConfigFile+")")
	rootCmd.AddCommand(cmd)
}

// runETL wires storage, reader, writer and engine from cfg and runs one job.
func runETL(ctx context.Context, cfg *config.Config) ([]etl.TableResult, error) {
	zone, err := starschema.LoadTimeZone(cfg.ETL.TimeZone)
	if err != nil {
		return nil, err
	}

	scratch, err := os.MkdirTemp(cfg.ETL.GetTmpDir(), "songlake-run-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logctx.FromContext(ctx).Warn("Failed to remove scratch dir", slog.String("path", scratch), slog.Any("error", err))
		}
	}()

	provider := cloudstorage.NewCloudManagers(cloudstorage.Options{
		AWSAccessKeyID:     cfg.AWS.AccessKeyID,
		AWSSecretAccessKey: cfg.AWS.SecretAccessKey,
		AWSRegion:          cfg.AWS.Region,
		AWSEndpoint:        cfg.AWS.Endpoint,
		AWSUsePathStyle:    cfg.AWS.UsePathStyle,
		GCSEndpoint:        cfg.GCS.Endpoint,
		AzureEndpoint:      cfg.Azure.Endpoint,
	})

	reader := filereader.NewReader(provider,
		filereader.WithTempDir(scratch),
		filereader.WithConcurrency(cfg.ETL.ReadConcurrency),
	)
	writer, err := parquetwriter.NewPartitionedWriter(provider, parquetwriter.WriterConfig{
		TmpDir:         scratch,
		RecordsPerFile: cfg.ETL.RecordsPerFile,
		Concurrency:    cfg.ETL.WriteConcurrency,
	})
	if err != nil {
		return nil, err
	}

	loader, closeLoader, err := etl.NewLoader(cfg.ETL.Engine, duckdbx.Settings{
		MemoryLimitMB: cfg.DuckDB.MemoryLimit,
		TempDirectory: scratch,
		PoolSize:      cfg.DuckDB.PoolSize,
		Threads:       cfg.DuckDB.Threads,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := closeLoader(); err != nil {
			logctx.FromContext(ctx).Warn("Failed to close engine", slog.Any("error", err))
		}
	}()

	job, err := etl.NewJob(etl.Config{
		Input:    cfg.ETL.Input,
		Output:   cfg.ETL.Output,
		TimeZone: zone,
	}, reader, writer, etl.WithLoader(loader))
	if err != nil {
		return nil, err
	}
	return job.Run(ctx)
}
