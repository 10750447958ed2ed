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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/songlake/internal/cloudstorage"
	"github.com/cardinalhq/songlake/internal/filereader"
	"github.com/cardinalhq/songlake/pipeline"
)

func init() {
	schemaCmd := &cobra.Command{
		Use:   "parquet-schema",
		Short: "Print out the schema of a Parquet file",
		RunE: func(c *cobra.Command, _ []string) error {
			filename, err := c.Flags().GetString("file")
			if err != nil {
				return fmt.Errorf("failed to get file flag: %w", err)
			}
			return runParquetSchema(c.OutOrStdout(), filename)
		},
	}
	schemaCmd.Flags().String("file", "", "Parquet file to read")
	if err := schemaCmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Errorf("failed to mark file flag as required: %w", err))
	}

	catCmd := &cobra.Command{
		Use:   "parquet-cat",
		Short: "Output a written table as JSON lines",
		Long:  `Reads every part file of a table, restores the partition columns from the directory names and prints each row as a JSON line.`,
		RunE: func(c *cobra.Command, _ []string) error {
			path, err := c.Flags().GetString("path")
			if err != nil {
				return fmt.Errorf("failed to get path flag: %w", err)
			}
			limit, err := c.Flags().GetInt("limit")
			if err != nil {
				return fmt.Errorf("failed to get limit flag: %w", err)
			}
			provider := cloudstorage.NewCloudManagers(cloudstorage.Options{})
			return runParquetCat(c.Context(), c.OutOrStdout(), provider, path, limit)
		},
	}
	catCmd.Flags().String("path", "", "Table location, e.g. s3a://bucket/songs/songs.parquet")
	catCmd.Flags().Int("limit", 0, "Maximum number of rows to output (0 for unlimited)")
	if err := catCmd.MarkFlagRequired("path"); err != nil {
		panic(fmt.Errorf("failed to mark path flag as required: %w", err))
	}

	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(catCmd)
}

func runParquetSchema(w io.Writer, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer func() { _ = file.Close() }()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", filename, err)
	}

	pf, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		return fmt.Errorf("failed to open parquet file: %w", err)
	}

	_, err = fmt.Fprintln(w, pf.Schema().String())
	return err
}

func runParquetCat(ctx context.Context, w io.Writer, provider cloudstorage.ClientProvider, path string, limit int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	tmp, err := os.MkdirTemp("", "parquet-cat-")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	reader := filereader.NewReader(provider, filereader.WithTempDir(tmp))
	table, err := reader.ReadParquetDataset(ctx, path)
	if err != nil {
		return err
	}

	names := table.Schema().Names()
	out := bufio.NewWriter(w)
	for i, row := range table.Rows() {
		if limit > 0 && i >= limit {
			break
		}
		line, err := pipeline.MarshalOrdered(names, pipeline.ToStringMap(row))
		if err != nil {
			return fmt.Errorf("failed to encode row %d: %w", i, err)
		}
		if _, err := out.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return out.Flush()
}
