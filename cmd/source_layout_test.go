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
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The license header must be separated from the package clause by exactly
// one blank line, otherwise gofmt rewrites the file.
func TestLicenseHeaderLayout(t *testing.T) {
	root, err := filepath.Abs("..")
	require.NoError(t, err)

	checked := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		lines := strings.Split(string(data), "\n")
		i := 0
		for i < len(lines) && strings.HasPrefix(lines[i], "//") {
			i++
		}
		if !assert.Greater(t, i, 0, "%s: missing license header", rel) {
			return nil
		}
		if assert.Less(t, i+1, len(lines), "%s: truncated", rel) {
			assert.Empty(t, lines[i], "%s: header not followed by a blank line", rel)
			assert.NotEmpty(t, strings.TrimSpace(lines[i+1]), "%s: more than one blank line after header", rel)
		}
		assert.False(t, strings.HasSuffix(string(data), "\n\n"), "%s: trailing blank line", rel)
		checked++
		return nil
	})
	require.NoError(t, err)
	assert.Positive(t, checked)
}
