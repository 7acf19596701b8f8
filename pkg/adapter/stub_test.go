// SPDX-License-Identifier: MPL-2.0

package adapter

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteStub(t *testing.T) {
	tests := []struct {
		adapter Adapter
		want    []string
	}{
		{
			adapter: Passthrough{},
			want: []string{
				"isoload/passthrough/Passthrough/create.sym",
				"isoload/passthrough/Passthrough/run.sym",
				"isoload/passthrough/Settings.sym",
			},
		},
		{
			adapter: Lint{},
			want: []string{
				RulesResource,
				"isoload/lint/Facade/create.sym",
				"isoload/lint/Facade/run.sym",
				"isoload/lint/Facade/runScript.sym",
				"isoload/lint/ProcessingSettings.sym",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.adapter.Name(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteStub(&buf, tt.adapter))

			zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
			require.NoError(t, err)
			var names []string
			for _, f := range zr.File {
				names = append(names, f.Name)
			}
			assert.Equal(t, tt.want, names, "entries are written in sorted order without host symbols")
		})
	}
}
