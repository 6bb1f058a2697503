package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o600)
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	opts, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "buffer", opts.Backend)
	assert.Equal(t, "info", opts.Logging.Level)
	assert.Empty(t, opts.Procedures)
}

func TestLoadParsesYAML(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		want     *Options
	}{
		{
			name: "full override",
			contents: "" +
				"data_dir: /var/lib/warden\n" +
				"backend: file\n" +
				"procedures:\n" +
				"  - copy_record\n" +
				"  - get_public_key_stub\n" +
				"logging:\n" +
				"  level: debug\n" +
				"  json: true\n",
			want: &Options{
				DataDir:    "/var/lib/warden",
				Backend:    "file",
				Procedures: []string{"copy_record", "get_public_key_stub"},
				Logging:    LoggingOptions{Level: "debug", JSON: true},
			},
		},
		{
			name:     "partial override fills in defaults",
			contents: "data_dir: /tmp/warden\n",
			want: &Options{
				DataDir: "/tmp/warden",
				Backend: "buffer",
				Logging: LoggingOptions{Level: "info"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "warden.yaml")
			require.NoError(t, writeFile(path, tt.contents))

			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProcedureEnabled(t *testing.T) {
	empty := &Options{}
	assert.True(t, empty.ProcedureEnabled("anything"))

	scoped := &Options{Procedures: []string{"copy_record"}}
	assert.True(t, scoped.ProcedureEnabled("copy_record"))
	assert.False(t, scoped.ProcedureEnabled("get_public_key_stub"))
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warden.yaml")
	require.NoError(t, writeFile(path, "backend: [this is not a scalar\n"))

	_, err := Load(path)
	assert.Error(t, err)
}
