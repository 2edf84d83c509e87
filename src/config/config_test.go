package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPassesValidate(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	bad := Default()
	bad.NumCPU = 0
	assert.Error(t, bad.Validate())

	bad = Default()
	bad.MemoryBytes = 1024
	assert.Error(t, bad.Validate())

	bad = Default()
	bad.Mounts = nil
	assert.Error(t, bad.Validate())

	bad = Default()
	bad.Mounts = []Mount{{Path: "/mnt", Fstype: "ramfs"}}
	assert.Error(t, bad.Validate())

	bad = Default()
	bad.Mounts = []Mount{{Path: "/"}}
	assert.Error(t, bad.Validate())
}

func TestLoadOverlaysDefaultAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boot.yaml")
	contents := []byte("num_cpu: 4\nmemory_bytes: 134217728\nmounts:\n  - path: \"/\"\n    fstype: ramfs\n  - path: \"/dev\"\n    fstype: devfs\n")
	require.NoError(t, os.WriteFile(path, contents, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.NumCPU)
	assert.EqualValues(t, 134217728, cfg.MemoryBytes)
	require.Len(t, cfg.Mounts, 2)
	assert.Equal(t, "devfs", cfg.Mounts[1].Fstype)
}

func TestLoadWrapsMissingFileError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoadWrapsInvalidConfigError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("num_cpu: 0\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
