package ramfs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanokernel/src/ustr"
	"nanokernel/src/vfs"
)

func TestEncodeDecodeImageRoundTrips(t *testing.T) {
	entries := []SeedEntry{
		{Path: "/bin", Dir: true, Mode: 0755},
		{Path: "/bin/init", Mode: 0755, Data: []byte("#!/bin/init\n")},
		{Path: "/etc/motd", Mode: 0644, Data: []byte("welcome\n")},
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeImage(&buf, entries))

	got, err := DecodeImage(&buf)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, entries, got)
}

func TestLoadIntoCreatesDirsBeforeFilesRegardlessOfOrder(t *testing.T) {
	entries := []SeedEntry{
		{Path: "/a/b/file", Mode: 0644, Data: []byte("leaf")},
		{Path: "/a/b", Dir: true},
		{Path: "/a", Dir: true},
	}

	fs := New()
	require.NoError(t, LoadInto(fs, entries))

	self := newTestThread(t)
	cache := vfs.NewCache()
	mounts := vfs.NewMountTable()
	_, merr := mounts.Mount(self, cache, ustr.MkUstrRoot(), fs)
	require.EqualValues(t, 0, merr)
	f, err := vfs.Open(self, cache, mounts, ustr.Ustr("/a/b/file"), vfs.O_RDONLY, 0)
	require.EqualValues(t, 0, err)

	data := make([]byte, 16)
	n, rerr := f.Read(data)
	require.EqualValues(t, 0, rerr)
	assert.Equal(t, "leaf", string(data[:n]))
	require.EqualValues(t, 0, f.Close())
}
