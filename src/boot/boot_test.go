package boot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanokernel/src/config"
	"nanokernel/src/defs"
	"nanokernel/src/fs/ramfs"
	"nanokernel/src/syscall"
	"nanokernel/src/ustr"
	"nanokernel/src/vfs"
)

func testConfig() *config.BootConfig {
	cfg := config.Default()
	cfg.NumCPU = 2
	cfg.Mounts = append(cfg.Mounts, config.Mount{Path: "/dev", Fstype: "devfs"})
	return cfg
}

func TestBringupMountsConfiguredFilesystemsAndStartsInit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entered := make(chan defs.Tid_t, 1)
	k, eg, err := Bringup(ctx, testConfig(), nil, nil, func(p *syscall.Proc_t) {
		entered <- p.Thread.Tid
		<-ctx.Done()
	})
	require.NoError(t, err)
	require.NotNil(t, k)

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("init process never ran")
	}

	assert.Equal(t, 2, k.Sched.NumCPU())
	assert.Len(t, k.Mounts.Mounts(), 2)

	cancel()
	require.NoError(t, eg.Wait())
}

func TestBringupRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.NumCPU = 0
	_, _, err := Bringup(context.Background(), cfg, nil, nil, func(p *syscall.Proc_t) {})
	assert.Error(t, err)
}

func TestBringupSeedsRootFilesystemFromProvidedRamfs(t *testing.T) {
	rootfs := ramfs.New()
	require.NoError(t, ramfs.LoadInto(rootfs, []ramfs.SeedEntry{
		{Path: "/hello", Data: []byte("hi")},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	k, eg, err := Bringup(ctx, config.Default(), nil, rootfs, func(p *syscall.Proc_t) {
		close(ready)
		<-ctx.Done()
	})
	require.NoError(t, err)
	<-ready

	f, operr := vfs.Open(k.Init.Thread, k.Cache, k.Mounts, ustr.Ustr("/hello"), vfs.O_RDONLY, 0)
	require.EqualValues(t, 0, operr)
	buf := make([]byte, 8)
	n, rerr := f.Read(buf)
	require.EqualValues(t, 0, rerr)
	assert.Equal(t, "hi", string(buf[:n]))
	require.EqualValues(t, 0, f.Close())

	cancel()
	require.NoError(t, eg.Wait())
}
