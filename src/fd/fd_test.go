package fd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanokernel/src/defs"
	"nanokernel/src/fdops"
	"nanokernel/src/ustr"
)

type fakeFops struct {
	fdops.Fdops_i
	reopens int
	closes  int
}

func (f *fakeFops) Reopen() defs.Err_t { f.reopens++; return 0 }
func (f *fakeFops) Close() defs.Err_t  { f.closes++; return 0 }

func TestCopyfdReopensSharedFops(t *testing.T) {
	backing := &fakeFops{}
	orig := &Fd_t{Fops: backing, Perms: FD_READ}

	dup, err := Copyfd(orig)
	require.EqualValues(t, 0, err)
	assert.Equal(t, 1, backing.reopens)
	assert.Same(t, orig.Fops, dup.Fops, "duplicated descriptor shares the same backing fops")
	assert.Equal(t, orig.Perms, dup.Perms)
}

func TestClosePanicOnFailure(t *testing.T) {
	backing := &fakeFailFops{}
	assert.Panics(t, func() { Close_panic(&Fd_t{Fops: backing}) })
}

type fakeFailFops struct {
	fdops.Fdops_i
}

func (f *fakeFailFops) Close() defs.Err_t { return -defs.EIO }

func TestCwdFullpathAndCanonicalize(t *testing.T) {
	cwd := MkRootCwd(&Fd_t{})
	cwd.Path = ustr.Ustr("/home/user")

	abs := cwd.Fullpath(ustr.Ustr("/etc/passwd"))
	assert.Equal(t, "/etc/passwd", abs.String())

	rel := cwd.Fullpath(ustr.Ustr("docs/../downloads"))
	assert.Equal(t, "/home/user/docs/../downloads", rel.String())

	canon := cwd.Canonicalpath(ustr.Ustr("docs/../downloads"))
	assert.Equal(t, "/home/user/downloads", canon.String())
}
