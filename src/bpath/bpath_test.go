package bpath

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"nanokernel/src/ustr"
)

func TestCanonicalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/a/b/c", "/a/b/c"},
		{"/a/./b", "/a/b"},
		{"/a/b/../c", "/a/c"},
		{"/../a", "/a"},
		{"/a/..", "/"},
		{"/", "/"},
	}
	for _, c := range cases {
		got := Canonicalize(ustr.Ustr(c.in))
		assert.Equal(t, c.want, got.String(), "canonicalize %q", c.in)
	}
}
