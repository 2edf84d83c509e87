// Package bpath canonicalizes paths: resolving "." and ".." components
// purely lexically, the way Cwd_t.Canonicalpath needs before namei ever
// touches the vnode cache. The teacher's own bpath package is an empty
// go.mod stub in this pack; this is built fresh from its call sites in
// fd.Cwd_t.
package bpath

import "nanokernel/src/ustr"

// Canonicalize resolves "." and ".." components of an absolute path
// lexically, without touching the filesystem. A ".." at the root is
// dropped rather than erroring, matching ordinary shell/path.Clean
// behavior. The result always starts with "/".
func Canonicalize(p ustr.Ustr) ustr.Ustr {
	parts := p.Components()
	stack := make([]ustr.Ustr, 0, len(parts))
	for _, part := range parts {
		switch {
		case part.Isdot():
			continue
		case part.Isdotdot():
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, part)
		}
	}
	if len(stack) == 0 {
		return ustr.MkUstrRoot()
	}
	out := append(ustr.Ustr{}, stack[0]...)
	for _, part := range stack[1:] {
		out = out.Extend(part)
	}
	return append(ustr.Ustr{'/'}, out...)
}
