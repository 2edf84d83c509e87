// Package ustr implements the path/name string type used as vnode cache
// keys and passed between the VFS layer and filesystem personalities.
package ustr

import "golang.org/x/text/unicode/norm"

// Ustr is an immutable path or name string used by the kernel.
type Ustr []uint8

// Isdot reports whether the string equals ".".
func (us Ustr) Isdot() bool {
	return len(us) == 1 && us[0] == '.'
}

// Isdotdot reports whether the string equals "..".
func (us Ustr) Isdotdot() bool {
	return len(us) == 2 && us[0] == '.' && us[1] == '.'
}

// Eq compares two Ustr values for byte equality.
func (us Ustr) Eq(s Ustr) bool {
	if len(us) != len(s) {
		return false
	}
	for i, v := range us {
		if v != s[i] {
			return false
		}
	}
	return true
}

// MkUstr creates an empty Ustr value.
func MkUstr() Ustr {
	return Ustr{}
}

// MkUstrDot returns a Ustr representing ".".
func MkUstrDot() Ustr {
	return Ustr(".")
}

// MkUstrRoot returns a Ustr for the root directory "/".
func MkUstrRoot() Ustr {
	return Ustr("/")
}

// DotDot is a reusable Ustr containing "..".
var DotDot = Ustr{'.', '.'}

// MkUstrSlice converts a NUL-terminated byte slice to a Ustr, truncating
// at the first NUL byte.
func MkUstrSlice(buf []uint8) Ustr {
	for i := 0; i < len(buf); i++ {
		if buf[i] == 0 {
			return buf[:i]
		}
	}
	return buf
}

// Extend appends '/' and p to the current Ustr and returns the result,
// without doubling the separator when us already ends in '/' (the
// root path "/" being the common case).
func (us Ustr) Extend(p Ustr) Ustr {
	tmp := make(Ustr, len(us))
	copy(tmp, us)
	if len(tmp) == 0 || tmp[len(tmp)-1] != '/' {
		tmp = append(tmp, '/')
	}
	return append(tmp, p...)
}

// ExtendStr appends '/' and the string p to the current Ustr.
func (us Ustr) ExtendStr(p string) Ustr {
	return us.Extend(Ustr(p))
}

// IsAbsolute reports whether the path begins with '/'.
func (us Ustr) IsAbsolute() bool {
	if len(us) == 0 {
		return false
	}
	return us[0] == '/'
}

// IndexByte returns the index of b in the string, or -1 if not present.
func (us Ustr) IndexByte(b uint8) int {
	for i, v := range us {
		if v == b {
			return i
		}
	}
	return -1
}

// String converts the Ustr to a Go string.
func (us Ustr) String() string {
	return string(us)
}

// Components splits an absolute or relative path into its non-empty
// "/"-separated parts, used by namei to walk one component at a time.
func (us Ustr) Components() []Ustr {
	var parts []Ustr
	start := -1
	for i := 0; i <= len(us); i++ {
		atsep := i == len(us) || us[i] == '/'
		if !atsep && start == -1 {
			start = i
		} else if atsep && start != -1 {
			parts = append(parts, us[start:i])
			start = -1
		}
	}
	return parts
}

// Valid reports whether every component of the path is valid UTF-8 in
// normalized form, rejecting the kind of lookalike-byte-sequence names
// that would otherwise collide silently in the vnode cache hash.
func (us Ustr) Valid() bool {
	return norm.NFC.IsNormal([]byte(us))
}
