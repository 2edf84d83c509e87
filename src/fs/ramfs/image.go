package ramfs

import (
	"encoding/gob"
	"io"
	"sort"
	"strings"

	"nanokernel/src/vfs"
)

// SeedEntry is one file or directory in a serialized ramfs image, the
// counterpart of a row cmd/mkfs's host-directory walk would otherwise
// have fed straight into ufs.MkDir/ufs.MkFile/ufs.Append on the
// teacher's disk-backed filesystem. Path is always "/"-rooted and
// slash-separated regardless of host OS path conventions.
type SeedEntry struct {
	Path string
	Dir  bool
	Mode uint32
	Data []byte
}

// EncodeImage writes entries to w as a gob stream, the format
// cmd/mkfs produces and cmd/kernel's --image flag consumes. gob is
// used rather than a hand-rolled binary layout because this image
// never leaves the Go toolchain on either end: no example in this
// corpus serializes an in-memory filesystem tree for cross-language
// consumption, so there is no third-party wire format to ground this
// on.
func EncodeImage(w io.Writer, entries []SeedEntry) error {
	return gob.NewEncoder(w).Encode(entries)
}

// DecodeImage reads an image previously written by EncodeImage.
func DecodeImage(r io.Reader) ([]SeedEntry, error) {
	var entries []SeedEntry
	if err := gob.NewDecoder(r).Decode(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// LoadInto populates fs's tree directly from entries, bypassing VGet/
// Create/Mkdir's vnode-cache plumbing since there is no mount (and
// therefore no vfs.Cache_t) yet at the point cmd/kernel applies a seed
// image — the counterpart of ufs.BootFS handing mkfs a bare *Ufs_t to
// populate before the filesystem is ever mounted. Entries are sorted
// so a directory always lands before anything nested under it,
// regardless of the order the image stored them in.
func LoadInto(fs *Ramfs_t, entries []SeedEntry) error {
	sorted := make([]SeedEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return strings.Count(sorted[i].Path, "/") < strings.Count(sorted[j].Path, "/")
	})

	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, e := range sorted {
		path := strings.Trim(e.Path, "/")
		if path == "" {
			continue
		}
		parts := strings.Split(path, "/")
		dir := fs.root
		for _, p := range parts[:len(parts)-1] {
			next := lookupChild(dir, p)
			if next == nil {
				next = &ramfsNode{name: p, ntype: vfs.VDIR, mode: 0755}
				dir.children = append(dir.children, next)
			}
			dir = next
		}
		leaf := parts[len(parts)-1]
		ntype := uint8(vfs.VREG)
		if e.Dir {
			ntype = vfs.VDIR
		}
		mode := e.Mode
		if mode == 0 {
			mode = 0644
			if e.Dir {
				mode = 0755
			}
		}
		dir.children = append(dir.children, &ramfsNode{
			name: leaf, ntype: ntype, mode: mode, data: e.Data,
		})
	}
	return nil
}
