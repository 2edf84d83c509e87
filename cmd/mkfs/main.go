// Command mkfs builds a ramfs seed image from a host directory tree,
// for cmd/kernel's --image flag to load at boot. Adapted from the
// teacher's mkfs/mkfs.go, which walked a skeleton directory into a
// disk-backed ufs.Ufs_t via MkDir/MkFile/Append; this version walks
// the same way but collects ramfs.SeedEntry values and gob-encodes
// them instead of writing disk blocks, since there is no block device
// layer in this core (spec.md's Non-goals).
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"nanokernel/src/fs/ramfs"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "usage: mkfs <skeleton dir> <output image>\n")
		os.Exit(1)
	}
	skelDir, outPath := os.Args[1], os.Args[2]

	entries, err := addfiles(skelDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkfs: %v\n", err)
		os.Exit(1)
	}

	out, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkfs: creating %q: %v\n", outPath, err)
		os.Exit(1)
	}
	defer out.Close()

	if err := ramfs.EncodeImage(out, entries); err != nil {
		fmt.Fprintf(os.Stderr, "mkfs: encoding image: %v\n", err)
		os.Exit(1)
	}
}

// addfiles walks skelDir on the host and replicates its contents into
// a flat list of seed entries, the counterpart of the teacher's own
// addfiles walking into fs.MkDir/fs.MkFile/copydata calls against a
// live *ufs.Ufs_t.
func addfiles(skelDir string) ([]ramfs.SeedEntry, error) {
	var entries []ramfs.SeedEntry
	err := filepath.WalkDir(skelDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("accessing %q: %w", path, err)
		}
		rel := strings.TrimPrefix(path, skelDir)
		rel = strings.TrimPrefix(rel, string(filepath.Separator))
		if rel == "" {
			return nil
		}
		rel = "/" + filepath.ToSlash(rel)

		if d.IsDir() {
			entries = append(entries, ramfs.SeedEntry{Path: rel, Dir: true, Mode: 0755})
			return nil
		}

		data, err := copydata(path)
		if err != nil {
			return fmt.Errorf("reading %q: %w", path, err)
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %q: %w", path, err)
		}
		entries = append(entries, ramfs.SeedEntry{Path: rel, Mode: uint32(info.Mode().Perm()), Data: data})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %q: %w", skelDir, err)
	}
	return entries, nil
}

// copydata reads the whole contents of the file at src, the
// counterpart of the teacher's block-at-a-time copydata that appended
// each chunk straight to the target filesystem; a seed image has no
// block-size constraint to chunk around, so the file is read in one
// pass.
func copydata(src string) ([]byte, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
