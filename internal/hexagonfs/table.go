package hexagonfs

import (
	"io"
	"strings"
)

// MaxFD is the fixed size of the file-descriptor table, matching
// hexagonfs.h's HEXAGONFS_MAX_FD.
const MaxFD = 256

// fd is one entry in the traversal chain: an open Handle, and a link to the
// fd it was opened from. assigned marks whether this fd lives in a table
// slot; unassigned fds are transient, created mid-traversal by Openat and
// torn down on error (or, for ".." during traversal, on the way back up).
type fd struct {
	handle   Handle
	up       *fd
	assigned bool
	slot     int
}

// Table is a per-session file-descriptor table over one Tree: the host-side
// analogue of the fds[] array hexagonfs_openat/close/read/etc. all take.
// Grounded on hexagonfs.c's allocate_file_number/destroy_file_descriptor/
// pop_dir/hexagonfs_openat.
type Table struct {
	tree *Tree
	slots [MaxFD]*fd
}

// NewTable opens the tree's root as file descriptor 0.
func NewTable(tree *Tree) (*Table, error) {
	t := &Table{tree: tree}

	h, err := open(tree, tree.Root(), true)
	if err != nil {
		return nil, err
	}

	rootFD := &fd{handle: h, assigned: true, slot: 0}
	t.slots[0] = rootFD

	return t, nil
}

func (t *Table) lookup(fileno int) (*fd, error) {
	if fileno < 0 || fileno >= MaxFD {
		return nil, ErrBadFD
	}
	f := t.slots[fileno]
	if f == nil {
		return nil, ErrBadFD
	}
	return f, nil
}

// pathSegment is one '/'-delimited component of a path, with whether it was
// followed by a slash (and therefore must resolve to a directory).
type pathSegment struct {
	name       string
	expectDir  bool
}

func splitPath(path string) []pathSegment {
	parts := strings.Split(path, "/")
	var segs []pathSegment
	for i, p := range parts {
		if p == "" {
			continue
		}
		// Any non-final part was followed by at least one '/'; the final
		// part is a directory only if the original path ended in '/'.
		expectDir := i < len(parts)-1 || strings.HasSuffix(path, "/")
		segs = append(segs, pathSegment{name: p, expectDir: expectDir})
	}
	return segs
}

// popDir handles a ".." path segment. A transient (not yet table-assigned)
// fd is closed and discarded, same as hexagonfs.c's pop_dir. An fd that is
// already a table slot (the starting point of this call, or the table's
// root) is left untouched rather than closed out from under its slot — the
// reference C implementation frees it unconditionally here, which would
// leave the owning table slot dangling; this implementation treats that as
// a bug, not a behavior to preserve.
func popDir(cur, root *fd) *fd {
	if cur != root && cur.up != nil {
		up := cur.up
		if !cur.assigned {
			cur.handle.Close()
		}
		return up
	}
	return cur
}

func destroyChain(f *fd) {
	for f != nil && !f.assigned {
		next := f.up
		f.handle.Close()
		f = next
	}
}

func (t *Table) allocate(f *fd) (int, error) {
	for i, s := range t.slots {
		if s == nil {
			f.assigned = true
			f.slot = i
			t.slots[i] = f
			return i, nil
		}
	}
	return 0, ErrTooManyOpenFiles
}

// Openat resolves path relative to dirfd (or root, for an absolute path),
// allocating a new table slot for the result. Mirrors hexagonfs_openat.
func (t *Table) Openat(rootfd, dirfd int, path string) (int, error) {
	root, err := t.lookup(rootfd)
	if err != nil {
		return 0, err
	}

	cur := root
	if !strings.HasPrefix(path, "/") {
		cur, err = t.lookup(dirfd)
		if err != nil {
			return 0, err
		}
	}

	for _, seg := range splitPath(path) {
		switch seg.name {
		case ".":
			continue
		case "..":
			cur = popDir(cur, root)
		default:
			next, err := cur.handle.Openat(seg.name, seg.expectDir)
			if err != nil {
				destroyChain(cur)
				return 0, err
			}
			cur = &fd{handle: next, up: cur}
		}
	}

	slot, err := t.allocate(cur)
	if err != nil {
		destroyChain(cur)
		return 0, err
	}
	return slot, nil
}

// Close releases a file descriptor and then tears down its unassigned
// ancestor chain: the transient fds Openat created on the way to it stay
// linked through up until this point, mirroring destroy_file_descriptor.
func (t *Table) Close(fileno int) error {
	f, err := t.lookup(fileno)
	if err != nil {
		return err
	}
	f.assigned = false
	destroyChain(f)
	t.slots[fileno] = nil
	return nil
}

// Read reads from fileno into p.
func (t *Table) Read(fileno int, p []byte) (int, error) {
	f, err := t.lookup(fileno)
	if err != nil {
		return 0, err
	}
	return f.handle.Read(p)
}

// Readdir returns the next directory entry name for fileno, or io.EOF.
func (t *Table) Readdir(fileno int) (string, error) {
	f, err := t.lookup(fileno)
	if err != nil {
		return "", err
	}
	name, err := f.handle.Readdir()
	if err == io.EOF {
		return "", io.EOF
	}
	return name, err
}

// Stat stats fileno.
func (t *Table) Stat(fileno int) (Stat, error) {
	f, err := t.lookup(fileno)
	if err != nil {
		return Stat{}, err
	}
	return f.handle.Stat()
}

// Seek repositions fileno.
func (t *Table) Seek(fileno int, offset int64, whence int) (int64, error) {
	f, err := t.lookup(fileno)
	if err != nil {
		return 0, err
	}
	return f.handle.Seek(offset, whence)
}
