package hexagonfs

import (
	"io"
	"os"
	"path/filepath"
)

// Timespec mirrors the (seconds, nanoseconds) pair struct stat carries three
// of, so stat implementations can set them without importing syscall types.
type Timespec struct {
	Sec  int64
	Nsec int64
}

// Stat is the subset of struct stat apps_std_stat actually forwards to the
// remote side (SPEC_FULL.md §4.H).
type Stat struct {
	Size  int64
	IsDir bool
	Atim  Timespec
	Ctim  Timespec
	Mtim  Timespec
}

// Handle is an open reference to one node: the capability set apps_std
// drives a method call into (openat/read/readdir/stat/seek/close).
// Grounded on hexagonfs.h's hexagonfs_file_ops vtable.
type Handle interface {
	Close() error
	Openat(segment string, expectDir bool) (Handle, error)
	// Readdir returns the next directory entry name, or io.EOF once
	// exhausted.
	Readdir() (string, error)
	Read(p []byte) (int, error)
	Stat() (Stat, error)
	Seek(offset int64, whence int) (int64, error)
}

// open dispatches to the handle constructor for id's kind, mirroring
// hexagonfs_dirent.ops->from_dirent.
func open(t *Tree, id NodeID, dir bool) (Handle, error) {
	switch t.Kind(id) {
	case KindVirtualDir:
		return &virtDirHandle{tree: t, id: id}, nil
	case KindMapped:
		return newMappedHandle(t.Phys(id), dir, false)
	case KindMappedSysfs:
		return newMappedHandle(t.Phys(id), dir, true)
	case KindMissingSysfsStub:
		return newMissingSysfsHandle(t.Phys(id))
	default:
		panic("hexagonfs: unknown node kind")
	}
}

// --- virtual directory ---

type virtDirHandle struct {
	tree *Tree
	id   NodeID

	dirIdx int
}

func (h *virtDirHandle) Close() error { return nil }

func (h *virtDirHandle) Openat(segment string, expectDir bool) (Handle, error) {
	child, ok := h.tree.ChildNamed(h.id, segment)
	if !ok {
		return nil, os.ErrNotExist
	}
	return open(h.tree, child, expectDir)
}

func (h *virtDirHandle) Readdir() (string, error) {
	children := h.tree.Children(h.id)
	if h.dirIdx >= len(children) {
		return "", io.EOF
	}
	name := h.tree.Name(children[h.dirIdx])
	h.dirIdx++
	return name, nil
}

func (h *virtDirHandle) Read(p []byte) (int, error) {
	return 0, errNotSupported
}

func (h *virtDirHandle) Stat() (Stat, error) {
	return Stat{IsDir: true}, nil
}

func (h *virtDirHandle) Seek(offset int64, whence int) (int64, error) {
	return 0, errNotSupported
}

// --- host-mapped file/directory ---

type mappedHandle struct {
	f      *os.File
	dir    bool
	dirEnt []os.DirEntry
	dirIdx int
	sysfs  bool
}

func newMappedHandle(phys string, dir, sysfs bool) (Handle, error) {
	flags := os.O_RDONLY
	f, err := os.OpenFile(phys, flags, 0)
	if err != nil {
		return nil, err
	}
	if dir {
		// Equivalent of O_DIRECTORY: a directory was expected here.
		info, err := f.Stat()
		if err == nil && !info.IsDir() {
			err = errNotADirectory
		}
		if err != nil {
			f.Close()
			return nil, err
		}
	}
	return &mappedHandle{f: f, dir: dir, sysfs: sysfs}, nil
}

func (h *mappedHandle) Close() error {
	return h.f.Close()
}

func (h *mappedHandle) Openat(segment string, expectDir bool) (Handle, error) {
	return newMappedHandle(filepath.Join(h.f.Name(), segment), expectDir, h.sysfs)
}

func (h *mappedHandle) Readdir() (string, error) {
	if h.dirEnt == nil {
		ents, err := h.f.ReadDir(-1)
		if err != nil {
			return "", err
		}
		h.dirEnt = ents
	}
	if h.dirIdx >= len(h.dirEnt) {
		return "", io.EOF
	}
	name := h.dirEnt[h.dirIdx].Name()
	h.dirIdx++
	return name, nil
}

func (h *mappedHandle) Read(p []byte) (int, error) {
	return h.f.Read(p)
}

func (h *mappedHandle) Stat() (Stat, error) {
	info, err := h.f.Stat()
	if err != nil {
		return Stat{}, err
	}
	st := statFromFileInfo(info)
	if h.sysfs && !st.IsDir {
		// Downstream kernels report a fixed, nonzero size for sysfs
		// attributes regardless of actual content length.
		st.Size = 256
	}
	return st, nil
}

func (h *mappedHandle) Seek(offset int64, whence int) (int64, error) {
	return h.f.Seek(offset, whence)
}

// --- sysfs attribute absent on this platform ---

type missingSysfsHandle struct {
	f *os.File
}

// newMissingSysfsHandle opens phys best-effort: this kind models a sysfs
// attribute the reference platform doesn't actually carry, so the host path
// is expected to be absent more often than not. Mirrors
// mapped_or_empty_from_dirent's NULL-fd_data branch: an open failure yields
// an empty stub handle rather than aborting the traversal, which is the
// entire point of this node kind existing.
func newMissingSysfsHandle(phys string) (Handle, error) {
	f, _ := os.OpenFile(phys, os.O_RDONLY, 0)
	return &missingSysfsHandle{f: f}, nil
}

func (h *missingSysfsHandle) Close() error {
	if h.f == nil {
		return nil
	}
	return h.f.Close()
}

func (h *missingSysfsHandle) Openat(segment string, expectDir bool) (Handle, error) {
	return nil, errNotADirectory
}

func (h *missingSysfsHandle) Readdir() (string, error) {
	return "", errNotSupported
}

func (h *missingSysfsHandle) Read(p []byte) (int, error) {
	return 0, errNotSupported
}

func (h *missingSysfsHandle) Stat() (Stat, error) {
	return Stat{Size: 0, IsDir: false}, nil
}

func (h *missingSysfsHandle) Seek(offset int64, whence int) (int64, error) {
	return 0, errNotSupported
}
