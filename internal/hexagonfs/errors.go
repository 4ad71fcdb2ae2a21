package hexagonfs

import "errors"

// errNotADirectory is returned by a missing-sysfs stub's Openat, mirroring
// hexagonfs_plat_subtype_name.c's plat_subtype_name_openat always failing
// with -ENOTDIR, and when a mapped node that is not a directory is opened
// where a directory is expected.
var errNotADirectory = errors.New("hexagonfs: not a directory")

// errNotSupported is returned by an operation a node kind does not have: a
// virtual directory's Read/Seek, and a missing-sysfs stub's Read/Readdir/
// Seek (the stub exists, so stat and openat-as-leaf succeed). This matches
// hexagonfs_read's -ENOSYS when a kind leaves that vtable slot nil.
var errNotSupported = errors.New("hexagonfs: operation not supported")

// ErrBadFD is returned by table operations against an out-of-range or
// unassigned file number, mirroring hexagonfs.c's -EBADF checks.
var ErrBadFD = errors.New("hexagonfs: bad file descriptor")

// ErrTooManyOpenFiles is returned when the 256-slot FD table is full,
// mirroring allocate_file_number's -EMFILE.
var ErrTooManyOpenFiles = errors.New("hexagonfs: too many open files")
