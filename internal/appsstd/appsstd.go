// Package appsstd implements the apps_std interface: the C-library-shaped
// file I/O surface (fopen/fread/fseek/fclose/opendir/readdir/stat) that lets
// code running on the DSP reach into the host filesystem view built by
// package hexagonfs.
//
// Grounded on fastrpc/hexagonrpcd/apps_std.c. Only the method ids populated
// in apps_std_interface.procs there are implemented; the remaining slots in
// the 32-entry table are left as gaps, same as the C reference's NULL
// entries.
package appsstd

import (
	"io"
	"strings"
	"time"

	"github.com/xelageo/hexagonrpc/internal/aee"
	"github.com/xelageo/hexagonrpc/internal/hexagonfs"
	"github.com/xelageo/hexagonrpc/internal/iobuf"
	"github.com/xelageo/hexagonrpc/internal/registry"
	"github.com/xelageo/hexagonrpc/internal/scalars"
)

// Observer is notified once per served apps_std call, letting a caller track
// VFS operation counts/latencies without this package depending on any
// particular metrics implementation.
type Observer interface {
	ObserveVFSOp(method uint32, latency time.Duration, code aee.Code)
}

// Method ids, transcribed from apps_std_interface's procs table.
const (
	methodFflush        = 2
	methodFclose        = 3
	methodFread         = 4
	methodFseek         = 9
	methodFopenWithEnv  = 19
	methodOpendir       = 26
	methodClosedir      = 27
	methodReaddir       = 28
	methodStat          = 31
)

// whenceTable is apps_std_whence_table, translating the DSP-side seek-origin
// enum into the host io.Seeker convention. The C reference indexes this
// array without a bounds check; an out-of-range whence from a misbehaving
// DSP client is undefined behavior there. This implementation bounds-checks
// it and returns AEE_EBADPARM instead of reproducing that as memory-unsafe
// undefined behavior (unlike the ctime/nsec field confusion below, which is
// a value bug, not a memory-safety one, and is kept bit-exact).
var whenceTable = [3]int{io.SeekStart, io.SeekCurrent, io.SeekEnd}

const (
	envADSPLibraryPath = "ADSP_LIBRARY_PATH"
	envADSPAVSCfgPath  = "ADSP_AVS_CFG_PATH"
)

// Server backs an apps_std registry.Interface with one hexagonfs.Table.
// avsCfgFD/libraryFD are opened lazily on first use and cached, mirroring
// apps_std.c's open_dirs/rootfd/adsp_avs_cfg_dirfd/adsp_library_dirfd
// statics — one Server should be used per session, matching the C
// reference's process-global (i.e. per-daemon-instance) statics.
type Server struct {
	table *hexagonfs.Table

	avsCfgFD int
	libraryFD int
	dirsOpen bool

	observer Observer
}

// NewServer wraps table. table's root (fd 0) must already be open.
func NewServer(table *hexagonfs.Table) *Server {
	return &Server{table: table, avsCfgFD: -1, libraryFD: -1}
}

// SetObserver attaches a VFS operation observer. Must be called before
// Interface, since Interface is what wraps each proc with timing.
func (s *Server) SetObserver(o Observer) {
	s.observer = o
}

// instrument wraps impl so each call to the built registry.Interface reports
// its method id, latency, and result code to s.observer, if set.
func (s *Server) instrument(method uint32, impl func(inbufs, outbufs []iobuf.IOBuffer) aee.Code) func(inbufs, outbufs []iobuf.IOBuffer) aee.Code {
	return func(inbufs, outbufs []iobuf.IOBuffer) aee.Code {
		start := time.Now()
		code := impl(inbufs, outbufs)
		if s.observer != nil {
			s.observer.ObserveVFSOp(method, time.Since(start), code)
		}
		return code
	}
}

func (s *Server) openDirs() error {
	if s.dirsOpen {
		return nil
	}

	fd, err := s.table.Openat(0, 0, "/usr/lib/qcom/adsp/avs/")
	if err != nil {
		return err
	}
	s.avsCfgFD = fd

	fd, err = s.table.Openat(0, 0, "/usr/lib/qcom/adsp/")
	if err != nil {
		return err
	}
	s.libraryFD = fd

	s.dirsOpen = true
	return nil
}

// Interface builds the "apps_std" registry.Interface backed by s.
func (s *Server) Interface() *registry.Interface {
	procs := make([]registry.Proc, 32)
	procs[methodFflush] = registry.Proc{
		Desc: scalars.Descriptor{MethodID: methodFflush, InScalars: 1, OutBuffers: 1},
		Impl: s.instrument(methodFflush, s.fflush),
	}
	procs[methodFclose] = registry.Proc{
		Desc: scalars.Descriptor{MethodID: methodFclose, InScalars: 1},
		Impl: s.instrument(methodFclose, s.fclose),
	}
	procs[methodFread] = registry.Proc{
		Desc: scalars.Descriptor{MethodID: methodFread, InScalars: 2, OutScalars: 2, OutBuffers: 1},
		Impl: s.instrument(methodFread, s.fread),
	}
	procs[methodFseek] = registry.Proc{
		Desc: scalars.Descriptor{MethodID: methodFseek, InScalars: 3},
		Impl: s.instrument(methodFseek, s.fseek),
	}
	procs[methodFopenWithEnv] = registry.Proc{
		Desc: scalars.Descriptor{MethodID: methodFopenWithEnv, InScalars: 4, InBuffers: 4, OutScalars: 1},
		Impl: s.instrument(methodFopenWithEnv, s.fopenWithEnv),
	}
	procs[methodOpendir] = registry.Proc{
		Desc: scalars.Descriptor{MethodID: methodOpendir, InScalars: 1, InBuffers: 1, OutScalars: 2},
		Impl: s.instrument(methodOpendir, s.opendir),
	}
	procs[methodClosedir] = registry.Proc{
		Desc: scalars.Descriptor{MethodID: methodClosedir, InScalars: 2},
		Impl: s.instrument(methodClosedir, s.closedir),
	}
	procs[methodReaddir] = registry.Proc{
		Desc: scalars.Descriptor{MethodID: methodReaddir, InScalars: 2, OutBuffers: 1},
		Impl: s.instrument(methodReaddir, s.readdir),
	}
	procs[methodStat] = registry.Proc{
		Desc: scalars.Descriptor{MethodID: methodStat, InScalars: 2, InBuffers: 1, OutBuffers: 1},
		Impl: s.instrument(methodStat, s.stat),
	}

	return &registry.Interface{Name: "apps_std", Procs: procs}
}

func (s *Server) fflush(inbufs, outbufs []iobuf.IOBuffer) aee.Code {
	zero(outbufs[0].Payload)
	return aee.Success
}

func (s *Server) fclose(inbufs, outbufs []iobuf.IOBuffer) aee.Code {
	fd := int(getU32(inbufs[0].Payload, 0))
	if err := s.table.Close(fd); err != nil {
		return aee.GeneralFailure
	}
	return aee.Success
}

func (s *Server) fread(inbufs, outbufs []iobuf.IOBuffer) aee.Code {
	// The slot id arrives as a u32 and is zero-extended to int (opendir
	// hands slot ids out as a u64).
	fd := int(getU32(inbufs[0].Payload, 0))
	bufSize := getU32(inbufs[0].Payload, 4)

	n, err := s.table.Read(fd, outbufs[1].Payload)
	if err != nil && err != io.EOF {
		return aee.GeneralFailure
	}

	putU32(outbufs[0].Payload, 0, uint32(n))
	isEOF := uint32(0)
	if uint32(n) < bufSize {
		isEOF = 1
	}
	putU32(outbufs[0].Payload, 4, isEOF)
	return aee.Success
}

func (s *Server) fseek(inbufs, outbufs []iobuf.IOBuffer) aee.Code {
	fd := int(getU32(inbufs[0].Payload, 0))
	// apps_std_fseek treats first_in->pos as uint32_t, zero-extended, not
	// sign-extended.
	pos := int64(getU32(inbufs[0].Payload, 4))
	whenceIdx := getU32(inbufs[0].Payload, 8)

	if whenceIdx >= uint32(len(whenceTable)) {
		return aee.BadParam
	}

	if _, err := s.table.Seek(fd, pos, whenceTable[whenceIdx]); err != nil {
		return aee.GeneralFailure
	}
	return aee.Success
}

func (s *Server) fopenWithEnv(inbufs, outbufs []iobuf.IOBuffer) aee.Code {
	first := inbufs[0].Payload
	envLen := getU32(first, 0)
	nameLen := getU32(first, 8)
	modeLen := getU32(first, 12)

	envBuf := inbufs[1].Payload
	nameBuf := inbufs[3].Payload
	modeBuf := inbufs[4].Payload

	if envLen == 0 || envBuf[envLen-1] != 0 ||
		nameLen == 0 || nameBuf[nameLen-1] != 0 ||
		modeLen == 0 || modeBuf[modeLen-1] != 0 {
		return aee.BadParam
	}

	if modeBuf[0] == 'w' || modeBuf[0] == 'a' {
		return aee.Unsupported
	}

	if err := s.openDirs(); err != nil {
		return aee.GeneralFailure
	}

	envName := cString(envBuf)
	var dirfd int
	switch envName {
	case envADSPLibraryPath:
		dirfd = s.libraryFD
	case envADSPAVSCfgPath:
		dirfd = s.avsCfgFD
	default:
		return aee.BadParam
	}

	fd, err := s.table.Openat(0, dirfd, cString(nameBuf))
	if err != nil {
		return aee.GeneralFailure
	}

	putU32(outbufs[0].Payload, 0, uint32(fd))
	return aee.Success
}

func (s *Server) opendir(inbufs, outbufs []iobuf.IOBuffer) aee.Code {
	nameLen := getU32(inbufs[0].Payload, 0)
	nameBuf := inbufs[1].Payload
	if nameLen == 0 || nameBuf[nameLen-1] != 0 {
		return aee.BadParam
	}

	if err := s.openDirs(); err != nil {
		return aee.GeneralFailure
	}

	fd, err := s.table.Openat(0, 0, cString(nameBuf))
	if err != nil {
		return aee.GeneralFailure
	}

	// The slot id goes out as a zero-extended u64 (fread takes it back as a
	// u32).
	putU64(outbufs[0].Payload, 0, uint64(fd))
	return aee.Success
}

func (s *Server) closedir(inbufs, outbufs []iobuf.IOBuffer) aee.Code {
	dir := getU64(inbufs[0].Payload, 0)
	if err := s.table.Close(int(dir)); err != nil {
		return aee.GeneralFailure
	}
	return aee.Success
}

// readdirEntrySize is sizeof(struct { uint32_t inode; char name[255];
// uint32_t is_eof; }) from apps_std_readdir, unpadded.
const readdirEntrySize = 4 + 255 + 4

func (s *Server) readdir(inbufs, outbufs []iobuf.IOBuffer) aee.Code {
	dir := getU64(inbufs[0].Payload, 0)

	buf := outbufs[0].Payload
	if len(buf) < readdirEntrySize {
		return aee.BadParam
	}

	name, err := s.table.Readdir(int(dir))
	isEOF := uint32(0)
	if err == io.EOF {
		isEOF = 1
		name = ""
	} else if err != nil {
		return aee.GeneralFailure
	}

	putU32(buf, 0, 0) // inode, always reported as 0
	nameField := buf[4 : 4+255]
	zero(nameField)
	copy(nameField, name)
	putU32(buf, 4+255, isEOF)
	return aee.Success
}

// statEntryLayout documents the byte offsets of apps_std_stat's first_out
// struct, kept unpadded/manually packed so the deliberate ctime/nsec bug
// below is reproduced at an exact, verifiable byte offset rather than
// riding along on Go struct layout.
const (
	statOffTsz        = 0
	statOffDev        = 8
	statOffIno        = 16
	statOffMode       = 24
	statOffNlink      = 28
	statOffRdev       = 32
	statOffSize       = 40
	statOffAtime      = 48
	statOffAtimensec  = 56
	statOffMtime      = 64
	statOffMtimensec  = 72
	statOffCtime      = 80
	statOffCtimensec  = 88
	statEntrySize     = 96
)

func (s *Server) stat(inbufs, outbufs []iobuf.IOBuffer) aee.Code {
	pathLen := getU32(inbufs[0].Payload, 4)
	pathBuf := inbufs[1].Payload
	if pathLen == 0 || uint32(len(pathBuf)) < pathLen {
		return aee.BadParam
	}
	path := string(pathBuf[:pathLen])
	path = strings.TrimRight(path, "\x00")

	if err := s.openDirs(); err != nil {
		return aee.GeneralFailure
	}

	fd, err := s.table.Openat(0, 0, path)
	if err != nil {
		return aee.GeneralFailure
	}
	st, err := s.table.Stat(fd)
	s.table.Close(fd)
	if err != nil {
		return aee.GeneralFailure
	}

	buf := outbufs[0].Payload
	if len(buf) < statEntrySize {
		return aee.BadParam
	}

	putU64(buf, statOffTsz, 0)
	putU64(buf, statOffDev, 0)
	putU64(buf, statOffIno, 0)
	// Modes are forced read-only: 0444 for files, 0555 for directories of
	// any node kind.
	mode := uint32(0o100444)
	if st.IsDir {
		mode = 0o40555
	}
	putU32(buf, statOffMode, mode)
	putU32(buf, statOffNlink, 1)
	putU64(buf, statOffRdev, 0)
	putU64(buf, statOffSize, uint64(st.Size))
	putU64(buf, statOffAtime, uint64(st.Atim.Sec))
	putU64(buf, statOffAtimensec, uint64(st.Atim.Nsec))
	putU64(buf, statOffMtime, uint64(st.Mtim.Sec))
	putU64(buf, statOffMtimensec, uint64(st.Mtim.Nsec))
	// Bug carried over from apps_std_stat: ctime is assigned the
	// nanosecond component of st_ctim, not the seconds component.
	putU64(buf, statOffCtime, uint64(st.Ctim.Nsec))
	putU64(buf, statOffCtimensec, uint64(st.Ctim.Nsec))

	return aee.Success
}

func cString(b []byte) string {
	if i := indexZero(b); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func indexZero(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func getU32(b []byte, off int) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}

func putU32(b []byte, off int, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}

func getU64(b []byte, off int) uint64 {
	return uint64(getU32(b, off)) | uint64(getU32(b, off+4))<<32
}

func putU64(b []byte, off int, v uint64) {
	putU32(b, off, uint32(v))
	putU32(b, off+4, uint32(v>>32))
}
