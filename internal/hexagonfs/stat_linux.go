//go:build linux

package hexagonfs

import (
	"os"
	"syscall"
)

// statFromFileInfo extracts the atim/ctim/mtim triples Linux's struct stat
// carries, mirroring hexagonfs_mapped.c's mapped_stat field-by-field copy.
func statFromFileInfo(info os.FileInfo) Stat {
	st := Stat{Size: info.Size(), IsDir: info.IsDir()}

	if sys, ok := info.Sys().(*syscall.Stat_t); ok {
		st.Atim = Timespec{Sec: sys.Atim.Sec, Nsec: sys.Atim.Nsec}
		st.Ctim = Timespec{Sec: sys.Ctim.Sec, Nsec: sys.Ctim.Nsec}
		st.Mtim = Timespec{Sec: sys.Mtim.Sec, Nsec: sys.Mtim.Nsec}
	}

	return st
}
