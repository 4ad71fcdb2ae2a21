package hexagonfs

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestTree(t *testing.T) (*Tree, string) {
	t.Helper()
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello world"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "nested.txt"), []byte("nested"), 0o644))

	var b Builder
	mapped := b.Mapped("data", dir)
	persist := b.VirtualDir("persist", mapped)
	root := b.VirtualDir("/", b.VirtualDir("mnt", b.VirtualDir("vendor", persist)), persist)

	return b.Build(root), dir
}

func TestOpenRootAndOpenatAbsolutePath(t *testing.T) {
	tree, _ := buildTestTree(t)
	table, err := NewTable(tree)
	require.NoError(t, err)

	fd, err := table.Openat(0, 0, "/persist/data/hello.txt")
	require.NoError(t, err)

	buf := make([]byte, 32)
	n, err := table.Read(fd, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(buf[:n]))

	require.NoError(t, table.Close(fd))
}

func TestOpenatRelativePath(t *testing.T) {
	tree, _ := buildTestTree(t)
	table, err := NewTable(tree)
	require.NoError(t, err)

	dirfd, err := table.Openat(0, 0, "persist/data")
	require.NoError(t, err)

	filefd, err := table.Openat(0, dirfd, "sub/nested.txt")
	require.NoError(t, err)

	buf := make([]byte, 32)
	n, err := table.Read(filefd, buf)
	require.NoError(t, err)
	assert.Equal(t, "nested", string(buf[:n]))
}

func TestOpenatDotDot(t *testing.T) {
	tree, _ := buildTestTree(t)
	table, err := NewTable(tree)
	require.NoError(t, err)

	dirfd, err := table.Openat(0, 0, "persist/data/sub")
	require.NoError(t, err)

	// sub/.. should resolve back to "data" without touching the table.
	backfd, err := table.Openat(0, dirfd, "../hello.txt")
	require.NoError(t, err)

	buf := make([]byte, 32)
	n, err := table.Read(backfd, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(buf[:n]))
}

func TestSharedPersistNodeServesSameContent(t *testing.T) {
	tree, _ := buildTestTree(t)
	table, err := NewTable(tree)
	require.NoError(t, err)

	fd1, err := table.Openat(0, 0, "/persist/data/hello.txt")
	require.NoError(t, err)
	fd2, err := table.Openat(0, 0, "/mnt/vendor/persist/data/hello.txt")
	require.NoError(t, err)

	buf1 := make([]byte, 32)
	n1, err := table.Read(fd1, buf1)
	require.NoError(t, err)

	buf2 := make([]byte, 32)
	n2, err := table.Read(fd2, buf2)
	require.NoError(t, err)

	assert.Equal(t, string(buf1[:n1]), string(buf2[:n2]))
}

func TestOpenatMissingPathDestroysTransientChain(t *testing.T) {
	tree, _ := buildTestTree(t)
	table, err := NewTable(tree)
	require.NoError(t, err)

	_, err = table.Openat(0, 0, "persist/data/does-not-exist.txt")
	assert.Error(t, err)
}

func TestReaddirLivesInVirtualDir(t *testing.T) {
	tree, _ := buildTestTree(t)
	table, err := NewTable(tree)
	require.NoError(t, err)

	fd, err := table.Openat(0, 0, "/")
	require.NoError(t, err)

	var names []string
	for {
		name, err := table.Readdir(fd)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, name)
	}
	assert.ElementsMatch(t, []string{"mnt", "persist"}, names)
}

func TestCloseInvalidatesSlot(t *testing.T) {
	tree, _ := buildTestTree(t)
	table, err := NewTable(tree)
	require.NoError(t, err)

	fd, err := table.Openat(0, 0, "persist/data/hello.txt")
	require.NoError(t, err)
	require.NoError(t, table.Close(fd))

	_, err = table.Read(fd, make([]byte, 1))
	assert.ErrorIs(t, err, ErrBadFD)
}

func TestLookupBoundsChecksFileNumber(t *testing.T) {
	tree, _ := buildTestTree(t)
	table, err := NewTable(tree)
	require.NoError(t, err)

	_, err = table.Read(-1, nil)
	assert.ErrorIs(t, err, ErrBadFD)
	_, err = table.Read(MaxFD, nil)
	assert.ErrorIs(t, err, ErrBadFD)
}

func TestTableFillsUpAndReportsEMFILE(t *testing.T) {
	tree, _ := buildTestTree(t)
	table, err := NewTable(tree)
	require.NoError(t, err)

	var fds []int
	var lastErr error
	for i := 0; i < MaxFD; i++ {
		fd, err := table.Openat(0, 0, "persist/data/hello.txt")
		if err != nil {
			lastErr = err
			break
		}
		fds = append(fds, fd)
	}
	assert.ErrorIs(t, lastErr, ErrTooManyOpenFiles)

	for _, fd := range fds {
		table.Close(fd)
	}
}

func TestStatReportsDirectoryAndFile(t *testing.T) {
	tree, _ := buildTestTree(t)
	table, err := NewTable(tree)
	require.NoError(t, err)

	dirfd, err := table.Openat(0, 0, "persist")
	require.NoError(t, err)
	st, err := table.Stat(dirfd)
	require.NoError(t, err)
	assert.True(t, st.IsDir)

	filefd, err := table.Openat(0, 0, "persist/data/hello.txt")
	require.NoError(t, err)
	st, err = table.Stat(filefd)
	require.NoError(t, err)
	assert.False(t, st.IsDir)
	assert.Equal(t, int64(len("hello world")), st.Size)
}

func TestMissingSysfsStubIsLeafAndZeroSize(t *testing.T) {
	dir := t.TempDir()
	attr := filepath.Join(dir, "maybe_present")
	require.NoError(t, os.WriteFile(attr, []byte("whatever"), 0o644))

	var b Builder
	stub := b.MissingSysfsStub("maybe_present", attr)
	root := b.VirtualDir("/", stub)
	tree := b.Build(root)

	table, err := NewTable(tree)
	require.NoError(t, err)

	fd, err := table.Openat(0, 0, "maybe_present")
	require.NoError(t, err)

	st, err := table.Stat(fd)
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.Size)

	_, err = table.Read(fd, make([]byte, 8))
	assert.Error(t, err)

	_, err = table.Openat(0, fd, "anything")
	assert.Error(t, err)
}

func TestMissingSysfsStubToleratesAbsentHostPath(t *testing.T) {
	dir := t.TempDir()
	attr := filepath.Join(dir, "does-not-exist")

	var b Builder
	stub := b.MissingSysfsStub("platform_subtype", attr)
	root := b.VirtualDir("/", stub)
	tree := b.Build(root)

	table, err := NewTable(tree)
	require.NoError(t, err)

	fd, err := table.Openat(0, 0, "platform_subtype")
	require.NoError(t, err)

	st, err := table.Stat(fd)
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.Size)
	assert.False(t, st.IsDir)

	_, err = table.Read(fd, make([]byte, 8))
	assert.Error(t, err)
	require.NoError(t, table.Close(fd))
}

func TestMappedSysfsReportsFixedSize(t *testing.T) {
	dir := t.TempDir()
	attr := filepath.Join(dir, "soc_id")
	require.NoError(t, os.WriteFile(attr, []byte("1\n"), 0o644))

	var b Builder
	sysfsNode := b.MappedSysfs("soc_id", attr)
	root := b.VirtualDir("/", sysfsNode)
	tree := b.Build(root)

	table, err := NewTable(tree)
	require.NoError(t, err)

	fd, err := table.Openat(0, 0, "soc_id")
	require.NoError(t, err)

	st, err := table.Stat(fd)
	require.NoError(t, err)
	assert.Equal(t, int64(256), st.Size)
}
