// Package hexagonfs implements the reverse-tunnel virtual filesystem the DSP
// sees through apps_std: a read-only tree of virtual directories, files
// mapped onto real host paths, and sysfs-flavored variants of the same.
//
// Grounded on fastrpc/hexagonrpcd/hexagonfs.c (the node/arena model,
// hexagonfs_open_root/openat/close and their traversal algorithm),
// hexagonfs_mapped.c and hexagonfs_virt_dir.c (the per-kind operations), and
// rpcd_builder.c's construct_root_dir (the default tree shape, including the
// literal shared-pointer aliasing of /persist and /mnt/vendor/persist).
package hexagonfs

// NodeKind identifies which operations a node supports.
type NodeKind int

const (
	// KindVirtualDir is an in-memory directory listing other nodes.
	KindVirtualDir NodeKind = iota
	// KindMapped is a file or directory backed by a real host path.
	KindMapped
	// KindMappedSysfs is KindMapped with the sysfs stat quirk: a nonzero,
	// fixed apparent size (downstream kernels report 256) for any file,
	// since sysfs attributes don't report a real size without being read.
	KindMappedSysfs
	// KindMissingSysfsStub models a sysfs attribute absent on this platform
	// (e.g. platform_subtype on single-SKU devices): it reports itself as a
	// zero-size regular file and accepts no openat beneath it, but is not
	// actually readable.
	KindMissingSysfsStub
)

// NodeID addresses a node within a Tree's arena. Two NodeIDs compare equal
// exactly when they name the same node, which is how shared subtrees (like
// /persist) are expressed: the same NodeID appears as a child in more than
// one directory's child list.
type NodeID int32

// noNode is the "no node" sentinel; Tree never assigns it to a real node.
const noNode NodeID = -1

type node struct {
	name     string
	kind     NodeKind
	phys     string
	children []NodeID
}

// Tree is an immutable, arena-backed node graph. Build one with Builder or
// LoadManifest; there is no mutation after Build.
type Tree struct {
	nodes []node
	root  NodeID
}

// Root returns the tree's root node.
func (t *Tree) Root() NodeID {
	return t.root
}

// Name returns a node's own path segment.
func (t *Tree) Name(id NodeID) string {
	return t.nodes[id].name
}

// Kind returns a node's kind.
func (t *Tree) Kind(id NodeID) NodeKind {
	return t.nodes[id].kind
}

// Phys returns the host-filesystem path a mapped-kind node is backed by.
// Meaningless for KindVirtualDir.
func (t *Tree) Phys(id NodeID) string {
	return t.nodes[id].phys
}

// Children returns the direct children of a virtual directory node, or nil
// for any other kind.
func (t *Tree) Children(id NodeID) []NodeID {
	return t.nodes[id].children
}

// ChildNamed returns the child of a virtual directory node with the given
// name, mirroring hexagonfs_virt_dir.c's linear walk_dir.
func (t *Tree) ChildNamed(id NodeID, name string) (NodeID, bool) {
	for _, c := range t.nodes[id].children {
		if t.nodes[c].name == name {
			return c, true
		}
	}
	return noNode, false
}

// Builder accumulates nodes into a fresh arena. The zero value is ready to
// use.
type Builder struct {
	nodes []node
}

// VirtualDir adds an in-memory directory with the given children, returning
// its NodeID. Passing the same NodeID as a child of two different
// directories is how a shared subtree (like /persist) is expressed.
func (b *Builder) VirtualDir(name string, children ...NodeID) NodeID {
	return b.add(node{name: name, kind: KindVirtualDir, children: children})
}

// Mapped adds a host-backed file or directory.
func (b *Builder) Mapped(name, phys string) NodeID {
	return b.add(node{name: name, kind: KindMapped, phys: phys})
}

// MappedSysfs adds a host-backed sysfs attribute file.
func (b *Builder) MappedSysfs(name, phys string) NodeID {
	return b.add(node{name: name, kind: KindMappedSysfs, phys: phys})
}

// MissingSysfsStub adds a sysfs attribute that this platform doesn't carry.
func (b *Builder) MissingSysfsStub(name, phys string) NodeID {
	return b.add(node{name: name, kind: KindMissingSysfsStub, phys: phys})
}

func (b *Builder) add(n node) NodeID {
	id := NodeID(len(b.nodes))
	b.nodes = append(b.nodes, n)
	return id
}

// Build finalizes the arena with the given root.
func (b *Builder) Build(root NodeID) *Tree {
	return &Tree{nodes: b.nodes, root: root}
}

// BuildDefaultTree constructs the stock tree rpcd_builder.c's
// construct_root_dir builds: sensor registry, ACDB data, and DSP libraries
// rooted under prefix (the host path standing in for the device's /vendor
// etc.), plus the DSP library node: always named "adsp", mapped onto
// prefix/dsp/<dsp> (e.g. dsp "adsp" or "slpi"). /persist and
// /mnt/vendor/persist are the same node.
func BuildDefaultTree(prefix, dsp string) *Tree {
	var b Builder

	registry := b.Mapped("registry", prefix+"/sensors/registry/")
	persist := b.VirtualDir("persist",
		b.VirtualDir("sensors", b.VirtualDir("registry", registry)))

	// construct_root_dir names this node "adsp" literally regardless of
	// which DSP the physical path points at (slpi, cdsp, ...); apps_std's
	// ADSP_LIBRARY_PATH lookup depends on that fixed name.
	adsp := b.Mapped("adsp", prefix+"/dsp/"+dsp)
	usrLibQcom := b.VirtualDir("qcom", adsp)
	usrLib := b.VirtualDir("lib", usrLibQcom)
	usr := b.VirtualDir("usr", usrLib)

	sensorsConfig := b.Mapped("config", prefix+"/sensors/config/")
	snsRegConfig := b.Mapped("sns_reg_config", prefix+"/sensors/sns_reg.conf")
	acdbdata := b.Mapped("acdbdata", prefix+"/acdb/")
	vendorEtcSensors := b.VirtualDir("sensors", sensorsConfig, snsRegConfig)
	vendorEtc := b.VirtualDir("etc", vendorEtcSensors, acdbdata)
	vendor := b.VirtualDir("vendor", vendorEtc)

	mntVendor := b.VirtualDir("vendor", persist)
	mnt := b.VirtualDir("mnt", mntVendor)

	root := b.VirtualDir("/", mnt, persist, usr, vendor)

	return b.Build(root)
}
