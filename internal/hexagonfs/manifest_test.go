package hexagonfs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifestYAML = `
name: /
kind: dir
children:
  - name: mnt
    kind: dir
    children:
      - name: vendor
        kind: dir
        children:
          - &persist
            name: persist
            kind: dir
            children:
              - name: registry
                kind: mapped
                phys: /srv/sensors/registry
  - *persist
  - name: sys
    kind: dir
    children:
      - name: platform_subtype
        kind: missing
        phys: /sys/kernel/debug/qcom_socinfo/hardware_platform_subtype
      - name: soc_id
        kind: sysfs
        phys: /sys/devices/soc0/soc_id
`

func TestLoadManifestSharesAliasedNode(t *testing.T) {
	tree, err := LoadManifest(strings.NewReader(manifestYAML))
	require.NoError(t, err)

	root := tree.Root()
	mnt, ok := tree.ChildNamed(root, "mnt")
	require.True(t, ok)
	mntVendor, ok := tree.ChildNamed(mnt, "vendor")
	require.True(t, ok)
	mntVendorPersist, ok := tree.ChildNamed(mntVendor, "persist")
	require.True(t, ok)

	persist, ok := tree.ChildNamed(root, "persist")
	require.True(t, ok)

	assert.Equal(t, persist, mntVendorPersist, "aliased YAML node must decode to the same NodeID")
}

func TestLoadManifestKinds(t *testing.T) {
	tree, err := LoadManifest(strings.NewReader(manifestYAML))
	require.NoError(t, err)

	sys, ok := tree.ChildNamed(tree.Root(), "sys")
	require.True(t, ok)

	missing, ok := tree.ChildNamed(sys, "platform_subtype")
	require.True(t, ok)
	assert.Equal(t, KindMissingSysfsStub, tree.Kind(missing))

	sysfs, ok := tree.ChildNamed(sys, "soc_id")
	require.True(t, ok)
	assert.Equal(t, KindMappedSysfs, tree.Kind(sysfs))
}

func TestLoadManifestUnknownKind(t *testing.T) {
	_, err := LoadManifest(strings.NewReader("name: x\nkind: bogus\n"))
	assert.ErrorContains(t, err, "unknown kind")
}
