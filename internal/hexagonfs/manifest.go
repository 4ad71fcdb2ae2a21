package hexagonfs

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// manifestNode is the YAML shape of one tree node. Children stays a raw
// sequence node so the anchors/aliases in it remain visible: a node reused via
// a YAML anchor/alias (e.g. an operator expressing /persist and
// /mnt/vendor/persist as "*persist") is an alias node pointing at the same
// *yaml.Node as its anchor, which LoadManifest uses below to give both
// locations the same NodeID — the YAML-manifest equivalent of rpcd_builder.c's
// construct_root_dir reusing one malloc'd hexagonfs_dirent pointer for both
// paths.
type manifestNode struct {
	Name     string    `yaml:"name"`
	Kind     string    `yaml:"kind"`
	Phys     string    `yaml:"phys,omitempty"`
	Children yaml.Node `yaml:"children,omitempty"`
}

// LoadManifest decodes a tree manifest from r. See manifestNode for the
// expected shape; kind is one of "dir", "mapped", "sysfs", or "missing".
func LoadManifest(r io.Reader) (*Tree, error) {
	var doc yaml.Node
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("hexagonfs: decode manifest: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("hexagonfs: decode manifest: empty document")
	}

	var b Builder
	seen := make(map[*yaml.Node]NodeID)

	id, err := buildFromManifest(&b, doc.Content[0], seen)
	if err != nil {
		return nil, err
	}

	return b.Build(id), nil
}

func buildFromManifest(b *Builder, n *yaml.Node, seen map[*yaml.Node]NodeID) (NodeID, error) {
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if id, ok := seen[n]; ok {
		return id, nil
	}

	var m manifestNode
	if err := n.Decode(&m); err != nil {
		return noNode, fmt.Errorf("hexagonfs: decode manifest: %w", err)
	}

	var id NodeID
	switch m.Kind {
	case "dir":
		// Reserve the node before recursing isn't possible with the
		// current append-only Builder, so a manifest cannot alias a
		// directory to one of its own descendants — only sideways/upward
		// sharing (like /persist) is supported, which is all the reference
		// tree ever needed.
		children := make([]NodeID, 0, len(m.Children.Content))
		for _, c := range m.Children.Content {
			cid, err := buildFromManifest(b, c, seen)
			if err != nil {
				return noNode, err
			}
			children = append(children, cid)
		}
		id = b.VirtualDir(m.Name, children...)
	case "mapped":
		id = b.Mapped(m.Name, m.Phys)
	case "sysfs":
		id = b.MappedSysfs(m.Name, m.Phys)
	case "missing":
		id = b.MissingSysfsStub(m.Name, m.Phys)
	default:
		return noNode, fmt.Errorf("hexagonfs: manifest node %q: unknown kind %q", m.Name, m.Kind)
	}

	seen[n] = id
	return id, nil
}
