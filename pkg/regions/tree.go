package regions

import (
	"fmt"

	"github.com/siselab/sise-engine/pkg/models"
)

// Tree is the administrative region hierarchy (province > district >
// neighborhood) built from parent pointers. It backs the bottom-up rollup of
// leaf-level price statistics into coarser regions.
type Tree struct {
	nodes map[int64]*models.Region
}

// NewTree builds a Tree and validates every parent pointer resolves.
func NewTree(regions []*models.Region) (*Tree, error) {
	t := &Tree{nodes: make(map[int64]*models.Region, len(regions))}
	for _, r := range regions {
		t.nodes[r.ID] = r
	}
	for _, r := range regions {
		if r.ParentID != nil {
			if _, ok := t.nodes[*r.ParentID]; !ok {
				return nil, fmt.Errorf("region %d (%s) references missing parent %d", r.ID, r.Name, *r.ParentID)
			}
		}
	}
	return t, nil
}

// Get returns a region node, or nil if unknown.
func (t *Tree) Get(id int64) *models.Region {
	return t.nodes[id]
}

// Ancestors returns the parent chain of a region from its immediate parent up
// to the province root. A leaf neighborhood yields its district then its
// province. Unknown regions yield nil.
func (t *Tree) Ancestors(id int64) []int64 {
	r, ok := t.nodes[id]
	if !ok {
		return nil
	}
	var chain []int64
	for r.ParentID != nil {
		parent, ok := t.nodes[*r.ParentID]
		if !ok {
			break
		}
		chain = append(chain, parent.ID)
		r = parent
	}
	return chain
}

// Len returns the number of regions in the tree.
func (t *Tree) Len() int {
	return len(t.nodes)
}
