package scene

import (
	"sort"

	"github.com/arlow/armature/pkg/status"
)

// Graph is the registry of placed nodes, id → entry. It is confined to the
// scene-affinity goroutine (see pkg/queue): every mutation and read runs
// there, so the registry itself carries no locking.
type Graph struct {
	nodes map[string]*Node
	order []string // insertion order of live ids
}

// NewGraph creates an empty node registry.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// Add registers a node. Duplicate ids are rejected so two entries can never
// share an id.
func (g *Graph) Add(n *Node) error {
	if n.ID == "" {
		return status.New(status.InvalidArguments, "node id must not be empty")
	}
	if _, exists := g.nodes[n.ID]; exists {
		return status.Newf(status.InvalidArguments, "node id %q already exists", n.ID)
	}
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	return nil
}

// Get returns the node with the given id.
func (g *Graph) Get(id string) (*Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, status.Newf(status.NodeNotFound, "no node with id %q", id)
	}
	return n, nil
}

// Has reports whether a node with the given id exists.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Update applies a partial transform to a node. Omitted fields keep their
// current value. Returns the updated node.
func (g *Graph) Update(id string, patch TransformPatch) (*Node, error) {
	n, err := g.Get(id)
	if err != nil {
		return nil, err
	}
	if patch.Position != nil {
		n.Transform.Position = *patch.Position
	}
	if patch.Rotation != nil {
		n.Transform.Rotation = *patch.Rotation
	}
	if patch.Scale != nil {
		n.Transform.Scale = *patch.Scale
	}
	return n, nil
}

// Remove drops a node from the registry and returns it so the caller can
// detach its render handle (and any anchor-node owned solely by it).
func (g *Graph) Remove(id string) (*Node, error) {
	n, err := g.Get(id)
	if err != nil {
		return nil, err
	}
	delete(g.nodes, id)
	for i, oid := range g.order {
		if oid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return n, nil
}

// Clear drains every node from the registry, returning them in insertion
// order for detachment.
func (g *Graph) Clear() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		if n, ok := g.nodes[id]; ok {
			out = append(out, n)
		}
	}
	g.nodes = make(map[string]*Node)
	g.order = nil
	return out
}

// Count returns the number of registered nodes.
func (g *Graph) Count() int {
	return len(g.nodes)
}

// List returns all nodes in insertion order.
func (g *Graph) List() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		if n, ok := g.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// IDs returns the sorted ids of all registered nodes.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
