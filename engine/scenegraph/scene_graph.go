package scenegraph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-bridge/common"
	"github.com/Carmen-Shannon/oxy-bridge/engine/material"
	"github.com/go-logr/logr"
)

// sceneGraph is the implementation of the SceneGraph interface.
type sceneGraph struct {
	mu *sync.RWMutex

	root   *nodeBase
	nextID uint64
	nodes  map[uint64]Node

	logger logr.Logger
}

// SceneGraph owns the light and mesh nodes of the render scene.
// Thread-safe for concurrent access; node setters themselves are not synchronized.
type SceneGraph interface {
	// Root returns the root node. It cannot be destroyed.
	Root() Node

	// CreateLight creates a light node under parent.
	//
	// Parameters:
	//   - parent: the parent node, nil for the root
	//   - lightType: the kind of light
	//   - options: functional options for the light
	//
	// Returns:
	//   - LightNode: the new light
	//   - error: error wrapping common.ErrNotFound if parent is not part of the graph
	CreateLight(parent Node, lightType LightType, options ...LightBuilderOption) (LightNode, error)

	// CreateMesh creates a mesh node under parent with one primitive per sub-mesh.
	//
	// Parameters:
	//   - parent: the parent node, nil for the root
	//   - name: the model name
	//   - subMeshes: the number of primitives
	//   - mat: the material every primitive starts with
	//
	// Returns:
	//   - MeshNode: the new mesh
	//   - error: error wrapping common.ErrNotFound if parent is not part of the graph
	CreateMesh(parent Node, name string, subMeshes int, mat material.Handle) (MeshNode, error)

	// DestroyNode removes a node and its whole subtree from the graph.
	//
	// Parameters:
	//   - n: the node to destroy
	//
	// Returns:
	//   - error: error wrapping common.ErrNotFound if n is not part of the graph
	DestroyNode(n Node) error

	// Node looks up a node by ID.
	//
	// Parameters:
	//   - id: the node ID
	//
	// Returns:
	//   - Node: the node
	//   - bool: false if no such node exists
	Node(id uint64) (Node, bool)

	// Lights returns every light node ordered by ID.
	Lights() []LightNode

	// Meshes returns every mesh node ordered by ID.
	Meshes() []MeshNode

	// Len returns the number of nodes, excluding the root.
	Len() int
}

var _ SceneGraph = &sceneGraph{}

// NewSceneGraph creates an empty scene graph with a root node.
//
// Parameters:
//   - options: functional options to configure the graph
//
// Returns:
//   - SceneGraph: the new graph
func NewSceneGraph(options ...SceneGraphBuilderOption) SceneGraph {
	root := newNodeBase(0, nil)
	g := &sceneGraph{
		mu:     &sync.RWMutex{},
		root:   &root,
		nextID: 1,
		nodes:  make(map[uint64]Node),
		logger: logr.Discard(),
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

func (g *sceneGraph) Root() Node {
	return g.root
}

func (g *sceneGraph) CreateLight(parent Node, lightType LightType, options ...LightBuilderOption) (LightNode, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.resolveParent(parent)
	if err != nil {
		return nil, err
	}
	l := newLightNode(g.nextID, p, lightType, options...)
	g.nodes[l.id] = l
	g.nextID++
	g.logger.V(1).Info("light node created", "node", l.id, "type", lightType)
	return l, nil
}

func (g *sceneGraph) CreateMesh(parent Node, name string, subMeshes int, mat material.Handle) (MeshNode, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.resolveParent(parent)
	if err != nil {
		return nil, err
	}
	m := &meshNode{
		nodeBase: newNodeBase(g.nextID, p),
		mdl:      newModel(name, subMeshes, mat),
	}
	g.nodes[m.id] = m
	g.nextID++
	g.logger.V(1).Info("mesh node created", "node", m.id, "name", name, "primitives", subMeshes)
	return m, nil
}

func (g *sceneGraph) DestroyNode(n Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n == nil {
		return fmt.Errorf("scene graph: destroy nil node: %w", common.ErrNotFound)
	}
	if existing, ok := g.nodes[n.ID()]; !ok || existing != n {
		return fmt.Errorf("scene graph: destroy node %d: %w", n.ID(), common.ErrNotFound)
	}

	g.destroyLocked(n.ID())
	return nil
}

func (g *sceneGraph) Node(id uint64) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if id == 0 {
		return g.root, true
	}
	n, ok := g.nodes[id]
	return n, ok
}

func (g *sceneGraph) Lights() []LightNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []LightNode
	for _, n := range g.nodes {
		if l, ok := n.(LightNode); ok {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (g *sceneGraph) Meshes() []MeshNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []MeshNode
	for _, n := range g.nodes {
		if m, ok := n.(MeshNode); ok {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (g *sceneGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// resolveParent maps a nil parent to the root and checks membership. Caller holds the lock.
func (g *sceneGraph) resolveParent(parent Node) (Node, error) {
	if parent == nil || parent.base() == g.root {
		return g.root, nil
	}
	if existing, ok := g.nodes[parent.ID()]; !ok || existing != parent {
		return nil, fmt.Errorf("scene graph: parent node %d: %w", parent.ID(), common.ErrNotFound)
	}
	return parent, nil
}

// destroyLocked removes id and its descendants. Caller holds the lock.
func (g *sceneGraph) destroyLocked(id uint64) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	for childID, child := range g.nodes {
		if child.Parent() == n {
			g.destroyLocked(childID)
		}
	}
	delete(g.nodes, id)
	g.logger.V(1).Info("node destroyed", "node", id)
}
