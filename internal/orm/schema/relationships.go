package schema

import (
	"strings"
)

// Graph is a resolved, read-only set of document nodes
type Graph struct {
	nodes        []*Node
	byType       map[TypeID]*Node
	byCollection map[string]*Node
}

func newGraph(size int) *Graph {
	return &Graph{
		nodes:        make([]*Node, 0, size),
		byType:       make(map[TypeID]*Node, size),
		byCollection: make(map[string]*Node, size),
	}
}

func (g *Graph) add(node *Node) {
	g.nodes = append(g.nodes, node)
	g.byType[node.Type] = node
	// The first declaration of a collection name wins lookups by name
	if _, exists := g.byCollection[node.CollectionName]; !exists {
		g.byCollection[node.CollectionName] = node
	}
}

// Node returns the node of a document type
func (g *Graph) Node(t TypeID) (*Node, bool) {
	node, ok := g.byType[t]
	return node, ok
}

// ByCollection returns the node mapped to a collection name
func (g *Graph) ByCollection(name string) (*Node, bool) {
	node, ok := g.byCollection[name]
	return node, ok
}

// Nodes returns all nodes in registration order
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Cycles returns the reference cycles of the graph as collection name paths.
// Cycles are legal; they are reported for diagnostics only.
func (g *Graph) Cycles() [][]string {
	var cycles [][]string
	visited := make(map[*Node]bool)
	onStack := make(map[*Node]bool)

	var dfs func(node *Node, path []*Node)
	dfs = func(node *Node, path []*Node) {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, field := range node.ReferenceFields() {
			neighbor := node.References[field]
			if !visited[neighbor] {
				dfs(neighbor, path)
				continue
			}
			if !onStack[neighbor] {
				continue
			}

			// Back edge: the cycle is the path suffix starting at neighbor
			for i, n := range path {
				if n == neighbor {
					cycle := make([]string, 0, len(path)-i)
					for _, member := range path[i:] {
						cycle = append(cycle, member.CollectionName)
					}
					cycles = append(cycles, cycle)
					break
				}
			}
		}

		onStack[node] = false
	}

	for _, node := range g.nodes {
		if !visited[node] {
			dfs(node, nil)
		}
	}

	return cycles
}

// formatCycles formats cycles for logging
func formatCycles(cycles [][]string) string {
	lines := make([]string, 0, len(cycles))
	for _, cycle := range cycles {
		if len(cycle) == 0 {
			continue
		}
		lines = append(lines, strings.Join(append(cycle, cycle[0]), " -> "))
	}
	return strings.Join(lines, "; ")
}
