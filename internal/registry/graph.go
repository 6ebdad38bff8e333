package registry

import (
	"sort"
	"strings"
)

// Graph is a directed graph of module ids. An edge from -> to means
// "from depends on to".
type Graph struct {
	nodes map[string]bool
	out   map[string]map[string]bool
	in    map[string]map[string]bool
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]bool),
		out:   make(map[string]map[string]bool),
		in:    make(map[string]map[string]bool),
	}
}

// AddNode adds a node without edges.
func (g *Graph) AddNode(id string) {
	g.nodes[id] = true
}

// AddEdge adds a dependency edge, creating nodes as needed.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	if g.out[from] == nil {
		g.out[from] = make(map[string]bool)
	}
	if g.in[to] == nil {
		g.in[to] = make(map[string]bool)
	}
	g.out[from][to] = true
	g.in[to][from] = true
}

// Nodes returns every node, sorted.
func (g *Graph) Nodes() []string {
	nodes := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	return nodes
}

// Successors returns the sorted outgoing neighbours of id.
func (g *Graph) Successors(id string) []string {
	return sortedKeys(g.out[id])
}

// FanOut is the number of distinct outgoing edges.
func (g *Graph) FanOut(id string) int { return len(g.out[id]) }

// FanIn is the number of distinct incoming edges.
func (g *Graph) FanIn(id string) int { return len(g.in[id]) }

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, succ := range g.out {
		n += len(succ)
	}
	return n
}

// Cycles finds circular dependencies using Tarjan's algorithm. Each cycle
// is returned as a closed walk starting at its smallest id, for example
// [a b c a]. Results are sorted so repeated runs agree.
func (g *Graph) Cycles() [][]string {
	index := 0
	var stack []string
	indices := make(map[string]int)
	lowlinks := make(map[string]int)
	onStack := make(map[string]bool)
	var components [][]string

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlinks[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.Successors(v) {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				if lowlinks[w] < lowlinks[v] {
					lowlinks[v] = lowlinks[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlinks[v] {
					lowlinks[v] = indices[w]
				}
			}
		}

		if lowlinks[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			if len(scc) > 1 || g.out[v][v] {
				components = append(components, scc)
			}
		}
	}

	for _, n := range g.Nodes() {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}

	cycles := make([][]string, 0, len(components))
	for _, scc := range components {
		cycles = append(cycles, g.walkComponent(scc))
	}
	sort.Slice(cycles, func(i, j int) bool {
		return strings.Join(cycles[i], ",") < strings.Join(cycles[j], ",")
	})
	return cycles
}

// walkComponent returns one closed walk through a strongly connected
// component, starting and ending at its smallest member.
func (g *Graph) walkComponent(scc []string) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}
	sorted := append([]string(nil), scc...)
	sort.Strings(sorted)
	start := sorted[0]

	if len(scc) == 1 {
		return []string{start, start}
	}

	// Depth-first search back to start, staying inside the component.
	visited := map[string]bool{start: true}
	path := []string{start}
	var dfs func(string) bool
	dfs = func(v string) bool {
		for _, w := range g.Successors(v) {
			if !members[w] {
				continue
			}
			if w == start {
				path = append(path, start)
				return true
			}
			if visited[w] {
				continue
			}
			visited[w] = true
			path = append(path, w)
			if dfs(w) {
				return true
			}
			path = path[:len(path)-1]
		}
		return false
	}
	if !dfs(start) {
		return append(sorted, start)
	}
	return path
}

// FormatCycle renders a cycle as "a → b → a".
func FormatCycle(cycle []string) string {
	return strings.Join(cycle, " → ")
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
