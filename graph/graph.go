package graph

import "sort"

// Graph is a node+edge collection with an entry point: the static shape
// of a workflow (spec.md §3). It is built once per run by resolving a
// serialized definition's tool names through a Registry (spec.md §4.1),
// then validated before execution (spec.md §4.4).
type Graph struct {
	Name        string
	Description string

	nodes       map[string]*Node
	edges       []Edge
	entryPoint  string
	edgeManager *edgeManager
}

// NodeDef and EdgeDef are the serializable building blocks used to
// construct a Graph through a Registry, mirroring the wire format in
// spec.md §6 (`nodes: [{name, tool}]`, `edges: [{from, to, condition}]`).
type NodeDef struct {
	Name string
	Tool string // tool name, resolved through the Registry
	Meta NodeMeta
}

type EdgeDef struct {
	From      string
	To        string
	Condition string // predicate name, resolved through the Registry; empty means unconditional
}

// Definition is the graph-level wire shape: nodes and edges reference
// tool/predicate *names*, not in-process callables, so a graph definition
// can travel through persistence (spec.md §4.1).
type Definition struct {
	Name        string
	Description string
	Nodes       []NodeDef
	Edges       []EdgeDef
	EntryPoint  string
}

// Build rehydrates a Definition into an executable Graph by resolving
// every node's tool name and every conditional edge's predicate name
// through reg. It fails with ToolNotFoundError naming the offending tool,
// per spec.md §6 ("unknown tool name at build time -> 400 referencing the
// offending tool"). Build does not validate graph structure; call
// Validate afterward.
func Build(def Definition, reg *Registry, concurrency int) (*Graph, error) {
	pool := newWorkerPool(concurrency)

	nodes := make(map[string]*Node, len(def.Nodes))
	for _, nd := range def.Nodes {
		fn, meta, err := reg.Lookup(nd.Tool)
		if err != nil {
			return nil, err
		}
		nodes[nd.Name] = &Node{
			Name:  nd.Name,
			Tool:  fn,
			Meta:  nd.Meta,
			async: meta.Async,
			pool:  pool,
		}
	}

	edges := make([]Edge, 0, len(def.Edges))
	for _, ed := range def.Edges {
		e := Edge{From: ed.From, To: ed.To}
		if ed.Condition != "" {
			pred, err := reg.LookupPredicate(ed.Condition)
			if err != nil {
				return nil, err
			}
			e.Predicate = pred
		}
		edges = append(edges, e)
	}

	g := &Graph{
		Name:        def.Name,
		Description: def.Description,
		nodes:       nodes,
		edges:       edges,
		entryPoint:  def.EntryPoint,
	}
	g.edgeManager = newEdgeManager(edges)
	return g, nil
}

// New constructs an empty Graph for programmatic (non-wire) assembly via
// AddNode/AddEdge, mirroring the teacher's builder-style `engine.Add`.
func New(name, description, entryPoint string) *Graph {
	return &Graph{
		Name:        name,
		Description: description,
		entryPoint:  entryPoint,
		nodes:       make(map[string]*Node),
		edgeManager: newEdgeManager(nil),
	}
}

// AddNode registers an in-process node directly (bypassing the Registry),
// useful for tests and programs that assemble a graph without a
// serialization round-trip.
func (g *Graph) AddNode(name string, fn ToolFunc, meta NodeMeta, async bool, pool *workerPool) {
	g.nodes[name] = &Node{Name: name, Tool: fn, Meta: meta, async: async, pool: pool}
}

// AddEdge appends an edge and rebuilds the edge index. Edges must be
// added in the order they should be evaluated (spec.md §4.3 tie-break).
func (g *Graph) AddEdge(e Edge) {
	g.edges = append(g.edges, e)
	g.edgeManager = newEdgeManager(g.edges)
}

// EntryPoint returns the graph's configured entry node name.
func (g *Graph) EntryPoint() string { return g.entryPoint }

// Node returns the node named name, or nil if absent.
func (g *Graph) Node(name string) *Node { return g.nodes[name] }

// NodeNames returns all node names in this graph, sorted for deterministic
// iteration (used by Validate's reachability pass and by FindCycles).
func (g *Graph) NodeNames() []string {
	names := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate runs the four ordered structural checks from spec.md §4.4 and
// returns the first offense found as a *GraphValidationError. A validated
// graph is safe to pass to Engine.Execute.
func (g *Graph) Validate() error {
	// 1. entry_point is set and names a known node.
	if g.entryPoint == "" {
		return &GraphValidationError{Reason: "missing_entry_point", Detail: "entry_point is not set"}
	}
	if _, ok := g.nodes[g.entryPoint]; !ok {
		return &GraphValidationError{Reason: "missing_entry_point", Detail: "entry_point " + g.entryPoint + " is not a known node"}
	}

	// 2. every edge endpoint names a known node.
	for _, e := range g.edges {
		if _, ok := g.nodes[e.From]; !ok {
			return &GraphValidationError{Reason: "unknown_edge_endpoint", Detail: "edge references unknown from-node " + e.From}
		}
		if _, ok := g.nodes[e.To]; !ok {
			return &GraphValidationError{Reason: "unknown_edge_endpoint", Detail: "edge references unknown to-node " + e.To}
		}
	}

	// 3. no unconditional self-loop.
	for _, e := range g.edges {
		if e.From == e.To && e.Predicate == nil {
			return &GraphValidationError{Reason: "unconditional_self_loop", Detail: "node " + e.From + " has an unconditional self-loop"}
		}
	}

	// 4. reachability: forward BFS from entry_point covers every node.
	reached := map[string]bool{g.entryPoint: true}
	queue := []string{g.entryPoint}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.edgeManager.outgoing(cur) {
			if !reached[e.To] {
				reached[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	for _, name := range g.NodeNames() {
		if !reached[name] {
			return &GraphValidationError{Reason: "unreachable_node", Detail: "node " + name + " is not reachable from entry_point " + g.entryPoint}
		}
	}

	return nil
}

// FindCycles is an advisory API (not part of validation) that reports
// every simple cycle detectable by DFS, for visualization/UX purposes
// (spec.md §4.4). Cycles are allowed; this does not affect Validate.
func (g *Graph) FindCycles() [][]string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.nodes))
	var stack []string
	var cycles [][]string

	var visit func(node string)
	visit = func(node string) {
		color[node] = gray
		stack = append(stack, node)

		for _, e := range g.edgeManager.outgoing(node) {
			switch color[e.To] {
			case white:
				visit(e.To)
			case gray:
				// Found a back edge: extract the cycle from stack.
				idx := -1
				for i, n := range stack {
					if n == e.To {
						idx = i
						break
					}
				}
				if idx >= 0 {
					cycle := append([]string{}, stack[idx:]...)
					cycle = append(cycle, e.To)
					cycles = append(cycles, cycle)
				}
			case black:
				// Cross/forward edge: no cycle through here.
			}
		}

		stack = stack[:len(stack)-1]
		color[node] = black
	}

	for _, name := range g.NodeNames() {
		if color[name] == white {
			visit(name)
		}
	}
	return cycles
}
