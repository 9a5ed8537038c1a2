package core

import (
	"container/heap"
	"sort"

	"github.com/signalsfoundry/leo-route-optimizer/model"
)

const (
	// congestionScale multiplies the combined load factor in edge weights.
	congestionScale = 3.0
	// minEdgeWeight keeps weights strictly positive for co-located satellites.
	minEdgeWeight = 1e-9
)

// Edge is a weighted adjacency entry.
type Edge struct {
	To     string
	Weight float64
}

// RoutingGraph is an undirected weighted graph over the satellites that
// survived the fault filter.
type RoutingGraph struct {
	nodes map[string]struct{}
	adj   map[string][]Edge
}

// BuildRoutingGraph creates the routing graph for a snapshot. Disabled
// satellites are dropped along with every link touching them, and links
// naming satellites absent from the snapshot are ignored.
func BuildRoutingGraph(sats []model.Satellite, links []model.Link, fault FaultModel) *RoutingGraph {
	g := &RoutingGraph{
		nodes: make(map[string]struct{}, len(sats)),
		adj:   make(map[string][]Edge, len(sats)),
	}

	byID := make(map[string]model.Satellite, len(sats))
	for _, s := range sats {
		if _, dup := byID[s.ID]; dup {
			continue
		}
		byID[s.ID] = s
		if fault.IsDisabled(s.ID) {
			continue
		}
		g.nodes[s.ID] = struct{}{}
	}

	for _, l := range links {
		if l.A == l.B || !g.HasNode(l.A) || !g.HasNode(l.B) {
			continue
		}
		w := EdgeWeight(byID[l.A], byID[l.B])
		g.adj[l.A] = append(g.adj[l.A], Edge{To: l.B, Weight: w})
		g.adj[l.B] = append(g.adj[l.B], Edge{To: l.A, Weight: w})
	}
	return g
}

// EdgeWeight is the planar distance between two satellites inflated by their
// combined load: dist * (1 + (load1+load2)/200 * 3).
func EdgeWeight(a, b model.Satellite) float64 {
	dist := PlanarDistanceDeg(a.Lat, a.Lon, b.Lat, b.Lon)
	loadFactor := float64(a.Load+b.Load) / 200.0
	w := dist * (1 + loadFactor*congestionScale)
	if w < minEdgeWeight {
		return minEdgeWeight
	}
	return w
}

// HasNode reports whether id is a routable node.
func (g *RoutingGraph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns the node IDs in sorted order.
func (g *RoutingGraph) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Neighbors returns the edges leaving id.
func (g *RoutingGraph) Neighbors(id string) []Edge {
	return g.adj[id]
}

// EdgeCount returns the number of undirected edges.
func (g *RoutingGraph) EdgeCount() int {
	n := 0
	for _, edges := range g.adj {
		n += len(edges)
	}
	return n / 2
}

// ShortestPath runs Dijkstra from src to dst and returns the node sequence
// and its total weight. Equal-cost frontier entries are popped in ID order so
// results are reproducible.
func (g *RoutingGraph) ShortestPath(src, dst string) ([]string, float64, bool) {
	if !g.HasNode(src) || !g.HasNode(dst) {
		return nil, 0, false
	}
	if src == dst {
		return []string{src}, 0, true
	}

	dist := map[string]float64{src: 0}
	prev := make(map[string]string)
	done := make(map[string]bool)

	pq := &frontier{{id: src, dist: 0}}
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(frontierItem)
		if done[cur.id] {
			continue
		}
		done[cur.id] = true
		if cur.id == dst {
			break
		}
		for _, e := range g.adj[cur.id] {
			if done[e.To] {
				continue
			}
			nd := cur.dist + e.Weight
			if old, ok := dist[e.To]; !ok || nd < old {
				dist[e.To] = nd
				prev[e.To] = cur.id
				heap.Push(pq, frontierItem{id: e.To, dist: nd})
			}
		}
	}

	if !done[dst] {
		return nil, 0, false
	}

	path := []string{dst}
	for node := dst; node != src; {
		node = prev[node]
		path = append(path, node)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, dist[dst], true
}

type frontierItem struct {
	id   string
	dist float64
}

type frontier []frontierItem

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].dist != f[j].dist {
		return f[i].dist < f[j].dist
	}
	return f[i].id < f[j].id
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x any)   { *f = append(*f, x.(frontierItem)) }
func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	item := old[n-1]
	*f = old[:n-1]
	return item
}
