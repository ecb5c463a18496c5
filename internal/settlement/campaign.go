package settlement

import (
	"container/heap"
	"math"
	"sort"

	"github.com/talgya/settlement-sim/internal/worldhost"
)

type frontKey struct {
	country int
	node    int
}

// updateCampaignLogisticsAndAttrition picks a source node per country,
// collects hostile frontier pairs, runs Dijkstra from each source to
// each front over the transport graph weighted by cost/reliability,
// loads the shortest path's edges, and derives per-edge
// deficit/attrition and per-node war-attrition.
func (e *Engine) updateCampaignLogisticsAndAttrition(countries []worldhost.CountryWriter) {
	cfg := e.ctx.Config.ResearchSettlement
	for i := range e.states {
		e.states[i].WarAttrition = 0
	}
	for i := range e.edges {
		e.edges[i].CampaignLoad = 0
	}
	if !cfg.CampaignLogistics {
		for i := range e.edges {
			e.edges[i].CampaignDeficit = 0
			e.edges[i].CampaignAttrition = 1
		}
		return
	}

	adj := e.buildAdjacency()

	sourceNode := make([]int, len(countries))
	for ci := range countries {
		best := -1
		bestScore := -1.0
		for i, n := range e.nodes {
			if n.OwnerCountry != ci {
				continue
			}
			score := n.Population * (0.35 + 0.35*n.LocalAdminCapacity + 0.30*n.LocalLegitimacy)
			if score > bestScore {
				bestScore = score
				best = i
			}
		}
		sourceNode[ci] = best
	}

	fronts := make(map[frontKey]bool)
	for _, edge := range e.edges {
		a, b := e.nodes[edge.FromNode], e.nodes[edge.ToNode]
		if a.OwnerCountry == b.OwnerCountry || a.OwnerCountry < 0 || b.OwnerCountry < 0 {
			continue
		}
		if e.atWar(a.OwnerCountry, b.OwnerCountry) {
			fronts[frontKey{a.OwnerCountry, edge.FromNode}] = true
			fronts[frontKey{b.OwnerCountry, edge.ToNode}] = true
		}
	}

	frontList := make([]frontKey, 0, len(fronts))
	for f := range fronts {
		frontList = append(frontList, f)
	}
	sort.Slice(frontList, func(i, j int) bool {
		if frontList[i].country != frontList[j].country {
			return frontList[i].country < frontList[j].country
		}
		return frontList[i].node < frontList[j].node
	})

	for _, f := range frontList {
		src := sourceNode[f.country]
		if src < 0 || src == f.node {
			continue
		}
		path, reachable := e.dijkstraNodePath(adj, src, f.node)
		if !reachable {
			continue
		}
		srcPop := e.nodes[src].Population
		dstPop := e.nodes[f.node].Population
		demand := cfg.CampaignDemandBase + cfg.CampaignDemandWarScale*math.Sqrt(maxf(0, srcPop)*maxf(0, dstPop))
		for _, edgeIdx := range path {
			e.edges[edgeIdx].CampaignLoad += demand
		}
	}

	for i := range e.edges {
		edge := &e.edges[i]
		deficit := maxf(0, edge.CampaignLoad-edge.Capacity*edge.Reliability)
		edge.CampaignDeficit = deficit
		attrition := math.Exp(-cfg.CampaignAttritionRate * deficit / maxf(1, edge.Capacity))
		edge.CampaignAttrition = clamp(attrition, 1e-6, 1)
		edge.Reliability = clamp(edge.Reliability*edge.CampaignAttrition, 0.03, 1)

		normDeficit := clamp01(deficit / maxf(1, edge.Capacity)) * 0.5 * cfg.CampaignNodeShockScale
		e.states[edge.FromNode].WarAttrition += normDeficit
		e.states[edge.ToNode].WarAttrition += normDeficit
	}
	for i := range e.states {
		e.states[i].WarAttrition = clamp01(e.states[i].WarAttrition)
	}
}

// buildAdjacency returns, per node, the list of (edgeIndex, neighbor)
// pairs incident on it.
func (e *Engine) buildAdjacency() [][]struct {
	edge int
	node int
} {
	adj := make([][]struct {
		edge int
		node int
	}, len(e.nodes))
	for i, edge := range e.edges {
		adj[edge.FromNode] = append(adj[edge.FromNode], struct {
			edge int
			node int
		}{i, edge.ToNode})
		adj[edge.ToNode] = append(adj[edge.ToNode], struct {
			edge int
			node int
		}{i, edge.FromNode})
	}
	return adj
}

// dijkstraNodePath finds the least-cost path (by cost/reliability edge
// weight) from src to dst over the node graph, returning the list of
// edge indices on the shortest path.
func (e *Engine) dijkstraNodePath(adj [][]struct {
	edge int
	node int
}, src, dst int) ([]int, bool) {
	dist := make([]float64, len(e.nodes))
	prevEdge := make([]int, len(e.nodes))
	prevNode := make([]int, len(e.nodes))
	visited := make([]bool, len(e.nodes))
	for i := range dist {
		dist[i] = math.Inf(1)
		prevEdge[i] = -1
		prevNode[i] = -1
	}
	dist[src] = 0
	pq := &dijkstraHeap{{node: src, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(dijkstraItem)
		if visited[cur.node] {
			continue
		}
		visited[cur.node] = true
		if cur.node == dst {
			break
		}
		for _, link := range adj[cur.node] {
			edge := e.edges[link.edge]
			weight := maxf(0.05, edge.Cost/maxf(0.03, edge.Reliability))
			nd := dist[cur.node] + weight
			if nd < dist[link.node] {
				dist[link.node] = nd
				prevEdge[link.node] = link.edge
				prevNode[link.node] = cur.node
				heap.Push(pq, dijkstraItem{node: link.node, dist: nd})
			}
		}
	}

	if math.IsInf(dist[dst], 1) {
		return nil, false
	}
	var path []int
	cur := dst
	for cur != src && prevEdge[cur] >= 0 {
		path = append(path, prevEdge[cur])
		cur = prevNode[cur]
	}
	return path, true
}
