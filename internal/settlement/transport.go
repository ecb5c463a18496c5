package settlement

import (
	"container/heap"
	"math"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/talgya/settlement-sim/internal/worldhost"
)

// candidateLink is a scored (cost, nodeA, nodeB) transport candidate
// produced by either the bucketed or least-cost-path generator, prior
// to per-node kNearest filtering and undirected dedup.
type candidateLink struct {
	a, b    int
	cost    float64
	seaLink bool
}

// rebuildTransportGraph runs every TransportRebuildIntervalYears years;
// otherwise it only refreshes per-edge capacity/reliability from
// current node populations and cost.
func (e *Engine) rebuildTransportGraph(year int, grid worldhost.FieldGrid) {
	cfg := e.ctx.Config
	interval := cfg.Settlements.TransportRebuildIntervalYears
	if interval <= 0 {
		interval = 1
	}
	if len(e.edges) > 0 && year%interval != 0 {
		e.refreshCapacityReliability()
		return
	}

	var candidates []candidateLink
	if cfg.ResearchSettlement.TransportPathRebuild {
		candidates = e.transportCandidatesDijkstra(grid)
	} else {
		candidates = e.transportCandidatesBucketed(grid)
	}

	// Per-node kNearest selection.
	byNode := make(map[int][]candidateLink)
	for _, c := range candidates {
		byNode[c.a] = append(byNode[c.a], c)
		rev := c
		rev.a, rev.b = c.b, c.a
		byNode[c.b] = append(byNode[c.b], rev)
	}
	k := cfg.Transport.KNearest
	if k <= 0 {
		k = 4
	}

	nodesWithCandidates := maps.Keys(byNode)
	slices.Sort(nodesWithCandidates)

	selected := make(map[uint64]candidateLink)
	for _, node := range nodesWithCandidates {
		links := byNode[node]
		slices.SortFunc(links, func(a, b candidateLink) int {
			switch {
			case a.cost < b.cost:
				return -1
			case a.cost > b.cost:
				return 1
			default:
				return 0
			}
		})
		if len(links) > k {
			links = links[:k]
		}
		for _, l := range links {
			lo, hi := node, l.b
			if lo > hi {
				lo, hi = hi, lo
			}
			key := packKey(lo, hi)
			if existing, ok := selected[key]; !ok || l.cost < existing.cost {
				selected[key] = candidateLink{a: lo, b: hi, cost: l.cost, seaLink: l.seaLink}
			}
		}
	}

	e.edges = e.edges[:0]
	for _, c := range selected {
		a, b := e.nodes[c.a], e.nodes[c.b]
		capacity := (24 + 0.06*math.Sqrt(maxf(0, a.Population)*maxf(0, b.Population))) / (1 + 0.08*c.cost)
		reliability := clamp(1/(1+0.06*c.cost), 0.05, 1)
		e.edges = append(e.edges, TransportEdge{
			FromNode:          c.a,
			ToNode:            c.b,
			Cost:              c.cost,
			Capacity:          maxf(0, capacity),
			Reliability:       reliability,
			SeaLink:           c.seaLink,
			CampaignAttrition: 1,
		})
	}
	e.sortEdgesCanonical()
}

func packKey(lo, hi int) uint64 {
	return (uint64(uint32(lo)) << 32) | uint64(uint32(hi))
}

func (e *Engine) refreshCapacityReliability() {
	for i := range e.edges {
		edge := &e.edges[i]
		a, b := e.nodes[edge.FromNode], e.nodes[edge.ToNode]
		capacity := (24 + 0.06*math.Sqrt(maxf(0, a.Population)*maxf(0, b.Population))) / (1 + 0.08*edge.Cost)
		edge.Capacity = maxf(0, capacity)
		edge.Reliability = clamp(1/(1+0.06*edge.Cost), 0.05, 1)
	}
}

// transportCandidatesBucketed bins nodes by bucketSize fields and only
// compares nodes within range buckets, the fast default path.
func (e *Engine) transportCandidatesBucketed(grid worldhost.FieldGrid) []candidateLink {
	cfg := e.ctx.Config.Transport
	const bucketSize = 8
	bucketOf := func(n SettlementNode) (int, int) { return n.FieldX / bucketSize, n.FieldY / bucketSize }

	buckets := make(map[[2]int][]int)
	for i, n := range e.nodes {
		bx, by := bucketOf(n)
		buckets[[2]int{bx, by}] = append(buckets[[2]int{bx, by}], i)
	}

	maxGeomDist := cfg.MaxEdgeCost / maxf(0.1, cfg.LandCostMult)
	bucketRange := int(math.Ceil(maxGeomDist/bucketSize)) + 1

	var out []candidateLink
	for i := range e.nodes {
		bx, by := bucketOf(e.nodes[i])
		for dby := -bucketRange; dby <= bucketRange; dby++ {
			for dbx := -bucketRange; dbx <= bucketRange; dbx++ {
				key := [2]int{bx + dbx, by + dby}
				for _, j := range buckets[key] {
					if j <= i {
						continue
					}
					if link, ok := e.scoreCandidate(grid, i, j); ok {
						out = append(out, link)
					}
				}
			}
		}
	}
	return out
}

func (e *Engine) scoreCandidate(grid worldhost.FieldGrid, i, j int) (candidateLink, bool) {
	cfg := e.ctx.Config.Transport
	a, b := e.nodes[i], e.nodes[j]
	dist := math.Hypot(float64(a.FieldX-b.FieldX), float64(a.FieldY-b.FieldY))
	if dist <= 0 {
		return candidateLink{}, false
	}
	avgMoveCost := 0.5 * (e.fieldMoveCostAt(a.FieldX, a.FieldY) + e.fieldMoveCostAt(b.FieldX, b.FieldY))
	avgCorridor := maxf(0.1, 0.5*(e.fieldCorridorAt(a.FieldX, a.FieldY)+e.fieldCorridorAt(b.FieldX, b.FieldY)))
	landCost := dist * cfg.LandCostMult * avgMoveCost / avgCorridor

	seaCost := math.Inf(1)
	aCoastal := e.fieldCoastalAt(a.FieldX, a.FieldY)
	bCoastal := e.fieldCoastalAt(b.FieldX, b.FieldY)
	if aCoastal && bCoastal {
		seaCost = dist * cfg.SeaCostMult
	}

	landCost, seaCost = applyBorderWarModifiers(a, b, landCost, seaCost, cfg.BorderFriction, cfg.WarRiskMult, e.atWar)

	cost := math.Min(landCost, seaCost)
	if cost <= 0 || cost > cfg.MaxEdgeCost {
		return candidateLink{}, false
	}
	return candidateLink{a: i, b: j, cost: cost, seaLink: seaCost < landCost}, true
}

func applyBorderWarModifiers(a, b SettlementNode, landCost, seaCost, borderFriction, warRiskMult float64, atWar func(x, y int) bool) (float64, float64) {
	if a.OwnerCountry != b.OwnerCountry {
		landCost *= borderFriction
		seaCost *= borderFriction
		if atWar != nil && atWar(a.OwnerCountry, b.OwnerCountry) {
			landCost *= warRiskMult
			seaCost *= warRiskMult
		}
	}
	return landCost, seaCost
}

// atWar reports whether two countries are mutually at war, reading the
// warPairs table that buildWarPairs fills once per tick at the start of
// TickYear; transport rebuild, flows and campaign logistics all use it.
func (e *Engine) atWar(a, b int) bool {
	if e.warPairs == nil {
		return false
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return e.warPairs[packKey(lo, hi)]
}

// dijkstraItem is one entry in the Dijkstra priority queue used by both
// the accurate transport candidate generator and the campaign logistics
// pathfinder.
type dijkstraItem struct {
	node int
	dist float64
}

type dijkstraHeap []dijkstraItem

func (h dijkstraHeap) Len() int            { return len(h) }
func (h dijkstraHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h dijkstraHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *dijkstraHeap) Push(x interface{}) { *h = append(*h, x.(dijkstraItem)) }
func (h *dijkstraHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// transportCandidatesDijkstra runs an 8-connected Dijkstra over the land
// field grid from every node, bounded by maxEdgeCost*1.05, recording
// the minimum distance to every other node's field. This is the
// accurate (expensive) candidate generator gated by
// ResearchSettlement.TransportPathRebuild.
func (e *Engine) transportCandidatesDijkstra(grid worldhost.FieldGrid) []candidateLink {
	cfg := e.ctx.Config.Transport
	bound := cfg.MaxEdgeCost * 1.05

	nodeAtField := make(map[int]int) // fieldIndex -> node index
	for i, n := range e.nodes {
		nodeAtField[e.fieldIndex(n.FieldX, n.FieldY)] = i
	}

	var out []candidateLink
	seen := make(map[uint64]bool)

	for i, src := range e.nodes {
		dist := e.dijkstraFromField(grid, src.FieldX, src.FieldY, bound, cfg.LandCostMult)
		for fi, d := range dist {
			j, ok := nodeAtField[fi]
			if !ok || j <= i {
				continue
			}
			lo, hi := i, j
			if lo > hi {
				lo, hi = hi, lo
			}
			key := packKey(lo, hi)
			if seen[key] {
				continue
			}
			seen[key] = true

			a, b := e.nodes[i], e.nodes[j]
			landCost := d
			seaCost := math.Inf(1)
			if e.fieldCoastalAt(a.FieldX, a.FieldY) && e.fieldCoastalAt(b.FieldX, b.FieldY) {
				geomDist := math.Hypot(float64(a.FieldX-b.FieldX), float64(a.FieldY-b.FieldY))
				seaCost = geomDist * cfg.SeaCostMult
			}
			landCost, seaCost = applyBorderWarModifiers(a, b, landCost, seaCost, cfg.BorderFriction, cfg.WarRiskMult, e.atWar)
			cost := math.Min(landCost, seaCost)
			if cost <= 0 || cost > cfg.MaxEdgeCost {
				continue
			}
			out = append(out, candidateLink{a: i, b: j, cost: cost, seaLink: seaCost < landCost})
		}
	}
	return out
}

// dijkstraFromField returns, for every field index reachable within
// bound, the least-cost 8-connected path distance from (srcX, srcY).
func (e *Engine) dijkstraFromField(grid worldhost.FieldGrid, srcX, srcY int, bound, landMult float64) map[int]float64 {
	dist := make(map[int]float64)
	srcIdx := e.fieldIndex(srcX, srcY)
	dist[srcIdx] = 0
	pq := &dijkstraHeap{{node: srcIdx, dist: 0}}
	heap.Init(pq)

	dirs := [8][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {1, -1}, {-1, 1}, {-1, -1}}

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(dijkstraItem)
		if cur.dist > dist[cur.node] {
			continue
		}
		cx, cy := cur.node%e.fieldW, cur.node/e.fieldW
		for _, d := range dirs {
			nx, ny := cx+d[0], cy+d[1]
			if nx < 0 || ny < 0 || nx >= e.fieldW || ny >= e.fieldH {
				continue
			}
			if !grid.IsLand(nx, ny) {
				continue
			}
			ni := e.fieldIndex(nx, ny)
			geom := math.Hypot(float64(d[0]), float64(d[1]))
			c0 := e.fieldMoveCostAt(cx, cy)
			c1 := e.fieldMoveCostAt(nx, ny)
			w0 := maxf(0.1, e.fieldCorridorAt(cx, cy))
			w1 := maxf(0.1, e.fieldCorridorAt(nx, ny))
			weight := geom * landMult * (0.5 * (c0 + c1)) / maxf(0.1, 0.5*(w0+w1))
			nd := cur.dist + weight
			if nd > bound {
				continue
			}
			if existing, ok := dist[ni]; !ok || nd < existing {
				dist[ni] = nd
				heap.Push(pq, dijkstraItem{node: ni, dist: nd})
			}
		}
	}
	delete(dist, srcIdx)
	return dist
}
