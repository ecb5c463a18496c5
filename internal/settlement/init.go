package settlement

import (
	"sort"

	"github.com/talgya/settlement-sim/internal/worldhost"
)

// initializeNodesFromFieldPopulation seeds the node vector from the
// host field grid's population layer: every land field owned by a
// valid country with population at least InitNodeMinPop is a
// candidate, admitted greedily under global/per-country caps and a
// minimum Chebyshev spacing from already-admitted same-country nodes.
// Any live country left with zero nodes gets one seeded at the nearest
// land field to its starting pixel.
func (e *Engine) initializeNodesFromFieldPopulation(grid worldhost.FieldGrid, countries []worldhost.CountryWriter) {
	cfg := e.ctx.Config.Settlements
	type candidate struct {
		x, y    int
		owner   int
		pop     float64
		fieldIdx int
	}
	var candidates []candidate
	for y := 0; y < e.fieldH; y++ {
		for x := 0; x < e.fieldW; x++ {
			if !grid.IsLand(x, y) {
				continue
			}
			owner := grid.OwnerID(x, y)
			if owner < 0 || owner >= len(countries) {
				continue
			}
			pop := finiteOr(grid.Population(x, y), 0)
			if pop < cfg.InitNodeMinPop {
				continue
			}
			candidates = append(candidates, candidate{x, y, owner, pop, e.fieldIndex(x, y)})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.owner != b.owner {
			return a.owner < b.owner
		}
		if a.pop != b.pop {
			return a.pop > b.pop
		}
		return a.fieldIdx < b.fieldIdx
	})

	perCountryCount := make(map[int]int)
	admittedByCountry := make(map[int][][2]int)
	globalCount := 0
	hasNode := make(map[int]bool)

	admit := func(c candidate) {
		e.nodes = append(e.nodes, newNodeAt(e.nextNodeID, c.owner, c.x, c.y, c.pop))
		e.nextNodeID++
		perCountryCount[c.owner]++
		admittedByCountry[c.owner] = append(admittedByCountry[c.owner], [2]int{c.x, c.y})
		hasNode[c.owner] = true
		globalCount++
	}

	for _, c := range candidates {
		if cfg.MaxNodesGlobal > 0 && globalCount >= cfg.MaxNodesGlobal {
			break
		}
		if cfg.MaxNodesPerCountry > 0 && perCountryCount[c.owner] >= cfg.MaxNodesPerCountry {
			continue
		}
		tooClose := false
		for _, prior := range admittedByCountry[c.owner] {
			if chebyshev(c.x, c.y, prior[0], prior[1]) < cfg.SplitMinSpacingFields {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}
		admit(c)
	}

	for ci, c := range countries {
		if hasNode[ci] {
			continue
		}
		if c.Population() <= 0 {
			continue
		}
		startX := c.StartingPixelX()
		startY := c.StartingPixelY()
		bx, by, found := nearestLandField(grid, startX, startY, e.fieldW, e.fieldH)
		if !found {
			continue
		}
		e.nodes = append(e.nodes, newNodeAt(e.nextNodeID, ci, bx, by, maxf(cfg.InitNodeMinPop, c.Population())))
		e.nextNodeID++
	}

	e.syncStatesLength()
	e.sortNodesCanonical()
}

func newNodeAt(id, owner, x, y int, pop float64) SettlementNode {
	return SettlementNode{
		ID:              id,
		OwnerCountry:    owner,
		FieldX:          x,
		FieldY:          y,
		Population:      pop,
		CarryingCapacity: maxf(80, pop),
		SpecialistShare: 0.02,
		WaterFactor:     1,
		SoilFactor:      1,
		TechFactor:      1,
		EliteShare:      0.10,
		LocalLegitimacy: 0.45,
		LocalAdminCapacity: 0.25,
		ExtractionRate:  0.06,
		Mix:             DefaultMix,
	}
}

// nearestLandField finds the land field nearest (in field units) to the
// given pixel position, scanning outward in increasing Chebyshev rings
// so the search is deterministic and bounded.
func nearestLandField(grid worldhost.FieldGrid, pixelX, pixelY, fieldW, fieldH int) (int, int, bool) {
	cellSize := grid.CellSize()
	if cellSize <= 0 {
		cellSize = 1
	}
	cx := int(float64(pixelX) / cellSize)
	cy := int(float64(pixelY) / cellSize)
	if cx < 0 {
		cx = 0
	}
	if cy < 0 {
		cy = 0
	}
	if cx >= fieldW {
		cx = fieldW - 1
	}
	if cy >= fieldH {
		cy = fieldH - 1
	}
	maxRadius := fieldW + fieldH
	for r := 0; r <= maxRadius; r++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if absInt(dx) != r && absInt(dy) != r {
					continue
				}
				x, y := cx+dx, cy+dy
				if x < 0 || y < 0 || x >= fieldW || y >= fieldH {
					continue
				}
				if grid.IsLand(x, y) {
					return x, y, true
				}
			}
		}
	}
	return 0, 0, false
}

// syncNodeTotalsToCountryPopulation rescales each node's population by
// targetCountryPop / currentCountryTotal so per-country totals
// reconcile with the host after initialization and every subsequent
// tick.
func (e *Engine) syncNodeTotalsToCountryPopulation(countries []worldhost.CountryWriter) {
	totals := make(map[int]float64)
	for _, n := range e.nodes {
		if n.OwnerCountry >= 0 {
			totals[n.OwnerCountry] += n.Population
		}
	}
	factor := make(map[int]float64)
	for ci, c := range countries {
		cur := totals[ci]
		target := finiteOr(c.Population(), 0)
		if cur <= 0 || target <= 0 {
			factor[ci] = 0
		} else {
			factor[ci] = target / cur
		}
	}
	for i := range e.nodes {
		owner := e.nodes[i].OwnerCountry
		if owner < 0 || owner >= len(countries) {
			continue
		}
		e.nodes[i].Population = maxf(0, e.nodes[i].Population*factor[owner])
	}
}
