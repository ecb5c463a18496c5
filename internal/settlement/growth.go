package settlement

import (
	"math"

	"github.com/talgya/settlement-sim/internal/worldhost"
)

// applyGrowthAndSpecialization integrates logistic population growth
// with a sigmoid-shaped rate driven by caloric adequacy and technology,
// then subtracts accumulated famine/disease/war shock fractions.
func (e *Engine) applyGrowthAndSpecialization(year int, countries []worldhost.CountryWriter) {
	cfg := e.ctx.Config.Settlements

	for i := range e.nodes {
		n := &e.nodes[i]
		st := &e.states[i]

		calAdequacy := clamp(n.Calories/maxf(1, n.Population*cfg.Cal0), 0, 2)
		techTerm := clamp01(n.TechFactor) - 0.5

		rateSignal := cfg.CalSlope * 0.0016 * (calAdequacy - 1) + 0.6*techTerm
		r := cfg.GrowthRMin + (cfg.GrowthRMax-cfg.GrowthRMin)*sigmoid(rateSignal)

		famineSeverity := 0.0
		if n.OwnerCountry >= 0 && n.OwnerCountry < len(countries) {
			famineSeverity = clamp01(countries[n.OwnerCountry].Macro().FamineSeverity)
		}
		famineShock := clamp01(0.5 * maxf(0, 1-calAdequacy))
		diseaseShock := clamp01(st.DiseaseBurden)
		warShock := clamp01(st.WarAttrition)
		shockFraction := clamp01(0.5*famineShock + 0.3*famineSeverity + 0.35*diseaseShock + 0.4*warShock)

		k := maxf(1, n.CarryingCapacity)
		logisticTerm := r * n.Population * (1 - n.Population/k)
		n.Population = maxf(0, n.Population+logisticTerm-shockFraction*n.Population)

		n.TechFactor = clamp(n.TechFactor+0.002*clamp01(st.MarketPotential/70), 0.5, 3)
	}
}

// applyFission splits any node whose population has crossed
// SplitPopThreshold and whose cooldown has elapsed, seeding a new node
// on a same-country land field found within spacing..spacing+5 rings,
// scored by foodPotential*corridor/moveCost, and transferring a
// hash-derived fraction of population to it. Caps on the total node
// count and per-country node count are enforced before every split.
func (e *Engine) applyFission(year int, grid worldhost.FieldGrid) {
	cfg := e.ctx.Config.Settlements
	if grid == nil {
		return
	}

	globalCap := int(math.Max(1, float64(cfg.MaxNodesGlobal)))
	if len(e.nodes) >= globalCap {
		return
	}
	perCountryCap := int(math.Max(1, float64(cfg.MaxNodesPerCountry)))
	minChildPop := maxf(100, 0.5*cfg.InitNodeMinPop)
	splitThreshold := maxf(1000, cfg.SplitPopThreshold)

	nodesByCountry := make(map[int]int)
	occupied := make(map[int]bool, len(e.nodes))
	for _, n := range e.nodes {
		if n.OwnerCountry >= 0 {
			nodesByCountry[n.OwnerCountry]++
		}
		occupied[e.fieldIndex(n.FieldX, n.FieldY)] = true
	}

	originalCount := len(e.nodes)
	var spawned []SettlementNode
	for i := 0; i < originalCount; i++ {
		if len(e.nodes)+len(spawned) >= globalCap {
			break
		}
		n := &e.nodes[i]
		if n.OwnerCountry < 0 {
			continue
		}
		if nodesByCountry[n.OwnerCountry] >= perCountryCap {
			continue
		}
		if n.Population <= splitThreshold {
			continue
		}
		if year-n.LastSplitYear < cfg.SplitCooldownYears {
			continue
		}
		tx, ty, found := e.findFissionSite(grid, n.FieldX, n.FieldY, n.OwnerCountry, cfg.SplitMinSpacingFields, occupied)
		if !found {
			continue
		}

		alphaDraw := u01FromU64(mix64(seedMix(e.ctx.WorldSeed, uint64(n.ID+1)*saltYear, uint64(year+25000)*saltNode)))
		alphaMin := clamp(cfg.SplitAlphaMin, 0.05, 0.90)
		alphaMax := clamp(cfg.SplitAlphaMax, 0.05, 0.90)
		alpha := alphaMin + (alphaMax-alphaMin)*alphaDraw

		childPop := n.Population * alpha
		if childPop < minChildPop {
			continue
		}

		before := n.Population
		n.Population = before - childPop
		n.LastSplitYear = year

		child := *n
		child.ID = e.nextNodeID
		e.nextNodeID++
		child.FieldX, child.FieldY = tx, ty
		child.Population = childPop
		child.FoundedYear = year
		child.LastSplitYear = year
		child.AdoptedPackages = append([]int(nil), n.AdoptedPackages...)

		after := n.Population + child.Population
		e.lastFissionConservationError += math.Abs(after - before)

		occupied[e.fieldIndex(tx, ty)] = true
		nodesByCountry[n.OwnerCountry]++
		spawned = append(spawned, child)
	}

	if len(spawned) == 0 {
		return
	}
	e.nodes = append(e.nodes, spawned...)
	e.syncStatesLength()
	for i := len(e.nodes) - len(spawned); i < len(e.nodes); i++ {
		e.states[i] = nodeState{S: 1, I: 0, R: 0}
	}
	e.sortNodesCanonical()
}

// findFissionSite searches rings spacing..spacing+5 from (x, y) for an
// unoccupied land field owned by ownerCountry, at least minSpacing
// fields (Chebyshev) from every existing node of that country,
// scoring candidates by foodPotential*corridorWeight/moveCost and
// breaking ties by the smaller field index. The first ring with any
// qualifying candidate wins.
func (e *Engine) findFissionSite(grid worldhost.FieldGrid, x, y, ownerCountry, minSpacing int, occupied map[int]bool) (int, int, bool) {
	bestScore := math.Inf(-1)
	bestIdx := -1
	bestX, bestY := -1, -1

	for r := minSpacing; r <= minSpacing+5; r++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if absInt(dx) != r && absInt(dy) != r {
					continue
				}
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= e.fieldW || ny >= e.fieldH {
					continue
				}
				if !grid.IsLand(nx, ny) {
					continue
				}
				if grid.OwnerID(nx, ny) != ownerCountry {
					continue
				}
				idx := e.fieldIndex(nx, ny)
				if occupied[idx] {
					continue
				}

				tooClose := false
				for _, n := range e.nodes {
					if n.OwnerCountry != ownerCountry {
						continue
					}
					if chebyshev(n.FieldX, n.FieldY, nx, ny) < minSpacing {
						tooClose = true
						break
					}
				}
				if tooClose {
					continue
				}

				fp := maxf(0, grid.FoodPotential(nx, ny))
				mv := finiteOr(grid.MoveCost(nx, ny), 2.0)
				if mv <= 0 {
					continue
				}
				cor := maxf(0.01, grid.CorridorWeight(nx, ny))
				score := fp * cor / maxf(0.1, mv)
				if score > bestScore || (score == bestScore && idx < bestIdx) {
					bestScore = score
					bestIdx = idx
					bestX, bestY = nx, ny
				}
			}
		}
		if bestIdx >= 0 {
			break
		}
	}

	if bestIdx < 0 {
		return 0, 0, false
	}
	return bestX, bestY, true
}
