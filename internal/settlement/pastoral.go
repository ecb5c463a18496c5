package settlement

import "github.com/talgya/settlement-sim/internal/worldhost"

// updatePastoralMobilityRoutes redistributes a bounded share of
// population from pastoral-dominant nodes toward the best seasonal
// pasture field within a Chebyshev radius, moving the population to the
// same-country node nearest (Manhattan) that field.
func (e *Engine) updatePastoralMobilityRoutes(year int, grid worldhost.FieldGrid) {
	cfg := e.ctx.Config.ResearchSettlement
	if !cfg.PastoralMobility {
		for i := range e.states {
			e.states[i].PastoralSeasonGain = 0
		}
		return
	}
	season := year % 2
	radius := cfg.PastoralRouteRadius
	if radius <= 0 {
		radius = 6
	}

	for i := range e.nodes {
		n := &e.nodes[i]
		st := &e.states[i]
		st.PastoralSeasonGain = 0
		pastoralShare := n.Mix[ModePastoral]
		if pastoralShare < 0.10 || n.Population <= 20 {
			continue
		}

		baseScore := landScoreAt(grid, n.FieldX, n.FieldY, season)
		bestScore := baseScore
		bestX, bestY := n.FieldX, n.FieldY
		found := false
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				x, y := n.FieldX+dx, n.FieldY+dy
				if x < 0 || y < 0 || x >= e.fieldW || y >= e.fieldH {
					continue
				}
				if !grid.IsLand(x, y) {
					continue
				}
				sc := landScoreAt(grid, x, y, season)
				if sc > bestScore {
					bestScore = sc
					bestX, bestY = x, y
					found = true
				}
			}
		}
		if !found {
			continue
		}

		gain := clamp((bestScore-baseScore)+0.22*pastoralShare, 0, 1)
		st.PastoralSeasonGain = gain
		if gain <= 0 {
			continue
		}

		targetIdx := -1
		bestDist := 1 << 30
		for j, other := range e.nodes {
			if j == i || other.OwnerCountry != n.OwnerCountry {
				continue
			}
			d := manhattan(other.FieldX, other.FieldY, bestX, bestY)
			if d < bestDist || (d == bestDist && (targetIdx == -1 || other.ID < e.nodes[targetIdx].ID)) {
				bestDist = d
				targetIdx = j
			}
		}
		if targetIdx < 0 {
			continue
		}

		move := minf(n.Population*pastoralShare*cfg.PastoralMoveShare*gain, 0.04*n.Population)
		if move <= 0 {
			continue
		}
		n.Population = maxf(0, n.Population-move)
		e.nodes[targetIdx].Population += move
	}
}

// landScoreAt combines precipitation/temperature suitability, corridor
// weight, and a mild seasonal bias into a single [0,1]-ish score used by
// pastoral route selection.
func landScoreAt(grid worldhost.FieldGrid, x, y, season int) float64 {
	precip := finiteOr(grid.PrecipMean(x, y), 0.5)
	temp := finiteOr(grid.TempMean(x, y), 15)
	corridor := finiteOr(grid.CorridorWeight(x, y), 0.5)
	temperate := clamp01(1 - absf(temp-18)/30)
	seasonBias := 0.0
	if season == 0 {
		seasonBias = 0.05 * precip
	} else {
		seasonBias = 0.05 * temperate
	}
	return clamp01(0.45*precip + 0.35*temperate + 0.20*corridor + seasonBias)
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
