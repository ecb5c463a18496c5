package settlement

import (
	"math"
	"sort"

	"github.com/talgya/settlement-sim/internal/worldhost"
)

type polityProposal struct {
	nodeIdx int
	fromCty int
	toOwner int
	gain    float64
}

// applyPolityChoiceAssignment builds, for every node, a candidate set of
// (current owner, bordering owners, top-3 strongest countries), scores
// each candidate by join utility plus country strength minus distance
// to the candidate's capital and a war penalty, and applies the
// highest-gain proposals first up to a global cap on the number of
// nodes that may switch owner in one year, never flipping the same
// node twice.
func (e *Engine) applyPolityChoiceAssignment(year int, countries []worldhost.CountryWriter) {
	cfg := e.ctx.Config.ResearchSettlement
	nNode := len(e.nodes)
	nCountry := len(countries)
	for i := range e.states {
		e.states[i].PolitySwitchGain = 0
	}
	if !cfg.PolityChoiceAssignment || nNode == 0 || nCountry == 0 {
		return
	}

	countryStrength := make([]float64, nCountry)
	for ci, c := range countries {
		m := c.Macro()
		countryStrength[ci] = clamp01(
			0.34*c.Legitimacy() +
				0.28*c.AvgControl() +
				0.18*c.AdminCapacity() +
				0.20*clamp01(m.MarketAccess))
	}

	bestCountries := topStrengthCountries(countryStrength, 3)

	adj := e.buildAdjacency()
	cellSize := e.cachedGrid.CellSize()

	var proposals []polityProposal
	threshold := maxf(0, cfg.PolitySwitchThreshold)

	for i := range e.nodes {
		n := &e.nodes[i]
		from := n.OwnerCountry
		if from < 0 || from >= nCountry {
			continue
		}

		candidates := []int{from}
		for _, link := range adj[i] {
			oc := e.nodes[link.node].OwnerCountry
			if oc >= 0 && oc < nCountry && !containsInt(candidates, oc) {
				candidates = append(candidates, oc)
			}
		}
		for _, bc := range bestCountries {
			if !containsInt(candidates, bc) {
				candidates = append(candidates, bc)
			}
		}

		join := e.states[i].JoinUtility
		fromFx := float64(countries[from].StartingPixelX()) / cellSize
		fromFy := float64(countries[from].StartingPixelY()) / cellSize
		fromDist := math.Hypot(float64(n.FieldX)-fromFx, float64(n.FieldY)-fromFy)
		baseU := join + 0.45*countryStrength[from] - 0.0012*fromDist

		bestCountry := from
		bestGain := 0.0
		for _, c := range candidates {
			if c < 0 || c >= nCountry || c == from {
				continue
			}
			cc := countries[c]
			cFx := float64(cc.StartingPixelX()) / cellSize
			cFy := float64(cc.StartingPixelY()) / cellSize
			dist := math.Hypot(float64(n.FieldX)-cFx, float64(n.FieldY)-cFy)
			warPenalty := 0.0
			if cc.IsAtWar() {
				warPenalty = 0.10
			}
			u := join + 0.45*countryStrength[c] - 0.0012*dist - warPenalty
			gain := u - baseU
			if gain > bestGain || (gain == bestGain && c < bestCountry) {
				bestGain = gain
				bestCountry = c
			}
		}
		if bestCountry != from && bestGain >= threshold {
			proposals = append(proposals, polityProposal{nodeIdx: i, fromCty: from, toOwner: bestCountry, gain: bestGain})
		}
	}

	sort.Slice(proposals, func(i, j int) bool {
		if proposals[i].gain != proposals[j].gain {
			return proposals[i].gain > proposals[j].gain
		}
		return e.nodes[proposals[i].nodeIdx].ID < e.nodes[proposals[j].nodeIdx].ID
	})

	maxSwitches := int(math.Floor(clamp01(cfg.PolitySwitchMaxNodeShare) * float64(nNode)))
	if maxSwitches < 1 {
		maxSwitches = 1
	}

	switched := make(map[int]bool)
	countryDelta := make([]float64, nCountry)
	applied := 0
	for _, p := range proposals {
		if applied >= maxSwitches {
			break
		}
		if switched[p.nodeIdx] {
			continue
		}
		n := &e.nodes[p.nodeIdx]
		if n.OwnerCountry != p.fromCty {
			continue
		}
		n.OwnerCountry = p.toOwner
		n.LocalLegitimacy = clamp01(0.80*n.LocalLegitimacy + 0.20*countries[p.toOwner].Legitimacy())
		n.LocalAdminCapacity = clamp01(0.82*n.LocalAdminCapacity + 0.18*countries[p.toOwner].AdminCapacity())
		e.states[p.nodeIdx].PolitySwitchGain = p.gain
		switched[p.nodeIdx] = true

		pop := maxf(0, n.Population)
		countryDelta[p.toOwner] += pop * p.gain
		countryDelta[p.fromCty] -= pop * p.gain
		applied++
	}

	for ci, c := range countries {
		if math.Abs(countryDelta[ci]) <= 1e-9 {
			continue
		}
		nrm := countryDelta[ci] / maxf(1, c.Population())
		c.SetLegitimacy(clamp01(c.Legitimacy() + 0.25*nrm))
		c.SetAvgControl(clamp01(c.AvgControl() + 0.20*nrm))
	}
}

func topStrengthCountries(strength []float64, want int) []int {
	var picked []int
	for len(picked) < want {
		best := -1
		bestV := -1.0
		for c := range strength {
			if containsInt(picked, c) {
				continue
			}
			v := strength[c]
			if v > bestV || (v == bestV && (best < 0 || c < best)) {
				bestV = v
				best = c
			}
		}
		if best < 0 {
			break
		}
		picked = append(picked, best)
	}
	return picked
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
