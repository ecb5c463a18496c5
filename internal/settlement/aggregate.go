package settlement

import (
	"github.com/talgya/settlement-sim/internal/worldhost"
)

// aggregateToCountries rolls the per-node state up into the five-field
// SettlementCountryAggregate exposed to the host, and writes back
// SpecialistPopulation/KnowledgeInfra onto the country itself.
func (e *Engine) aggregateToCountries(countries []worldhost.CountryWriter) {
	if len(e.countryAgg) != len(countries) {
		e.countryAgg = make([]SettlementCountryAggregate, len(countries))
	} else {
		for i := range e.countryAgg {
			e.countryAgg[i] = SettlementCountryAggregate{}
		}
	}

	pop := make([]float64, len(countries))
	for i, n := range e.nodes {
		ci := n.OwnerCountry
		if ci < 0 || ci >= len(countries) {
			continue
		}
		st := e.states[i]
		agg := &e.countryAgg[ci]
		agg.SpecialistPopulation += n.Population * n.SpecialistShare
		agg.MarketPotential += st.MarketPotential
		agg.MigrationPressureOut += maxf(0, -st.Utility+0.5) * n.Population
		agg.MigrationAttractiveness += clamp01(st.Utility) * n.Population
		agg.KnowledgeInfraSignal += n.TechFactor * n.Population
		pop[ci] += n.Population
	}
	for ci, c := range countries {
		if pop[ci] <= 0 {
			continue
		}
		agg := &e.countryAgg[ci]
		agg.KnowledgeInfraSignal /= pop[ci]
		c.SetSpecialistPopulation(agg.SpecialistPopulation)
		c.SetKnowledgeInfra(clamp01(0.9*c.KnowledgeInfra() + 0.1*clamp01(agg.KnowledgeInfraSignal-0.5)))
	}
}

// buildCountryTradeHintMatrix row-normalizes the raw trade flow matrix
// accumulated during computeFlowsAndMigration, dividing each row by its
// own max entry so every country's hints sum relative to its own
// largest trade partner; the diagonal is always zero.
func (e *Engine) buildCountryTradeHintMatrix(n int) {
	if n == 0 {
		e.tradeHintMatrix = nil
		return
	}
	if len(e.tradeHintMatrix) != n*n {
		e.tradeHintMatrix = make([]float32, n*n)
		return
	}
	for i := 0; i < n; i++ {
		rowMax := float32(0)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if v := e.tradeHintMatrix[i*n+j]; v > rowMax {
				rowMax = v
			}
		}
		for j := 0; j < n; j++ {
			if i == j {
				e.tradeHintMatrix[i*n+j] = 0
				continue
			}
			if rowMax > 0 {
				e.tradeHintMatrix[i*n+j] /= rowMax
			}
		}
	}
}

// rebuildOverlays recomputes the three field-resolution rasters: max
// node population per field, the dominant subsistence mode per field
// (255 meaning no node occupies that field), and a transport density
// raster accumulated by tracing each edge's endpoints onto their
// fields.
func (e *Engine) rebuildOverlays() {
	size := e.fieldW * e.fieldH
	if len(e.overlayPopulation) != size {
		e.overlayPopulation = make([]float32, size)
		e.overlayDominantMode = make([]uint8, size)
		e.overlayTransport = make([]float32, size)
	}
	for i := range e.overlayPopulation {
		e.overlayPopulation[i] = 0
		e.overlayDominantMode[i] = 255
		e.overlayTransport[i] = 0
	}

	for _, n := range e.nodes {
		idx := e.fieldIndex(n.FieldX, n.FieldY)
		if idx < 0 {
			continue
		}
		if float64(e.overlayPopulation[idx]) < n.Population {
			e.overlayPopulation[idx] = float32(n.Population)
			dominant := 0
			best := n.Mix[0]
			for m := 1; m < ModeCount; m++ {
				if n.Mix[m] > best {
					best = n.Mix[m]
					dominant = m
				}
			}
			e.overlayDominantMode[idx] = uint8(dominant)
		}
	}

	for _, edge := range e.edges {
		a, b := e.nodes[edge.FromNode], e.nodes[edge.ToNode]
		ai := e.fieldIndex(a.FieldX, a.FieldY)
		bi := e.fieldIndex(b.FieldX, b.FieldY)
		density := float32(edge.Capacity * edge.Reliability)
		if ai >= 0 {
			e.overlayTransport[ai] += density
		}
		if bi >= 0 {
			e.overlayTransport[bi] += density
		}
	}
}

// computeDeterminismHash folds node identity, owner, field position,
// population, capacity, calories, irrigation and packages, edge
// endpoints, cost, capacity and reliability, and per-field fertility,
// regime and irrigation into a single 64-bit FNV-like hash in canonical
// order, so two runs from the same world seed and config always agree.
// Other node quantities (food flows, mix, stocks) are not hashed.
func (e *Engine) computeDeterminismHash() {
	h := fnvHashSeed
	for _, n := range e.nodes {
		h = mixHash(h, uint64(n.ID))
		h = mixHash(h, uint64(n.OwnerCountry+1))
		h = mixHash(h, uint64(n.FieldX))
		h = mixHash(h, uint64(n.FieldY))
		h = mixHash(h, hashDouble(n.Population, 1000))
		h = mixHash(h, hashDouble(n.CarryingCapacity, 1000))
		h = mixHash(h, hashDouble(n.Calories, 1000))
		h = mixHash(h, hashDouble(n.IrrigationCapital, 1e4))
		for _, pid := range n.AdoptedPackages {
			h = mixHash(h, uint64(pid+1))
		}
	}
	for _, edge := range e.edges {
		h = mixHash(h, uint64(edge.FromNode))
		h = mixHash(h, uint64(edge.ToNode))
		h = mixHash(h, hashDouble(edge.Cost, 1000))
		h = mixHash(h, hashDouble(edge.Capacity, 1000))
		h = mixHash(h, hashDouble(edge.Reliability, 1e4))
	}
	for _, f := range e.fields {
		h = mixHash(h, hashDouble(float64(f.Fertility), 1e4))
		h = mixHash(h, uint64(f.Regime))
		h = mixHash(h, hashDouble(float64(f.IrrigationCapital), 1e4))
	}
	e.lastDeterminismHash = h
}
