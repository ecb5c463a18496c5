package settlement

import (
	"math"

	"github.com/talgya/settlement-sim/internal/worldhost"
)

const diseaseSubSteps = 4
const diseaseDt = 0.25

// updateSettlementDisease integrates the per-node SIR compartments with
// imported infection flowing along transport edges, four sub-steps of
// dt=0.25 per tick.
func (e *Engine) updateSettlementDisease(year int, countries []worldhost.CountryWriter) {
	cfg := e.ctx.Config.Disease

	if year == 0 || !e.diseaseInitialized {
		for i := range e.states {
			st := &e.states[i]
			st.I = cfg.InitialInfectedShare
			st.R = cfg.InitialRecoveredShare
			st.S = maxf(0, 1-st.I-st.R)
		}
		e.diseaseInitialized = true
	}

	imported := make([]float64, len(e.nodes))
	for _, edge := range e.edges {
		a, b := edge.FromNode, edge.ToNode
		flow := minf(edge.Capacity*edge.Reliability, 0.015*math.Sqrt(maxf(0, e.nodes[a].Population)*maxf(0, e.nodes[b].Population)))
		if flow <= 0 {
			continue
		}
		imported[b] += flow * e.states[a].I / maxf(1, e.nodes[b].Population)
		imported[a] += flow * e.states[b].I / maxf(1, e.nodes[a].Population)
	}

	for i := range e.nodes {
		n := &e.nodes[i]
		st := &e.states[i]
		imp := clamp(imported[i], 0, 0.6)
		st.ImportedInfection = imp

		density := clamp01(n.Population / maxf(1, n.CarryingCapacity))
		humidity := clamp01(finiteOr(e.fieldPrecipAt(n.FieldX, n.FieldY), 0.5))
		corridor := finiteOr(e.fieldCorridorAt(n.FieldX, n.FieldY), 0.5)

		institutionMitigation := cfg.EndemicInstitutionMitigation
		if n.OwnerCountry >= 0 && n.OwnerCountry < len(countries) {
			institutionMitigation = countries[n.OwnerCountry].InstitutionCapacity()
		}

		betaBase := maxf(cfg.EndemicBase, 0.12)
		betaEff := betaBase * (0.6 + 0.9*density) * (0.65 + 0.45*humidity) * (0.75 + 0.4*corridor)
		gamma := clamp(0.06+0.2*institutionMitigation, 0.02, 0.3)

		s, inf, r := st.S, st.I, st.R
		for step := 0; step < diseaseSubSteps; step++ {
			newInf := minf(s, betaEff*s*minf(1, inf+imp)*diseaseDt)
			newRec := minf(inf+newInf, gamma*inf*diseaseDt)
			s = maxf(0, s-newInf)
			inf = maxf(0, inf+newInf-newRec)
			r = maxf(0, r+newRec)
			sum := s + inf + r
			if sum <= 1e-9 {
				s, inf, r = 1, 0, 0
			} else {
				s, inf, r = s/sum, inf/sum, r/sum
			}
		}
		st.S, st.I, st.R = s, inf, r

		countryBurden := 0.0
		if n.OwnerCountry >= 0 && n.OwnerCountry < len(countries) {
			countryBurden = countries[n.OwnerCountry].Macro().DiseaseBurden
		}
		st.DiseaseBurden = clamp(0.65*st.I+0.35*countryBurden, 0, 1)
	}
}
