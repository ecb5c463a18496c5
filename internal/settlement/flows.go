package settlement

import (
	"math"

	"github.com/talgya/settlement-sim/internal/worldhost"
)

// computeFlowsAndMigration runs edge-level gravity trade, then
// utility-driven migration under per-node move budgets, and finally
// recomputes calories and per-node market potential/utility.
func (e *Engine) computeFlowsAndMigration(countries []worldhost.CountryWriter) {
	cfg := e.ctx.Config.Transport
	cal0 := e.ctx.Config.Settlements.Cal0

	for i := range e.states {
		e.states[i].OutgoingFlow = 0
		e.states[i].MarketPotential = 0
	}

	nCountry := len(countries)
	if len(e.tradeHintMatrix) != nCountry*nCountry {
		e.tradeHintMatrix = make([]float32, nCountry*nCountry)
	} else {
		for i := range e.tradeHintMatrix {
			e.tradeHintMatrix[i] = 0
		}
	}

	for ei := range e.edges {
		edge := &e.edges[ei]
		a, b := &e.nodes[edge.FromNode], &e.nodes[edge.ToNode]
		war := 0.0
		if e.atWar(a.OwnerCountry, b.OwnerCountry) {
			war = 1.0
		}

		demand := 0.2 * math.Sqrt(maxf(0, a.Population)*maxf(0, b.Population)) * (1 + 0.6*war)
		supply := edge.Capacity * edge.Reliability
		attenuation := math.Exp(-0.42 * maxf(0, demand-supply))

		sa := maxf(0, a.Population) * maxf(0.02, a.SpecialistShare)
		sb := maxf(0, b.Population) * maxf(0.02, b.SpecialistShare)
		gravity := cfg.GravityKappa * math.Pow(sa, cfg.GravityAlpha) * math.Pow(sb, cfg.GravityBeta) / math.Pow(maxf(0.01, edge.Cost), cfg.GravityGamma)

		totalFlow := minf(edge.Capacity*edge.Reliability*attenuation, gravity)
		if totalFlow < 0 || math.IsNaN(totalFlow) {
			totalFlow = 0
		}

		needA := maxf(0, a.Population*cal0-(a.FoodProduced+a.FoodImported-a.FoodExported))
		needB := maxf(0, b.Population*cal0-(b.FoodProduced+b.FoodImported-b.FoodExported))
		splitAB := clamp((0.5 + 0.5*(needB-needA)/maxf(1, needA+needB)), 0, 1)

		flowAtoB := totalFlow * splitAB
		flowBtoA := totalFlow * (1 - splitAB)

		tradeableA := maxf(0, 0.26*a.FoodProduced-a.FoodExported)
		tradeableB := maxf(0, 0.26*b.FoodProduced-b.FoodExported)

		flowAtoB = minf(flowAtoB, minf(tradeableA, needB+0.1*b.FoodProduced))
		flowBtoA = minf(flowBtoA, minf(tradeableB, needA+0.1*a.FoodProduced))

		a.FoodExported += flowAtoB
		b.FoodImported += flowAtoB
		b.FoodExported += flowBtoA
		a.FoodImported += flowBtoA

		e.states[edge.FromNode].OutgoingFlow += flowAtoB
		e.states[edge.ToNode].OutgoingFlow += flowBtoA

		if a.OwnerCountry != b.OwnerCountry && a.OwnerCountry >= 0 && b.OwnerCountry >= 0 &&
			a.OwnerCountry < nCountry && b.OwnerCountry < nCountry {
			e.tradeHintMatrix[a.OwnerCountry*nCountry+b.OwnerCountry] += float32(flowAtoB)
			e.tradeHintMatrix[b.OwnerCountry*nCountry+a.OwnerCountry] += float32(flowBtoA)
		}

		marketSignal := float32ToFloat64(float32(totalFlow))
		e.states[edge.FromNode].MarketPotential += marketSignal
		e.states[edge.ToNode].MarketPotential += marketSignal
	}

	for i := range e.nodes {
		n := &e.nodes[i]
		n.Calories = maxf(0, n.FoodProduced+n.FoodImported-n.FoodExported)
	}

	e.migrateAndSpecialize(countries, cal0)
}

func float32ToFloat64(v float32) float64 { return float64(v) }

func (e *Engine) migrateAndSpecialize(countries []worldhost.CountryWriter, cal0 float64) {
	tcfg := e.ctx.Config.Transport

	util := make([]float64, len(e.nodes))
	risk := make([]float64, len(e.nodes))
	for i := range e.nodes {
		n := &e.nodes[i]
		perCap := n.Calories / maxf(1, n.Population)
		market := clamp01(e.states[i].MarketPotential / 70)
		r := 0.2
		if n.OwnerCountry >= 0 && n.OwnerCountry < len(countries) {
			m := countries[n.OwnerCountry].Macro()
			r = clamp01(0.6*clamp01(m.FamineSeverity) + 0.4*clamp01(m.DiseaseBurden))
		}
		risk[i] = r
		u := clamp(0.5*minf(1, perCap/cal0)+0.35*market+0.15*(1-r), 0, 1)
		util[i] = u
		e.states[i].Utility = u
	}

	moveBudget := make([]float64, len(e.nodes))
	for i, n := range e.nodes {
		moveBudget[i] = 0.08 * n.Population
	}

	for _, edge := range e.edges {
		a, b := edge.FromNode, edge.ToNode
		edgeMigScale := tcfg.MigrationM0 * math.Exp(-tcfg.MigrationDistDecay*edge.Cost) * edge.Reliability
		demand := 0.2 * math.Sqrt(maxf(0, e.nodes[a].Population)*maxf(0, e.nodes[b].Population))
		supply := edge.Capacity * edge.Reliability
		attenuation := math.Exp(-0.42 * maxf(0, demand-supply))
		corridorA := maxf(0.15, e.fieldCorridorAt(e.nodes[a].FieldX, e.nodes[a].FieldY))
		corridorB := maxf(0.15, e.fieldCorridorAt(e.nodes[b].FieldX, e.nodes[b].FieldY))

		du := util[b] - util[a]
		if du > 1e-6 && moveBudget[a] > 0 {
			move := minf(moveBudget[a], minf(e.nodes[a].Population*du*edgeMigScale*corridorA*edge.Reliability*attenuation, 0.03*e.nodes[a].Population))
			move = maxf(0, move)
			e.nodes[a].Population -= move
			e.nodes[b].Population += move
			moveBudget[a] -= move
		}
		du2 := util[a] - util[b]
		if du2 > 1e-6 && moveBudget[b] > 0 {
			move := minf(moveBudget[b], minf(e.nodes[b].Population*du2*edgeMigScale*corridorB*edge.Reliability*attenuation, 0.03*e.nodes[b].Population))
			move = maxf(0, move)
			e.nodes[b].Population -= move
			e.nodes[a].Population += move
			moveBudget[b] -= move
		}
	}

	eta := tcfg.SpecialistEta
	lambda := tcfg.SpecialistLambda
	for i := range e.nodes {
		n := &e.nodes[i]
		marketNorm := clamp01(e.states[i].MarketPotential / 70)
		n.SpecialistShare = clamp01(n.SpecialistShare + eta*marketNorm - lambda*risk[i])
	}
}
