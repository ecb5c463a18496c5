package settlement

import (
	"github.com/talgya/settlement-sim/internal/worldhost"
)

// updateAdoptionAndJoinUtility computes each node's neighbor-weighted
// adoption pressure and discrete-choice join/stay utility, then adopts
// at most one domestic package per node when pressure crosses a
// jittered threshold, per the original implementation's
// updateAdoptionAndJoinUtility.
func (e *Engine) updateAdoptionAndJoinUtility(year int, countries []worldhost.CountryWriter) {
	if !e.ctx.Config.Packages.Enabled {
		return
	}

	n := len(e.nodes)
	neighAdopt := make([]float64, n)
	neighWeight := make([]float64, n)
	for _, edge := range e.edges {
		a, b := edge.FromNode, edge.ToNode
		w := maxf(0.01, edge.Reliability/(1+edge.Cost))
		pa := clamp01(float64(len(e.nodes[b].AdoptedPackages)) / 6)
		pb := clamp01(float64(len(e.nodes[a].AdoptedPackages)) / 6)
		neighAdopt[a] += w * pa
		neighAdopt[b] += w * pb
		neighWeight[a] += w
		neighWeight[b] += w
	}
	for i := range neighAdopt {
		if neighWeight[i] > 1e-9 {
			neighAdopt[i] /= neighWeight[i]
		}
	}

	suit := make([]float64, n)
	for i := range e.nodes {
		node := &e.nodes[i]
		fert := 0.6
		if fi := e.fieldIndex(node.FieldX, node.FieldY); fi >= 0 && fi < len(e.fields) {
			fert = clamp01(float64(e.fields[fi].Fertility))
		}
		market := clamp01(e.states[i].MarketPotential / 70)
		suit[i] = clamp01(0.55*fert + 0.45*market)
	}

	for i := range e.nodes {
		node := &e.nodes[i]
		st := &e.states[i]

		market := clamp01(st.MarketPotential / 70)
		var elite, risk, sec, trade, pub, tax, opp, stay float64
		if node.OwnerCountry >= 0 && node.OwnerCountry < len(countries) {
			c := countries[node.OwnerCountry]
			m := c.Macro()
			atWarTerm := 0.0
			if c.IsAtWar() {
				atWarTerm = 1
			}
			elite = clamp01(c.InstitutionCapacity())
			risk = clamp01(0.45*st.DiseaseBurden + 0.35*clamp01(m.FamineSeverity) + 0.20*atWarTerm)
			sec = clamp01(0.60*c.AvgControl() + 0.40*c.AdminCapacity())
			trade = market
			pub = clamp01(0.65*c.InstitutionCapacity() + 0.35*c.Legitimacy())
			tax = clamp01(c.TaxRate())
			opp = clamp01(0.55*(1-c.Legitimacy()) + 0.45*c.Inequality())
			stay = clamp01(0.50*sec + 0.25*trade + 0.25*(1-risk))
		} else {
			elite, risk, sec, pub, tax, opp, stay = 0.25, 0.35, 0.30, 0.30, 0.10, 0.20, 0.30
			trade = market
		}

		z := -0.55 + 1.45*neighAdopt[i] + 1.10*suit[i] + 0.90*elite - 1.40*risk
		st.AdoptionPressure = sigmoid(z)

		uJoin := sec + trade + pub - tax - opp - 0.50*risk
		st.JoinUtility = clamp(uJoin-stay, -1, 1)
	}

	pkgs := DefaultDomesticPackages()
	for i := range e.nodes {
		node := &e.nodes[i]
		st := &e.states[i]

		jitter := jitterSigned(e.ctx.WorldSeed, 0.06, uint64(year+120000)*saltYear, uint64(node.ID+31)*saltNode)
		threshold := 0.58 + jitter
		pAdopt := clamp01(st.AdoptionPressure)
		if pAdopt < threshold {
			continue
		}

		bestID := -1
		bestScore := -1.0
		for _, pkg := range pkgs {
			if hasPackage(node.AdoptedPackages, pkg.ID) {
				continue
			}
			sc := 0.55*pAdopt + 0.45*clamp01(suit[i]+0.25*pkg.MarketAffinity)
			if sc > bestScore || (sc == bestScore && pkg.ID < bestID) {
				bestScore = sc
				bestID = pkg.ID
			}
		}
		if bestID >= 0 {
			node.AdoptedPackages = append(node.AdoptedPackages, bestID)
			sortInts(node.AdoptedPackages)
			node.StorageStock = minf(1.8, node.StorageStock+0.02)
		}
	}

	e.updateCountryLegitimacyFeedback(countries)
}

// updateCountryLegitimacyFeedback nudges each country's legitimacy and
// average control toward the population-weighted mean of its nodes'
// local legitimacy and admin capacity.
func (e *Engine) updateCountryLegitimacyFeedback(countries []worldhost.CountryWriter) {
	sumLegit := make([]float64, len(countries))
	sumCtl := make([]float64, len(countries))
	sumPop := make([]float64, len(countries))
	for _, n := range e.nodes {
		if n.OwnerCountry < 0 || n.OwnerCountry >= len(countries) {
			continue
		}
		w := maxf(0, n.Population)
		sumLegit[n.OwnerCountry] += n.LocalLegitimacy * w
		sumCtl[n.OwnerCountry] += n.LocalAdminCapacity * w
		sumPop[n.OwnerCountry] += w
	}
	for ci, c := range countries {
		if sumPop[ci] <= 0 {
			continue
		}
		avgLegit := sumLegit[ci] / sumPop[ci]
		avgCtl := sumCtl[ci] / sumPop[ci]
		c.SetLegitimacy(clamp01(0.9*c.Legitimacy() + 0.1*avgLegit))
		c.SetAvgControl(clamp01(0.9*c.AvgControl() + 0.1*avgCtl))
	}
}
