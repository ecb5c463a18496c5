package settlement

import "github.com/talgya/settlement-sim/internal/worldhost"

// updateHouseholdsElitesExtraction runs per-node surplus extraction,
// splits revenue into storage/irrigation/road investment, and
// aggregates revenue/legitimacy/control up to each country.
func (e *Engine) updateHouseholdsElitesExtraction(countries []worldhost.CountryWriter) {
	cfg := e.ctx.Config.ResearchSettlement
	cal0 := e.ctx.Config.Settlements.Cal0
	if !cfg.HouseholdsExtraction {
		for i := range e.states {
			e.states[i].ExtractionRevenue = 0
		}
		return
	}

	storageShare, irrigShare, roadShare := normalizeShares(
		cfg.ExtractionStorageInvestShare, cfg.ExtractionIrrigationInvestShare, cfg.ExtractionRoadInvestShare)

	type agg struct {
		revenue, pop, legitW, ctlW float64
	}
	aggs := make([]agg, len(countries))

	for i := range e.nodes {
		n := &e.nodes[i]
		st := &e.states[i]

		admin := n.LocalAdminCapacity
		legit := n.LocalLegitimacy
		targetTau := clamp(cfg.ExtractionBase+cfg.ExtractionAdminWeight*admin+cfg.ExtractionLegitimacyWeight*legit, 0, 0.55)
		targetTau *= 0.55 + 0.45*(0.4+n.EliteShare)
		n.ExtractionRate = clamp(0.8*n.ExtractionRate+0.2*targetTau, 0, 0.6)

		surplus := maxf(0, n.Calories-n.Population*cal0)
		revenue := n.ExtractionRate * surplus
		st.ExtractionRevenue = revenue

		investStorage := revenue * storageShare
		investIrrigation := revenue * irrigShare
		_ = roadShare // road investment feeds the host transport layer, not modeled as a node stock

		n.StorageStock = clamp(n.StorageStock+0.0008*investStorage, 0, 3)
		n.IrrigationCapital = clamp(n.IrrigationCapital+0.0010*investIrrigation, 0, 2)
		n.LocalAdminCapacity = clamp01(n.LocalAdminCapacity + 0.01*(revenue/maxf(1, n.Population)-0.02))
		n.LocalLegitimacy = clamp01(n.LocalLegitimacy + 0.005*(targetTau-n.ExtractionRate))
		n.EliteShare = clamp(n.EliteShare+0.002*(revenue/maxf(1, n.Population)-0.05), 0.02, 0.35)

		if n.OwnerCountry >= 0 && n.OwnerCountry < len(countries) {
			a := &aggs[n.OwnerCountry]
			pop := maxf(0, n.Population)
			a.revenue += revenue
			a.pop += pop
			a.legitW += pop * n.LocalLegitimacy
			a.ctlW += pop * clamp01(n.LocalAdminCapacity)
		}
	}

	for ci, c := range countries {
		a := aggs[ci]
		w := maxf(1, a.pop)
		m := c.Macro()
		m.NetRevenue = a.revenue
		c.SetMacro(m)
		c.SetTaxRate(clamp01(0.7*c.TaxRate() + 0.3*(a.revenue/w)/maxf(1, cal0)))
		c.SetLegitimacy(clamp01(0.9*c.Legitimacy() + 0.1*(a.legitW/w)))
		c.SetAvgControl(clamp01(0.9*c.AvgControl() + 0.1*(a.ctlW/w)))
	}
}

func normalizeShares(a, b, c float64) (float64, float64, float64) {
	sum := a + b + c
	if sum <= 1e-9 {
		return 1.0 / 3, 1.0 / 3, 1.0 / 3
	}
	return a / sum, b / sum, c / sum
}
