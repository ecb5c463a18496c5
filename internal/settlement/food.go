package settlement

import "github.com/talgya/settlement-sim/internal/worldhost"

// recomputeFoodCaloriesAndCapacity recomputes carryingCapacity,
// foodProduced, and calories from each node's current inputs, applying
// an optional famine/disease stress contraction on capacity driven by
// the owning country's macro state.
func (e *Engine) recomputeFoodCaloriesAndCapacity(countries []worldhost.CountryWriter) {
	cfg := e.ctx.Config.Settlements
	for i := range e.nodes {
		n := &e.nodes[i]
		st := &e.states[i]

		fp := maxf(1, finiteOr(e.cachedGrid.FoodPotential(n.FieldX, n.FieldY), 60))

		modeMul := 0.0
		for k := 0; k < ModeCount; k++ {
			modeMul += n.Mix[k] * modeYield[k]
		}

		packageMul := 1.0
		for _, pkgID := range n.AdoptedPackages {
			pkg, ok := findPackage(pkgID)
			if !ok {
				continue
			}
			mixWeighted := pkg.ForagingMul*n.Mix[ModeForaging] + pkg.FarmingMul*n.Mix[ModeFarming] +
				pkg.PastoralMul*n.Mix[ModePastoral] + pkg.FishingMul*n.Mix[ModeFishing] + n.Mix[ModeCraft]
			packageMul *= maxf(0.45, mixWeighted)
		}

		coldIdx := clamp01((5 - finiteOr(e.cachedGrid.TempMean(n.FieldX, n.FieldY), 15)) / 25)

		capacity := maxf(80, fp*cfg.KBasePerFoodUnit*n.TechFactor*n.SoilFactor*n.WaterFactor*
			(1+n.StorageStock)*(1+0.3*n.IrrigationCapital))

		if n.OwnerCountry >= 0 && n.OwnerCountry < len(countries) {
			m := countries[n.OwnerCountry].Macro()
			stress := clamp01(0.6*clamp01(m.FamineSeverity) + 0.4*clamp01(m.DiseaseBurden))
			capacity *= 1 - 0.20*stress
		}

		produced := fp * modeMul * packageMul * n.TechFactor * n.SoilFactor * n.WaterFactor *
			(1 - 0.22*coldIdx) * (1 + 0.12*st.PastoralSeasonGain) * 0.045

		n.CarryingCapacity = maxf(80, finiteOr(capacity, 80))
		n.FoodProduced = maxf(0, finiteOr(produced, 0))
		n.FoodImported = 0
		n.FoodExported = 0
		n.Calories = n.FoodProduced
	}
}
