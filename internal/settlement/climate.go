package settlement

import "github.com/talgya/settlement-sim/internal/worldhost"

// regime transition constants, ported from the original implementation.
// Each non-Normal state self-persists with floor probability
// regimeSelfPersist; Drought<->Pluvial swaps are rarer than transitions
// back to Normal. Tie-breaks (when cumulative bands are exactly equal,
// which only happens at 0 precision loss) favor lexicographic order
// Normal < Drought < Pluvial < Cold.
const regimeSelfPersist = 0.62

func regimeFertilityMuls(r Regime) (regen, deplete float64) {
	switch r {
	case RegimeDrought:
		return 0.62, 1.40
	case RegimePluvial:
		return 1.24, 0.84
	case RegimeCold:
		return 0.80, 1.15
	default:
		return 1.0, 1.0
	}
}

// updateClimateRegimesAndFertility advances the per-field climate
// regime chain and the fertility/irrigation stock, then pushes the
// result into each node's soilFactor/waterFactor/irrigationCapital.
func (e *Engine) updateClimateRegimesAndFertility(year int, grid worldhost.FieldGrid) {
	cfg := e.ctx.Config.ResearchSettlement

	// intensity[i] = sum over nodes on field i of pop*(0.2+0.8*farmShare) / (120*foodPotential)
	intensity := make([]float64, len(e.fields))
	for i, n := range e.nodes {
		fi := e.fieldIndex(n.FieldX, n.FieldY)
		if fi < 0 {
			continue
		}
		farmShare := n.Mix[ModeFarming]
		fp := maxf(1, finiteOr(grid.FoodPotential(n.FieldX, n.FieldY), 60))
		intensity[fi] += n.Population * (0.2 + 0.8*farmShare) / (120 * fp)
		_ = i
	}

	irrigInvest := make([]float64, len(e.fields))
	if cfg.IrrigationLoop {
		for _, n := range e.nodes {
			fi := e.fieldIndex(n.FieldX, n.FieldY)
			if fi < 0 {
				continue
			}
			farmShare := n.Mix[ModeFarming]
			irrigInvest[fi] += n.IrrigationCapital * (0.0015 + 0.0025*farmShare)
		}
	}

	for y := 0; y < e.fieldH; y++ {
		for x := 0; x < e.fieldW; x++ {
			fi := e.fieldIndex(x, y)
			fs := &e.fields[fi]
			if !grid.IsLand(x, y) {
				continue
			}

			precip := finiteOr(grid.PrecipMean(x, y), 0.5)
			temp := finiteOr(grid.TempMean(x, y), 15)
			bits := mix64(seedMix(e.ctx.WorldSeed, uint64(year+1)*saltYear, uint64(fi+1)*saltField))
			h := u01FromU64(bits)
			fs.Regime = nextRegime(fs.Regime, precip, temp, h)

			regen, deplete := regimeFertilityMuls(fs.Regime)
			intens := clamp01(intensity[fi])
			fert := float64(fs.Fertility)
			fert = clamp(fert+0.018*(1-intens)*regen-0.022*intens*deplete, 0.05, 1)

			irr := float64(fs.IrrigationCapital)
			if cfg.IrrigationLoop {
				irr = clamp((1-cfg.IrrigationDepreciation)*irr+irrigInvest[fi], 0, 1)
				if fs.Regime == RegimeDrought && irr > 0 {
					fert = clamp01(fert + 0.018*cfg.IrrigationFertilityShield*irr)
				}
			}

			fs.Fertility = float32(fert)
			fs.IrrigationCapital = float32(irr)
		}
	}

	for i := range e.nodes {
		n := &e.nodes[i]
		fi := e.fieldIndex(n.FieldX, n.FieldY)
		if fi < 0 {
			continue
		}
		fs := e.fields[fi]
		n.SoilFactor = clamp(0.6+0.8*float64(fs.Fertility), 0.4, 1.6)
		switch fs.Regime {
		case RegimeDrought:
			n.WaterFactor = clamp(0.55+0.4*float64(fs.Fertility), 0.35, 1.3)
		case RegimePluvial:
			n.WaterFactor = clamp(0.9+0.5*float64(fs.Fertility), 0.6, 1.5)
		default:
			n.WaterFactor = clamp(0.75+0.5*float64(fs.Fertility), 0.5, 1.4)
		}
		if e.ctx.Config.ResearchSettlement.IrrigationLoop {
			target := float64(fs.IrrigationCapital) * (1 + e.ctx.Config.ResearchSettlement.IrrigationWaterBoost)
			n.IrrigationCapital = clamp(0.85*n.IrrigationCapital+0.15*target, 0, 2)
		}
	}
}

// nextRegime applies the 4-state Markov chain transition for one field
// given its current regime, the host's precipitation/temperature, and a
// deterministic uniform draw h in [0,1).
func nextRegime(cur Regime, precip, temp, h float64) Regime {
	arid := clamp01(1 - precip*2)
	wet := clamp01(precip*1.5 - 0.3)
	coldIdx := clamp01((5 - temp) / 25)

	switch cur {
	case RegimeNormal:
		pDrought := 0.10 * arid
		pPluvial := 0.08 * wet
		pCold := 0.07 * coldIdx
		if h < pDrought {
			return RegimeDrought
		}
		if h < pDrought+pPluvial {
			return RegimePluvial
		}
		if h < pDrought+pPluvial+pCold {
			return RegimeCold
		}
		return RegimeNormal
	case RegimeDrought:
		if h < regimeSelfPersist {
			return RegimeDrought
		}
		if h < regimeSelfPersist+0.03 {
			return RegimePluvial
		}
		return RegimeNormal
	case RegimePluvial:
		if h < regimeSelfPersist {
			return RegimePluvial
		}
		if h < regimeSelfPersist+0.03 {
			return RegimeDrought
		}
		return RegimeNormal
	case RegimeCold:
		if h < regimeSelfPersist {
			return RegimeCold
		}
		return RegimeNormal
	default:
		return RegimeNormal
	}
}
