package settlement

// modeYield is the base calorie yield per subsistence mode used by the
// food-production formula and by the replicator's payoff function.
var modeYield = [ModeCount]float64{0.86, 1.18, 0.95, 1.08, 0.24}

// updateSubsistenceMixAndPackages runs the replicator dynamic over the
// five-mode mix and then scores/adopts domestic packages.
func (e *Engine) updateSubsistenceMixAndPackages(year int) {
	cfg := e.ctx.Config
	rate := cfg.Subsistence.MixAdaptRate

	for i := range e.nodes {
		n := &e.nodes[i]
		st := &e.states[i]

		fp := finiteOr(e.fieldFoodPotentialAt(n.FieldX, n.FieldY), 60)
		corridor := finiteOr(e.fieldCorridorAt(n.FieldX, n.FieldY), 0.5)
		precip := finiteOr(e.fieldPrecipAt(n.FieldX, n.FieldY), 0.5)
		temp := finiteOr(e.fieldTempAt(n.FieldX, n.FieldY), 15)
		coastal := e.fieldCoastalAt(n.FieldX, n.FieldY)
		market := st.MarketPotential

		fpNorm := clamp01(fp / 140.0)
		arid := clamp01(1 - precip*2)
		cold := clamp01((5 - temp) / 25)

		var pay [ModeCount]float64
		pay[ModeForaging] = 0.4 + 0.5*fpNorm - 0.2*arid
		pay[ModeFarming] = 0.3 + 0.7*fpNorm + 0.3*precip - 0.35*arid - 0.25*cold
		pay[ModePastoral] = 0.35 + 0.4*arid + 0.25*corridor - 0.15*cold
		pay[ModeFishing] = 0.1
		if coastal {
			pay[ModeFishing] = 0.55 + 0.35*precip
		}
		pay[ModeCraft] = 0.2 + cfg.Subsistence.CraftFromMarketWeight*clamp01(market/70) + 0.2*corridor

		for _, pkgID := range n.AdoptedPackages {
			pkg, ok := findPackage(pkgID)
			if !ok {
				continue
			}
			pay[ModeForaging] *= pkg.ForagingMul
			pay[ModeFarming] *= pkg.FarmingMul
			pay[ModePastoral] *= pkg.PastoralMul
			pay[ModeFishing] *= pkg.FishingMul
		}

		weighted := 0.0
		for k := 0; k < ModeCount; k++ {
			weighted += n.Mix[k] * pay[k]
		}

		var next [ModeCount]float64
		sum := 0.0
		for k := 0; k < ModeCount; k++ {
			v := maxf(1e-4, n.Mix[k]+rate*n.Mix[k]*(pay[k]-weighted))
			next[k] = v
			sum += v
		}
		if sum <= 1e-9 {
			n.Mix = DefaultMix
		} else {
			for k := 0; k < ModeCount; k++ {
				n.Mix[k] = next[k] / sum
			}
		}

		if cfg.Packages.Enabled {
			e.adoptPackages(n, year, fpNorm, arid, cold, market, corridor)
		}
	}
}

func (e *Engine) adoptPackages(n *SettlementNode, year int, fpNorm, arid, cold, market, corridor float64) {
	cfg := e.ctx.Config.Packages
	for _, pkg := range defaultDomesticPackages {
		if hasPackage(n.AdoptedPackages, pkg.ID) {
			continue
		}
		envAffinity := clamp01(0.34*fpNorm + 0.33*pkg.AridAffinity*arid + 0.33*pkg.ColdAffinity*cold + pkg.WaterAffinity*0.0)
		bits := mix64(seedMix(e.ctx.WorldSeed, uint64(year+20000)*saltYear, uint64(n.ID+1)*saltNode, uint64(pkg.ID+19)*saltPackage))
		jitter := (u01FromU64(bits) - 0.5) * 0.08
		score := cfg.EnvironmentWeight*envAffinity + cfg.DiffusionWeight*clamp01(market/70) + 0.25*corridor + jitter
		if score >= 1-cfg.AdoptionBase {
			n.AdoptedPackages = append(n.AdoptedPackages, pkg.ID)
		}
	}
	if len(n.AdoptedPackages) > 1 {
		sortInts(n.AdoptedPackages)
	}
}

func sortInts(a []int) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j-1] > a[j]; j-- {
			a[j-1], a[j] = a[j], a[j-1]
		}
	}
}

func (e *Engine) fieldFoodPotentialAt(x, y int) float64 { return e.cachedGrid.FoodPotential(x, y) }
func (e *Engine) fieldCorridorAt(x, y int) float64       { return e.cachedGrid.CorridorWeight(x, y) }
func (e *Engine) fieldPrecipAt(x, y int) float64         { return e.cachedGrid.PrecipMean(x, y) }
func (e *Engine) fieldTempAt(x, y int) float64           { return e.cachedGrid.TempMean(x, y) }
func (e *Engine) fieldCoastalAt(x, y int) bool           { return e.cachedGrid.IsCoastal(x, y) }
func (e *Engine) fieldMoveCostAt(x, y int) float64       { return e.cachedGrid.MoveCost(x, y) }
func (e *Engine) fieldIsLandAt(x, y int) bool            { return e.cachedGrid.IsLand(x, y) }
func (e *Engine) fieldOwnerAt(x, y int) int              { return e.cachedGrid.OwnerID(x, y) }
