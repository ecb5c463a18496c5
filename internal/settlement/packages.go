package settlement

// DomesticPackage is a named technology bundle that multiplies mode
// payoffs and contributes environmental/market affinity weights to the
// adoption score formula.
type DomesticPackage struct {
	ID    int
	Key   string
	ForagingMul, FarmingMul, PastoralMul, FishingMul float64
	StorageBonus float64

	WaterAffinity  float64
	AridAffinity   float64
	ColdAffinity   float64
	MarketAffinity float64
}

// ModeMul returns the package's multiplier for the given subsistence mode.
// Craft has no declared package multiplier in the source catalog, so it
// is always 1.
func (p DomesticPackage) ModeMul(mode int) float64 {
	switch mode {
	case ModeForaging:
		return p.ForagingMul
	case ModeFarming:
		return p.FarmingMul
	case ModePastoral:
		return p.PastoralMul
	case ModeFishing:
		return p.FishingMul
	default:
		return 1.0
	}
}

// defaultDomesticPackages is the five built-in packages, ported from the
// original implementation's literal catalog.
var defaultDomesticPackages = []DomesticPackage{
	{0, "floodplain_irrigation", 0.96, 1.34, 0.90, 0.88, 0.12, 0.95, 0.10, 0.05, 0.25},
	{1, "clay_granaries", 1.00, 1.08, 1.00, 1.02, 0.24, 0.40, 0.20, 0.20, 0.35},
	{2, "caravan_herding", 0.92, 0.95, 1.28, 0.82, 0.08, 0.10, 0.92, 0.20, 0.45},
	{3, "littoral_fishery", 0.86, 0.88, 0.84, 1.46, 0.10, 1.00, 0.10, 0.05, 0.30},
	{4, "craft_market_towns", 0.90, 1.02, 0.94, 0.94, 0.06, 0.20, 0.20, 0.15, 1.00},
}

// DefaultDomesticPackages returns the built-in package catalog.
func DefaultDomesticPackages() []DomesticPackage {
	return defaultDomesticPackages
}

func findPackage(id int) (DomesticPackage, bool) {
	for _, p := range defaultDomesticPackages {
		if p.ID == id {
			return p, true
		}
	}
	return DomesticPackage{}, false
}

func hasPackage(adopted []int, id int) bool {
	for _, a := range adopted {
		if a == id {
			return true
		}
	}
	return false
}
