package worldhost

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// FakeField holds one field's host-provided attributes, used by FakeGrid.
type FakeField struct {
	Land           bool
	Owner          int
	Population     float64
	FoodPotential  float64
	MoveCost       float64
	CorridorWeight float64
	PrecipMean     float64
	TempMean       float64
	Coastal        bool
}

// FakeGrid is a deterministic, in-memory FieldGrid used by engine tests
// and the CLI harness's scripted scenarios. The zero value is a grid of
// all-ocean fields; use NewFakeGrid or NewFakeGridFromNoise to populate.
type FakeGrid struct {
	width, height int
	cellSize      float64
	fields        []FakeField
}

// NewFakeGrid builds a width x height grid of uniform (zero-valued)
// fields that callers then mutate directly via Set.
func NewFakeGrid(width, height int, cellSize float64) *FakeGrid {
	return &FakeGrid{
		width:    width,
		height:   height,
		cellSize: cellSize,
		fields:   make([]FakeField, width*height),
	}
}

// NewFakeGridFromNoise synthesizes a smooth test grid using layered
// simplex noise for precipitation and temperature, the same generator
// the reference world builder uses for elevation/rainfall/temperature
// rasters, adapted here to a square grid instead of a hex one.
func NewFakeGridFromNoise(width, height int, cellSize float64, seed int64) *FakeGrid {
	g := NewFakeGrid(width, height, cellSize)
	precipNoise := opensimplex.NewNormalized(seed + 1)
	tempNoise := opensimplex.NewNormalized(seed + 2)
	foodNoise := opensimplex.NewNormalized(seed + 3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			fx, fy := float64(x)*0.15, float64(y)*0.15
			g.fields[i] = FakeField{
				Land:           true,
				Owner:          -1,
				PrecipMean:     precipNoise.Eval2(fx, fy),
				TempMean:       tempNoise.Eval2(fx, fy)*40 - 5,
				FoodPotential:  40 + 100*foodNoise.Eval2(fx, fy),
				MoveCost:       1.0,
				CorridorWeight: 0.5,
				Coastal:        x == 0 || y == 0 || x == width-1 || y == height-1,
			}
		}
	}
	return g
}

func (g *FakeGrid) idx(x, y int) int { return y*g.width + x }

func (g *FakeGrid) inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.width && y < g.height
}

// Set replaces the field at (x, y).
func (g *FakeGrid) Set(x, y int, f FakeField) {
	if g.inBounds(x, y) {
		g.fields[g.idx(x, y)] = f
	}
}

// At returns a copy of the field at (x, y), for callers that want to
// mutate a subset of its attributes before calling Set.
func (g *FakeGrid) At(x, y int) FakeField {
	if !g.inBounds(x, y) {
		return FakeField{}
	}
	return g.fields[g.idx(x, y)]
}

func (g *FakeGrid) Width() int         { return g.width }
func (g *FakeGrid) Height() int        { return g.height }
func (g *FakeGrid) CellSize() float64  { return g.cellSize }

func (g *FakeGrid) IsLand(x, y int) bool {
	if !g.inBounds(x, y) {
		return false
	}
	return g.fields[g.idx(x, y)].Land
}

func (g *FakeGrid) OwnerID(x, y int) int {
	if !g.inBounds(x, y) {
		return -1
	}
	return g.fields[g.idx(x, y)].Owner
}

func (g *FakeGrid) Population(x, y int) float64 {
	if !g.inBounds(x, y) {
		return 0
	}
	return g.fields[g.idx(x, y)].Population
}

func (g *FakeGrid) FoodPotential(x, y int) float64 {
	if !g.inBounds(x, y) {
		return 0
	}
	return g.fields[g.idx(x, y)].FoodPotential
}

func (g *FakeGrid) MoveCost(x, y int) float64 {
	if !g.inBounds(x, y) {
		return 1
	}
	return g.fields[g.idx(x, y)].MoveCost
}

func (g *FakeGrid) CorridorWeight(x, y int) float64 {
	if !g.inBounds(x, y) {
		return 0
	}
	return g.fields[g.idx(x, y)].CorridorWeight
}

func (g *FakeGrid) PrecipMean(x, y int) float64 {
	if !g.inBounds(x, y) {
		return 0
	}
	return g.fields[g.idx(x, y)].PrecipMean
}

func (g *FakeGrid) TempMean(x, y int) float64 {
	if !g.inBounds(x, y) {
		return 0
	}
	return g.fields[g.idx(x, y)].TempMean
}

func (g *FakeGrid) IsCoastal(x, y int) bool {
	if !g.inBounds(x, y) {
		return false
	}
	return g.fields[g.idx(x, y)].Coastal
}

// FakeCountry is a mutable CountryWriter implementation for tests.
type FakeCountry struct {
	index               int
	name                string
	startX, startY      int
	population          float64
	legitimacy          float64
	avgControl          float64
	adminCapacity       float64
	institutionCapacity float64
	taxRate             float64
	inequality          float64
	knowledgeInfra      float64
	atWar               bool
	enemies             []int
	specialistPop       float64
	macro               MacroEconomy
}

// NewFakeCountry builds a country with reasonable mid-range defaults.
func NewFakeCountry(index int, name string, startX, startY int, population float64) *FakeCountry {
	return &FakeCountry{
		index:               index,
		name:                name,
		startX:              startX,
		startY:              startY,
		population:          population,
		legitimacy:          0.5,
		avgControl:          0.5,
		adminCapacity:       0.4,
		institutionCapacity: 0.4,
		taxRate:             0.1,
		knowledgeInfra:      0.2,
	}
}

func (c *FakeCountry) Index() int            { return c.index }
func (c *FakeCountry) Name() string          { return c.name }
func (c *FakeCountry) StartingPixelX() int   { return c.startX }
func (c *FakeCountry) StartingPixelY() int   { return c.startY }
func (c *FakeCountry) Population() float64   { return c.population }
func (c *FakeCountry) Legitimacy() float64   { return c.legitimacy }
func (c *FakeCountry) AvgControl() float64   { return c.avgControl }
func (c *FakeCountry) AdminCapacity() float64 { return c.adminCapacity }
func (c *FakeCountry) InstitutionCapacity() float64 { return c.institutionCapacity }
func (c *FakeCountry) TaxRate() float64      { return c.taxRate }
func (c *FakeCountry) Inequality() float64   { return c.inequality }
func (c *FakeCountry) KnowledgeInfra() float64 { return c.knowledgeInfra }
func (c *FakeCountry) IsAtWar() bool         { return c.atWar }
func (c *FakeCountry) Enemies() []int        { return c.enemies }
func (c *FakeCountry) Macro() MacroEconomy   { return c.macro }

func (c *FakeCountry) SetLegitimacy(v float64)          { c.legitimacy = v }
func (c *FakeCountry) SetAvgControl(v float64)          { c.avgControl = v }
func (c *FakeCountry) SetAdminCapacity(v float64)        { c.adminCapacity = v }
func (c *FakeCountry) SetTaxRate(v float64)              { c.taxRate = v }
func (c *FakeCountry) SetSpecialistPopulation(v float64) { c.specialistPop = v }
func (c *FakeCountry) SetKnowledgeInfra(v float64)       { c.knowledgeInfra = v }
func (c *FakeCountry) SetMacro(m MacroEconomy)           { c.macro = m }

// SetAtWar marks this country at war with the given enemy indices, for
// cross-border hostile-edge scenarios.
func (c *FakeCountry) SetAtWar(atWar bool, enemies ...int) {
	c.atWar = atWar
	c.enemies = enemies
}
