package settlement

import (
	"github.com/talgya/settlement-sim/internal/simcontext"
	"github.com/talgya/settlement-sim/internal/worldhost"
)

// newUniformGrid builds an all-land grid with the same precipitation,
// temperature, and food potential on every field, used by scenarios
// that want to isolate the engine from terrain variation.
func newUniformGrid(w, h int, precip, temp, food float64) *worldhost.FakeGrid {
	g := worldhost.NewFakeGrid(w, h, 1.0)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.Set(x, y, worldhost.FakeField{
				Land:           true,
				Owner:          -1,
				FoodPotential:  food,
				MoveCost:       1.0,
				CorridorWeight: 0.5,
				PrecipMean:     precip,
				TempMean:       temp,
				Coastal:        x == 0 || y == 0 || x == w-1 || y == h-1,
			})
		}
	}
	return g
}

// claimField overwrites a single field's owner/population, preserving
// every other already-set attribute.
func claimField(g *worldhost.FakeGrid, x, y, owner int, population float64) {
	f := g.At(x, y)
	f.Owner = owner
	f.Population = population
	g.Set(x, y, f)
}

// claimTerritory marks every field in the grid as owned by owner,
// leaving population untouched, for scenarios where an entire map is a
// single country's territory.
func claimTerritory(g *worldhost.FakeGrid, owner int) {
	for y := 0; y < g.Height(); y++ {
		for x := 0; x < g.Width(); x++ {
			f := g.At(x, y)
			f.Owner = owner
			g.Set(x, y, f)
		}
	}
}

func newTestEngine(seed uint64, mutate func(*simcontext.Config)) *Engine {
	cfg := simcontext.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	ctx := simcontext.NewContext(seed, cfg)
	return NewEngine(ctx)
}
