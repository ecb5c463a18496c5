package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/settlement-sim/internal/worldhost"
)

// buildMultiCountryWorld seeds a grid with three countries, two of them
// mutually at war, used to exercise the full tick pipeline across many
// steps at once.
func buildMultiCountryWorld() (*worldhost.FakeGrid, []worldhost.CountryWriter) {
	grid := newUniformGrid(20, 20, 0.4, 15, 90)
	claimField(grid, 2, 2, 0, 3000)
	claimField(grid, 17, 17, 1, 2500)
	claimField(grid, 2, 17, 2, 1800)

	a := worldhost.NewFakeCountry(0, "Redwater", 2, 2, 3000)
	b := worldhost.NewFakeCountry(1, "Bluecliff", 17, 17, 2500)
	c := worldhost.NewFakeCountry(2, "Greenford", 2, 17, 1800)
	a.SetAtWar(true, 1)
	b.SetAtWar(true, 0)

	return grid, []worldhost.CountryWriter{a, b, c}
}

func TestUniversalInvariantsHoldAcrossManyTicks(t *testing.T) {
	grid, countries := buildMultiCountryWorld()
	eng := newTestEngine(scenarioSeed, nil)

	const years = 60
	for year := 0; year < years; year++ {
		eng.TickYear(year, grid, countries)
		require.NoErrorf(t, eng.ValidateInvariants(), "year %d", year)

		for _, n := range eng.Nodes() {
			assert.GreaterOrEqualf(t, n.OwnerCountry, -1, "node %d owner", n.ID)
			assert.Lessf(t, n.OwnerCountry, len(countries), "node %d owner", n.ID)
		}
		for _, e := range eng.Edges() {
			assert.Less(t, e.FromNode, e.ToNode, "edge endpoints must be canonical")
			assert.Greater(t, e.Cost, 0.0)
			assert.LessOrEqual(t, e.Cost, eng.ctx.Config.Transport.MaxEdgeCost)
			assert.GreaterOrEqual(t, e.Reliability, 0.03)
			assert.LessOrEqual(t, e.Reliability, 1.0)
			assert.Greater(t, e.CampaignAttrition, 0.0)
			assert.LessOrEqual(t, e.CampaignAttrition, 1.0)
		}
	}

	nCountry := len(countries)
	hint := eng.TradeHintMatrix()
	require.Len(t, hint, nCountry*nCountry)
	for ci := 0; ci < nCountry; ci++ {
		rowMax := float32(0)
		for cj := 0; cj < nCountry; cj++ {
			v := hint[ci*nCountry+cj]
			assert.GreaterOrEqual(t, v, float32(0))
			assert.LessOrEqual(t, v, float32(1))
			if ci == cj {
				assert.Equal(t, float32(0), v)
			}
			if v > rowMax {
				rowMax = v
			}
		}
	}
}

// Population-sync law: per-country total node population must track
// the host country's reported population after every tick.
func TestPopulationSyncedToCountryTotals(t *testing.T) {
	grid, countries := buildMultiCountryWorld()
	eng := newTestEngine(scenarioSeed, nil)

	eng.TickYear(0, grid, countries)

	totals := make(map[int]float64)
	for _, n := range eng.Nodes() {
		if n.OwnerCountry >= 0 {
			totals[n.OwnerCountry] += n.Population
		}
	}
	for ci, c := range countries {
		if c.Population() <= 0 {
			continue
		}
		got := totals[ci]
		want := c.Population()
		assert.InEpsilonf(t, want, got, 1e-6, "country %d population sync", ci)
	}
}

// Package monotonicity law: AdoptedPackages must never shrink across
// ticks for any node that survives (by field position) between ticks.
func TestAdoptedPackagesAreNonShrinking(t *testing.T) {
	grid, countries := buildMultiCountryWorld()
	eng := newTestEngine(scenarioSeed, nil)

	prevByField := map[[2]int][]int{}
	const years = 40
	for year := 0; year < years; year++ {
		eng.TickYear(year, grid, countries)

		curByField := map[[2]int][]int{}
		for _, n := range eng.Nodes() {
			key := [2]int{n.FieldX, n.FieldY}
			curByField[key] = append([]int(nil), n.AdoptedPackages...)
		}
		for key, cur := range curByField {
			if prev, ok := prevByField[key]; ok {
				assert.True(t, isSupersetSorted(cur, prev),
					"adopted packages shrank at field %v between tick and the next", key)
			}
		}
		prevByField = curByField
	}
}

func isSupersetSorted(superset, subset []int) bool {
	set := make(map[int]bool, len(superset))
	for _, v := range superset {
		set[v] = true
	}
	for _, v := range subset {
		if !set[v] {
			return false
		}
	}
	return true
}

// Migration budget law: migrateAndSpecialize caps each node's outflow
// on any single edge at min(0.08*population, 0.03*population) before
// growth/shocks are applied later in the tick; as an outside observer
// we check the weaker but still meaningful consequence that population
// never explodes within a single tick from migration plus growth
// combined.
func TestMigrationDoesNotExceedBudget(t *testing.T) {
	grid, countries := buildMultiCountryWorld()
	eng := newTestEngine(scenarioSeed, nil)

	eng.TickYear(0, grid, countries)
	before := map[int]float64{}
	for _, n := range eng.Nodes() {
		before[n.ID] = n.Population
	}

	eng.TickYear(1, grid, countries)
	for _, n := range eng.Nodes() {
		prev, ok := before[n.ID]
		if !ok || prev <= 0 {
			continue
		}
		assert.LessOrEqualf(t, n.Population, prev*1.5, "node %d population jumped implausibly in one tick", n.ID)
	}
}

// Replicator simplex property: the subsistence mix always stays a simplex
// (non-negative, summing to 1) regardless of the payoff landscape.
func TestSubsistenceMixStaysOnSimplex(t *testing.T) {
	grid := newUniformGrid(4, 4, 0.5, 18, 100)
	claimField(grid, 1, 1, 0, 500)
	country := worldhost.NewFakeCountry(0, "Flatland", 1, 1, 500)
	countries := []worldhost.CountryWriter{country}

	eng := newTestEngine(scenarioSeed, nil)
	eng.TickYear(0, grid, countries)

	sum := 0.0
	mix := eng.Nodes()[0].Mix
	for _, v := range mix {
		assert.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 0.01)
}
