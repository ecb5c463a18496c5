package settlement

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/talgya/settlement-sim/internal/simcontext"
	"github.com/talgya/settlement-sim/internal/worldhost"
)

// Engine owns the settlement node/edge vectors and all per-field arrays.
// TickYear is its only mutation entry point; everything else is a
// read-only accessor. The engine borrows the host country vector for
// the duration of one tick only; it keeps the field grid of the most
// recent tick for read-only use (see cachedGrid).
type Engine struct {
	ctx *simcontext.Context

	nodes      []SettlementNode
	states     []nodeState
	edges      []TransportEdge
	fields     []fieldState
	fieldW     int
	fieldH     int

	// cachedGrid is the host grid passed to the most recent TickYear
	// call. It stays set after the tick returns, because
	// ValidateInvariants reads it for the land-field check.
	cachedGrid worldhost.FieldGrid

	countryAgg         []SettlementCountryAggregate
	tradeHintMatrix    []float32
	overlayPopulation  []float32
	overlayDominantMode []uint8
	overlayTransport   []float32

	nextNodeID int
	lastTickYear int
	initialized  bool
	diseaseInitialized bool

	lastDeterminismHash          uint64
	lastFissionConservationError float64

	// warPairs caches which country-index pairs are mutually at war for
	// the duration of the current tick, keyed by packKey(lo, hi).
	warPairs map[uint64]bool

	debugEnabled bool
}

// NewEngine creates a settlement engine bound to the given world seed
// and configuration.
func NewEngine(ctx *simcontext.Context) *Engine {
	return &Engine{
		ctx:          ctx,
		lastTickYear: -1 << 30,
	}
}

// Enabled reports whether the settlement subsystem is turned on.
func (e *Engine) Enabled() bool {
	return e.ctx.Config.Settlements.Enabled
}

// SetDebugEnabled toggles PrintDebugSample output.
func (e *Engine) SetDebugEnabled(v bool) { e.debugEnabled = v }

// DebugEnabled reports the current debug flag.
func (e *Engine) DebugEnabled() bool { return e.debugEnabled }

// Nodes returns the current node vector. Callers must not retain
// indices across the next TickYear call.
func (e *Engine) Nodes() []SettlementNode { return e.nodes }

// Edges returns the current canonical-sorted edge vector.
func (e *Engine) Edges() []TransportEdge { return e.edges }

// CountryAggregates returns the per-country aggregate roll-up from the
// most recent tick.
func (e *Engine) CountryAggregates() []SettlementCountryAggregate { return e.countryAgg }

// TradeHintMatrix returns the row-normalized country x country trade
// affinity matrix (n*n, row-major).
func (e *Engine) TradeHintMatrix() []float32 { return e.tradeHintMatrix }

// Overlays returns the three field-resolution rasters: max node
// population per field, dominant mode per field (255 = none), and
// transport density per field.
func (e *Engine) Overlays() (population []float32, dominantMode []uint8, transportDensity []float32) {
	return e.overlayPopulation, e.overlayDominantMode, e.overlayTransport
}

// LastDeterminismHash returns the 64-bit canonical hash of all
// persistent state computed at the end of the most recent tick.
func (e *Engine) LastDeterminismHash() uint64 { return e.lastDeterminismHash }

// buildWarPairs precomputes mutual-war lookups for all country pairs,
// consumed by transport cost, trade attenuation, and campaign logistics.
func (e *Engine) buildWarPairs(countries []worldhost.CountryWriter) {
	e.warPairs = make(map[uint64]bool)
	for i, c := range countries {
		if !c.IsAtWar() {
			continue
		}
		for _, j := range c.Enemies() {
			if j < 0 || j >= len(countries) || j == i {
				continue
			}
			if !countries[j].IsAtWar() {
				continue
			}
			lo, hi := i, j
			if lo > hi {
				lo, hi = hi, lo
			}
			e.warPairs[packKey(lo, hi)] = true
		}
	}
}

func (e *Engine) fieldIndex(x, y int) int {
	if x < 0 || y < 0 || x >= e.fieldW || y >= e.fieldH {
		return -1
	}
	return y*e.fieldW + x
}

// TickYear advances the engine by one year. It is a no-op when year is
// not strictly greater than the last processed year, or when the
// subsystem is disabled, or when there are no nodes after
// initialization — in all three cases the trade-hint matrix is
// zero-filled and the determinism hash is reset to zero, per the
// engine's exit-behavior contract.
func (e *Engine) TickYear(year int, grid worldhost.FieldGrid, countries []worldhost.CountryWriter) {
	if !e.Enabled() || year <= e.lastTickYear {
		e.zeroFillExit(len(countries))
		return
	}

	e.cachedGrid = grid
	e.fieldW, e.fieldH = grid.Width(), grid.Height()
	if len(e.fields) != e.fieldW*e.fieldH {
		e.fields = make([]fieldState, e.fieldW*e.fieldH)
		for i := range e.fields {
			e.fields[i] = fieldState{Fertility: 0.6, Regime: RegimeNormal}
		}
	}

	e.lastFissionConservationError = 0

	if !e.initialized {
		e.initializeNodesFromFieldPopulation(grid, countries)
		e.initialized = true
	}
	e.syncNodeTotalsToCountryPopulation(countries)
	e.buildWarPairs(countries)

	if len(e.nodes) == 0 {
		e.zeroFillExit(len(countries))
		e.lastTickYear = year
		return
	}

	e.updateSubsistenceMixAndPackages(year)
	e.updateClimateRegimesAndFertility(year, grid)
	e.updatePastoralMobilityRoutes(year, grid)
	e.recomputeFoodCaloriesAndCapacity(countries)
	e.updateHouseholdsElitesExtraction(countries)
	e.rebuildTransportGraph(year, grid)
	e.computeFlowsAndMigration(countries)
	e.updateCampaignLogisticsAndAttrition(countries)
	e.updateSettlementDisease(year, countries)
	e.applyGrowthAndSpecialization(year, countries)
	e.applyFission(year, grid)
	e.updateAdoptionAndJoinUtility(year, countries)
	e.applyPolityChoiceAssignment(year, countries)
	e.syncNodeTotalsToCountryPopulation(countries)
	e.aggregateToCountries(countries)
	e.buildCountryTradeHintMatrix(len(countries))
	e.rebuildOverlays()
	e.computeDeterminismHash()

	if err := e.ValidateInvariants(); err != nil {
		slog.Error("settlement invariant violation", "year", year, "error", err)
	}

	e.lastTickYear = year

	slog.Info("settlement tick complete",
		"year", year,
		"nodes", len(e.nodes),
		"edges", len(e.edges),
		"hash", fmt.Sprintf("%x", e.lastDeterminismHash),
	)
}

func (e *Engine) zeroFillExit(countryCount int) {
	n := countryCount
	if n <= 0 {
		e.tradeHintMatrix = nil
	} else {
		e.tradeHintMatrix = make([]float32, n*n)
	}
	e.lastDeterminismHash = 0
}

// ensure states slice matches nodes length; called after any step that
// appends/removes nodes (initialization, fission).
func (e *Engine) syncStatesLength() {
	for len(e.states) < len(e.nodes) {
		e.states = append(e.states, nodeState{S: 1})
	}
	if len(e.states) > len(e.nodes) {
		e.states = e.states[:len(e.nodes)]
	}
}

// sortNodesCanonical sorts nodes (and the parallel states slice) by
// (id, fieldY, fieldX), the canonical order maintained at the end of
// any step that may reorder nodes (initialization, fission).
func (e *Engine) sortNodesCanonical() {
	type pair struct {
		n SettlementNode
		s nodeState
	}
	pairs := make([]pair, len(e.nodes))
	for i := range e.nodes {
		pairs[i] = pair{e.nodes[i], e.states[i]}
	}
	sort.Slice(pairs, func(i, j int) bool {
		a, b := pairs[i].n, pairs[j].n
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		if a.FieldY != b.FieldY {
			return a.FieldY < b.FieldY
		}
		return a.FieldX < b.FieldX
	})
	for i := range pairs {
		e.nodes[i] = pairs[i].n
		e.states[i] = pairs[i].s
	}
}

// sortEdgesCanonical sorts edges by (fromNode.id, toNode.id, cost asc,
// capacity desc), using current node IDs (which equal node index iff
// nodes have never been reordered since the edge was built — the
// caller is responsible for calling this immediately after construction
// using node array indices, matching the original's convention that
// edge endpoints are indices, not ids, at rebuild time).
func (e *Engine) sortEdgesCanonical() {
	sort.Slice(e.edges, func(i, j int) bool {
		a, b := e.edges[i], e.edges[j]
		if a.FromNode != b.FromNode {
			return a.FromNode < b.FromNode
		}
		if a.ToNode != b.ToNode {
			return a.ToNode < b.ToNode
		}
		if a.Cost != b.Cost {
			return a.Cost < b.Cost
		}
		return a.Capacity > b.Capacity
	})
}

// PrintDebugSample writes a deterministic, population-sorted dump of
// the top maxSamples nodes, ported from the original implementation's
// printDebugSample (not named as a component in spec.md but present in
// the source this spec was distilled from).
func (e *Engine) PrintDebugSample(w io.Writer, year int, countries []worldhost.CountryView, maxSamples int) {
	if len(e.nodes) == 0 {
		fmt.Fprintf(w, "[settlement-debug] year=%d nodes=0 edges=%d\n", year, len(e.edges))
		return
	}
	type row struct {
		idx int
		pop float64
	}
	rows := make([]row, len(e.nodes))
	for i, n := range e.nodes {
		rows[i] = row{i, n.Population}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].pop != rows[j].pop {
			return rows[i].pop > rows[j].pop
		}
		return e.nodes[rows[i].idx].ID < e.nodes[rows[j].idx].ID
	})
	if maxSamples < 1 {
		maxSamples = 1
	}
	if len(rows) > maxSamples {
		rows = rows[:maxSamples]
	}
	fmt.Fprintf(w, "[settlement-debug] year=%d nodes=%d edges=%d blend=%.3f\n",
		year, len(e.nodes), len(e.edges), e.ctx.Config.Transport.TradeHintBlend)
	for _, r := range rows {
		n := e.nodes[r.idx]
		st := e.states[r.idx]
		ownerName := "<none>"
		if n.OwnerCountry >= 0 && n.OwnerCountry < len(countries) {
			ownerName = countries[n.OwnerCountry].Name()
		}
		fmt.Fprintf(w, "  node=%d owner=%d(%s) field=(%d,%d) pop=%.0f K=%.0f cal=%.3f mix=%v packages=%d irr=%.3f extRev=%.3f warAttr=%.3f outFlow=%.3f\n",
			n.ID, n.OwnerCountry, ownerName, n.FieldX, n.FieldY,
			n.Population, n.CarryingCapacity, n.Calories, n.Mix, len(n.AdoptedPackages),
			n.IrrigationCapital, st.ExtractionRevenue, st.WarAttrition, st.OutgoingFlow)
	}
}
