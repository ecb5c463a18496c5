package simcontext

import "math"

// Context bundles the world seed and configuration that both the
// settlement engine and the persistence/CLI layers need, mirroring the
// original implementation's SimulationContext minus the mutable
// mt19937_64 RNG it carried — this engine has no real RNG at all.
type Context struct {
	WorldSeed uint64
	Config    Config
}

// NewContext builds a Context from a seed and config.
func NewContext(worldSeed uint64, cfg Config) *Context {
	return &Context{WorldSeed: worldSeed, Config: cfg}
}

// Mix64 is the engine-wide 64-bit integer mix (splitmix64-style
// finalizer). Every deterministic "random" decision in the engine is
// Mix64 of the world seed XORed with salted year/id/kind terms.
func Mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xBF58476D1CE4E5B9
	x ^= x >> 27
	x *= 0x94D049BB133111EB
	x ^= x >> 31
	return x
}

// U01FromU64 projects a 64-bit integer onto a uniform value in [0, 1).
func U01FromU64(x uint64) float64 {
	return float64(x) / (float64(math.MaxUint64) + 1)
}

// SeedForCountry derives a per-country seed, used by host-side systems
// that want a stable but distinct stream per country; the settlement
// engine itself only ever uses WorldSeed directly combined with salts.
func (c *Context) SeedForCountry(countryIndex int) uint64 {
	return Mix64(c.WorldSeed ^ (uint64(countryIndex+1) * 0xD6E8FEB86659FD93))
}
