// Package simcontext holds the world seed, the engine's configuration
// surface, and the determinism primitives (mix64/u01FromU64) shared
// across the settlement engine. It mirrors simulation_context.h from
// the original implementation, restricted to the configuration keys
// of the settlement subsystem.
package simcontext

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// SettlementsConfig controls node initialization, growth, and fission.
type SettlementsConfig struct {
	Enabled                      bool    `toml:"enabled"`
	InitNodeMinPop               float64 `toml:"init_node_min_pop"`
	MaxNodesGlobal               int     `toml:"max_nodes_global"`
	MaxNodesPerCountry           int     `toml:"max_nodes_per_country"`
	SplitMinSpacingFields        int     `toml:"split_min_spacing_fields"`
	SplitCooldownYears           int     `toml:"split_cooldown_years"`
	SplitPopThreshold            float64 `toml:"split_pop_threshold"`
	SplitAlphaMin                float64 `toml:"split_alpha_min"`
	SplitAlphaMax                float64 `toml:"split_alpha_max"`
	KBasePerFoodUnit             float64 `toml:"k_base_per_food_unit"`
	Cal0                         float64 `toml:"cal0"`
	CalSlope                     float64 `toml:"cal_slope"`
	GrowthRMin                   float64 `toml:"growth_r_min"`
	GrowthRMax                   float64 `toml:"growth_r_max"`
	TransportRebuildIntervalYears int    `toml:"transport_rebuild_interval_years"`
}

// TransportConfig controls graph rebuild and trade/migration formulas.
type TransportConfig struct {
	KNearest          int     `toml:"k_nearest"`
	MaxEdgeCost       float64 `toml:"max_edge_cost"`
	LandCostMult      float64 `toml:"land_cost_mult"`
	SeaCostMult       float64 `toml:"sea_cost_mult"`
	BorderFriction    float64 `toml:"border_friction"`
	WarRiskMult       float64 `toml:"war_risk_mult"`
	GravityKappa      float64 `toml:"gravity_kappa"`
	GravityAlpha      float64 `toml:"gravity_alpha"`
	GravityBeta       float64 `toml:"gravity_beta"`
	GravityGamma      float64 `toml:"gravity_gamma"`
	MigrationM0       float64 `toml:"migration_m0"`
	MigrationDistDecay float64 `toml:"migration_dist_decay"`
	SpecialistEta     float64 `toml:"specialist_eta"`
	SpecialistLambda  float64 `toml:"specialist_lambda"`
	TradeHintBlend    float64 `toml:"trade_hint_blend"`
}

// SubsistenceConfig controls the replicator dynamic's adaptation rate.
type SubsistenceConfig struct {
	MixAdaptRate        float64 `toml:"mix_adapt_rate"`
	CraftFromMarketWeight float64 `toml:"craft_from_market_weight"`
}

// PackagesConfig controls domestic package adoption.
type PackagesConfig struct {
	Enabled          bool    `toml:"enabled"`
	AdoptionBase     float64 `toml:"adoption_base"`
	EnvironmentWeight float64 `toml:"environment_weight"`
	DiffusionWeight  float64 `toml:"diffusion_weight"`
}

// DiseaseConfig controls the SIR model's initial conditions and endemic rate.
type DiseaseConfig struct {
	InitialInfectedShare           float64 `toml:"initial_infected_share"`
	InitialRecoveredShare          float64 `toml:"initial_recovered_share"`
	EndemicBase                    float64 `toml:"endemic_base"`
	EndemicInstitutionMitigation   float64 `toml:"endemic_institution_mitigation"`
}

// ResearchSettlementConfig gates and parameterizes the secondary
// subsystems: pastoral mobility, extraction, campaign logistics, polity
// choice, and the irrigation capital loop.
type ResearchSettlementConfig struct {
	PastoralMobility              bool    `toml:"pastoral_mobility"`
	PastoralRouteRadius           int     `toml:"pastoral_route_radius"`
	PastoralMoveShare             float64 `toml:"pastoral_move_share"`
	HouseholdsExtraction          bool    `toml:"households_extraction"`
	ExtractionBase                float64 `toml:"extraction_base"`
	ExtractionAdminWeight         float64 `toml:"extraction_admin_weight"`
	ExtractionLegitimacyWeight    float64 `toml:"extraction_legitimacy_weight"`
	ExtractionStorageInvestShare  float64 `toml:"extraction_storage_invest_share"`
	ExtractionIrrigationInvestShare float64 `toml:"extraction_irrigation_invest_share"`
	ExtractionRoadInvestShare     float64 `toml:"extraction_road_invest_share"`
	CampaignLogistics             bool    `toml:"campaign_logistics"`
	CampaignDemandBase            float64 `toml:"campaign_demand_base"`
	CampaignDemandWarScale        float64 `toml:"campaign_demand_war_scale"`
	CampaignAttritionRate         float64 `toml:"campaign_attrition_rate"`
	CampaignNodeShockScale        float64 `toml:"campaign_node_shock_scale"`
	PolityChoiceAssignment        bool    `toml:"polity_choice_assignment"`
	PolitySwitchThreshold         float64 `toml:"polity_switch_threshold"`
	PolitySwitchMaxNodeShare      float64 `toml:"polity_switch_max_node_share"`
	IrrigationLoop                bool    `toml:"irrigation_loop"`
	IrrigationDepreciation        float64 `toml:"irrigation_depreciation"`
	IrrigationFertilityShield     float64 `toml:"irrigation_fertility_shield"`
	IrrigationWaterBoost          float64 `toml:"irrigation_water_boost"`
	TransportPathRebuild          bool    `toml:"transport_path_rebuild"`
}

// Config is the full configuration surface consumed by the engine.
type Config struct {
	Settlements         SettlementsConfig         `toml:"settlements"`
	Transport           TransportConfig           `toml:"transport"`
	Subsistence         SubsistenceConfig         `toml:"subsistence"`
	Packages            PackagesConfig            `toml:"packages"`
	Disease             DiseaseConfig             `toml:"disease"`
	ResearchSettlement  ResearchSettlementConfig  `toml:"research_settlement"`
}

// DefaultConfig returns the literal default values ported from the
// original implementation's simulation_context.h, restricted to the
// keys this engine's spec actually names.
func DefaultConfig() Config {
	return Config{
		Settlements: SettlementsConfig{
			Enabled:                       true,
			InitNodeMinPop:                50,
			MaxNodesGlobal:                4000,
			MaxNodesPerCountry:            400,
			SplitMinSpacingFields:         3,
			SplitCooldownYears:            25,
			SplitPopThreshold:             9000,
			SplitAlphaMin:                 0.30,
			SplitAlphaMax:                 0.46,
			KBasePerFoodUnit:              1.35,
			Cal0:                          2100,
			CalSlope:                      650,
			GrowthRMin:                    0.002,
			GrowthRMax:                    0.028,
			TransportRebuildIntervalYears: 10,
		},
		Transport: TransportConfig{
			KNearest:           4,
			MaxEdgeCost:        140,
			LandCostMult:       1.0,
			SeaCostMult:        0.55,
			BorderFriction:     1.35,
			WarRiskMult:        1.60,
			GravityKappa:       0.015,
			GravityAlpha:       0.62,
			GravityBeta:        0.62,
			GravityGamma:       1.10,
			MigrationM0:        0.05,
			MigrationDistDecay: 0.02,
			SpecialistEta:      0.01,
			SpecialistLambda:   0.008,
			TradeHintBlend:     0.5,
		},
		Subsistence: SubsistenceConfig{
			MixAdaptRate:          0.08,
			CraftFromMarketWeight: 0.35,
		},
		Packages: PackagesConfig{
			Enabled:           true,
			AdoptionBase:      0.42,
			EnvironmentWeight: 0.5,
			DiffusionWeight:   0.5,
		},
		Disease: DiseaseConfig{
			InitialInfectedShare:         0.0010,
			InitialRecoveredShare:        0.0,
			EndemicBase:                  0.0012,
			EndemicInstitutionMitigation: 0.55,
		},
		ResearchSettlement: ResearchSettlementConfig{
			PastoralMobility:                true,
			PastoralRouteRadius:             6,
			PastoralMoveShare:               0.4,
			HouseholdsExtraction:            true,
			ExtractionBase:                  0.10,
			ExtractionAdminWeight:           0.25,
			ExtractionLegitimacyWeight:      0.20,
			ExtractionStorageInvestShare:    0.45,
			ExtractionIrrigationInvestShare: 0.30,
			ExtractionRoadInvestShare:       0.25,
			CampaignLogistics:               true,
			CampaignDemandBase:              2.0,
			CampaignDemandWarScale:          0.08,
			CampaignAttritionRate:           0.35,
			CampaignNodeShockScale:          0.5,
			PolityChoiceAssignment:          true,
			PolitySwitchThreshold:           0.08,
			PolitySwitchMaxNodeShare:        0.05,
			IrrigationLoop:                  true,
			IrrigationDepreciation:          0.02,
			IrrigationFertilityShield:       1.0,
			IrrigationWaterBoost:            0.25,
			TransportPathRebuild:            false,
		},
	}
}

// LoadConfig reads and merges a TOML config file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return cfg, fmt.Errorf("decode config %q: %w", path, err)
	}
	return cfg, nil
}
