// Package persistence provides SQLite-based storage for settlement
// engine snapshots: nodes, transport edges, and country aggregates
// keyed by year, plus a key-value run metadata table. Determinism
// hashes are not stored.
package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/settlement-sim/internal/settlement"
)

// DB wraps a SQLite connection for settlement snapshot storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settlement_nodes (
		year INTEGER NOT NULL,
		id INTEGER NOT NULL,
		owner_country INTEGER NOT NULL,
		field_x INTEGER NOT NULL,
		field_y INTEGER NOT NULL,
		population REAL NOT NULL,
		carrying_capacity REAL NOT NULL,
		food_produced REAL NOT NULL,
		food_imported REAL NOT NULL,
		food_exported REAL NOT NULL,
		calories REAL NOT NULL,
		specialist_share REAL NOT NULL,
		storage_stock REAL NOT NULL,
		tech_factor REAL NOT NULL,
		soil_factor REAL NOT NULL,
		water_factor REAL NOT NULL,
		irrigation_capital REAL NOT NULL,
		elite_share REAL NOT NULL,
		local_legitimacy REAL NOT NULL,
		local_admin_capacity REAL NOT NULL,
		extraction_rate REAL NOT NULL,
		mix_json TEXT NOT NULL,
		adopted_packages_json TEXT NOT NULL,
		founded_year INTEGER NOT NULL,
		last_split_year INTEGER NOT NULL,
		PRIMARY KEY (year, id)
	);

	CREATE TABLE IF NOT EXISTS transport_edges (
		year INTEGER NOT NULL,
		from_node INTEGER NOT NULL,
		to_node INTEGER NOT NULL,
		cost REAL NOT NULL,
		capacity REAL NOT NULL,
		reliability REAL NOT NULL,
		sea_link INTEGER NOT NULL,
		campaign_load REAL NOT NULL,
		campaign_deficit REAL NOT NULL,
		campaign_attrition REAL NOT NULL,
		PRIMARY KEY (year, from_node, to_node)
	);

	CREATE TABLE IF NOT EXISTS country_aggregates (
		year INTEGER NOT NULL,
		country_index INTEGER NOT NULL,
		specialist_population REAL NOT NULL,
		market_potential REAL NOT NULL,
		migration_pressure_out REAL NOT NULL,
		migration_attractiveness REAL NOT NULL,
		knowledge_infra_signal REAL NOT NULL,
		PRIMARY KEY (year, country_index)
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_year ON settlement_nodes(year);
	CREATE INDEX IF NOT EXISTS idx_edges_year ON transport_edges(year);
	CREATE INDEX IF NOT EXISTS idx_aggregates_year ON country_aggregates(year);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveSnapshot writes the full node/edge/aggregate vectors for one
// year, replacing any prior snapshot for that year.
func (db *DB) SaveSnapshot(year int, nodes []settlement.SettlementNode, edges []settlement.TransportEdge, aggregates []settlement.SettlementCountryAggregate) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM settlement_nodes WHERE year = ?", year); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM transport_edges WHERE year = ?", year); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM country_aggregates WHERE year = ?", year); err != nil {
		return err
	}

	nodeStmt, err := tx.Preparex(`INSERT INTO settlement_nodes
		(year, id, owner_country, field_x, field_y, population, carrying_capacity,
		 food_produced, food_imported, food_exported, calories, specialist_share,
		 storage_stock, tech_factor, soil_factor, water_factor, irrigation_capital,
		 elite_share, local_legitimacy, local_admin_capacity, extraction_rate,
		 mix_json, adopted_packages_json, founded_year, last_split_year)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer nodeStmt.Close()

	for _, n := range nodes {
		mixJSON, _ := json.Marshal(n.Mix)
		pkgJSON, _ := json.Marshal(n.AdoptedPackages)
		if _, err := nodeStmt.Exec(
			year, n.ID, n.OwnerCountry, n.FieldX, n.FieldY, n.Population, n.CarryingCapacity,
			n.FoodProduced, n.FoodImported, n.FoodExported, n.Calories, n.SpecialistShare,
			n.StorageStock, n.TechFactor, n.SoilFactor, n.WaterFactor, n.IrrigationCapital,
			n.EliteShare, n.LocalLegitimacy, n.LocalAdminCapacity, n.ExtractionRate,
			string(mixJSON), string(pkgJSON), n.FoundedYear, n.LastSplitYear,
		); err != nil {
			return fmt.Errorf("insert node %d: %w", n.ID, err)
		}
	}

	edgeStmt, err := tx.Preparex(`INSERT INTO transport_edges
		(year, from_node, to_node, cost, capacity, reliability, sea_link,
		 campaign_load, campaign_deficit, campaign_attrition)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer edgeStmt.Close()

	for _, e := range edges {
		seaLink := 0
		if e.SeaLink {
			seaLink = 1
		}
		if _, err := edgeStmt.Exec(
			year, e.FromNode, e.ToNode, e.Cost, e.Capacity, e.Reliability, seaLink,
			e.CampaignLoad, e.CampaignDeficit, e.CampaignAttrition,
		); err != nil {
			return fmt.Errorf("insert edge %d-%d: %w", e.FromNode, e.ToNode, err)
		}
	}

	aggStmt, err := tx.Preparex(`INSERT INTO country_aggregates
		(year, country_index, specialist_population, market_potential,
		 migration_pressure_out, migration_attractiveness, knowledge_infra_signal)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer aggStmt.Close()

	for i, a := range aggregates {
		if _, err := aggStmt.Exec(
			year, i, a.SpecialistPopulation, a.MarketPotential,
			a.MigrationPressureOut, a.MigrationAttractiveness, a.KnowledgeInfraSignal,
		); err != nil {
			return fmt.Errorf("insert aggregate %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// LoadNodes reads the node vector saved for the given year.
func (db *DB) LoadNodes(year int) ([]settlement.SettlementNode, error) {
	type nodeRow struct {
		Year                int     `db:"year"`
		ID                  int     `db:"id"`
		OwnerCountry        int     `db:"owner_country"`
		FieldX              int     `db:"field_x"`
		FieldY              int     `db:"field_y"`
		Population          float64 `db:"population"`
		CarryingCapacity    float64 `db:"carrying_capacity"`
		FoodProduced        float64 `db:"food_produced"`
		FoodImported        float64 `db:"food_imported"`
		FoodExported        float64 `db:"food_exported"`
		Calories            float64 `db:"calories"`
		SpecialistShare     float64 `db:"specialist_share"`
		StorageStock        float64 `db:"storage_stock"`
		TechFactor          float64 `db:"tech_factor"`
		SoilFactor          float64 `db:"soil_factor"`
		WaterFactor         float64 `db:"water_factor"`
		IrrigationCapital   float64 `db:"irrigation_capital"`
		EliteShare          float64 `db:"elite_share"`
		LocalLegitimacy     float64 `db:"local_legitimacy"`
		LocalAdminCapacity  float64 `db:"local_admin_capacity"`
		ExtractionRate      float64 `db:"extraction_rate"`
		MixJSON             string  `db:"mix_json"`
		AdoptedPackagesJSON string  `db:"adopted_packages_json"`
		FoundedYear         int     `db:"founded_year"`
		LastSplitYear       int     `db:"last_split_year"`
	}

	var rows []nodeRow
	if err := db.conn.Select(&rows, "SELECT * FROM settlement_nodes WHERE year = ? ORDER BY id", year); err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}

	result := make([]settlement.SettlementNode, 0, len(rows))
	for _, r := range rows {
		n := settlement.SettlementNode{
			ID:                 r.ID,
			OwnerCountry:       r.OwnerCountry,
			FieldX:             r.FieldX,
			FieldY:             r.FieldY,
			Population:         r.Population,
			CarryingCapacity:   r.CarryingCapacity,
			FoodProduced:       r.FoodProduced,
			FoodImported:       r.FoodImported,
			FoodExported:       r.FoodExported,
			Calories:           r.Calories,
			SpecialistShare:    r.SpecialistShare,
			StorageStock:       r.StorageStock,
			TechFactor:         r.TechFactor,
			SoilFactor:         r.SoilFactor,
			WaterFactor:        r.WaterFactor,
			IrrigationCapital:  r.IrrigationCapital,
			EliteShare:         r.EliteShare,
			LocalLegitimacy:    r.LocalLegitimacy,
			LocalAdminCapacity: r.LocalAdminCapacity,
			ExtractionRate:     r.ExtractionRate,
			FoundedYear:        r.FoundedYear,
			LastSplitYear:      r.LastSplitYear,
		}
		json.Unmarshal([]byte(r.MixJSON), &n.Mix)
		json.Unmarshal([]byte(r.AdoptedPackagesJSON), &n.AdoptedPackages)
		result = append(result, n)
	}
	return result, nil
}

// SaveMeta stores a key-value pair in run metadata (for example the
// run id and world seed).
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a run metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM run_meta WHERE key = ?", key)
	return value, err
}

// LatestYear returns the highest year with a saved node snapshot, or -1
// if no snapshot has been saved.
func (db *DB) LatestYear() (int, error) {
	var year *int
	if err := db.conn.Get(&year, "SELECT MAX(year) FROM settlement_nodes"); err != nil {
		return -1, err
	}
	if year == nil {
		return -1, nil
	}
	return *year, nil
}
