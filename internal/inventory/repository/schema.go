package repository

import "github.com/bagtrack/bagtrack-backend/pkg/config"

// Migrations returns the schema statements for the given driver. They are
// idempotent and safe to run on every start.
func Migrations(driver string) []string {
	if driver == config.DriverSQLite {
		return sqliteSchema
	}
	return postgresSchema
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS imports (
		id UUID PRIMARY KEY,
		party_id VARCHAR(64) NOT NULL,
		reference VARCHAR(255),
		received_on VARCHAR(10) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS imports_party_idx ON imports (party_id)`,
	`CREATE TABLE IF NOT EXISTS units (
		id UUID PRIMARY KEY,
		kind VARCHAR(16) NOT NULL CONSTRAINT units_kind_valid CHECK (kind IN ('import_bag', 'graded_bag')),
		barcode VARCHAR(16) NOT NULL CONSTRAINT units_barcode_format CHECK (barcode ~ '^[IG][0-9]{10}$'),
		created_on VARCHAR(10) NOT NULL,
		import_id UUID REFERENCES imports(id),
		party_id VARCHAR(64) NOT NULL,
		weight_id VARCHAR(64) NOT NULL,
		item_id VARCHAR(64),
		grade_id VARCHAR(64),
		section_id VARCHAR(64),
		status VARCHAR(16) CONSTRAINT units_status_valid CHECK (status IN ('unopened', 'opened')),
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT units_status_kind CHECK ((kind = 'import_bag') = (status IS NOT NULL))
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS units_kind_barcode_key ON units (kind, barcode)`,
	`CREATE INDEX IF NOT EXISTS units_party_idx ON units (party_id)`,
	`CREATE TABLE IF NOT EXISTS unit_status_changes (
		id UUID PRIMARY KEY,
		unit_id UUID NOT NULL REFERENCES units(id),
		from_status VARCHAR(16) NOT NULL,
		to_status VARCHAR(16) NOT NULL,
		source VARCHAR(16) NOT NULL,
		changed_by VARCHAR(128) NOT NULL,
		changed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS unit_status_changes_unit_idx ON unit_status_changes (unit_id, changed_at)`,
	`CREATE TABLE IF NOT EXISTS stock_levels (
		category VARCHAR(16) NOT NULL,
		party_id VARCHAR(64) NOT NULL,
		item_id VARCHAR(64) NOT NULL DEFAULT '',
		grade_id VARCHAR(64) NOT NULL DEFAULT '',
		weight_id VARCHAR(64) NOT NULL,
		bags INTEGER NOT NULL,
		computed_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (category, party_id, item_id, grade_id, weight_id)
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS imports (
		id TEXT PRIMARY KEY,
		party_id TEXT NOT NULL,
		reference TEXT,
		received_on TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS imports_party_idx ON imports (party_id)`,
	`CREATE TABLE IF NOT EXISTS units (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL CONSTRAINT units_kind_valid CHECK (kind IN ('import_bag', 'graded_bag')),
		barcode TEXT NOT NULL CONSTRAINT units_barcode_format CHECK (length(barcode) = 11 AND barcode GLOB '[IG][0-9][0-9][0-9][0-9][0-9][0-9][0-9][0-9][0-9][0-9]'),
		created_on TEXT NOT NULL,
		import_id TEXT REFERENCES imports(id),
		party_id TEXT NOT NULL,
		weight_id TEXT NOT NULL,
		item_id TEXT,
		grade_id TEXT,
		section_id TEXT,
		status TEXT CONSTRAINT units_status_valid CHECK (status IN ('unopened', 'opened')),
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		CONSTRAINT units_status_kind CHECK ((kind = 'import_bag') = (status IS NOT NULL))
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS units_kind_barcode_key ON units (kind, barcode)`,
	`CREATE INDEX IF NOT EXISTS units_party_idx ON units (party_id)`,
	`CREATE TABLE IF NOT EXISTS unit_status_changes (
		id TEXT PRIMARY KEY,
		unit_id TEXT NOT NULL REFERENCES units(id),
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		source TEXT NOT NULL,
		changed_by TEXT NOT NULL,
		changed_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS unit_status_changes_unit_idx ON unit_status_changes (unit_id, changed_at)`,
	`CREATE TABLE IF NOT EXISTS stock_levels (
		category TEXT NOT NULL,
		party_id TEXT NOT NULL,
		item_id TEXT NOT NULL DEFAULT '',
		grade_id TEXT NOT NULL DEFAULT '',
		weight_id TEXT NOT NULL,
		bags INTEGER NOT NULL,
		computed_at TIMESTAMP NOT NULL,
		PRIMARY KEY (category, party_id, item_id, grade_id, weight_id)
	)`,
}
