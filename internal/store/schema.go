package store

const SchemaVersion = 1

const schemaSQL = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

-- Named quantities. value holds the binary encoding of magnitude and
-- dimension exponents; formatting rules are never stored.
CREATE TABLE IF NOT EXISTS worksheet (
    id TEXT PRIMARY KEY,
    name TEXT UNIQUE NOT NULL,
    expr TEXT NOT NULL,
    value BLOB NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_worksheet_updated ON worksheet(updated_at);
`

func GetSchema() string {
	return schemaSQL
}
