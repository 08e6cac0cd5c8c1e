package store

// Store names. Each maps to one database file under the store directory.
const (
	Web   = "web"
	OSINT = "osint"
)

// schemas holds the DDL applied on open and after restore. Statements are
// idempotent.
var schemas = map[string][]string{
	OSINT: {
		`CREATE TABLE IF NOT EXISTS entities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL CHECK(kind IN ('company','person')),
			name TEXT NOT NULL,
			domain TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(name, kind, domain)
		)`,
		`CREATE TABLE IF NOT EXISTS osint_profiles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_id INTEGER NOT NULL REFERENCES entities(id),
			source TEXT NOT NULL,
			raw_data TEXT,
			extracted_fields TEXT,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(entity_id, source)
		)`,
		`CREATE TABLE IF NOT EXISTS contacts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_id INTEGER NOT NULL REFERENCES entities(id),
			email TEXT,
			phone TEXT,
			source TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			CHECK ((email IS NULL) != (phone IS NULL))
		)`,
		`CREATE TABLE IF NOT EXISTS domain_info (
			entity_id INTEGER PRIMARY KEY REFERENCES entities(id),
			registrar TEXT,
			creation_date TEXT,
			expiration_date TEXT,
			org TEXT,
			name_servers TEXT,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_entity ON osint_profiles(entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_entity ON contacts(entity_id)`,
	},
	Web: {
		`CREATE TABLE IF NOT EXISTS site_analysis (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			url TEXT NOT NULL,
			final_url TEXT,
			status_code INTEGER,
			web_server TEXT,
			frameworks TEXT,
			js_libraries TEXT,
			security_headers TEXT,
			missing_headers TEXT,
			analytics TEXT,
			meta_tags TEXT,
			robots_sensitive TEXT,
			robots_sitemaps TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_site_analysis_url ON site_analysis(url)`,
	},
}

// Names returns the known store names.
func Names() []string {
	return []string{Web, OSINT}
}
