package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS emails (
	account   TEXT NOT NULL,
	folder    TEXT NOT NULL,
	uid       TEXT NOT NULL,
	flags     TEXT NOT NULL DEFAULT '',
	from_addr TEXT NOT NULL DEFAULT '',
	subject   TEXT NOT NULL DEFAULT '',
	date_str  TEXT NOT NULL DEFAULT '',
	raw       BLOB,
	PRIMARY KEY (account, folder, uid)
);

CREATE INDEX IF NOT EXISTS idx_emails_partition ON emails(account, folder);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
