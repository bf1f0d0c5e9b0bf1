package cachedb

const schemaVersion = 1

// schema creates every table the store needs if they do not already exist.
// Migration from an older schemaVersion would be applied here inside the
// same transaction Open runs in; there is currently only one version.
const schema = `
CREATE TABLE IF NOT EXISTS schema_info (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS file_stat (
	stage         TEXT NOT NULL,
	key           TEXT NOT NULL,
	mtime         REAL NOT NULL,
	size          INTEGER NOT NULL,
	sha256        TEXT,
	md5           TEXT,
	last_modified REAL,
	etag          TEXT,
	PRIMARY KEY (stage, key)
);
CREATE INDEX IF NOT EXISTS idx_file_stat_key ON file_stat(key);

CREATE TABLE IF NOT EXISTS index_record (
	key  TEXT PRIMARY KEY,
	blob BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS about (
	key  TEXT PRIMARY KEY,
	blob BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS recipe (
	key  TEXT PRIMARY KEY,
	blob BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS run_exports (
	key  TEXT PRIMARY KEY,
	blob BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS post_install (
	key  TEXT PRIMARY KEY,
	blob BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS icon (
	key   TEXT PRIMARY KEY,
	bytes BLOB NOT NULL
);
`
