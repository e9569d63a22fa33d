package store

const schemaDDL = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS workspaces (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS corpora (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notes (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	corpus_id    INTEGER NOT NULL REFERENCES corpora(id),
	path         TEXT NOT NULL,
	content      TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	mtime        INTEGER NOT NULL,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL,
	UNIQUE(corpus_id, path)
);

CREATE INDEX IF NOT EXISTS idx_notes_corpus_path ON notes(corpus_id, path);
CREATE INDEX IF NOT EXISTS idx_notes_corpus_hash ON notes(corpus_id, content_hash);

CREATE TABLE IF NOT EXISTS chunks (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	note_id INTEGER NOT NULL REFERENCES notes(id),
	seq     INTEGER NOT NULL,
	pos     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_note ON chunks(note_id);

CREATE TABLE IF NOT EXISTS queries (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	viewer_id  INTEGER NOT NULL REFERENCES workspaces(id),
	tracked    INTEGER NOT NULL,
	corpora    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_queries_viewer ON queries(viewer_id);

CREATE TABLE IF NOT EXISTS staging (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	note_id    INTEGER NOT NULL,
	query_id   INTEGER NOT NULL REFERENCES queries(id),
	kind       INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	payload    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS committed (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	note_id      INTEGER NOT NULL,
	query_id     INTEGER NOT NULL,
	kind         INTEGER NOT NULL,
	created_at   INTEGER NOT NULL,
	payload      TEXT NOT NULL,
	committed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS file_hashes (
	path         TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL,
	mtime        INTEGER NOT NULL
);
`

// defaultCorpusName is seeded at schema creation with id=1 per
// spec.md §4.1.
const defaultCorpusName = "default"
