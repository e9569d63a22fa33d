// Package store is the storage engine of spec.md §4.1: the only
// component permitted to issue raw queries, backing every entity in
// §3 plus the vector index (vector.go) and full-text index (fts.go).
package store

// Workspace is a viewer identity scoping queries and access history.
type Workspace struct {
	ID        int64
	Name      string
	CreatedAt int64
	UpdatedAt int64
}

// Corpus is a named bag of notes.
type Corpus struct {
	ID        int64
	Name      string
	CreatedAt int64
	UpdatedAt int64
}

// Note is a text document with a canonical path within its corpus.
type Note struct {
	ID          int64
	CorpusID    int64
	Path        string
	Content     string
	ContentHash string
	Size        int64
	Mtime       int64
	CreatedAt   int64
	UpdatedAt   int64
}

// ChunkRow is a bounded-size slice of a note's content, the unit of
// embedding. Owned by its note; deleted cascadingly.
type ChunkRow struct {
	ID     int64
	NoteID int64
	Seq    int
	Pos    int
}

// Query is a persisted retrieval scope fixing a viewer and a set of
// corpus ids for its lifetime.
type Query struct {
	ID        int64
	ViewerID  int64
	Tracked   bool
	Corpora   []int64
	CreatedAt int64
}

// AccessEntryKind enumerates the small-int kinds of staging/committed
// rows. Only "note read" exists today.
const AccessEntryKindNoteRead = 1

// AccessEntry is a staging or committed access-log row.
type AccessEntry struct {
	ID          int64
	NoteID      int64
	QueryID     int64
	Kind        int
	CreatedAt   int64
	Payload     string
	CommittedAt int64 // zero for staging rows
}

// PathEntry pairs an id with its canonical stored path, used by the
// per-corpus `/corpus/:id/list` route.
type PathEntry struct {
	ID   int64
	Path string
}
