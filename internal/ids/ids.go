// Package ids defines the phantom-typed entity identifiers described in
// spec.md §9: distinct newtypes around an integer so that mixing a
// WorkspaceID into a spot expecting a CorpusID is a compile error.
// Runtime validation coerces strings to these types at API boundaries.
package ids

import (
	"fmt"
	"strconv"
)

// WorkspaceID identifies a Workspace.
type WorkspaceID int64

// CorpusID identifies a Corpus.
type CorpusID int64

// NoteID identifies a Note.
type NoteID int64

// QueryID identifies a Query.
type QueryID int64

func (id WorkspaceID) String() string { return strconv.FormatInt(int64(id), 10) }
func (id CorpusID) String() string    { return strconv.FormatInt(int64(id), 10) }
func (id NoteID) String() string      { return strconv.FormatInt(int64(id), 10) }
func (id QueryID) String() string     { return strconv.FormatInt(int64(id), 10) }

// DefaultCorpusID is the built-in corpus seeded at schema creation
// (id=1, name="default"), per spec.md §4.1.
const DefaultCorpusID CorpusID = 1

// parse coerces a path/query parameter into a positive int64, returning
// an error that identifies which field failed to validate.
func parse(field, s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", field, s)
	}
	return n, nil
}

// ParseWorkspaceID validates a string workspace id from a request.
func ParseWorkspaceID(s string) (WorkspaceID, error) {
	n, err := parse("workspace id", s)
	return WorkspaceID(n), err
}

// ParseCorpusID validates a string corpus id from a request.
func ParseCorpusID(s string) (CorpusID, error) {
	n, err := parse("corpus id", s)
	return CorpusID(n), err
}

// ParseNoteID validates a string note id from a request.
func ParseNoteID(s string) (NoteID, error) {
	n, err := parse("note id", s)
	return NoteID(n), err
}

// ParseQueryID validates a string query id from a request.
func ParseQueryID(s string) (QueryID, error) {
	n, err := parse("query id", s)
	return QueryID(n), err
}
