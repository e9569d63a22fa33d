// Package scope implements the query-scope facade of spec.md §4.3: a
// persisted viewer+corpora scope through which every read (notes,
// search, vsearch, fetch, paths) is served. It is the only layer that
// knows about corpus/path post-filtering and tokenization policy; the
// storage engine underneath stays unaware of scope.
//
// Grounded on the teacher's query/search orchestration layer sitting
// above internal/store, generalized from code search to note search.
package scope

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	spallerrors "github.com/spall/spall/internal/errors"
	"github.com/spall/spall/internal/store"
)

// Embedder is the subset of internal/model.Adapter the scope layer
// needs to turn a query string into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Scope wraps a Store and Embedder with the query-facing operations.
type Scope struct {
	store *store.Store
	embed Embedder
}

// New creates a Scope over an already-open storage engine and model
// adapter.
func New(s *store.Store, e Embedder) *Scope {
	return &Scope{store: s, embed: e}
}

// CreateQuery persists a new scope for viewerID over the given corpus
// ids.
func (s *Scope) CreateQuery(ctx context.Context, viewerID int64, tracked bool, corpora []int64) (*store.Query, error) {
	return s.store.CreateQuery(ctx, viewerID, tracked, corpora)
}

// GetQuery fetches a persisted query scope by id.
func (s *Scope) GetQuery(ctx context.Context, id int64) (*store.Query, error) {
	return s.store.GetQuery(ctx, id)
}

// RecentQueries returns a viewer's most recently created queries.
func (s *Scope) RecentQueries(ctx context.Context, viewerID int64, limit int) ([]store.Query, error) {
	return s.store.RecentQueries(ctx, viewerID, limit)
}

// NotesPage is one keyset page of a corpus listing, scoped to the
// query's fixed corpus set.
type NotesPage struct {
	Notes      []store.Note
	NextCursor string
}

// Notes lists notes across every corpus the query is scoped to,
// path-glob filtered and keyset-paginated, per spec.md §4.1/§4.3.
//
// Each corpus independently contributes at most limit candidates past
// the cursor (sorted ascending by path), which is sufficient: the true
// global top-limit rows can include at most limit rows from any single
// corpus, since that corpus's own stream is already ascending. The
// candidates are merged, globally resorted, and truncated to limit so
// concatenating pages yields the same strictly-increasing path
// sequence as a single unbounded query, per spec.md §4.1's keyset
// contract.
func (s *Scope) Notes(ctx context.Context, queryID int64, pathGlob, cursor string, limit int) (*NotesPage, error) {
	q, err := s.store.GetQuery(ctx, queryID)
	if err != nil {
		return nil, err
	}

	var candidates []store.Note
	anyCorpusHasMore := false
	for _, corpusID := range q.Corpora {
		notes, next, err := s.store.ListNotesByPath(ctx, corpusID, pathGlob, cursor, limit)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, notes...)
		if next != "" {
			anyCorpusHasMore = true
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Path != candidates[j].Path {
			return candidates[i].Path < candidates[j].Path
		}
		return candidates[i].CorpusID < candidates[j].CorpusID
	})

	hasMore := anyCorpusHasMore || len(candidates) > limit
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	nextCursor := ""
	if hasMore && len(candidates) > 0 {
		nextCursor = candidates[len(candidates)-1].Path
	}

	return &NotesPage{Notes: candidates, NextCursor: nextCursor}, nil
}

// SearchHit is one full-text search result within a query's scope.
type SearchHit struct {
	NoteID  int64
	Score   float64
	Snippet string
}

// Search runs a keyword/FTS search within the query's corpus scope.
// In "plain" mode, text is whitespace/non-alphanumeric tokenized and
// AND-joined as quoted terms (empty input yields no results); in "fts"
// mode the text is passed straight through as the match expression.
func (s *Scope) Search(ctx context.Context, queryID int64, text, mode, pathGlob string, limit int, highlightOpen, highlightClose string) ([]SearchHit, error) {
	q, err := s.store.GetQuery(ctx, queryID)
	if err != nil {
		return nil, err
	}

	matchExpr := text
	if mode != "fts" {
		matchExpr = buildPlainMatchExpr(text)
		if matchExpr == "" {
			return nil, nil
		}
	}

	hits, err := s.store.FullTextSearch(ctx, matchExpr, q.Corpora, pathGlob, limit, highlightOpen, highlightClose)
	if err != nil {
		return nil, err
	}

	out := make([]SearchHit, len(hits))
	for i, h := range hits {
		out[i] = SearchHit{NoteID: h.NoteID, Score: h.Score, Snippet: h.Snippet}
	}
	return out, nil
}

var tokenSplitter = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// buildPlainMatchExpr tokenizes on whitespace/non-alphanumeric runs and
// AND-joins the tokens as quoted terms, per spec.md §4.3's plain mode.
func buildPlainMatchExpr(text string) string {
	tokens := tokenSplitter.Split(strings.TrimSpace(text), -1)
	var quoted []string
	for _, t := range tokens {
		if t == "" {
			continue
		}
		quoted = append(quoted, fmt.Sprintf("%q", t))
	}
	if len(quoted) == 0 {
		return ""
	}
	return strings.Join(quoted, " AND ")
}

// VectorHit is one semantic-search result within a query's scope.
type VectorHit struct {
	NoteID  int64
	Path    string
	Content string // a 2048-char slice starting at ChunkPos
	Score   float64
}

const vsearchOverfetch = 3
const vsearchChunkSliceLen = 2048

// VSearch embeds text and runs the vector-search primitive, over-
// fetching k=limit*3 candidates and post-filtering to this query's
// corpora and path glob, per spec.md §4.1/§4.3. The storage engine
// itself never filters — over-fetch-then-filter here is the
// deliberate simplicity tradeoff spec.md §9 calls out; under-filling
// a page is accepted rather than looping for more.
func (s *Scope) VSearch(ctx context.Context, queryID int64, text, pathGlob string, limit int) ([]VectorHit, error) {
	q, err := s.store.GetQuery(ctx, queryID)
	if err != nil {
		return nil, err
	}

	vec, err := s.embed.Embed(ctx, text)
	if err != nil {
		return nil, spallerrors.Internal("embed query text", err)
	}

	rows, err := s.store.VectorSearch(ctx, vec, limit*vsearchOverfetch)
	if err != nil {
		return nil, err
	}

	matcher, err := compileGlob(pathGlob)
	if err != nil {
		return nil, spallerrors.Invalid(err.Error())
	}

	corpusSet := make(map[int64]struct{}, len(q.Corpora))
	for _, id := range q.Corpora {
		corpusSet[id] = struct{}{}
	}

	var out []VectorHit
	for _, r := range rows {
		if _, ok := corpusSet[r.CorpusID]; !ok {
			continue
		}
		if !matcher(r.Path) {
			continue
		}

		content := r.Content
		end := r.ChunkPos + vsearchChunkSliceLen
		if r.ChunkPos < len(content) {
			if end > len(content) {
				end = len(content)
			}
			content = content[r.ChunkPos:end]
		}

		out = append(out, VectorHit{
			NoteID:  r.NoteID,
			Path:    r.Path,
			Content: content,
			Score:   1 - float64(r.Distance),
		})
		if len(out) == limit {
			break
		}
	}

	return out, nil
}

// Fetch returns a note by id, recording a staging access entry when
// the query is tracked.
func (s *Scope) Fetch(ctx context.Context, queryID, noteID int64) (*store.Note, error) {
	q, err := s.store.GetQuery(ctx, queryID)
	if err != nil {
		return nil, err
	}

	note, err := s.store.GetNoteByID(ctx, noteID)
	if err != nil {
		return nil, err
	}

	if q.Tracked {
		if err := s.store.AppendStaging(ctx, noteID, queryID, store.AccessEntryKindNoteRead, "{}"); err != nil {
			return nil, spallerrors.Internal("record staging access", err)
		}
	}

	return note, nil
}

// Paths returns the grouped (id, path) listing for every corpus the
// query is scoped to, filtered by pathGlob ("" matches everything).
func (s *Scope) Paths(ctx context.Context, queryID int64, pathGlob string) ([]store.PathEntry, error) {
	q, err := s.store.GetQuery(ctx, queryID)
	if err != nil {
		return nil, err
	}

	var out []store.PathEntry
	for _, corpusID := range q.Corpora {
		entries, err := s.store.ListPaths(ctx, corpusID, pathGlob)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

// compileGlob translates `*`/`?` glob syntax into an anchored regexp
// matcher, per spec.md §4.3.
func compileGlob(glob string) (func(string) bool, error) {
	if glob == "" || glob == "*" {
		return func(string) bool { return true }, nil
	}

	var b strings.Builder
	b.WriteString("^")
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("invalid path glob %q: %w", glob, err)
	}
	return re.MatchString, nil
}
