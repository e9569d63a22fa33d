package store

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
)

// FTSIndex is the full-text index over note content described in
// spec.md §3/§4.1: `rowid = note id`, `content = note's current
// content`, maintained in lockstep with the notes table.
//
// Grounded on the teacher's BleveBM25Index (internal/store/bm25.go):
// same bleve.Index wrapping, same batch Index/Delete shape. The custom
// code-identifier tokenizer/analyzer is dropped — notes are prose, not
// source, so bleve's standard analyzer is used instead — but the
// document-per-note, rowid-as-docID structure is unchanged.
type FTSIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

type ftsDocument struct {
	Content  string  `json:"content"`
	CorpusID float64 `json:"corpus_id"`
	Path     string  `json:"path"`
}

// NewFTSIndex opens or creates the bleve index at path. An empty path
// creates an in-memory index (used by tests).
func NewFTSIndex(path string) (*FTSIndex, error) {
	im, err := buildMapping()
	if err != nil {
		return nil, err
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(im)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create fts directory: %w", err)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, im)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open fts index: %w", err)
	}

	return &FTSIndex{index: idx}, nil
}

func buildMapping() (*mapping.IndexMappingImpl, error) {
	contentField := bleve.NewTextFieldMapping()
	contentField.Store = true
	contentField.IncludeTermVectors = true

	pathField := bleve.NewTextFieldMapping()
	pathField.Analyzer = "keyword"
	pathField.Store = true

	corpusField := bleve.NewNumericFieldMapping()
	corpusField.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("content", contentField)
	doc.AddFieldMappingsAt("path", pathField)
	doc.AddFieldMappingsAt("corpus_id", corpusField)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	return im, nil
}

// Upsert indexes (or reindexes) one note's current content, per the
// upsert-fts(note-id, content) operation.
func (f *FTSIndex) Upsert(noteID int64, corpusID int64, path, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.index.Index(strconv.FormatInt(noteID, 10), ftsDocument{
		Content:  content,
		CorpusID: float64(corpusID),
		Path:     path,
	})
}

// Delete removes a note's FTS row, per delete-fts(note-id).
func (f *FTSIndex) Delete(noteID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.index.Delete(strconv.FormatInt(noteID, 10))
}

// FTSHit is one full-text search result before the note join.
type FTSHit struct {
	NoteID  int64
	Score   float64 // normalized to (-1, 1) per the fixed BM25 formula
	Snippet string
}

// maxSnippetTokens bounds the snippet emitted per spec.md §4.1.
const maxSnippetTokens = 16

// Search runs the full-text search primitive: given a tokenized match
// expression (already built by the query-scope layer — AND-joined
// quoted tokens in plain mode, or passed through unchanged in fts
// mode), a set of corpus ids and a path glob, return notes ranked by a
// bounded BM25-derived score with an at-most-16-token snippet.
// Highlight delimiters wrap each matched term inside the snippet.
func (f *FTSIndex) Search(matchExpr string, corpusIDs []int64, pathGlob string, limit int, highlightOpen, highlightClose string) ([]FTSHit, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if strings.TrimSpace(matchExpr) == "" || limit <= 0 {
		return nil, nil
	}

	textQuery := bleve.NewQueryStringQuery(matchExpr)

	conj := bleve.NewConjunctionQuery(textQuery)
	if len(corpusIDs) > 0 {
		disj := bleve.NewDisjunctionQuery()
		for _, id := range corpusIDs {
			v := float64(id)
			nq := bleve.NewNumericRangeInclusiveQuery(&v, &v, boolPtr(true), boolPtr(true))
			nq.SetField("corpus_id")
			disj.AddQuery(nq)
		}
		conj.AddQuery(disj)
	}
	if pathGlob != "" && pathGlob != "*" {
		wq := bleve.NewWildcardQuery(globToBleveWildcard(pathGlob))
		wq.SetField("path")
		conj.AddQuery(wq)
	}

	req := bleve.NewSearchRequest(conj)
	req.Size = limit
	req.Fields = []string{"content"}
	req.IncludeLocations = true

	res, err := f.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("fts search: %w", err)
	}

	hits := make([]FTSHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		noteID, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			continue
		}
		content, _ := h.Fields["content"].(string)
		hits = append(hits, FTSHit{
			NoteID:  noteID,
			Score:   normalizeBM25(h.Score),
			Snippet: buildSnippet(content, h, highlightOpen, highlightClose),
		})
	}
	return hits, nil
}

// normalizeBM25 applies the fixed-contract BM25 normalization formula
// from spec.md §9: `2 * (1 / (1 + exp(bm25 * 0.3))) - 1`. Treated
// verbatim, not as a design choice we're free to alter.
func normalizeBM25(bm25 float64) float64 {
	return 2*(1/(1+math.Exp(bm25*0.3))) - 1
}

// buildSnippet extracts an at-most-16-token window around the first
// matched term and wraps every matched term with the given delimiters.
func buildSnippet(content string, hit *search.DocumentMatch, open, close string) string {
	if content == "" {
		return ""
	}

	tokens := strings.Fields(content)
	if len(tokens) == 0 {
		return ""
	}

	matchIdx := firstMatchTokenIndex(content, hit)
	start := matchIdx - maxSnippetTokens/2
	if start < 0 {
		start = 0
	}
	end := start + maxSnippetTokens
	if end > len(tokens) {
		end = len(tokens)
		start = end - maxSnippetTokens
		if start < 0 {
			start = 0
		}
	}

	window := tokens[start:end]
	terms := matchedTerms(hit)
	for i, tok := range window {
		bare := strings.Trim(tok, ".,!?;:\"'()[]{}")
		if _, ok := terms[strings.ToLower(bare)]; ok {
			window[i] = open + tok + close
		}
	}

	return strings.Join(window, " ")
}

func firstMatchTokenIndex(content string, hit *search.DocumentMatch) int {
	best := -1
	for _, locs := range hit.Locations {
		for _, locList := range locs {
			for _, loc := range locList {
				if best == -1 || loc.Start < uint64(best) {
					best = int(loc.Start)
				}
			}
		}
	}
	if best == -1 {
		return 0
	}
	// Convert a byte offset to an approximate token index.
	return len(strings.Fields(content[:min(best, len(content))]))
}

func matchedTerms(hit *search.DocumentMatch) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, locs := range hit.Locations {
		for term := range locs {
			terms[strings.ToLower(term)] = struct{}{}
		}
	}
	return terms
}

func boolPtr(b bool) *bool { return &b }

// globToBleveWildcard translates our glob syntax directly into bleve's
// wildcard query syntax, which already uses `*`/`?` with the same
// meaning, anchored across the whole field value.
func globToBleveWildcard(glob string) string {
	return glob
}

// Close releases the index's resources.
func (f *FTSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.index.Close()
}
