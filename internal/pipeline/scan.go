package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/spall/spall/internal/bus"
	spallerrors "github.com/spall/spall/internal/errors"
	"github.com/spall/spall/internal/store"
)

// fileHashCacheSize bounds the in-process (path,mtime)->hash memo,
// adapted from the teacher's gitignore-matcher cache in
// internal/scanner/scanner.go — same LRU discipline, used as a
// same-process fast path in front of the persisted file_hashes table
// so a restarted daemon doesn't lose the skip-rehash benefit.
const fileHashCacheSize = 1000

// ScanResult is the per-file reconciliation outcome of one Scan call.
type ScanResult struct {
	Added, Modified, Removed, OK []string // canonical stored paths

	// MtimeTouches are "ok"-classified notes whose mtime advanced but
	// whose content hash didn't change: the stored mtime still needs
	// updating so the next scan short-circuits on mtime alone, per
	// spec.md §8's boundary behavior, without touching content/FTS/
	// chunks.
	MtimeTouches []NoteMtimeTouch
}

// NoteMtimeTouch is a single mtime-only update applied after a scan.
type NoteMtimeTouch struct {
	NoteID int64
	Mtime  int64
}

// Scanner walks a source tree and reconciles it against a corpus's
// existing notes, per spec.md §4.2.
type Scanner struct {
	store     *store.Store
	bus       *bus.Bus
	hashCache *lru.Cache[string, string]
}

// NewScanner creates a scanner bound to a storage engine and event bus.
func NewScanner(s *store.Store, b *bus.Bus) *Scanner {
	cache, _ := lru.New[string, string](fileHashCacheSize)
	return &Scanner{store: s, bus: b, hashCache: cache}
}

// Scan walks dir matching glob, reconciles against corpusID's existing
// notes under prefix, and returns the set of changed paths. It does
// not itself write notes — callers apply the reconciliation (add,
// update, or leave alone) and the embed step picks up added/modified
// ids afterward.
func (sc *Scanner) Scan(ctx context.Context, reqCtx *RequestContext, dir, glob string, corpusID int64, prefix string) (*ScanResult, error) {
	if glob == "" {
		glob = "*"
	}

	existing, err := sc.store.ListNotes(ctx, corpusID)
	if err != nil {
		return nil, err
	}
	byPath := make(map[string]store.Note, len(existing))
	for _, n := range existing {
		if withinPrefix(n.Path, prefix) {
			byPath[n.Path] = n
		}
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		matched, err := filepath.Match(glob, filepath.Base(rel))
		if err != nil {
			return spallerrors.Invalid(err.Error())
		}
		if !matched {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, spallerrors.Internal("walk source directory", err)
	}

	result := &ScanResult{}
	sc.bus.Publish(bus.TagScanStart, bus.ScanStartDonePayload{NumFiles: len(paths)})

	seen := make(map[string]bool, len(paths))
	for _, abs := range paths {
		if err := reqCtx.checkpoint(ctx); err != nil {
			return nil, err
		}

		rel, _ := filepath.Rel(dir, abs)
		storedPath := JoinStoredPath(prefix, rel)
		seen[storedPath] = true

		info, err := os.Stat(abs)
		if err != nil {
			return nil, spallerrors.Internal("stat scanned file", err)
		}
		mtime := info.ModTime().UnixMilli()

		existingNote, known := byPath[storedPath]
		status := ""
		switch {
		case !known:
			status = "added"
			result.Added = append(result.Added, storedPath)
		case mtime > existingNote.Mtime:
			hash, err := sc.contentHash(ctx, abs, mtime)
			if err != nil {
				return nil, err
			}
			if hash != existingNote.ContentHash {
				status = "modified"
				result.Modified = append(result.Modified, storedPath)
			} else {
				status = "ok"
				result.OK = append(result.OK, storedPath)
				result.MtimeTouches = append(result.MtimeTouches, NoteMtimeTouch{NoteID: existingNote.ID, Mtime: mtime})
			}
		default:
			status = "ok"
			result.OK = append(result.OK, storedPath)
		}

		sc.bus.Publish(bus.TagScanProgress, bus.ScanProgressPayload{Path: storedPath, Status: status})
	}

	for p := range byPath {
		if !seen[p] {
			result.Removed = append(result.Removed, p)
			sc.bus.Publish(bus.TagScanProgress, bus.ScanProgressPayload{Path: p, Status: "removed"})
		}
	}

	sc.bus.Publish(bus.TagScanDone, bus.ScanStartDonePayload{NumFiles: len(paths)})
	return result, nil
}

// contentHash resolves a file's content hash, preferring the in-
// process LRU, falling back to the persisted file_hashes table (which
// survives daemon restarts), and only re-reading and hashing the file
// when neither has a record for this exact (path, mtime).
func (sc *Scanner) contentHash(ctx context.Context, path string, mtime int64) (string, error) {
	key := fmt.Sprintf("%s@%d", path, mtime)
	if cached, ok := sc.hashCache.Get(key); ok {
		return cached, nil
	}

	if persisted, err := sc.store.GetFileHash(ctx, path, mtime); err != nil {
		return "", spallerrors.Internal("read persisted file hash", err)
	} else if persisted != nil {
		sc.hashCache.Add(key, *persisted)
		return *persisted, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", spallerrors.Internal("read scanned file", err)
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	if err := sc.store.UpsertFileHash(ctx, path, hash, mtime); err != nil {
		return "", spallerrors.Internal("persist file hash", err)
	}
	sc.hashCache.Add(key, hash)
	return hash, nil
}

// withinPrefix reports whether path equals prefix or lives under it.
func withinPrefix(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	return path == prefix || len(path) > len(prefix) && path[:len(prefix)+1] == prefix+"/"
}
