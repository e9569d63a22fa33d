package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	spallerrors "github.com/spall/spall/internal/errors"
	"github.com/spall/spall/internal/store"
)

// applyReconciliation writes the note rows a scan classified as
// added/modified/removed and returns the note ids that need
// (re)embedding. Scan-driven writes allow duplicate content across
// distinct files: a directory can legitimately contain two notes with
// identical bodies (e.g. boilerplate headers), and the scanner has no
// per-file dupe override the way the explicit add/upsert API does.
func applyReconciliation(ctx context.Context, s *store.Store, dir string, corpusID int64, prefix string, result *ScanResult) ([]int64, error) {
	var toEmbed []int64

	for _, storedPath := range result.Added {
		abs := sourcePathFor(dir, prefix, storedPath)
		content, mtime, err := readFileContent(abs)
		if err != nil {
			return nil, err
		}
		note, err := s.AddNote(ctx, corpusID, storedPath, content, hashContent(content), mtime, true)
		if err != nil {
			return nil, err
		}
		toEmbed = append(toEmbed, note.ID)
	}

	for _, storedPath := range result.Modified {
		existing, err := s.GetNote(ctx, corpusID, storedPath)
		if err != nil {
			return nil, err
		}
		abs := sourcePathFor(dir, prefix, storedPath)
		content, mtime, err := readFileContent(abs)
		if err != nil {
			return nil, err
		}
		updated, err := s.UpdateNote(ctx, existing.ID, content, hashContent(content), mtime, true)
		if err != nil {
			return nil, err
		}
		toEmbed = append(toEmbed, updated.ID)
	}

	for _, storedPath := range result.Removed {
		existing, err := s.GetNote(ctx, corpusID, storedPath)
		if err != nil {
			if spallerrors.IsCode(err, spallerrors.CodeNoteNotFound) {
				continue
			}
			return nil, err
		}
		if err := s.DeleteNote(ctx, existing.ID); err != nil {
			return nil, err
		}
		abs := sourcePathFor(dir, prefix, storedPath)
		if err := s.DeleteFileHash(ctx, abs); err != nil {
			return nil, err
		}
	}

	for _, touch := range result.MtimeTouches {
		if err := s.TouchNoteMtime(ctx, touch.NoteID, touch.Mtime); err != nil {
			return nil, err
		}
	}

	return toEmbed, nil
}

func sourcePathFor(dir, prefix, storedPath string) string {
	rel := storedPath
	if prefix != "" {
		rel = CanonicalPath(storedPath[len(prefix):])
	}
	return filepath.Join(dir, filepath.FromSlash(rel))
}

func readFileContent(path string) (string, int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, spallerrors.Internal("read reconciled file", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, spallerrors.Internal("stat reconciled file", err)
	}
	return string(data), info.ModTime().UnixMilli(), nil
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
