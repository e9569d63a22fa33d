package pipeline

import (
	"context"

	"github.com/spall/spall/internal/bus"
	"github.com/spall/spall/internal/store"
)

// Sync is the single ingestion verb exposed to the CLI (spec.md
// §4.2): scan(dir, glob, corpus, prefix) applied to storage, followed
// by embed(unembedded). Scan only classifies; Sync is what actually
// writes notes and triggers re-embedding.
func Sync(ctx context.Context, reqCtx *RequestContext, s *store.Store, b *bus.Bus, scanner *Scanner, emb Embedder, dir, glob string, corpusID int64, prefix string) (*ScanResult, error) {
	result, err := scanner.Scan(ctx, reqCtx, dir, glob, corpusID, prefix)
	if err != nil {
		return nil, err
	}

	toEmbed, err := applyReconciliation(ctx, s, dir, corpusID, prefix, result)
	if err != nil {
		return nil, err
	}

	if len(toEmbed) > 0 {
		if err := Embed(ctx, reqCtx, s, b, emb, toEmbed); err != nil {
			return nil, err
		}
	}

	return result, nil
}
