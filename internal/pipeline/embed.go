package pipeline

import (
	"context"

	"github.com/spall/spall/internal/bus"
	"github.com/spall/spall/internal/chunk"
	spallerrors "github.com/spall/spall/internal/errors"
	"github.com/spall/spall/internal/store"
)

// embedBatchSize is the fixed chunk-batch size of spec.md §4.2: one
// embedder batch call covers 16 chunks, possibly spanning multiple
// notes.
const embedBatchSize = 16

// Embedder is the subset of internal/model.Adapter the embed step
// needs: batch vector production plus the tokenizer the chunker rides
// on.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	chunk.Tokenizer
}

// pendingChunk pairs one chunk with the note it belongs to, the unit
// the embed step batches across note boundaries.
type pendingChunk struct {
	noteID int64
	chunk  chunk.Chunk
}

// Embed (re)embeds the given notes, per spec.md §4.2: chunk every
// note's content, batch 16 chunks at a time across notes, call the
// embedder once per batch, and transactionally replace each batch's
// notes' chunk + vector rows.
func Embed(ctx context.Context, reqCtx *RequestContext, s *store.Store, b *bus.Bus, emb Embedder, noteIDs []int64) error {
	var pending []pendingChunk
	totalBytes := int64(0)

	for _, id := range noteIDs {
		note, err := s.GetNoteByID(ctx, id)
		if err != nil {
			return err
		}
		totalBytes += note.Size

		chunks, err := chunk.Split(emb, note.Content)
		if err != nil {
			return spallerrors.Internal("chunk note content", err)
		}
		for _, c := range chunks {
			pending = append(pending, pendingChunk{noteID: id, chunk: c})
		}
	}

	numFiles, numChunks, numBytes := len(noteIDs), len(pending), totalBytes
	b.Publish(bus.TagEmbedStart, bus.EmbedStartPayload{
		NumFiles: numFiles, NumChunks: numChunks, NumBytes: numBytes,
	})

	filesProcessed := 0
	bytesProcessed := int64(0)
	notesSeenThisRun := make(map[int64]bool)

	for start := 0; start < len(pending); start += embedBatchSize {
		if err := reqCtx.checkpoint(ctx); err != nil {
			return err
		}

		end := start + embedBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, pc := range batch {
			texts[i] = pc.chunk.Content
			if err := reqCtx.checkpoint(ctx); err != nil {
				return err
			}
		}

		vectors, err := emb.EmbedBatch(ctx, texts)
		if err != nil {
			return spallerrors.Internal("embed chunk batch", err)
		}

		byNote := make(map[int64][]int)
		for i, pc := range batch {
			byNote[pc.noteID] = append(byNote[pc.noteID], i)
		}

		for noteID, idxs := range byNote {
			rows := make([]store.ChunkRow, len(idxs))
			vecs := make([][]float32, len(idxs))
			for j, i := range idxs {
				rows[j] = store.ChunkRow{NoteID: noteID, Seq: batch[i].chunk.Seq, Pos: batch[i].chunk.Pos}
				vecs[j] = vectors[i]
			}
			if err := s.SaveEmbeddings(ctx, noteID, rows, vecs); err != nil {
				return err
			}
			if !notesSeenThisRun[noteID] {
				notesSeenThisRun[noteID] = true
				filesProcessed++
				if note, err := s.GetNoteByID(ctx, noteID); err == nil {
					bytesProcessed += note.Size
				}
			}
		}

		b.Publish(bus.TagEmbedProgress, bus.EmbedProgressPayload{
			NumFiles: numFiles, NumChunks: numChunks, NumBytes: numBytes,
			NumFilesProcessed: filesProcessed, NumBytesProcessed: bytesProcessed,
		})
	}

	b.Publish(bus.TagEmbedDone, bus.EmbedDonePayload{NumFiles: filesProcessed})
	return nil
}
