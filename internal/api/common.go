package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	spallerrors "github.com/spall/spall/internal/errors"
	"github.com/spall/spall/internal/model"
)

func hashOf(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// parseID parses a URL path parameter as a note/corpus/workspace id.
func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, spallerrors.Invalid("invalid id")
	}
	return id, nil
}

// embedder binds the server's model adapter to this request's context
// for the pipeline's combined tokenizer+batch-embed needs.
func (s *Server) embedder(ctx context.Context) model.PipelineEmbedder {
	return model.NewPipelineEmbedder(ctx, s.Model)
}
