// Package model is the adapter of spec.md §4.6: a single lazily-loaded
// backend handle wrapping one embedder, a GGUF model loaded through a
// native shared library via ebitengine/purego rather than CGO. No
// reranker model is downloaded or loaded.
//
// Grounded on the teacher's internal/embed package (Embedder interface
// shape, LRU caching in cached.go, gofrs/flock download lock in
// lock.go) and cmd/purego-test/main.go (Dlopen/RegisterLibFunc usage),
// generalized from an HTTP/MLX-server embedder to an in-process native
// one per spec.md's "local GGUF model" requirement.
package model

import "context"

// Config configures the adapter's backend and model files.
type Config struct {
	ModelDir       string
	EmbedModelURL  string
	EmbedModelFile string
	RerankModelURL string
	RerankModelFile string
	Dimensions     int
	CacheSize      int
	NativeLibPath  string
}

// ProgressFunc reports download/load progress; bytesTotal is 0 when
// unknown (chunked transfer).
type ProgressFunc func(model string, bytesRead, bytesTotal int64)

// embedder is the minimal surface the adapter's native backend must
// provide; satisfied by nativeBackend and swappable in tests.
type embedder interface {
	embed(ctx context.Context, text string) ([]float32, error)
	embedBatch(ctx context.Context, texts []string) ([][]float32, error)
	tokenize(text string) ([]int32, error)
	detokenize(tokens []int32) (string, error)
	dimensions() int
	close() error
}
