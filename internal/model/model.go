package model

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/spall/spall/internal/bus"
	spallerrors "github.com/spall/spall/internal/errors"
)

// Adapter is the lazy model-backend handle of spec.md §4.6: one
// embedder, loaded on first use and disposed on daemon shutdown. It
// holds no reranker; Config's rerank fields are not read by Load.
type Adapter struct {
	mu     sync.Mutex
	cfg    Config
	bus    *bus.Bus
	loaded bool

	embed embedder
}

// New creates an unloaded adapter. Call Load (directly, or implicitly
// via the first Embed call) before using it.
func New(cfg Config, b *bus.Bus) *Adapter {
	return &Adapter{cfg: cfg, bus: b}
}

// Load downloads the embedding model if needed and initializes the
// native backend, publishing the model.download/progress/downloaded and
// model.load events along the way. Safe to call more than once; later
// calls are no-ops once loaded.
func (a *Adapter) Load(ctx context.Context) (err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.loaded {
		return nil
	}

	defer func() {
		if err != nil {
			a.bus.Publish(bus.TagModelFailed, bus.ModelFailedPayload{Error: err.Error()})
		}
	}()

	modelPath := filepath.Join(a.cfg.ModelDir, a.cfg.EmbedModelFile)

	lock := newDownloadLock(a.cfg.ModelDir)
	if err := lock.lock(); err != nil {
		return spallerrors.Wrap(spallerrors.CodeModelDownload, err)
	}
	defer lock.unlock()

	a.bus.Publish(bus.TagModelDownload, a.cfg.EmbedModelFile)
	if err := downloadFile(ctx, a.cfg.EmbedModelURL, modelPath, func(read, total int64) {
		frac := 0.0
		if total > 0 {
			frac = float64(read) / float64(total)
		}
		a.bus.Publish(bus.TagModelProgress, bus.ModelDownloadProgressPayload{
			Model: a.cfg.EmbedModelFile, BytesRead: read, BytesTotal: total, FractionDone: frac,
		})
	}); err != nil {
		return spallerrors.Wrap(spallerrors.CodeModelDownload, err)
	}
	a.bus.Publish(bus.TagModelDownloaded, a.cfg.EmbedModelFile)

	nb, err := openNativeBackend(a.cfg.NativeLibPath)
	if err != nil {
		return spallerrors.Wrap(spallerrors.CodeModelDownload, err)
	}
	if err := nb.load(modelPath); err != nil {
		return spallerrors.Wrap(spallerrors.CodeModelDownload, err)
	}

	a.embed = newCachedEmbedder(nb, a.cfg.CacheSize)
	a.loaded = true
	a.bus.Publish(bus.TagModelLoad, a.cfg.EmbedModelFile)
	return nil
}

func (a *Adapter) ensureLoaded(ctx context.Context) error {
	a.mu.Lock()
	loaded := a.loaded
	a.mu.Unlock()
	if loaded {
		return nil
	}
	return a.Load(ctx)
}

// Embed embeds a single string, loading the backend first if needed.
func (a *Adapter) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := a.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return a.embed.embed(ctx, text)
}

// EmbedBatch embeds multiple strings in one backend batch call per
// spec.md §4.2's 16-chunk batching; the caller is responsible for batch
// sizing.
func (a *Adapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := a.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return a.embed.embedBatch(ctx, texts)
}

// Tokenize exposes the embedder's own tokenizer to internal/chunk so
// window boundaries are defined in the model's vocabulary.
func (a *Adapter) Tokenize(ctx context.Context, text string) ([]int32, error) {
	if err := a.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return a.embed.tokenize(text)
}

// Detokenize is the inverse of Tokenize.
func (a *Adapter) Detokenize(ctx context.Context, tokens []int32) (string, error) {
	if err := a.ensureLoaded(ctx); err != nil {
		return "", err
	}
	return a.embed.detokenize(tokens)
}

// Dimensions returns the embedder's output vector width. Before the
// adapter is loaded it returns the configured Dimensions instead.
func (a *Adapter) Dimensions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.embed == nil {
		return a.cfg.Dimensions
	}
	return a.embed.dimensions()
}

// Dispose releases the native backend. Safe to call on an unloaded
// adapter.
func (a *Adapter) Dispose() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.loaded {
		return nil
	}
	a.loaded = false
	return a.embed.close()
}

// TokenizerAdapter adapts *Adapter to internal/chunk.Tokenizer,
// threading a fixed context so the chunker's interface stays
// context-free (chunking runs inside an already-scoped pipeline
// request).
type TokenizerAdapter struct {
	Ctx     context.Context
	Adapter *Adapter
}

func (t TokenizerAdapter) Tokenize(text string) ([]int32, error) {
	return t.Adapter.Tokenize(t.Ctx, text)
}

func (t TokenizerAdapter) Detokenize(tokens []int32) (string, error) {
	return t.Adapter.Detokenize(t.Ctx, tokens)
}

// PipelineEmbedder adapts *Adapter to internal/pipeline.Embedder: a
// context-free Tokenizer (via the embedded TokenizerAdapter) plus the
// context-taking batch embed call the pipeline's embed step needs.
type PipelineEmbedder struct {
	TokenizerAdapter
}

// NewPipelineEmbedder binds an adapter to a fixed request context for
// the duration of one pipeline operation.
func NewPipelineEmbedder(ctx context.Context, a *Adapter) PipelineEmbedder {
	return PipelineEmbedder{TokenizerAdapter{Ctx: ctx, Adapter: a}}
}

func (p PipelineEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return p.Adapter.EmbedBatch(ctx, texts)
}
