package model

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/ebitengine/purego"
)

// nativeBackend binds the handful of llama.cpp-style C entry points
// needed to load a GGUF embedding model and run it: init the backend,
// load a model file, create a context, tokenize/detokenize, and
// extract pooled embeddings. Bound dynamically via purego so the
// daemon stays CGO-free, the same choice the teacher's cmd/purego-test
// made.
type nativeBackend struct {
	mu    sync.Mutex
	lib   uintptr
	model uintptr
	ctx   uintptr
	dims  int
	vocab int

	backendInit   func()
	backendFree   func()
	loadModel     func(path string, nGPULayers int32) uintptr
	freeModel     func(model uintptr)
	newContext    func(model uintptr, nCtx int32) uintptr
	freeContext   func(ctx uintptr)
	tokenizeFn    func(ctx uintptr, text string, maxTokens int32, tokensOut *int32) int32
	detokenizeFn  func(ctx uintptr, tokens *int32, nTokens int32, textOut *byte, maxLen int32) int32
	embedFn       func(ctx uintptr, tokens *int32, nTokens int32, out *float32) int32
	embedDims     func(model uintptr) int32
}

func defaultLibPath() string {
	switch runtime.GOOS {
	case "darwin":
		return "libllama.dylib"
	case "windows":
		return "llama.dll"
	default:
		return "libllama.so"
	}
}

// openNativeBackend dlopens the shared library and resolves every
// symbol the adapter needs, then initializes the global library state.
func openNativeBackend(libPath string) (*nativeBackend, error) {
	if libPath == "" {
		libPath = defaultLibPath()
	}

	lib, err := purego.Dlopen(libPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("load native model backend %q: %w", libPath, err)
	}

	nb := &nativeBackend{lib: lib}
	purego.RegisterLibFunc(&nb.backendInit, lib, "llama_backend_init")
	purego.RegisterLibFunc(&nb.backendFree, lib, "llama_backend_free")
	purego.RegisterLibFunc(&nb.loadModel, lib, "llama_load_model_from_file")
	purego.RegisterLibFunc(&nb.freeModel, lib, "llama_free_model")
	purego.RegisterLibFunc(&nb.newContext, lib, "llama_new_context_with_model")
	purego.RegisterLibFunc(&nb.freeContext, lib, "llama_free")
	purego.RegisterLibFunc(&nb.tokenizeFn, lib, "llama_tokenize")
	purego.RegisterLibFunc(&nb.detokenizeFn, lib, "llama_detokenize")
	purego.RegisterLibFunc(&nb.embedFn, lib, "llama_embed")
	purego.RegisterLibFunc(&nb.embedDims, lib, "llama_n_embd")

	nb.backendInit()
	return nb, nil
}

// load opens the model file and an inference context sized for the
// chunk window (§4.2's 512-token windows plus overlap).
func (nb *nativeBackend) load(modelPath string) error {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	model := nb.loadModel(modelPath, 0)
	if model == 0 {
		return fmt.Errorf("native backend failed to load model %q", modelPath)
	}
	ctx := nb.newContext(model, 2048)
	if ctx == 0 {
		nb.freeModel(model)
		return fmt.Errorf("native backend failed to create context for %q", modelPath)
	}

	nb.model = model
	nb.ctx = ctx
	nb.dims = int(nb.embedDims(model))
	return nil
}

const maxTokensPerCall = 8192

func (nb *nativeBackend) tokenize(text string) ([]int32, error) {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	tokens := make([]int32, maxTokensPerCall)
	n := nb.tokenizeFn(nb.ctx, text, int32(len(tokens)), &tokens[0])
	if n < 0 {
		return nil, fmt.Errorf("tokenize: text exceeds %d-token native buffer", maxTokensPerCall)
	}
	return tokens[:n], nil
}

func (nb *nativeBackend) detokenize(tokens []int32) (string, error) {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	if len(tokens) == 0 {
		return "", nil
	}
	buf := make([]byte, 8*len(tokens)+16)
	n := nb.detokenizeFn(nb.ctx, &tokens[0], int32(len(tokens)), &buf[0], int32(len(buf)))
	if n < 0 {
		return "", fmt.Errorf("detokenize: output exceeds %d-byte native buffer", len(buf))
	}
	return string(buf[:n]), nil
}

func (nb *nativeBackend) embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := nb.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (nb *nativeBackend) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tokens, err := nb.tokenize(text)
		if err != nil {
			return nil, err
		}

		nb.mu.Lock()
		vec := make([]float32, nb.dims)
		rc := nb.embedFn(nb.ctx, &tokens[0], int32(len(tokens)), &vec[0])
		nb.mu.Unlock()
		if rc != 0 {
			return nil, fmt.Errorf("native embed call failed for batch item %d", i)
		}
		out[i] = vec
	}
	return out, nil
}

func (nb *nativeBackend) dimensions() int {
	nb.mu.Lock()
	defer nb.mu.Unlock()
	return nb.dims
}

func (nb *nativeBackend) close() error {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	if nb.ctx != 0 {
		nb.freeContext(nb.ctx)
		nb.ctx = 0
	}
	if nb.model != 0 {
		nb.freeModel(nb.model)
		nb.model = 0
	}
	nb.backendFree()
	return purego.Dlclose(nb.lib)
}
