package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLoggerSetsRequestIDHeaderAndContext(t *testing.T) {
	var seenID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = requestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	requestLogger(next).ServeHTTP(rec, req)

	headerID := rec.Header().Get("X-Request-Id")
	require.NotEmpty(t, headerID)
	assert.Equal(t, headerID, seenID)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRequestLoggerAssignsDistinctIDsPerRequest(t *testing.T) {
	var ids []string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, requestIDFromContext(r.Context()))
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		requestLogger(next).ServeHTTP(rec, req)
	}

	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
}

func TestRequestIDFromContextEmptyWhenAbsent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	assert.Empty(t, requestIDFromContext(req.Context()))
}
